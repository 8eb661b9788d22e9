package auction

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// SystemAccount receives auction-win debits in the transaction ledger.
const SystemAccount = "AUCTION_SYSTEM"

// KindAuctionWin tags the audit transaction written by Settle.
const KindAuctionWin = "auction_win"

// TransactionRecord is the audit entry Settle hands to the ledger.
type TransactionRecord struct {
	ID     string
	From   string
	To     string
	Amount int64
	Kind   string
	Memo   string
	At     time.Time
}

// Ledger is the balance store settlement writes to. Implementations may be
// slow; Settle is never called while the Manager lock is held.
type Ledger interface {
	Balance(ctx context.Context, actor string) (int64, error)
	SetBalance(ctx context.Context, actor string, amount int64) error
	RecordTransaction(ctx context.Context, rec TransactionRecord) error
}

// Receipt describes an applied debit.
type Receipt struct {
	Winner string
	Amount int64
	TxID   string
}

// Settle applies the economic effect of a finished bid auction: debit the
// winner and append an audit transaction. Vote auctions and auctions without
// proposals settle trivially with a nil receipt. ErrInsufficientFunds leaves
// the ledger untouched. Settle must be invoked at most once per snapshot;
// the Manager hands each ended auction to exactly one caller.
func Settle(ctx context.Context, a *Auction, ledger Ledger) (*Receipt, error) {
	if a.Mode != ModeBid {
		return nil, nil
	}

	out, ok := a.Winner()
	if !ok {
		return nil, nil
	}

	balance, err := ledger.Balance(ctx, out.Winner)
	if err != nil {
		return nil, &SettlementError{Op: "read balance", Err: err}
	}
	if balance < out.Amount {
		return nil, ErrInsufficientFunds
	}

	if err := ledger.SetBalance(ctx, out.Winner, balance-out.Amount); err != nil {
		return nil, &SettlementError{Op: "debit winner", Err: err}
	}

	rec := TransactionRecord{
		ID:     uuid.NewString(),
		From:   out.Winner,
		To:     SystemAccount,
		Amount: out.Amount,
		Kind:   KindAuctionWin,
		Memo:   "Auction win deduction",
		At:     time.Now(),
	}
	if err := ledger.RecordTransaction(ctx, rec); err != nil {
		// The debit is already applied; losing the audit row is logged
		// rather than unwound.
		log.Printf("auction: failed to record auction transaction: %v", err)
	}

	return &Receipt{Winner: out.Winner, Amount: out.Amount, TxID: rec.ID}, nil
}
