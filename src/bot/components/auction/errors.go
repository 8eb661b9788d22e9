package auction

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Manager.Start when the channel still
	// holds an auction, expired or not.
	ErrAlreadyRunning = errors.New("an auction is already running in this channel")

	// ErrNoActiveAuction is returned when a channel has no registry entry.
	ErrNoActiveAuction = errors.New("no active auction in this channel")

	// ErrExpired is returned by PlaceBid once the deadline has passed.
	ErrExpired = errors.New("this auction has already ended")

	// ErrWrongMode is returned when a bid is submitted to a vote auction or
	// a vote to a bid auction. Modes never mix within one auction.
	ErrWrongMode = errors.New("that submission does not match this auction's mode")

	// ErrInsufficientFunds is returned by Settle when the winner cannot
	// cover the winning bid. No debit is applied.
	ErrInsufficientFunds = errors.New("winner has insufficient funds to pay for auction")
)

// BidTooLowError rejects a bid that does not strictly exceed the current
// highest. It carries the highest so the caller can render it.
type BidTooLowError struct {
	Highest int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be higher than current highest bid of %d Slumcoins", e.Highest)
}

// SettlementError reports a ledger failure during settlement. The auction has
// already left the registry by then; the caller keeps the snapshot if it
// wants to retry.
type SettlementError struct {
	Op  string
	Err error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement %s: %v", e.Op, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }
