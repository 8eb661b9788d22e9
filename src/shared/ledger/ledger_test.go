package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/slumworks/slumbank/src/shared/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	store := New(db, nil)
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return store
}

func registerUser(t *testing.T, store *Store, id, username string) {
	t.Helper()
	err := store.CreateUser(context.Background(), &types.User{
		DiscordID:           id,
		Username:            username,
		PublicKey:           "pk-" + id,
		EncryptedPrivateKey: "enc-" + id,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
}

func TestCreateUserInitializesBalance(t *testing.T) {
	store := setupTestStore(t)
	registerUser(t, store, "100", "alice")

	user, err := store.GetUser(context.Background(), "100")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected username alice, got %s", user.Username)
	}

	balance, err := store.Balance(context.Background(), "100")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected starting balance 0, got %d", balance)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	store := setupTestStore(t)

	balance, err := store.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected 0, got %d", balance)
	}
}

func TestSetBalanceUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Insert path: no prior row.
	if err := store.SetBalance(ctx, "200", 75); err != nil {
		t.Fatalf("SetBalance insert failed: %v", err)
	}
	// Update path.
	if err := store.SetBalance(ctx, "200", 40); err != nil {
		t.Fatalf("SetBalance update failed: %v", err)
	}

	balance, err := store.Balance(ctx, "200")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 40 {
		t.Errorf("expected 40, got %d", balance)
	}
}

func TestRecordAndListTransactions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	registerUser(t, store, "300", "bob")

	for i, amount := range []int64{10, 20} {
		tx := &types.Transaction{
			ID:        uuid.NewString(),
			FromUser:  "SYSTEM",
			ToUser:    "300",
			Amount:    amount,
			Kind:      "mint",
			Signature: "system",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.RecordTransaction(ctx, tx); err != nil {
			t.Fatalf("RecordTransaction failed: %v", err)
		}
	}

	txs, err := store.UserTransactions(ctx, "300")
	if err != nil {
		t.Fatalf("UserTransactions failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Amount != 20 {
		t.Errorf("expected newest first, got amount %d", txs[0].Amount)
	}
}

func TestTopBalancesOrdering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	registerUser(t, store, "1", "alice")
	registerUser(t, store, "2", "bob")
	registerUser(t, store, "3", "carol")

	if err := store.SetBalance(ctx, "1", 50); err != nil {
		t.Fatal(err)
	}
	if err := store.SetBalance(ctx, "2", 200); err != nil {
		t.Fatal(err)
	}

	entries, err := store.TopBalances(ctx, 2)
	if err != nil {
		t.Fatalf("TopBalances failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Username != "bob" || entries[0].Balance != 200 {
		t.Errorf("expected bob/200 first, got %s/%d", entries[0].Username, entries[0].Balance)
	}
	if entries[1].Username != "alice" {
		t.Errorf("expected alice second, got %s", entries[1].Username)
	}
}

func TestReconcileBalances(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	registerUser(t, store, "400", "dave")

	mint := &types.Transaction{
		ID: uuid.NewString(), FromUser: "SYSTEM", ToUser: "400",
		Amount: 100, Kind: "mint", Signature: "system", CreatedAt: time.Now(),
	}
	debit := &types.Transaction{
		ID: uuid.NewString(), FromUser: "400", ToUser: "AUCTION_SYSTEM",
		Amount: 30, Kind: "auction_win", Signature: "system", CreatedAt: time.Now(),
	}
	if err := store.RecordTransaction(ctx, mint); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTransaction(ctx, debit); err != nil {
		t.Fatal(err)
	}

	// Balance row is stale until reconciled.
	if err := store.ReconcileBalances(ctx); err != nil {
		t.Fatalf("ReconcileBalances failed: %v", err)
	}

	balance, err := store.Balance(ctx, "400")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 70 {
		t.Errorf("expected reconciled balance 70, got %d", balance)
	}
}
