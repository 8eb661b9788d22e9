package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slumworks/slumbank/src/shared/data"
	"github.com/slumworks/slumbank/src/shared/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistent balance/transaction ledger. The redis client is
// optional; when present it serves as a read-through balance cache and is
// invalidated on every write.
type Store struct {
	db  *gorm.DB
	rdb *redis.Client
}

func New(db *gorm.DB, rdb *redis.Client) *Store {
	return &Store{db: db, rdb: rdb}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&types.User{},
		&types.Balance{},
		&types.Transaction{},
		&types.Setting{},
	)
}

// CreateUser inserts a user row together with its zero balance.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&types.Balance{
			DiscordID:   user.DiscordID,
			LastUpdated: time.Now(),
		}).Error
	})
}

// GetUser returns the user row, or gorm.ErrRecordNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	var user types.User
	if err := s.db.WithContext(ctx).First(&user, "discord_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Balance returns the current balance for id, zero when no row exists.
func (s *Store) Balance(ctx context.Context, id string) (int64, error) {
	if s.rdb != nil {
		if amount, ok := data.CachedBalance(ctx, s.rdb, id); ok {
			return amount, nil
		}
	}

	var b types.Balance
	err := s.db.WithContext(ctx).First(&b, "discord_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if s.rdb != nil {
		if err := data.CacheBalance(ctx, s.rdb, id, b.Balance); err != nil {
			log.Printf("ledger: cache balance for %s: %v", id, err)
		}
	}
	return b.Balance, nil
}

// SetBalance upserts the balance row and drops any cached value.
func (s *Store) SetBalance(ctx context.Context, id string, amount int64) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":      amount,
			"last_updated": now,
		}),
	}).Create(&types.Balance{DiscordID: id, Balance: amount, LastUpdated: now}).Error
	if err != nil {
		return err
	}

	if s.rdb != nil {
		if err := data.DropBalance(ctx, s.rdb, id); err != nil {
			log.Printf("ledger: drop cached balance for %s: %v", id, err)
		}
	}
	return nil
}

// RecordTransaction appends a row to the transaction ledger.
func (s *Store) RecordTransaction(ctx context.Context, tx *types.Transaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

// UserTransactions returns the transactions touching id, newest first.
func (s *Store) UserTransactions(ctx context.Context, id string) ([]types.Transaction, error) {
	var txs []types.Transaction
	err := s.db.WithContext(ctx).
		Where("from_user = ? OR to_user = ?", id, id).
		Order("created_at DESC").
		Find(&txs).Error
	return txs, err
}

// LeaderboardEntry is one row of the balance leaderboard.
type LeaderboardEntry struct {
	Username string
	Balance  int64
}

// TopBalances returns registered users ordered by balance. A limit of zero
// returns everyone.
func (s *Store) TopBalances(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	q := s.db.WithContext(ctx).
		Table("users").
		Select("users.username, COALESCE(balances.balance, 0) AS balance").
		Joins("LEFT JOIN balances ON users.discord_id = balances.discord_id").
		Order("balance DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []LeaderboardEntry
	err := q.Scan(&entries).Error
	return entries, err
}

// BalanceFromTransactions recomputes id's balance from the transaction log.
func (s *Store) BalanceFromTransactions(ctx context.Context, id string) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN to_user = ? THEN amount ELSE 0 END), 0) -
			COALESCE(SUM(CASE WHEN from_user = ? THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE from_user = ? OR to_user = ?`,
		id, id, id, id).Scan(&balance).Error
	return balance, err
}

// ReconcileBalances rewrites every balance row from the transaction log.
func (s *Store) ReconcileBalances(ctx context.Context) error {
	log.Printf("ledger: verifying balances against transaction log")

	var ids []string
	if err := s.db.WithContext(ctx).Model(&types.User{}).Pluck("discord_id", &ids).Error; err != nil {
		return err
	}

	for _, id := range ids {
		balance, err := s.BalanceFromTransactions(ctx, id)
		if err != nil {
			return err
		}
		if err := s.SetBalance(ctx, id, balance); err != nil {
			return err
		}
	}

	log.Printf("ledger: balance verification complete (%d users)", len(ids))
	return nil
}
