package types

import "time"

// Registered users
type User struct {
	DiscordID           string `gorm:"primaryKey;size:64"`
	Username            string `gorm:"size:64;not null"`
	PublicKey           string `gorm:"size:128;not null"`
	EncryptedPrivateKey string `gorm:"size:256;not null"`
	Nonce               int64  `gorm:"default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Balances, one row per user
type Balance struct {
	DiscordID   string `gorm:"primaryKey;size:64"`
	Balance     int64  `gorm:"not null;default:0"`
	LastUpdated time.Time
}

// Transaction ledger
type Transaction struct {
	ID        string `gorm:"primaryKey;size:36"`
	FromUser  string `gorm:"index;size:64;not null"`
	ToUser    string `gorm:"index;size:64;not null"`
	Amount    int64  `gorm:"not null"`
	Kind      string `gorm:"size:32;not null;default:transfer"` // transfer, mint, auction_win
	Memo      string `gorm:"size:256"`
	Nonce     int64  `gorm:"not null"`
	Signature string `gorm:"size:256;not null"`
	CreatedAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
