package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxUsernameLength = 64 // characters, matches the column size
	MaxPasswordLength = 72 // bytes, bcrypt ignores the rest
)

// User is a registered trader. Cash is a projection of the transaction ledger
// and only changes in the same database transaction as a ledger insert.
type User struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Username     string          `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Cash         decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"cash"`
	StartingCash decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"starting_cash"`
	CreatedAt    time.Time       `json:"created_at"`
}
