package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// PriceScale is the number of decimal places stored for prices and cash.
// Prices are rounded to it before any total is computed.
const PriceScale = 4

// Transaction is one append-only ledger row. Shares is positive for buys and
// negative for sells; Price is the quote at execution time.
type Transaction struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"not null;index:idx_transactions_user_symbol,priority:1" json:"user_id"`
	Symbol     string          `gorm:"size:16;not null;index:idx_transactions_user_symbol,priority:2" json:"symbol"`
	Shares     int64           `gorm:"not null" json:"shares"`
	Price      decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"price"`
	Type       string          `gorm:"size:4;not null" json:"type"`
	ExecutedAt time.Time       `gorm:"not null;index" json:"timestamp"`
}

// CashDelta is the row's effect on cash: -shares*price.
func (t Transaction) CashDelta() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(-t.Shares))
}
