package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSnapshot records a quote fetched to price a trade.
type QuoteSnapshot struct {
	ID        uint            `gorm:"primaryKey"`
	Symbol    string          `gorm:"size:16;not null;index"`
	Name      string          `gorm:"size:255"`
	Price     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	FetchedAt time.Time       `gorm:"not null"`
}
