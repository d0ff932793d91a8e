package quotes

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// Quote is the current name and price of a ticker symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Lookuper resolves a symbol to its current quote. Implementations return
// ErrInvalidSymbol for unknown symbols and ErrQuoteUnavailable when the
// source cannot be reached or answers with garbage.
type Lookuper interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

// Normalize trims and upper-cases a ticker symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
