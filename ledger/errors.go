package ledger

import (
	"errors"

	"stocks-simulator/quotes"
)

var (
	ErrInvalidSymbol      = quotes.ErrInvalidSymbol
	ErrQuoteUnavailable   = quotes.ErrQuoteUnavailable
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUserNotFound       = errors.New("user not found")
)
