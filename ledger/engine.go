// Package ledger records buys and sells against a user's cash balance.
//
// The transactions table is the source of truth: a user's position in a
// symbol is the sum of its signed share counts, and users.cash always equals
// the starting balance plus the sum of -shares*price over all rows. Every
// write locks the user row and changes cash and the ledger in one database
// transaction. Quotes are fetched before that transaction opens.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocks-simulator/database"
	"stocks-simulator/models"
	"stocks-simulator/quotes"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine executes trades and reads portfolios.
type Engine struct {
	db     *gorm.DB
	quotes quotes.Lookuper // prices trades, never cached
	marks  quotes.Lookuper // values holdings for display
	log    zerolog.Logger
	now    func() time.Time
}

type Option func(*Engine)

// WithValuationQuotes sets the quote source used by Portfolio and Quote.
// Trades keep using the source passed to NewEngine.
func WithValuationQuotes(l quotes.Lookuper) Option {
	return func(e *Engine) { e.marks = l }
}

// WithClock overrides the execution timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(db *gorm.DB, q quotes.Lookuper, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		quotes: q,
		marks:  q,
		log:    log.With().Str("component", "ledger").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Receipt describes an executed trade.
type Receipt struct {
	Transaction models.Transaction
	Total       decimal.Decimal // shares * price, always positive
	Cash        decimal.Decimal // balance after the trade
}

func validateOrder(symbol string, shares int64) (string, error) {
	symbol = quotes.Normalize(symbol)
	if symbol == "" {
		return "", &models.ValidationError{Field: "symbol", Message: "must provide symbol"}
	}
	if shares <= 0 {
		return "", &models.ValidationError{Field: "shares", Message: "must provide positive number of shares"}
	}
	return symbol, nil
}

// validatePrice rounds price to the stored scale so that totals match what a
// replay of the stored rows computes.
func validatePrice(price decimal.Decimal) (decimal.Decimal, error) {
	price = price.Round(models.PriceScale)
	if !price.IsPositive() {
		return price, &models.ValidationError{Field: "price", Message: "must be positive"}
	}
	return price, nil
}

// Buy prices the order with a fresh quote and executes it.
func (e *Engine) Buy(ctx context.Context, userID uint, symbol string, shares int64) (*Receipt, error) {
	symbol, err := validateOrder(symbol, shares)
	if err != nil {
		return nil, err
	}
	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return e.BuyAt(ctx, userID, symbol, shares, q.Price)
}

// BuyAt debits shares*price from the user's cash and appends a buy row.
func (e *Engine) BuyAt(ctx context.Context, userID uint, symbol string, shares int64, price decimal.Decimal) (*Receipt, error) {
	symbol, err := validateOrder(symbol, shares)
	if err != nil {
		return nil, err
	}
	price, err = validatePrice(price)
	if err != nil {
		return nil, err
	}
	total := price.Mul(decimal.NewFromInt(shares))

	var receipt Receipt
	err = database.WithinTx(ctx, e.db, nil, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if user.Cash.LessThan(total) {
			return ErrInsufficientFunds
		}

		cash := user.Cash.Sub(total)
		row, err := e.record(tx, user.ID, symbol, shares, price, models.TypeBuy, cash)
		if err != nil {
			return err
		}
		receipt = Receipt{Transaction: row, Total: total, Cash: cash}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("user_id", userID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Str("price", price.String()).
		Str("cash", receipt.Cash.String()).
		Msg("Bought shares")
	return &receipt, nil
}

// Sell checks the position, prices the order with a fresh quote and executes it.
func (e *Engine) Sell(ctx context.Context, userID uint, symbol string, shares int64) (*Receipt, error) {
	symbol, err := validateOrder(symbol, shares)
	if err != nil {
		return nil, err
	}

	// Fail fast without a quote round trip; SellAt checks again under the lock.
	held, err := heldShares(e.db.WithContext(ctx), userID, symbol)
	if err != nil {
		return nil, err
	}
	if shares > held {
		return nil, ErrInsufficientShares
	}

	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return e.SellAt(ctx, userID, symbol, shares, q.Price)
}

// SellAt appends a sell row and credits shares*price to the user's cash.
func (e *Engine) SellAt(ctx context.Context, userID uint, symbol string, shares int64, price decimal.Decimal) (*Receipt, error) {
	symbol, err := validateOrder(symbol, shares)
	if err != nil {
		return nil, err
	}
	price, err = validatePrice(price)
	if err != nil {
		return nil, err
	}
	proceeds := price.Mul(decimal.NewFromInt(shares))

	var receipt Receipt
	err = database.WithinTx(ctx, e.db, nil, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		held, err := heldShares(tx, user.ID, symbol)
		if err != nil {
			return err
		}
		if shares > held {
			return ErrInsufficientShares
		}

		cash := user.Cash.Add(proceeds)
		row, err := e.record(tx, user.ID, symbol, -shares, price, models.TypeSell, cash)
		if err != nil {
			return err
		}
		receipt = Receipt{Transaction: row, Total: proceeds, Cash: cash}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("user_id", userID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Str("price", price.String()).
		Str("cash", receipt.Cash.String()).
		Msg("Sold shares")
	return &receipt, nil
}

// record appends the ledger row and stores the new cash balance. It must run
// inside the transaction that locked the user.
func (e *Engine) record(tx *gorm.DB, userID uint, symbol string, shares int64, price decimal.Decimal, kind string, cash decimal.Decimal) (models.Transaction, error) {
	row := models.Transaction{
		UserID:     userID,
		Symbol:     symbol,
		Shares:     shares,
		Price:      price,
		Type:       kind,
		ExecutedAt: e.now().UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return models.Transaction{}, fmt.Errorf("record %s: %w", kind, err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("cash", cash).Error; err != nil {
		return models.Transaction{}, fmt.Errorf("update cash: %w", err)
	}
	return row, nil
}

// lockUser loads the user row with FOR UPDATE, serializing trades per user.
func lockUser(tx *gorm.DB, userID uint) (models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, ErrUserNotFound
	}
	if err != nil {
		return user, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}

func findUser(tx *gorm.DB, userID uint) (models.User, error) {
	var user models.User
	err := tx.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, ErrUserNotFound
	}
	if err != nil {
		return user, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}

// heldShares is the net position in symbol; zero when there are no rows.
func heldShares(tx *gorm.DB, userID uint, symbol string) (int64, error) {
	var held int64
	err := tx.Model(&models.Transaction{}).
		Select("CAST(COALESCE(SUM(shares), 0) AS BIGINT)").
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Scan(&held).Error
	if err != nil {
		return 0, fmt.Errorf("sum shares of %s: %w", symbol, err)
	}
	return held, nil
}
