package ledger

import (
	"context"
	"fmt"

	"stocks-simulator/database"
	"stocks-simulator/models"
	"stocks-simulator/quotes"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position is the net number of shares held in one symbol.
type Position struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// Holding is a position valued at the current quote.
type Holding struct {
	Symbol string
	Name   string
	Shares int64
	Price  decimal.Decimal
	Total  decimal.Decimal
}

type Portfolio struct {
	Holdings   []Holding
	Cash       decimal.Decimal
	GrandTotal decimal.Decimal // sum of holding totals plus cash
}

// Reconciliation compares the cached cash balance with a replay of the ledger.
type Reconciliation struct {
	UserID       uint
	StartingCash decimal.Decimal
	LedgerCash   decimal.Decimal
	Cash         decimal.Decimal
	Transactions int
	Balanced     bool
}

// Portfolio values every open position at the current quote. Cash and
// positions are read from one snapshot; quotes are fetched afterwards.
func (e *Engine) Portfolio(ctx context.Context, userID uint) (*Portfolio, error) {
	var (
		user      models.User
		positions []Position
	)
	err := database.WithinTx(ctx, e.db, database.SnapshotOptions(e.db), func(tx *gorm.DB) error {
		var err error
		if user, err = findUser(tx, userID); err != nil {
			return err
		}
		positions, err = openPositions(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	p := &Portfolio{
		Holdings: make([]Holding, 0, len(positions)),
		Cash:     user.Cash,
	}
	grand := user.Cash
	for _, pos := range positions {
		q, err := e.marks.Lookup(ctx, pos.Symbol)
		if err != nil {
			return nil, fmt.Errorf("value %s: %w", pos.Symbol, err)
		}
		total := q.Price.Mul(decimal.NewFromInt(pos.Shares))
		p.Holdings = append(p.Holdings, Holding{
			Symbol: pos.Symbol,
			Name:   q.Name,
			Shares: pos.Shares,
			Price:  q.Price,
			Total:  total,
		})
		grand = grand.Add(total)
	}
	p.GrandTotal = grand
	return p, nil
}

// Holdings lists the symbols with a positive position, ordered by symbol.
func (e *Engine) Holdings(ctx context.Context, userID uint) ([]Position, error) {
	return openPositions(e.db.WithContext(ctx), userID)
}

// Cash returns the user's current cash balance.
func (e *Engine) Cash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	user, err := findUser(e.db.WithContext(ctx), userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Cash, nil
}

// History returns every ledger row of the user, newest first.
func (e *Engine) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	rows := make([]models.Transaction, 0)
	err := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("executed_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return rows, nil
}

// Quote looks a symbol up on the valuation source.
func (e *Engine) Quote(ctx context.Context, symbol string) (quotes.Quote, error) {
	symbol = quotes.Normalize(symbol)
	if symbol == "" {
		return quotes.Quote{}, &models.ValidationError{Field: "symbol", Message: "missing symbol"}
	}
	return e.marks.Lookup(ctx, symbol)
}

// Audit replays the user's ledger and compares the result with users.cash.
func (e *Engine) Audit(ctx context.Context, userID uint) (*Reconciliation, error) {
	var (
		user models.User
		rows []models.Transaction
	)
	err := database.WithinTx(ctx, e.db, database.SnapshotOptions(e.db), func(tx *gorm.DB) error {
		var err error
		if user, err = findUser(tx, userID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	replayed := user.StartingCash
	for _, row := range rows {
		replayed = replayed.Add(row.CashDelta())
	}

	r := &Reconciliation{
		UserID:       user.ID,
		StartingCash: user.StartingCash,
		LedgerCash:   replayed,
		Cash:         user.Cash,
		Transactions: len(rows),
		Balanced:     replayed.Equal(user.Cash),
	}
	if !r.Balanced {
		e.log.Error().
			Uint("user_id", userID).
			Str("ledger_cash", replayed.String()).
			Str("cash", user.Cash.String()).
			Msg("Cash balance does not match ledger")
	}
	return r, nil
}

func openPositions(tx *gorm.DB, userID uint) ([]Position, error) {
	positions := make([]Position, 0)
	err := tx.Model(&models.Transaction{}).
		Select("symbol, CAST(SUM(shares) AS BIGINT) AS shares").
		Where("user_id = ?", userID).
		Group("symbol").
		Having("SUM(shares) > 0").
		Order("symbol").
		Scan(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate positions: %w", err)
	}
	return positions, nil
}
