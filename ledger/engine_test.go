package ledger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"stocks-simulator/config"
	"stocks-simulator/database"
	"stocks-simulator/models"
	"stocks-simulator/quotes"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDB(&config.Config{DBDriver: config.DriverSQLite, DBPath: ":memory:", LogLevel: "error"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, cash string) models.User {
	t.Helper()
	amount := decimal.RequireFromString(cash)
	user := models.User{Username: username, PasswordHash: "x", Cash: amount, StartingCash: amount}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func ledgerRows(t *testing.T, db *gorm.DB, userID uint) []models.Transaction {
	t.Helper()
	var rows []models.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("id").Find(&rows).Error)
	return rows
}

func reloadCash(t *testing.T, db *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.Cash
}

type stubLookuper struct{ err error }

func (s stubLookuper) Lookup(context.Context, string) (quotes.Quote, error) {
	return quotes.Quote{}, s.err
}

func newEngine(t *testing.T, db *gorm.DB, source quotes.Lookuper) *Engine {
	t.Helper()
	return NewEngine(db, source, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestBuyThenSell_Scenario(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "10000.00")
	source := quotes.NewStatic(quotes.Quote{Symbol: "ACME", Name: "Acme Corp", Price: money("50.00")})
	engine := newEngine(t, db, source)
	ctx := context.Background()

	receipt, err := engine.Buy(ctx, user.ID, "acme", 10)
	require.NoError(t, err)
	assertMoney(t, "500.00", receipt.Total)
	assertMoney(t, "9500.00", receipt.Cash)
	assertMoney(t, "9500.00", reloadCash(t, db, user.ID))

	rows := ledgerRows(t, db, user.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "ACME", rows[0].Symbol)
	assert.Equal(t, int64(10), rows[0].Shares)
	assertMoney(t, "50.00", rows[0].Price)
	assert.Equal(t, models.TypeBuy, rows[0].Type)

	source.Set(quotes.Quote{Symbol: "ACME", Name: "Acme Corp", Price: money("60.00")})
	receipt, err = engine.Sell(ctx, user.ID, "ACME", 4)
	require.NoError(t, err)
	assertMoney(t, "240.00", receipt.Total)
	assertMoney(t, "9740.00", reloadCash(t, db, user.ID))

	rows = ledgerRows(t, db, user.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(-4), rows[1].Shares)
	assertMoney(t, "60.00", rows[1].Price)
	assert.Equal(t, models.TypeSell, rows[1].Type)

	p, err := engine.Portfolio(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, p.Holdings, 1)
	assert.Equal(t, "ACME", p.Holdings[0].Symbol)
	assert.Equal(t, "Acme Corp", p.Holdings[0].Name)
	assert.Equal(t, int64(6), p.Holdings[0].Shares)
	assertMoney(t, "60.00", p.Holdings[0].Price)
	assertMoney(t, "360.00", p.Holdings[0].Total)
	assertMoney(t, "9740.00", p.Cash)
	assertMoney(t, "10100.00", p.GrandTotal)
}

func TestBuy_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "100.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("50.01")}))

	_, err := engine.Buy(context.Background(), user.ID, "ACME", 2)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assertMoney(t, "100.00", reloadCash(t, db, user.ID))
	assert.Empty(t, ledgerRows(t, db, user.ID))
}

func TestBuy_ExactBalanceAllowed(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "100.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("50.00")}))

	receipt, err := engine.Buy(context.Background(), user.ID, "ACME", 2)
	require.NoError(t, err)
	assertMoney(t, "0.00", receipt.Cash)
}

func TestSell_InsufficientSharesLeavesStateUnchanged(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("10.00")}))
	ctx := context.Background()

	_, err := engine.Buy(ctx, user.ID, "ACME", 3)
	require.NoError(t, err)

	_, err = engine.Sell(ctx, user.ID, "ACME", 4)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	_, err = engine.SellAt(ctx, user.ID, "ACME", 4, money("10.00"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	assertMoney(t, "970.00", reloadCash(t, db, user.ID))
	assert.Len(t, ledgerRows(t, db, user.ID), 1)
}

func TestSell_NoPositionCountsAsZero(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("10.00")}))

	_, err := engine.Sell(context.Background(), user.ID, "ACME", 1)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestSell_ChecksSharesBeforeQuote(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, stubLookuper{err: quotes.ErrQuoteUnavailable})

	_, err := engine.Sell(context.Background(), user.ID, "ACME", 1)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestTrade_QuoteFailures(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	ctx := context.Background()

	_, err := newEngine(t, db, quotes.NewStatic()).Buy(ctx, user.ID, "ZZZZ", 1)
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	_, err = newEngine(t, db, stubLookuper{err: quotes.ErrQuoteUnavailable}).Buy(ctx, user.ID, "ACME", 1)
	assert.ErrorIs(t, err, ErrQuoteUnavailable)

	assertMoney(t, "1000.00", reloadCash(t, db, user.ID))
	assert.Empty(t, ledgerRows(t, db, user.ID))
}

func TestTrade_Validation(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("10.00")}))
	ctx := context.Background()

	testCases := []struct {
		name  string
		call  func() error
		field string
	}{
		{"buy empty symbol", func() error { _, err := engine.Buy(ctx, user.ID, "  ", 1); return err }, "symbol"},
		{"buy zero shares", func() error { _, err := engine.Buy(ctx, user.ID, "ACME", 0); return err }, "shares"},
		{"sell negative shares", func() error { _, err := engine.Sell(ctx, user.ID, "ACME", -1); return err }, "shares"},
		{"buy zero price", func() error { _, err := engine.BuyAt(ctx, user.ID, "ACME", 1, decimal.Zero); return err }, "price"},
		{"sell negative price", func() error { _, err := engine.SellAt(ctx, user.ID, "ACME", 1, money("-1")); return err }, "price"},
		{"buy price rounds to zero", func() error { _, err := engine.BuyAt(ctx, user.ID, "ACME", 1, money("0.00004")); return err }, "price"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var verr *models.ValidationError
			require.True(t, errors.As(tc.call(), &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Empty(t, ledgerRows(t, db, user.ID))
}

func TestBuy_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("10.00")}))

	_, err := engine.Buy(context.Background(), 42, "ACME", 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = engine.Portfolio(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConcurrentBuys_NeverOverdraw(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("100.00")}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Buy(context.Background(), user.ID, "ACME", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, refused)
	assertMoney(t, "0.00", reloadCash(t, db, user.ID))

	r, err := engine.Audit(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, r.Balanced)
}

func TestConcurrentSells_NeverGoShort(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("10.00")}))
	ctx := context.Background()

	_, err := engine.Buy(ctx, user.ID, "ACME", 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Sell(ctx, user.ID, "ACME", 1)
			if err != nil && !errors.Is(err, ErrInsufficientShares) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	positions, err := engine.Holdings(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assertMoney(t, "1000.00", reloadCash(t, db, user.ID))
	assert.Len(t, ledgerRows(t, db, user.ID), 6)
}

func TestAudit_ReplayMatchesCashAfterRandomTrades(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "10000.00")
	source := quotes.NewStatic()
	engine := newEngine(t, db, source)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	symbols := []string{"AAA", "BBB", "CCC"}

	expected := money("10000.00")
	for i := 0; i < 200; i++ {
		symbol := symbols[rng.Intn(len(symbols))]
		price := decimal.New(int64(rng.Intn(20000)+1), -2)
		source.Set(quotes.Quote{Symbol: symbol, Price: price})
		shares := int64(rng.Intn(20) + 1)

		if rng.Intn(2) == 0 {
			r, err := engine.Buy(ctx, user.ID, symbol, shares)
			if errors.Is(err, ErrInsufficientFunds) {
				continue
			}
			require.NoError(t, err)
			expected = expected.Sub(r.Total)
		} else {
			r, err := engine.Sell(ctx, user.ID, symbol, shares)
			if errors.Is(err, ErrInsufficientShares) {
				continue
			}
			require.NoError(t, err)
			expected = expected.Add(r.Total)
		}
	}

	r, err := engine.Audit(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, r.Balanced)
	assert.True(t, expected.Equal(r.LedgerCash), "expected %s, replayed %s", expected, r.LedgerCash)
	assert.True(t, expected.Equal(reloadCash(t, db, user.ID)))
	assert.False(t, r.Cash.IsNegative())

	positions, err := engine.Holdings(ctx, user.ID)
	require.NoError(t, err)
	for _, p := range positions {
		assert.Positive(t, p.Shares)
	}
}

func TestTrade_PriceRoundedToStoredScale(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "10000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("1.23456")}))
	ctx := context.Background()

	bought, err := engine.BuyAt(ctx, user.ID, "ACME", 3, money("1.23456"))
	require.NoError(t, err)
	assert.True(t, money("1.2346").Equal(bought.Transaction.Price), "price %s", bought.Transaction.Price)
	assert.True(t, money("3.7038").Equal(bought.Total), "total %s", bought.Total)
	assert.True(t, money("9996.2962").Equal(bought.Cash), "cash %s", bought.Cash)

	sold, err := engine.Sell(ctx, user.ID, "ACME", 1)
	require.NoError(t, err)
	assert.True(t, money("1.2346").Equal(sold.Transaction.Price))

	r, err := engine.Audit(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, r.Balanced)
	assert.True(t, money("9997.5308").Equal(r.LedgerCash), "replayed %s", r.LedgerCash)
}

func TestAudit_DetectsDrift(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "alice", "1000.00")
	engine := newEngine(t, db, quotes.NewStatic(quotes.Quote{Symbol: "ACME", Price: money("10.00")}))

	_, err := engine.Buy(context.Background(), user.ID, "ACME", 1)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("cash", money("5000")).Error)

	r, err := engine.Audit(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, r.Balanced)
	assertMoney(t, "990.00", r.LedgerCash)
	assert.Equal(t, 1, r.Transactions)
}
