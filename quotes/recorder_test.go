package quotes

import (
	"context"
	"testing"

	"stocks-simulator/config"
	"stocks-simulator/database"
	"stocks-simulator/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_PersistsSnapshots(t *testing.T) {
	db, err := config.OpenDB(&config.Config{DBDriver: config.DriverSQLite, DBPath: ":memory:", LogLevel: "error"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	source := NewStatic(Quote{Symbol: "AAPL", Name: "Apple Inc", Price: decimal.RequireFromString("190.25")})
	rec := NewRecorder(source, db, zerolog.New(nil))

	_, err = rec.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = rec.Lookup(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	var snapshots []models.QuoteSnapshot
	require.NoError(t, db.Find(&snapshots).Error)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "AAPL", snapshots[0].Symbol)
	assert.Equal(t, "Apple Inc", snapshots[0].Name)
	assert.Equal(t, "190.25", snapshots[0].Price.StringFixed(2))
	assert.False(t, snapshots[0].FetchedAt.IsZero())
}
