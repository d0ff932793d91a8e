package quotes

import (
	"context"
	"time"

	"stocks-simulator/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Recorder stores every successful lookup as a models.QuoteSnapshot.
type Recorder struct {
	next Lookuper
	db   *gorm.DB
	log  zerolog.Logger
}

func NewRecorder(next Lookuper, db *gorm.DB, log zerolog.Logger) *Recorder {
	return &Recorder{next: next, db: db, log: log}
}

func (r *Recorder) Lookup(ctx context.Context, symbol string) (Quote, error) {
	q, err := r.next.Lookup(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	snapshot := models.QuoteSnapshot{
		Symbol:    q.Symbol,
		Name:      q.Name,
		Price:     q.Price,
		FetchedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		r.log.Warn().Err(err).Str("symbol", q.Symbol).Msg("Failed to record quote snapshot")
	}
	return q, nil
}
