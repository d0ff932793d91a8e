package quotes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Static serves quotes from an in-memory table.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStatic(quotes ...Quote) *Static {
	s := &Static{quotes: make(map[string]Quote, len(quotes))}
	for _, q := range quotes {
		s.Set(q)
	}
	return s
}

// ParseStatic builds a table from "AAPL=190.25,MSFT=410".
func ParseStatic(table string) (*Static, error) {
	s := NewStatic()
	for _, entry := range strings.Split(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		symbol, price, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("static quote %q: expected SYMBOL=PRICE", entry)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, fmt.Errorf("static quote %q: %w", entry, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("static quote %q: price must be positive", entry)
		}
		s.Set(Quote{Symbol: symbol, Price: p})
	}
	return s, nil
}

// Set adds or replaces a quote. An empty name defaults to the symbol.
func (s *Static) Set(q Quote) {
	q.Symbol = Normalize(q.Symbol)
	if q.Name == "" {
		q.Name = q.Symbol
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

func (s *Static) Lookup(_ context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}
	return q, nil
}
