package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

type symbolSearchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
	} `json:"bestMatches"`
}

// AlphaVantage looks quotes up on the Alpha Vantage query API. By default a
// lookup is a single GLOBAL_QUOTE request and the symbol stands in for the
// company name; see WithNames.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
	names   bool
}

// NewAlphaVantage creates a client. timeout bounds every HTTP round trip.
func NewAlphaVantage(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *AlphaVantage {
	return &AlphaVantage{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// WithNames returns a client that also resolves the company name with a
// SYMBOL_SEARCH request, at the cost of a second call against the quota.
func (a *AlphaVantage) WithNames() *AlphaVantage {
	named := *a
	named.names = true
	return &named
}

func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return Quote{}, ErrInvalidSymbol
	}

	var result globalQuoteResponse
	if err := a.get(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}}, &result); err != nil {
		return Quote{}, err
	}

	switch {
	case result.ErrorMessage != "":
		return Quote{}, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	case result.Note != "" || result.Information != "":
		// Alpha Vantage reports throttling in-band with HTTP 200.
		a.log.Warn().Str("symbol", symbol).Str("note", result.Note+result.Information).Msg("Quote request throttled")
		return Quote{}, fmt.Errorf("%w: rate limited", ErrQuoteUnavailable)
	case result.GlobalQuote.Price == "":
		return Quote{}, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: parse price %q: %w", ErrQuoteUnavailable, result.GlobalQuote.Price, err)
	}
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: %s has no price", ErrInvalidSymbol, symbol)
	}

	name := symbol
	if a.names {
		name = a.companyName(ctx, symbol)
	}
	return Quote{
		Symbol: symbol,
		Name:   name,
		Price:  price,
	}, nil
}

// companyName is best effort; the symbol stands in for the name on failure.
func (a *AlphaVantage) companyName(ctx context.Context, symbol string) string {
	var result symbolSearchResponse
	if err := a.get(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {symbol}}, &result); err != nil {
		a.log.Debug().Err(err).Str("symbol", symbol).Msg("Symbol search failed")
		return symbol
	}
	for _, m := range result.BestMatches {
		if strings.EqualFold(m.Symbol, symbol) && m.Name != "" {
			return m.Name
		}
	}
	return symbol
}

func (a *AlphaVantage) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrQuoteUnavailable, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrQuoteUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrQuoteUnavailable, err)
	}
	return nil
}
