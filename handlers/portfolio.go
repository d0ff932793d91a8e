package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type holdingView struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Shares       int64  `json:"shares"`
	Price        string `json:"price"`
	PriceDisplay string `json:"price_display"`
	Total        string `json:"total"`
	TotalDisplay string `json:"total_display"`
}

type transactionView struct {
	ID        uint      `json:"id"`
	Symbol    string    `json:"symbol"`
	Shares    int64     `json:"shares"`
	Price     string    `json:"price"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Index shows the portfolio valued at current quotes.
func (h *Handler) Index(c *gin.Context) {
	p, err := h.engine.Portfolio(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	holdings := make([]holdingView, 0, len(p.Holdings))
	for _, hd := range p.Holdings {
		holdings = append(holdings, holdingView{
			Symbol:       hd.Symbol,
			Name:         hd.Name,
			Shares:       hd.Shares,
			Price:        hd.Price.String(),
			PriceDisplay: usd(hd.Price),
			Total:        amount(hd.Total),
			TotalDisplay: usd(hd.Total),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"holdings":            holdings,
		"cash":                amount(p.Cash),
		"cash_display":        usd(p.Cash),
		"grand_total":         amount(p.GrandTotal),
		"grand_total_display": usd(p.GrandTotal),
	})
}

func (h *Handler) History(c *gin.Context) {
	rows, err := h.engine.History(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]transactionView, 0, len(rows))
	for _, t := range rows {
		views = append(views, transactionView{
			ID:        t.ID,
			Symbol:    t.Symbol,
			Shares:    t.Shares,
			Price:     t.Price.String(),
			Type:      t.Type,
			Timestamp: t.ExecutedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": views})
}

// Audit replays the caller's ledger against the cached cash balance.
func (h *Handler) Audit(c *gin.Context) {
	r, err := h.engine.Audit(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"starting_cash": amount(r.StartingCash),
		"ledger_cash":   amount(r.LedgerCash),
		"cash":          amount(r.Cash),
		"transactions":  r.Transactions,
		"balanced":      r.Balanced,
	})
}

func formatShares(n int64) string {
	if n == 1 {
		return "1 share"
	}
	return strconv.FormatInt(n, 10) + " shares"
}
