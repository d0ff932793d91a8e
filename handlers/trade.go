package handlers

import (
	"net/http"

	"stocks-simulator/ledger"

	"github.com/gin-gonic/gin"
)

type TradeInput struct {
	Symbol string `form:"symbol" json:"symbol" binding:"required"`
	Shares int64  `form:"shares" json:"shares" binding:"required,min=1"`
}

type receiptView struct {
	ID           uint   `json:"id"`
	Symbol       string `json:"symbol"`
	Shares       int64  `json:"shares"`
	Price        string `json:"price"`
	Type         string `json:"type"`
	Total        string `json:"total"`
	TotalDisplay string `json:"total_display"`
	Cash         string `json:"cash"`
	CashDisplay  string `json:"cash_display"`
	Message      string `json:"message"`
}

func newReceiptView(r *ledger.Receipt, message string) receiptView {
	return receiptView{
		ID:           r.Transaction.ID,
		Symbol:       r.Transaction.Symbol,
		Shares:       r.Transaction.Shares,
		Price:        r.Transaction.Price.String(),
		Type:         r.Transaction.Type,
		Total:        amount(r.Total),
		TotalDisplay: usd(r.Total),
		Cash:         amount(r.Cash),
		CashDisplay:  usd(r.Cash),
		Message:      message,
	}
}

// BuyForm reports the cash available for a purchase.
func (h *Handler) BuyForm(c *gin.Context) {
	cash, err := h.engine.Cash(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cash": amount(cash), "cash_display": usd(cash)})
}

func (h *Handler) Buy(c *gin.Context) {
	var input TradeInput
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	receipt, err := h.engine.Buy(c.Request.Context(), userID(c), input.Symbol, input.Shares)
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Bought " + formatShares(receipt.Transaction.Shares) + " of " + receipt.Transaction.Symbol + " for " + usd(receipt.Total)
	c.JSON(http.StatusCreated, newReceiptView(receipt, msg))
}

// SellForm lists the symbols the user can sell.
func (h *Handler) SellForm(c *gin.Context) {
	positions, err := h.engine.Holdings(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (h *Handler) Sell(c *gin.Context) {
	var input TradeInput
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	receipt, err := h.engine.Sell(c.Request.Context(), userID(c), input.Symbol, input.Shares)
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Sold " + formatShares(-receipt.Transaction.Shares) + " of " + receipt.Transaction.Symbol + " for " + usd(receipt.Total)
	c.JSON(http.StatusCreated, newReceiptView(receipt, msg))
}
