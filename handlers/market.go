package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type QuoteInput struct {
	Symbol string `form:"symbol" json:"symbol"`
}

// Quote looks up a symbol given as a query parameter (GET) or in the body (POST).
func (h *Handler) Quote(c *gin.Context) {
	var input QuoteInput
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	q, err := h.engine.Quote(c.Request.Context(), input.Symbol)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":        q.Symbol,
		"name":          q.Name,
		"price":         q.Price.String(),
		"price_display": usd(q.Price),
	})
}
