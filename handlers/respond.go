package handlers

import (
	"errors"
	"net/http"

	"stocks-simulator/auth"
	"stocks-simulator/ledger"
	"stocks-simulator/models"

	"github.com/Rhymond/go-money"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var bindMessages = map[string]string{
	"Symbol":       "must provide symbol",
	"Shares":       "must provide positive number of shares",
	"Username":     "must provide username",
	"Password":     "must provide password",
	"Confirmation": "passwords must match",
}

// bindError turns a gin binding failure into a ValidationError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		if verrs[0].Tag() == "max" {
			return &models.ValidationError{Field: field, Message: "must be at most " + verrs[0].Param() + " characters"}
		}
		msg, ok := bindMessages[field]
		if !ok {
			msg = "invalid value"
		}
		return &models.ValidationError{Field: field, Message: msg}
	}
	return &models.ValidationError{Field: "request", Message: "malformed input"}
}

// respondError maps domain errors to a status and a message safe to show the
// user. Anything unrecognized is logged and reported as a generic failure.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, verr.Message
	case errors.Is(err, ledger.ErrInvalidSymbol):
		status, msg = http.StatusBadRequest, "invalid symbol"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status, msg = http.StatusBadRequest, "can't afford"
	case errors.Is(err, ledger.ErrInsufficientShares):
		status, msg = http.StatusBadRequest, "not enough shares"
	case errors.Is(err, auth.ErrUsernameTaken):
		status, msg = http.StatusBadRequest, "username already exists"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusForbidden, "invalid username and/or password"
	case errors.Is(err, ledger.ErrQuoteUnavailable):
		status, msg = http.StatusBadGateway, "quote service unavailable, try again later"
	case errors.Is(err, ledger.ErrUserNotFound):
		status, msg = http.StatusUnauthorized, "invalid or expired session"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// usd formats an amount as US dollars, e.g. "$9,740.00".
func usd(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}

// amount renders a stored decimal with cents precision.
func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
