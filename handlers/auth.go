package handlers

import (
	"net/http"
	"time"

	"stocks-simulator/auth"
	"stocks-simulator/middleware"

	"github.com/gin-gonic/gin"
)

type LoginInput struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type RegisterInput struct {
	Username     string `form:"username" json:"username" binding:"required,max=64"`
	Password     string `form:"password" json:"password" binding:"required,max=72"`
	Confirmation string `form:"confirmation" json:"confirmation" binding:"required,eqfield=Password"`
}

func (h *Handler) Register(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if err := c.ShouldBind(&input); err != nil {
			respondError(c, bindError(err))
			return
		}

		session, err := h.auth.Register(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		setSessionCookie(c, session, secure)
		c.JSON(http.StatusCreated, session)
	}
}

func (h *Handler) Login(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBind(&input); err != nil {
			respondError(c, bindError(err))
			return
		}

		session, err := h.auth.Authenticate(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		setSessionCookie(c, session, secure)
		c.JSON(http.StatusOK, session)
	}
}

func (h *Handler) Logout(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := middleware.Token(c); token != "" {
			if err := h.auth.Logout(c.Request.Context(), token); err != nil {
				respondError(c, err)
				return
			}
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func setSessionCookie(c *gin.Context, session *auth.Session, secure bool) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, session.Token, maxAge, "/", "", secure, true)
}
