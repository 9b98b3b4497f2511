package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/account"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

// Login exchanges a username or email and password for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.store.FindUserByLogin(c.Request.Context(), req.Login)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		h.fail(c, err)
		return
	}
	if user == nil || !user.IsActive || !account.CheckPassword(user.PasswordHash, req.Password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := h.tokens.Issue(access.Actor{ID: user.ID, Role: user.Role, Department: user.Department}, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: *user})
}

// Me returns the account behind the bearer token.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.store.GetUser(c.Request.Context(), actor(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
