package mw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

const actorKey = "actor"

// Claims is the token payload. The subject holds the user id.
type Claims struct {
	Role       model.Role `json:"role"`
	Department string     `json:"department"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer with the given signing secret and lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of t that checks expiry against now.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	cp := *t
	if now != nil {
		cp.now = now
	}
	return &cp
}

// Issue signs a token for actor valid from now for the configured lifetime.
func (t *Tokens) Issue(actor access.Actor, now time.Time) (string, time.Time, error) {
	exp := now.Add(t.ttl)
	claims := Claims{
		Role:       actor.Role,
		Department: actor.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(actor.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies a token and returns the actor it carries.
func (t *Tokens) Parse(token string) (access.Actor, error) {
	claims := &Claims{}
	key := func(*jwt.Token) (any, error) { return t.secret, nil }
	parsed, err := jwt.ParseWithClaims(token, claims, key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return access.Actor{}, err
	}
	if !parsed.Valid {
		return access.Actor{}, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return access.Actor{}, errors.New("invalid token subject")
	}
	return access.Actor{ID: uint(id), Role: claims.Role, Department: claims.Department}, nil
}

// Accounts loads the stored account behind a token.
type Accounts interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

// Auth rejects requests without a valid bearer token or whose account is
// deleted or inactive. The actor stored in the gin context is built from the
// account as it is now, so role and department changes apply immediately.
func Auth(tokens *Tokens, accounts Accounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claimed, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		user, err := accounts.GetUser(c.Request.Context(), claimed.ID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if user == nil || user.IsDeleted || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account is disabled"})
			return
		}
		c.Set(actorKey, access.Actor{ID: user.ID, Role: user.Role, Department: user.Department})
		c.Next()
	}
}

// Require aborts with 403 unless allow accepts the request's actor.
func Require(allow func(access.Actor) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !allow(actor) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// SetActor stores actor on the context. Tests use it to bypass token checks.
func SetActor(c *gin.Context, actor access.Actor) { c.Set(actorKey, actor) }

// ActorFrom returns the actor set by Auth.
func ActorFrom(c *gin.Context) (access.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return access.Actor{}, false
	}
	actor, ok := v.(access.Actor)
	return actor, ok
}
