package mw

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	actor := access.Actor{ID: 7, Role: model.RoleManager, Department: "IT"}

	signed, exp, err := tokens.Issue(actor, time.Now())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	actor := access.Actor{ID: 7, Role: model.RoleEmployee}

	expired, _, err := tokens.Issue(actor, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	assert.Error(t, err)

	other, _, err := NewTokens("other", time.Hour).Issue(actor, time.Now())
	require.NoError(t, err)
	_, err = tokens.Parse(other)
	assert.Error(t, err)

	_, err = tokens.Parse("not-a-token")
	assert.Error(t, err)
}

type fakeAccounts map[uint]*model.User

func (f fakeAccounts) GetUser(_ context.Context, id uint) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errs.E(errs.ErrNotFound, "user %d not found", id)
}

func TestAuth(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	accounts := fakeAccounts{
		3: {ID: 3, Role: model.RoleAdmin, Department: "Ops", IsActive: true},
		4: {ID: 4, Role: model.RoleManager, Department: "IT", IsActive: false, IsDeleted: true},
		5: {ID: 5, Role: model.RoleEmployee, Department: "IT", IsActive: false},
	}
	r := gin.New()
	r.GET("/me", Auth(tokens, accounts), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, actor)
	})
	call := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}
	bearer := func(actor access.Actor) string {
		signed, _, err := tokens.Issue(actor, time.Now())
		require.NoError(t, err)
		return "Bearer " + signed
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage").Code)

	// The stored account wins over stale claims.
	w := call(bearer(access.Actor{ID: 3, Role: model.RoleEmployee, Department: "Sales"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":3,"role":"admin","department":"Ops"}`, w.Body.String())

	// Deleted, deactivated and unknown accounts are turned away.
	assert.Equal(t, http.StatusUnauthorized, call(bearer(access.Actor{ID: 4, Role: model.RoleManager})).Code)
	assert.Equal(t, http.StatusUnauthorized, call(bearer(access.Actor{ID: 5, Role: model.RoleEmployee})).Code)
	assert.Equal(t, http.StatusUnauthorized, call(bearer(access.Actor{ID: 9, Role: model.RoleAdmin})).Code)
}

func TestTokens_WithClock(t *testing.T) {
	issued := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	tokens := NewTokens("secret", time.Hour)
	signed, _, err := tokens.Issue(access.Actor{ID: 1, Role: model.RoleAdmin}, issued)
	require.NoError(t, err)

	// Long expired by the wall clock.
	_, err = tokens.Parse(signed)
	assert.Error(t, err)

	at := issued.Add(30 * time.Minute)
	got, err := tokens.WithClock(func() time.Time { return at }).Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.ID)

	at = issued.Add(2 * time.Hour)
	_, err = tokens.WithClock(func() time.Time { return at }).Parse(signed)
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		SetActor(c, access.Actor{ID: 1, Role: model.RoleEmployee})
		c.Next()
	})
	r.GET("/admin", Require(access.Actor.CanAdministerUsers), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCache_KeyedByActor(t *testing.T) {
	calls := 0
	store := cache.New(time.Minute, time.Minute)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Actor"); id == "2" {
			SetActor(c, access.Actor{ID: 2, Role: model.RoleManager})
		} else {
			SetActor(c, access.Actor{ID: 1, Role: model.RoleManager})
		}
		c.Next()
	})
	r.GET("/dash", Cache(store, time.Minute, ActorKey), func(c *gin.Context) {
		calls++
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"actor": actor.ID})
	})

	get := func(actor string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dash", nil)
		req.Header.Set("X-Actor", actor)
		r.ServeHTTP(w, req)
		return w
	}

	first := get("1")
	second := get("1")
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	other := get("2")
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"actor":2}`, other.Body.String())
}

func TestCache_SkipsErrorsAndEmptyKey(t *testing.T) {
	calls := 0
	store := cache.New(time.Minute, time.Minute)
	r := gin.New()
	r.GET("/fail", Cache(store, time.Minute, func(c *gin.Context) string { return c.Request.RequestURI }), func(c *gin.Context) {
		calls++
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/anon", Cache(store, time.Minute, ActorKey), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anon", nil))
	}
	assert.Equal(t, 4, calls)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimiter(rate.Limit(1), 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimiter(0, 0), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r := gin.New()
	r.Use(RequestLog(logger))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/4", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"status":404`)
	assert.Contains(t, buf.String(), `"path":"/items/:id"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/5", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"abc-123"`)
}

func TestIPRateLimiter_PerClient(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	a := l.GetLimiter("10.0.0.1")
	assert.Same(t, a, l.GetLimiter("10.0.0.1"))
	assert.NotSame(t, a, l.GetLimiter("10.0.0.2"))

	assert.True(t, a.Allow())
	assert.False(t, a.Allow())
	assert.True(t, l.GetLimiter("10.0.0.2").Allow())
}
