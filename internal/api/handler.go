package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/mw"
	"assetdesk-backend/internal/notification"
	"assetdesk-backend/internal/store"
)

// noticeNotQueued is returned alongside a successful mutation whose
// notifications could not be queued.
const noticeNotQueued = "saved, but notifications could not be queued; recipients were not informed"

// Options carries the optional collaborators of a Handler.
type Options struct {
	Dispatcher     notification.Dispatcher
	WebPush        *webpush.Options
	Tokens         *mw.Tokens
	WarrantyWindow int
	Now            func() time.Time
	// Location is the zone whose calendar day buckets dates; UTC when nil.
	Location *time.Location
	Logger   zerolog.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store          store.Store
	notify         notification.Dispatcher
	webpush        *webpush.Options
	tokens         *mw.Tokens
	warrantyWindow int
	now            func() time.Time
	loc            *time.Location
	log            zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, opts Options) *Handler {
	h := &Handler{
		store:          s,
		notify:         opts.Dispatcher,
		webpush:        opts.WebPush,
		tokens:         opts.Tokens,
		warrantyWindow: opts.WarrantyWindow,
		now:            opts.Now,
		loc:            opts.Location,
		log:            opts.Logger,
	}
	if h.warrantyWindow <= 0 {
		h.warrantyWindow = due.DefaultWarnWindowDays
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.tokens != nil {
		h.tokens = h.tokens.WithClock(h.now)
	}
	return h
}

// reference is now in the configured zone, for calendar-day classification.
func (h *Handler) reference() time.Time { return h.now().In(h.loc) }

// dispatch hands jobs to the worker pool after a commit. It returns a notice
// for the response when any job was dropped.
func (h *Handler) dispatch(jobs ...notification.Job) string {
	if h.notify == nil || len(jobs) == 0 {
		return ""
	}
	if !notification.DispatchAll(h.notify, jobs) {
		return noticeNotQueued
	}
	return ""
}

// fail writes err as a JSON error with the status its kind maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrDuplicate), errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrInvalidScheduleState):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errs.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func forbidden(format string, args ...any) error {
	return errs.E(errs.ErrForbidden, format, args...)
}

// idParam parses a positive integer path parameter. It writes a 400 and
// returns false when the value is malformed.
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// actor returns the authenticated actor. Routes are always behind mw.Auth.
func actor(c *gin.Context) access.Actor {
	a, _ := mw.ActorFrom(c)
	return a
}

// Health reports whether the database is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
