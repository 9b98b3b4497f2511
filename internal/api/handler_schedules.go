package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/maintenance"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/parse"
	"assetdesk-backend/internal/store"
)

const defaultNotifyDaysBefore = 7

// scheduleResponse flattens a schedule with its due classification.
type scheduleResponse struct {
	model.RecurringSchedule
	Due due.Due `json:"due"`
}

func (h *Handler) scheduleResponse(s model.RecurringSchedule) scheduleResponse {
	return scheduleResponse{
		RecurringSchedule: s,
		Due:               due.ClassifyDue(h.reference(), time.Time(s.NextDueDate), s.NotifyDaysBefore),
	}
}

// ListSchedules handles GET /api/schedules.
func (h *Handler) ListSchedules(c *gin.Context) {
	f := store.ScheduleFilter{
		Due:       due.DueKind(c.Query("due")),
		Reference: h.reference(),
	}
	switch f.Due {
	case "", due.Overdue, due.DueSoon, due.Normal:
	default:
		h.fail(c, errs.Validation("unknown due filter %q", f.Due))
		return
	}
	if raw := c.Query("asset_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.fail(c, errs.Validation("invalid asset_id %q", raw))
			return
		}
		f.AssetID = uint(id)
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, errs.Validation("invalid active flag %q", raw))
			return
		}
		f.ActiveOnly = active
	}

	schedules, err := h.store.ListSchedules(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]scheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, h.scheduleResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

type createScheduleRequest struct {
	AssetID          uint    `json:"asset_id" binding:"required"`
	Name             string  `json:"name" binding:"required"`
	MaintenanceType  string  `json:"maintenance_type" binding:"required"`
	FrequencyDays    int     `json:"frequency_days" binding:"required"`
	StartDate        string  `json:"start_date" binding:"required"`
	NextDueDate      *string `json:"next_due_date"`
	AssignedTo       *uint   `json:"assigned_to"`
	NotifyDaysBefore *int    `json:"notify_days_before"`
}

// CreateSchedule handles POST /api/schedules.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, err := parse.Date(req.StartDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	next, err := parse.OptionalDate(req.NextDueDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.store.GetAsset(c.Request.Context(), req.AssetID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !access.AssetAllows(actor(c), *a) {
		h.fail(c, forbidden("asset %d is outside your scope", a.ID))
		return
	}

	sch := model.RecurringSchedule{
		AssetID:          req.AssetID,
		Name:             req.Name,
		MaintenanceType:  req.MaintenanceType,
		FrequencyDays:    req.FrequencyDays,
		StartDate:        start,
		AssignedTo:       req.AssignedTo,
		NotifyDaysBefore: defaultNotifyDaysBefore,
		CreatedBy:        actor(c).ID,
	}
	if next != nil {
		sch.NextDueDate = *next
	}
	if req.NotifyDaysBefore != nil {
		sch.NotifyDaysBefore = *req.NotifyDaysBefore
	}
	if err := h.store.CreateSchedule(c.Request.Context(), &sch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.scheduleResponse(sch))
}

// visibleSchedule loads a schedule and checks that its asset is in scope.
func (h *Handler) visibleSchedule(c *gin.Context) (*model.RecurringSchedule, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	sch, err := h.store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if sch.Asset == nil || !access.AssetAllows(actor(c), *sch.Asset) {
		h.fail(c, forbidden("schedule %d is outside your scope", id))
		return nil, false
	}
	return sch, true
}

type completeScheduleRequest struct {
	PerformedBy string   `json:"performed_by"`
	Cost        *float64 `json:"cost"`
	Notes       string   `json:"notes"`
}

// CompleteSchedule handles POST /api/schedules/:id/complete. The record and
// the advanced schedule are written together.
func (h *Handler) CompleteSchedule(c *gin.Context) {
	sch, ok := h.visibleSchedule(c)
	if !ok {
		return
	}
	var req completeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	completion := maintenance.Completion{
		PerformedBy: req.PerformedBy,
		Cost:        req.Cost,
		Notes:       req.Notes,
		ActorID:     actor(c).ID,
	}
	rec, updated, err := h.store.CompleteSchedule(c.Request.Context(), sch.ID, completion, h.reference())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "schedule": h.scheduleResponse(*updated)})
}

type toggleScheduleRequest struct {
	IsActive *bool `json:"is_active"`
}

// ToggleSchedule handles POST /api/schedules/:id/toggle. Without a body the
// active flag is flipped.
func (h *Handler) ToggleSchedule(c *gin.Context) {
	sch, ok := h.visibleSchedule(c)
	if !ok {
		return
	}
	var req toggleScheduleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	active := !sch.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.store.SetScheduleActive(c.Request.Context(), sch.ID, active)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.scheduleResponse(*updated))
}
