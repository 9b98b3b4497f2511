package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/assignment"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/notification"
	"assetdesk-backend/internal/parse"
	"assetdesk-backend/internal/store"
)

// assetResponse flattens an asset with its warranty classification.
type assetResponse struct {
	model.Asset
	Warranty due.Expiry `json:"warranty"`
}

func (h *Handler) assetResponse(a model.Asset) assetResponse {
	return assetResponse{
		Asset:    a,
		Warranty: due.ClassifyExpiry(h.reference(), parse.DateTime(a.WarrantyExpiry), h.warrantyWindow),
	}
}

type createAssetRequest struct {
	Code           string            `json:"code" binding:"required"`
	Name           string            `json:"name" binding:"required"`
	Category       string            `json:"category"`
	Brand          string            `json:"brand"`
	Model          string            `json:"model"`
	SerialNumber   string            `json:"serial_number"`
	PurchaseDate   *string           `json:"purchase_date"`
	PurchaseCost   *float64          `json:"purchase_cost"`
	Supplier       string            `json:"supplier"`
	WarrantyExpiry *string           `json:"warranty_expiry"`
	Location       string            `json:"location"`
	Department     string            `json:"department"`
	Description    string            `json:"description"`
	Status         model.AssetStatus `json:"status"`
	AssignedTo     *uint             `json:"assigned_to"`
}

// CreateAsset handles POST /api/assets.
func (h *Handler) CreateAsset(c *gin.Context) {
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	purchased, err := parse.OptionalDate(req.PurchaseDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	warranty, err := parse.OptionalDate(req.WarrantyExpiry)
	if err != nil {
		h.fail(c, err)
		return
	}

	a := model.Asset{
		Code:           req.Code,
		Name:           strings.TrimSpace(req.Name),
		Category:       req.Category,
		Brand:          req.Brand,
		Model:          req.Model,
		SerialNumber:   req.SerialNumber,
		PurchaseDate:   purchased,
		PurchaseCost:   req.PurchaseCost,
		Supplier:       req.Supplier,
		WarrantyExpiry: warranty,
		Location:       req.Location,
		Department:     req.Department,
		Description:    req.Description,
		Status:         req.Status,
		AssignedTo:     req.AssignedTo,
		CreatedBy:      actor(c).ID,
	}
	if err := h.store.CreateAsset(c.Request.Context(), &a, h.now()); err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"asset": h.assetResponse(a)}
	if a.AssignedTo != nil {
		if notice := h.dispatch(notification.Job{Kind: notification.KindAssignment, UserID: *a.AssignedTo, AssetID: a.ID}); notice != "" {
			resp["notice"] = notice
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// ListAssets handles GET /api/assets.
func (h *Handler) ListAssets(c *gin.Context) {
	f := store.AssetFilter{
		Status:         model.AssetStatus(c.Query("status")),
		Category:       c.Query("category"),
		Department:     c.Query("department"),
		Search:         c.Query("search"),
		Warranty:       due.ExpiryKind(c.Query("warranty")),
		Reference:      h.reference(),
		WarrantyWindow: h.warrantyWindow,
	}
	if f.Status != "" && !f.Status.Valid() {
		h.fail(c, errs.Validation("unknown status %q", f.Status))
		return
	}
	switch f.Warranty {
	case "", due.Unknown, due.Expired, due.ExpiringSoon, due.Active:
	default:
		h.fail(c, errs.Validation("unknown warranty filter %q", f.Warranty))
		return
	}
	assets, err := h.store.ListAssets(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, h.assetResponse(a))
	}
	c.JSON(http.StatusOK, out)
}

// visibleAsset loads an asset and checks that the actor may see it.
func (h *Handler) visibleAsset(c *gin.Context) (*model.Asset, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	a, err := h.store.GetAsset(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !access.AssetAllows(actor(c), *a) {
		h.fail(c, forbidden("asset %d is outside your scope", id))
		return nil, false
	}
	return a, true
}

// GetAsset handles GET /api/assets/:id.
func (h *Handler) GetAsset(c *gin.Context) {
	a, ok := h.visibleAsset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.assetResponse(*a))
}

type updateAssetRequest struct {
	Name         *string            `json:"name"`
	Category     *string            `json:"category"`
	Brand        *string            `json:"brand"`
	Model        *string            `json:"model"`
	SerialNumber *string            `json:"serial_number"`
	PurchaseCost *float64           `json:"purchase_cost"`
	Supplier     *string            `json:"supplier"`
	Location     *string            `json:"location"`
	Department   *string            `json:"department"`
	Description  *string            `json:"description"`
	Status       *model.AssetStatus `json:"status"`
	// An empty string clears the date.
	PurchaseDate   *string `json:"purchase_date"`
	WarrantyExpiry *string `json:"warranty_expiry"`
}

func optionalDatePatch(raw *string) (**datatypes.Date, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := parse.OptionalDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateAsset handles PATCH /api/assets/:id.
func (h *Handler) UpdateAsset(c *gin.Context) {
	a, ok := h.visibleAsset(c)
	if !ok {
		return
	}
	var req updateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patch := store.AssetPatch{
		Name:         req.Name,
		Category:     req.Category,
		Brand:        req.Brand,
		Model:        req.Model,
		SerialNumber: req.SerialNumber,
		Supplier:     req.Supplier,
		Location:     req.Location,
		Department:   req.Department,
		Description:  req.Description,
		Status:       req.Status,
	}
	if req.PurchaseCost != nil {
		patch.PurchaseCost = &req.PurchaseCost
	}
	var err error
	if patch.PurchaseDate, err = optionalDatePatch(req.PurchaseDate); err != nil {
		h.fail(c, err)
		return
	}
	if patch.WarrantyExpiry, err = optionalDatePatch(req.WarrantyExpiry); err != nil {
		h.fail(c, err)
		return
	}

	updated, err := h.store.UpdateAsset(c.Request.Context(), a.ID, patch, actor(c).ID, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.assetResponse(*updated))
}

type assignAssetRequest struct {
	// Null or absent unassigns the asset.
	AssignedTo *uint `json:"assigned_to"`
}

// AssignAsset handles POST /api/assets/:id/assign. Notifications are queued
// after the change commits; if they cannot be queued the assignment still
// stands and the response carries a notice.
func (h *Handler) AssignAsset(c *gin.Context) {
	a, ok := h.visibleAsset(c)
	if !ok {
		return
	}
	var req assignAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, notices, err := h.store.ReassignAsset(c.Request.Context(), a.ID, req.AssignedTo, actor(c).ID, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"asset": h.assetResponse(*updated)}
	if notice := h.dispatch(notification.AssignmentJobs(notices)...); notice != "" {
		resp["notice"] = notice
	}
	c.JSON(http.StatusOK, resp)
}

type assetHistoryEntry struct {
	model.AssetHistory
	Summary string `json:"summary"`
}

// AssetHistory handles GET /api/assets/:id/history.
func (h *Handler) AssetHistory(c *gin.Context) {
	a, ok := h.visibleAsset(c)
	if !ok {
		return
	}
	rows, err := h.store.AssetHistory(c.Request.Context(), a.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]assetHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, assetHistoryEntry{AssetHistory: r, Summary: assignment.Describe(r)})
	}
	c.JSON(http.StatusOK, out)
}

// ListMaintenance handles GET /api/assets/:id/maintenance.
func (h *Handler) ListMaintenance(c *gin.Context) {
	a, ok := h.visibleAsset(c)
	if !ok {
		return
	}
	recs, err := h.store.ListMaintenance(c.Request.Context(), a.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

type logMaintenanceRequest struct {
	Type                string   `json:"type" binding:"required"`
	Date                *string  `json:"date"`
	PerformedBy         string   `json:"performed_by"`
	Cost                *float64 `json:"cost"`
	Notes               string   `json:"notes"`
	NextMaintenanceDate *string  `json:"next_maintenance_date"`
}

// LogMaintenance handles POST /api/assets/:id/maintenance. The date defaults
// to today.
func (h *Handler) LogMaintenance(c *gin.Context) {
	a, ok := h.visibleAsset(c)
	if !ok {
		return
	}
	var req logMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	on, err := parse.OptionalDate(req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	if on == nil {
		today := datatypes.Date(due.Day(h.reference()))
		on = &today
	}
	next, err := parse.OptionalDate(req.NextMaintenanceDate)
	if err != nil {
		h.fail(c, err)
		return
	}

	rec := model.MaintenanceRecord{
		AssetID:             a.ID,
		Type:                req.Type,
		Date:                *on,
		PerformedBy:         req.PerformedBy,
		Cost:                req.Cost,
		Notes:               req.Notes,
		NextMaintenanceDate: next,
		CreatedBy:           actor(c).ID,
	}
	if err := h.store.LogMaintenance(c.Request.Context(), &rec); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}
