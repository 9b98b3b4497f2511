package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/account"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/store"
)

// grantable reports whether a may hand out role r. Only unrestricted roles
// create other unrestricted accounts.
func grantable(a access.Actor, r model.Role) bool {
	if r == model.RoleSuperAdmin {
		return a.Unrestricted()
	}
	return true
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(c *gin.Context) {
	f := store.UserFilter{
		Department: c.Query("department"),
		Role:       model.Role(c.Query("role")),
		Search:     c.Query("search"),
	}
	if raw := c.Query("include_deleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, errs.Validation("invalid include_deleted flag %q", raw))
			return
		}
		f.IncludeDeleted = v
	}
	users, err := h.store.ListUsers(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	FirstName  string     `json:"first_name" binding:"required"`
	LastName   string     `json:"last_name" binding:"required"`
	Email      string     `json:"email" binding:"required"`
	Username   string     `json:"username" binding:"required"`
	Password   string     `json:"password" binding:"required"`
	Department string     `json:"department"`
	Role       model.Role `json:"role"`
	IsActive   *bool      `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
}

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !grantable(actor(c), req.Role) {
		h.fail(c, forbidden("you may not grant role %s", req.Role))
		return
	}
	hash, err := account.HashPassword(req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Department:   req.Department,
		Role:         req.Role,
		IsActive:     req.IsActive == nil || *req.IsActive,
		IsVerified:   req.IsVerified,
	}
	if err := h.store.CreateUser(c.Request.Context(), &u); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// GetUser handles GET /api/users/:id. Anyone may read their own account.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	if id != a.ID && !a.CanAdministerUsers() {
		h.fail(c, forbidden("you may only view your own account"))
		return
	}
	u, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type updateUserRequest struct {
	FirstName  *string     `json:"first_name"`
	LastName   *string     `json:"last_name"`
	Email      *string     `json:"email"`
	Department *string     `json:"department"`
	Role       *model.Role `json:"role"`
	IsActive   *bool       `json:"is_active"`
	IsVerified *bool       `json:"is_verified"`
	Password   *string     `json:"password"`
}

// UpdateUser handles PATCH /api/users/:id.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := actor(c)
	if req.Role != nil && !grantable(a, *req.Role) {
		h.fail(c, forbidden("you may not grant role %s", *req.Role))
		return
	}
	if id == a.ID && req.IsActive != nil && !*req.IsActive {
		h.fail(c, errs.Validation("you cannot deactivate your own account"))
		return
	}
	patch := store.UserPatch{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Department: req.Department,
		Role:       req.Role,
		IsActive:   req.IsActive,
		IsVerified: req.IsVerified,
		Password:   req.Password,
	}
	u, err := h.store.UpdateUser(c.Request.Context(), id, patch, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /api/users/:id as a soft delete.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if id == actor(c).ID {
		h.fail(c, errs.Validation("you cannot delete your own account"))
		return
	}
	if err := h.store.DeleteUser(c.Request.Context(), id, h.now()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RestoreUser handles POST /api/users/:id/restore.
func (h *Handler) RestoreUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	u, err := h.store.RestoreUser(c.Request.Context(), id, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
