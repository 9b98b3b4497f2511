package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard handles GET /api/dashboard. Counts are limited to the caller's
// scope; the router caches the response per caller.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.store.Dashboard(c.Request.Context(), actor(c), h.reference(), h.warrantyWindow)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
