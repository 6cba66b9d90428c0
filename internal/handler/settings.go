package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compraprogramada/internal/service"
)

type SettingsHandler struct {
	Settings *service.SystemSettingsService
	Logger   *zap.Logger
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/settings")
	g.GET("", h.list)
	g.PUT("/:key", h.put)
}

// @Summary List feature switches
// @Tags settings
// @Produce json
// @Success 200 {array} service.FeatureSwitch
// @Router /api/settings [get]
func (h *SettingsHandler) list(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	items, err := h.Settings.List(c.Request.Context())
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

type switchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Turn a feature switch on or off
// @Tags settings
// @Accept json
// @Produce json
// @Param key path string true "switch key"
// @Param body body switchRequest true "state"
// @Success 200 {object} service.FeatureSwitch
// @Failure 400 {object} map[string]any
// @Router /api/settings/{key} [put]
func (h *SettingsHandler) put(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		badRequest(c, "enabled is required")
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, service.FeatureSwitch{Key: key, Enabled: *req.Enabled}, nil)
}
