package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compraprogramada/internal/fiscal"
	"compraprogramada/internal/service"
)

type FiscalStreamHandler struct {
	Hub      *fiscal.Hub
	Settings *service.SystemSettingsService
	// Enabled is the configured default when no switch is stored.
	Enabled bool
	Logger  *zap.Logger
}

func (h *FiscalStreamHandler) Register(r *gin.Engine) {
	r.GET("/api/fiscal/stream", h.stream)
}

// @Summary Live fiscal event feed (websocket)
// @Tags fiscal
// @Success 101
// @Failure 503 {object} map[string]any
// @Router /api/fiscal/stream [get]
func (h *FiscalStreamHandler) stream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "fiscal stream unavailable", nil)
		return
	}
	if h.Settings != nil && !h.Settings.IsEnabled(c.Request.Context(), service.FeatureFiscalStream, h.Enabled) {
		Error(c, http.StatusServiceUnavailable, "fiscal stream disabled", nil)
		return
	}
	if err := h.Hub.Serve(c.Request.Context(), c.Writer, c.Request); err != nil && h.Logger != nil {
		h.Logger.Debug("fiscal stream closed", zap.Error(err))
	}
}
