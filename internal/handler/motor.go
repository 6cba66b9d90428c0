package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"compraprogramada/internal/service"
)

var (
	minDeviationThreshold = decimal.RequireFromString("0.1")
	maxDeviationThreshold = decimal.NewFromInt(100)
)

type MotorHandler struct {
	Purchases *service.PurchaseService
	Rebalance *service.RebalanceService
	Logger    *zap.Logger
}

func (h *MotorHandler) Register(r *gin.Engine) {
	g := r.Group("/api/motor")
	g.POST("/executar-compra", h.executePurchase)
	g.POST("/rebalancear-desvio", h.rebalanceByDeviation)
}

type executePurchaseRequest struct {
	ReferenceDate string `json:"dataReferencia"`
}

type rebalanceRequest struct {
	ReferenceDate string           `json:"dataReferencia"`
	Threshold     *decimal.Decimal `json:"limiarDesvioPontosPercentuais"`
}

func parseReferenceDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// @Summary Run the consolidated purchase for a date
// @Tags motor
// @Accept json
// @Produce json
// @Param body body executePurchaseRequest true "reference date (YYYY-MM-DD)"
// @Success 200 {object} service.PurchaseResult
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/motor/executar-compra [post]
func (h *MotorHandler) executePurchase(c *gin.Context) {
	if h.Purchases == nil {
		Error(c, http.StatusInternalServerError, "purchase service unavailable", nil)
		return
	}
	var req executePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	date, ok := parseReferenceDate(req.ReferenceDate)
	if !ok {
		badRequest(c, "dataReferencia must be YYYY-MM-DD")
		return
	}
	out, err := h.Purchases.Execute(c.Request.Context(), date)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Rebalance clients drifting from the basket
// @Tags motor
// @Accept json
// @Produce json
// @Param body body rebalanceRequest true "reference date and threshold in percentage points"
// @Success 200 {object} service.RebalanceResult
// @Failure 400 {object} map[string]any
// @Router /api/motor/rebalancear-desvio [post]
func (h *MotorHandler) rebalanceByDeviation(c *gin.Context) {
	if h.Rebalance == nil {
		Error(c, http.StatusInternalServerError, "rebalance service unavailable", nil)
		return
	}
	var req rebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	date, ok := parseReferenceDate(req.ReferenceDate)
	if !ok {
		badRequest(c, "dataReferencia must be YYYY-MM-DD")
		return
	}
	// Zero lets the service apply its configured default.
	threshold := decimal.Zero
	if req.Threshold != nil {
		if req.Threshold.LessThan(minDeviationThreshold) || req.Threshold.GreaterThan(maxDeviationThreshold) {
			badRequest(c, "limiarDesvioPontosPercentuais must be between 0.1 and 100")
			return
		}
		threshold = *req.Threshold
	}
	out, err := h.Rebalance.ByDeviation(c.Request.Context(), date, threshold)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}
