package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"compraprogramada/internal/service"
)

type ClientHandler struct {
	Service *service.ClientService
	Logger  *zap.Logger
}

func (h *ClientHandler) Register(r *gin.Engine) {
	g := r.Group("/api/clientes")
	g.POST("/adesao", h.join)
	g.POST("/:id/saida", h.exit)
	g.PUT("/:id/valor-mensal", h.changeMonthlyValue)
	g.GET("/:id/carteira", h.portfolio)
	g.GET("/:id/rentabilidade", h.profitability)
}

// @Summary Join the product
// @Tags clientes
// @Accept json
// @Produce json
// @Param body body service.JoinInput true "client"
// @Success 201 {object} service.JoinResult
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/clientes/adesao [post]
func (h *ClientHandler) join(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "client service unavailable", nil)
		return
	}
	var in service.JoinInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	out, err := h.Service.Join(c.Request.Context(), in)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Created(c, out)
}

// @Summary Leave the product
// @Description Stops future contributions; custody positions are kept.
// @Tags clientes
// @Produce json
// @Param id path int true "client id"
// @Success 200 {object} service.ExitResult
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/clientes/{id}/saida [post]
func (h *ClientHandler) exit(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "client service unavailable", nil)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "invalid client id")
		return
	}
	out, err := h.Service.Exit(c.Request.Context(), id)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}

type monthlyValueRequest struct {
	NewMonthlyValue *decimal.Decimal `json:"novoValorMensal"`
}

// @Summary Change the monthly contribution
// @Tags clientes
// @Accept json
// @Produce json
// @Param id path int true "client id"
// @Param body body monthlyValueRequest true "new value"
// @Success 200 {object} service.MonthlyValueChange
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/clientes/{id}/valor-mensal [put]
func (h *ClientHandler) changeMonthlyValue(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "client service unavailable", nil)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "invalid client id")
		return
	}
	var req monthlyValueRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewMonthlyValue == nil {
		badRequest(c, "novoValorMensal is required")
		return
	}
	out, err := h.Service.ChangeMonthlyValue(c.Request.Context(), id, *req.NewMonthlyValue)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Client portfolio
// @Tags clientes
// @Produce json
// @Param id path int true "client id"
// @Success 200 {object} service.PortfolioView
// @Failure 404 {object} map[string]any
// @Router /api/clientes/{id}/carteira [get]
func (h *ClientHandler) portfolio(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "client service unavailable", nil)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "invalid client id")
		return
	}
	out, err := h.Service.Portfolio(c.Request.Context(), id)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Client profitability and contribution history
// @Tags clientes
// @Produce json
// @Param id path int true "client id"
// @Success 200 {object} service.ProfitabilityView
// @Failure 404 {object} map[string]any
// @Router /api/clientes/{id}/rentabilidade [get]
func (h *ClientHandler) profitability(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "client service unavailable", nil)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "invalid client id")
		return
	}
	out, err := h.Service.Profitability(c.Request.Context(), id)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}
