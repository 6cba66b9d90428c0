package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"compraprogramada/internal/models"
	"compraprogramada/internal/repository"
	"compraprogramada/internal/service"
)

type AdminHandler struct {
	Baskets *service.BasketService
	Custody *service.CustodyService
	Repo    repository.Repository
	Logger  *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/admin")
	g.POST("/cesta", h.createBasket)
	g.GET("/cesta/atual", h.currentBasket)
	g.GET("/cesta/historico", h.basketHistory)
	g.GET("/conta-master/custodia", h.masterCustody)
	g.GET("/eventos-fiscais", h.listFiscalEvents)
}

// @Summary Register a new top five basket
// @Description Deactivates the current basket and rebalances every active client when one exists.
// @Tags admin
// @Accept json
// @Produce json
// @Param body body service.BasketInput true "basket"
// @Success 201 {object} service.BasketCreated
// @Failure 400 {object} map[string]any
// @Router /api/admin/cesta [post]
func (h *AdminHandler) createBasket(c *gin.Context) {
	if h.Baskets == nil {
		Error(c, http.StatusInternalServerError, "basket service unavailable", nil)
		return
	}
	var in service.BasketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	out, err := h.Baskets.Create(c.Request.Context(), in)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Created(c, out)
}

// @Summary Current basket with quotes
// @Tags admin
// @Produce json
// @Success 200 {object} service.BasketView
// @Failure 404 {object} map[string]any
// @Router /api/admin/cesta/atual [get]
func (h *AdminHandler) currentBasket(c *gin.Context) {
	if h.Baskets == nil {
		Error(c, http.StatusInternalServerError, "basket service unavailable", nil)
		return
	}
	out, err := h.Baskets.Current(c.Request.Context())
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Basket history
// @Tags admin
// @Produce json
// @Success 200 {array} service.BasketView
// @Router /api/admin/cesta/historico [get]
func (h *AdminHandler) basketHistory(c *gin.Context) {
	if h.Baskets == nil {
		Error(c, http.StatusInternalServerError, "basket service unavailable", nil)
		return
	}
	out, err := h.Baskets.History(c.Request.Context())
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

// @Summary Master account custody
// @Tags admin
// @Produce json
// @Success 200 {object} service.MasterCustodyView
// @Router /api/admin/conta-master/custodia [get]
func (h *AdminHandler) masterCustody(c *gin.Context) {
	if h.Custody == nil {
		Error(c, http.StatusInternalServerError, "custody service unavailable", nil)
		return
	}
	out, err := h.Custody.Master(c.Request.Context())
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}

type fiscalEventItem struct {
	ID             uint64          `json:"id"`
	EventID        string          `json:"eventoId"`
	Type           string          `json:"tipo"`
	ClientID       uint64          `json:"clienteId"`
	TaxID          string          `json:"cpf"`
	Ticker         *string         `json:"ticker,omitempty"`
	MonthKey       *string         `json:"mesReferencia,omitempty"`
	OperationValue decimal.Decimal `json:"valorOperacao"`
	TaxValue       decimal.Decimal `json:"valorIR"`
	OccurredAt     time.Time       `json:"dataEvento"`
	DeliveryStatus string          `json:"statusEntrega"`
	Payload        json.RawMessage `json:"payload"`
}

func fiscalEventItemFrom(m models.FiscalEventLog) fiscalEventItem {
	return fiscalEventItem{
		ID:             m.ID,
		EventID:        m.EventID,
		Type:           m.Type,
		ClientID:       m.ClientID,
		TaxID:          m.TaxID,
		Ticker:         m.Ticker,
		MonthKey:       m.MonthKey,
		OperationValue: m.OperationValue,
		TaxValue:       m.TaxValue,
		OccurredAt:     m.OccurredAt,
		DeliveryStatus: m.DeliveryStatus,
		Payload:        json.RawMessage(m.Payload),
	}
}

// @Summary Fiscal event audit log
// @Tags admin
// @Produce json
// @Param tipo query string false "IR_DEDO_DURO or IR_VENDA"
// @Param clienteId query int false "client id"
// @Param mes query string false "month key YYYY-MM"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {array} fiscalEventItem
// @Router /api/admin/eventos-fiscais [get]
func (h *AdminHandler) listFiscalEvents(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListFiscalEventLogsParams{
		Limit:    limit,
		Offset:   offset,
		ClientID: uint64QueryPtr(c, "clienteId"),
		MonthKey: strQueryPtr(c, "mes"),
		OrderBy:  "occurred_at",
		Asc:      boolPtr(false),
	}
	if v := strQueryPtr(c, "tipo"); v != nil {
		upper := strings.ToUpper(*v)
		params.Type = &upper
	}
	items, err := h.Repo.ListFiscalEventLogs(c.Request.Context(), params)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	total, err := h.Repo.CountFiscalEventLogs(c.Request.Context(), params)
	if err != nil {
		serviceError(c, h.Logger, err)
		return
	}
	out := make([]fiscalEventItem, 0, len(items))
	for _, m := range items {
		out = append(out, fiscalEventItemFrom(m))
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}
