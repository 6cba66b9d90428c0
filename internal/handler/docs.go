package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Compra Programada

Scheduled purchase engine: consolidates the monthly contributions of every
active client into one master-account purchase on the business days that
correspond to the 5th, 15th and 25th, distributes the shares proportionally
and publishes the withholding tax events.

## Auth

All /api/* routes require a Bearer token (HS256).
- role admin: every route
- role client: /api/clientes/adesao and /api/clientes/{own id}/*
Health endpoints are public. The websocket feed also accepts ?access_token=.

## Routes

- GET /healthz
- GET /readyz
- GET /swagger/index.html
- POST /api/admin/cesta
- GET /api/admin/cesta/atual
- GET /api/admin/cesta/historico
- GET /api/admin/conta-master/custodia
- GET /api/admin/eventos-fiscais
- POST /api/clientes/adesao
- POST /api/clientes/{id}/saida
- PUT /api/clientes/{id}/valor-mensal
- GET /api/clientes/{id}/carteira
- GET /api/clientes/{id}/rentabilidade
- POST /api/motor/executar-compra
- POST /api/motor/rebalancear-desvio
- GET /api/fiscal/stream (websocket)
- GET /api/settings
- PUT /api/settings/{key}

## Errors

Failures carry the HTTP status in code and the business code in meta.code,
e.g. {"code":409,"message":"Compra ja foi executada para esta data.","meta":{"code":"COMPRA_JA_EXECUTADA"}}.
`)
	})
}
