package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compraprogramada/internal/service"
)

const codeInvalidRequest = "REQUISICAO_INVALIDA"

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

func badRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message, map[string]any{"code": codeInvalidRequest})
}

// serviceError renders a domain failure with its status and code. Anything
// else is an internal error and is logged.
func serviceError(c *gin.Context, logger *zap.Logger, err error) {
	var e *service.Error
	if errors.As(err, &e) {
		if e.Status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", string(e.Kind)), zap.Error(err))
		}
		Error(c, e.Status, e.Message, map[string]any{"code": string(e.Kind)})
		return
	}
	if logger != nil {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, "Erro interno ao processar a solicitacao.", map[string]any{"code": string(service.KindInternal)})
}
