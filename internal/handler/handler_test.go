package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zapcore"

	"compraprogramada/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var out apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestServiceErrorMapping(t *testing.T) {
	r := gin.New()
	r.GET("/business", func(c *gin.Context) {
		serviceError(c, nil, &service.Error{Kind: service.KindAlreadyExecuted, Status: http.StatusConflict, Message: "Compra ja foi executada para esta data."})
	})
	r.GET("/wrapped", func(c *gin.Context) {
		err := &service.Error{Kind: service.KindClientNotFound, Status: http.StatusNotFound, Message: "Cliente nao encontrado."}
		serviceError(c, nil, errors.Join(errors.New("lookup"), err))
	})
	r.GET("/fault", func(c *gin.Context) {
		serviceError(c, nil, errors.New("connection reset"))
	})

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/business", http.StatusConflict, "COMPRA_JA_EXECUTADA"},
		{"/wrapped", http.StatusNotFound, "CLIENTE_NAO_ENCONTRADO"},
		{"/fault", http.StatusInternalServerError, "ERRO_INTERNO"},
	}
	for _, tc := range cases {
		w := do(r, http.MethodGet, tc.path, "")
		if w.Code != tc.status {
			t.Fatalf("%s status=%d want=%d", tc.path, w.Code, tc.status)
		}
		resp := decode(t, w)
		if resp.Code != tc.status || resp.Meta["code"] != tc.code {
			t.Fatalf("%s resp=%+v want code=%s", tc.path, resp, tc.code)
		}
		if strings.Contains(w.Body.String(), "connection reset") {
			t.Fatalf("%s leaked internal error: %s", tc.path, w.Body.String())
		}
	}
}

func TestMotorRequestValidation(t *testing.T) {
	r := gin.New()
	(&MotorHandler{
		Purchases: &service.PurchaseService{},
		Rebalance: &service.RebalanceService{},
	}).Register(r)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"purchase malformed", "/api/motor/executar-compra", "{"},
		{"purchase missing date", "/api/motor/executar-compra", `{}`},
		{"purchase bad date", "/api/motor/executar-compra", `{"dataReferencia":"05/03/2025"}`},
		{"rebalance missing date", "/api/motor/rebalancear-desvio", `{"limiarDesvioPontosPercentuais":5}`},
		{"rebalance threshold low", "/api/motor/rebalancear-desvio", `{"dataReferencia":"2025-03-10","limiarDesvioPontosPercentuais":0.05}`},
		{"rebalance threshold high", "/api/motor/rebalancear-desvio", `{"dataReferencia":"2025-03-10","limiarDesvioPontosPercentuais":100.5}`},
	}
	for _, tc := range cases {
		w := do(r, http.MethodPost, tc.path, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d want=400 body=%s", tc.name, w.Code, w.Body.String())
		}
		if resp := decode(t, w); resp.Meta["code"] != codeInvalidRequest {
			t.Fatalf("%s meta=%v", tc.name, resp.Meta)
		}
	}
}

func TestParseReferenceDate(t *testing.T) {
	got, ok := parseReferenceDate(" 2025-03-05 ")
	if !ok || got.Day() != 5 || got.Month() != 3 || got.Location().String() != "UTC" {
		t.Fatalf("got=%v ok=%v", got, ok)
	}
	for _, raw := range []string{"", "2025-3-5", "2025-02-30"} {
		if _, ok := parseReferenceDate(raw); ok {
			t.Fatalf("%q parsed", raw)
		}
	}
}

func TestClientRoutesRejectBadInput(t *testing.T) {
	r := gin.New()
	(&ClientHandler{Service: &service.ClientService{}}).Register(r)

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/clientes/adesao", "not json"},
		{http.MethodPost, "/api/clientes/abc/saida", ""},
		{http.MethodPost, "/api/clientes/0/saida", ""},
		{http.MethodPut, "/api/clientes/1/valor-mensal", `{}`},
		{http.MethodPut, "/api/clientes/x/valor-mensal", `{"novoValorMensal":500}`},
		{http.MethodGet, "/api/clientes/-1/carteira", ""},
		{http.MethodGet, "/api/clientes/abc/rentabilidade", ""},
	}
	for _, tc := range cases {
		w := do(r, tc.method, tc.path, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s status=%d want=400", tc.method, tc.path, w.Code)
		}
	}
}

func TestSettingsPutRequiresState(t *testing.T) {
	r := gin.New()
	(&SettingsHandler{Settings: &service.SystemSettingsService{}}).Register(r)
	w := do(r, http.MethodPut, "/api/settings/feature.fiscal_stream", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", w.Code)
	}
}

func TestUnconfiguredHandlers(t *testing.T) {
	r := gin.New()
	(&AdminHandler{}).Register(r)
	(&FiscalStreamHandler{}).Register(r)
	(&HealthHandler{}).Register(r)

	cases := []struct {
		path   string
		status int
	}{
		{"/api/admin/cesta/atual", http.StatusInternalServerError},
		{"/api/admin/eventos-fiscais", http.StatusInternalServerError},
		{"/api/fiscal/stream", http.StatusServiceUnavailable},
		{"/readyz", http.StatusServiceUnavailable},
		{"/healthz", http.StatusOK},
	}
	for _, tc := range cases {
		if w := do(r, http.MethodGet, tc.path, ""); w.Code != tc.status {
			t.Fatalf("%s status=%d want=%d", tc.path, w.Code, tc.status)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDHeader)) })

	w := do(r, http.MethodGet, "/x", "")
	id := w.Header().Get(requestIDHeader)
	if len(id) != 36 || w.Body.String() != id {
		t.Fatalf("generated id=%q body=%q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("echoed id=%q want=abc-123", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/api/motor/executar-compra", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	w := do(r, http.MethodOptions, "/api/motor/executar-compra", "")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
}

func TestLevelFromStatus(t *testing.T) {
	cases := map[int]zapcore.Level{
		200: zapcore.InfoLevel,
		201: zapcore.InfoLevel,
		404: zapcore.WarnLevel,
		409: zapcore.WarnLevel,
		500: zapcore.ErrorLevel,
	}
	for status, want := range cases {
		if got := levelFromStatus(status); got != want {
			t.Fatalf("status=%d level=%v want=%v", status, got, want)
		}
	}
}

func TestPaginationMeta(t *testing.T) {
	meta := paginationMeta(10, 0, 25)
	if meta["has_next"] != true || meta["total"] != int64(25) {
		t.Fatalf("meta=%v", meta)
	}
	meta = paginationMeta(10, 20, 25)
	if meta["has_next"] != false {
		t.Fatalf("meta=%v", meta)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestReadiness(t *testing.T) {
	cases := []struct {
		name   string
		h      *HealthHandler
		status int
		want   string
	}{
		{"ready", &HealthHandler{DB: fakePinger{}}, http.StatusOK, "ready"},
		{"db down", &HealthHandler{DB: fakePinger{err: errors.New("down")}}, http.StatusServiceUnavailable, "db_unreachable"},
		{"stream down", &HealthHandler{DB: fakePinger{}, Stream: fakePinger{err: errors.New("down")}}, http.StatusServiceUnavailable, "stream_unreachable"},
	}
	for _, tc := range cases {
		r := gin.New()
		tc.h.Register(r)
		w := do(r, http.MethodGet, "/readyz", "")
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if w.Code != tc.status || body["status"] != tc.want {
			t.Fatalf("%s status=%d body=%v want=%d/%s", tc.name, w.Code, body, tc.status, tc.want)
		}
	}
}
