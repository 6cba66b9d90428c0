package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func testJWT() JWT {
	return JWT{Secret: []byte("test-secret"), TokenTTL: time.Minute}
}

func TestSignVerify(t *testing.T) {
	j := testJWT()
	tok, exp, err := j.Sign(Claims{Role: RoleClient, ClientID: 7})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expiresAt=%s in the past", exp)
	}
	claims, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != RoleClient || claims.ClientID != 7 || claims.Issuer != issuer {
		t.Fatalf("claims=%+v", claims)
	}

	other := JWT{Secret: []byte("other")}
	if _, err := other.Verify(tok); err == nil {
		t.Fatalf("expected signature error")
	}
	expired, _, _ := j.Sign(Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	if _, err := j.Verify(expired); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := testJWT()
	r := gin.New()
	r.Use(RequireBearerMiddleware(j, false))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/healthz", ok)
	r.GET("/api/admin/cesta/atual", ok)
	r.GET("/api/clientes/:id/carteira", ok)
	r.POST("/api/clientes/adesao", ok)

	admin, _, _ := j.Sign(Claims{Role: RoleAdmin})
	client, _, _ := j.Sign(Claims{Role: RoleClient, ClientID: 7})

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/admin/cesta/atual", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/cesta/atual", "garbage", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/cesta/atual", admin, http.StatusOK},
		{http.MethodGet, "/api/admin/cesta/atual", client, http.StatusForbidden},
		{http.MethodGet, "/api/clientes/7/carteira", client, http.StatusOK},
		{http.MethodGet, "/api/clientes/8/carteira", client, http.StatusForbidden},
		{http.MethodGet, "/api/clientes/8/carteira", admin, http.StatusOK},
		{http.MethodPost, "/api/clientes/adesao", client, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s status=%d want=%d", tc.method, tc.path, w.Code, tc.want)
		}
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireBearerMiddleware(JWT{}, true))
	r.GET("/api/admin/cesta/atual", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/cesta/atual", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want=200", w.Code)
	}
}
