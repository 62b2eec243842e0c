package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func newProtectedEcho() *echo.Echo {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.Use(CSRF())
	e.GET("/healthz", okHandler)
	e.PUT("/api/users/me", okHandler)
	e.POST("/api/webhooks/clerk", okHandler)
	return e
}

// csrfToken performs a safe request and extracts the issued token cookie.
func csrfToken(t *testing.T, e *echo.Echo) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "_csrf" {
			return cookie
		}
	}
	t.Fatal("no csrf cookie issued")
	return nil
}

func TestSecurityHeaders(t *testing.T) {
	e := newProtectedEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	h := rec.Header()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.NotEmpty(t, h.Get("Content-Security-Policy"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))
}

func TestCSRF_MutatingRequestNeedsToken(t *testing.T) {
	e := newProtectedEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/users/me", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing token must be rejected")
}

func TestCSRF_TokenRoundTrip(t *testing.T) {
	e := newProtectedEcho()
	cookie := csrfToken(t, e)

	req := httptest.NewRequest(http.MethodPut, "/api/users/me", nil)
	req.AddCookie(cookie)
	req.Header.Set(echo.HeaderXCSRFToken, cookie.Value)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRF_MismatchedTokenRejected(t *testing.T) {
	e := newProtectedEcho()
	cookie := csrfToken(t, e)

	req := httptest.NewRequest(http.MethodPut, "/api/users/me", nil)
	req.AddCookie(cookie)
	req.Header.Set(echo.HeaderXCSRFToken, "forged")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRF_WebhookIngressExempt(t *testing.T) {
	e := newProtectedEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/clerk", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "signed ingress must not require a csrf token")
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	e := echo.New()
	e.Use(CORS([]string{"https://dashboard.example.com"}))
	e.PUT("/api/users/me", okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/me", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dashboard.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPut)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))

	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
