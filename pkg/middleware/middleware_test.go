package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewRequestIDMiddleware())
	r.Use(mw...)

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/users", ok)
	r.GET("/verify", ok)
	r.GET("/reset-password/:token", ok)
	r.GET("/reset-passwordx", ok)
	r.GET("/verifyEmailExtra", ok)
	r.POST("/upload", ok)

	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecretGate(t *testing.T) {
	r := newTestRouter(NewSecretGate("s3cret", "/verify", "/reset-password*"))

	cases := []struct {
		path   string
		header string
		want   int
	}{
		{"/users", "", http.StatusForbidden},
		{"/users", "Bearer wrong", http.StatusForbidden},
		{"/users", "s3cret", http.StatusForbidden},
		{"/users", "Bearer s3cret", http.StatusOK},
		{"/verify", "", http.StatusOK},
		{"/reset-password/abc", "", http.StatusOK},
		{"/reset-passwordx", "", http.StatusOK},
		{"/users/reset-password", "", http.StatusForbidden},
		{"/verifyEmailExtra", "", http.StatusForbidden},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}

		w := do(r, req)
		assert.Equal(t, tc.want, w.Code, "%s %q", tc.path, tc.header)

		if w.Code == http.StatusForbidden {
			assert.Contains(t, w.Body.String(), "requestID")
		}
	}
}

func TestSecretGateEmptySecretDeniesAll(t *testing.T) {
	r := newTestRouter(NewSecretGate(""))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer ")

	assert.Equal(t, http.StatusForbidden, do(r, req).Code)
}

func TestRequestID(t *testing.T) {
	r := newTestRouter()

	w1 := do(r, httptest.NewRequest(http.MethodGet, "/users", nil))
	w2 := do(r, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Len(t, w1.Header().Get("X-Request-ID"), 36)
	assert.NotEqual(t, w1.Header().Get("X-Request-ID"), w2.Header().Get("X-Request-ID"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 2})
	defer rl.Stop()

	r := newTestRouter(rl.Handler())

	codes := []int{}
	for range 3 {
		codes = append(codes, do(r, httptest.NewRequest(http.MethodGet, "/users", nil)).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBodySizeLimiter(t *testing.T) {
	r := newTestRouter(BodySizeLimiter(8))

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("this body is too long"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("short"))
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}
