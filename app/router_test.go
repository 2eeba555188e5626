package app

import (
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/account"
	"bitwise74/account-api/internal/dashboard"
	"bitwise74/account-api/internal/limiter"
	"bitwise74/account-api/internal/recovery"
	"bitwise74/account-api/internal/testutil"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiSecret = "api-secret"

type testServer struct {
	router *gin.Engine
	mail   *testutil.Mailbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	return newTestServerWith(t, RouterOpts{APISecret: apiSecret})
}

func newTestServerWith(t *testing.T, o RouterOpts) *testServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	s := testutil.NewStore(t)
	mail := &testutil.Mailbox{}
	hasher := testutil.NewHasher()
	tokens := testutil.NewTokens(t, testutil.NewClock())

	d := &internal.Deps{
		Store:  s,
		Argon:  hasher,
		Tokens: tokens,
		Accounts: account.New(account.Opts{
			Store:     s,
			Hasher:    hasher,
			Tokens:    tokens,
			Notifier:  mail,
			Limiter:   limiter.NewMemoryLimiter(limiter.Config{MaxAttempts: 5, Window: 15 * time.Minute}),
			PublicURL: "http://localhost:5000",
		}),
		Recovery: recovery.New(recovery.Opts{
			Store:     s,
			Hasher:    hasher,
			Tokens:    tokens,
			Notifier:  mail,
			PublicURL: "http://localhost:5000",
		}),
		Dashboard: dashboard.New(dashboard.Opts{
			Store:    s,
			Hasher:   hasher,
			Notifier: mail,
		}),
	}

	return &testServer{
		router: NewEngine(d, o),
		mail:   mail,
	}
}

func (s *testServer) postJSON(t *testing.T, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiSecret)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)

	return w, out
}

func (s *testServer) get(path string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+apiSecret)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func (s *testServer) register(t *testing.T) {
	t.Helper()

	w, body := s.postJSON(t, "/CreateAcc", gin.H{
		"name":     "Alice",
		"username": "alice",
		"password": "secret1",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, w.Body.String(), "argon2id")
}

func TestGateRejectsMissingSecret(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/users", false)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodHead, "/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer "+apiSecret)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t)

	w, body := s.postJSON(t, "/CreateAcc", gin.H{
		"name": "Alice", "username": "alice", "password": "secret1", "email": "b@x.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, body["requestID"])

	w, body = s.postJSON(t, "/Login", gin.H{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["login"])

	w, body = s.postJSON(t, "/Login", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, body["login"])

	w, _ = s.postJSON(t, "/Login", gin.H{"username": "bob", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.postJSON(t, "/getUserData", gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["username"])
}

func TestLoginRateLimitOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.register(t)

	for range 5 {
		w, _ := s.postJSON(t, "/Login", gin.H{"username": "alice", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w, _ := s.postJSON(t, "/Login", gin.H{"username": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func (s *testServer) loginFrom(t *testing.T, remoteAddr, forwardedFor string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/Login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiSecret)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.RemoteAddr = remoteAddr

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w.Code
}

func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t)
	s.register(t)

	var codes []int
	for i := range 6 {
		codes = append(codes, s.loginFrom(t, "203.0.113.7:4000", fmt.Sprintf("10.0.0.%d", i)))
	}

	assert.Equal(t, []int{401, 401, 401, 401, 401, 429}, codes)
}

func TestLoginRateLimitTrustedProxy(t *testing.T) {
	s := newTestServerWith(t, RouterOpts{
		APISecret:      apiSecret,
		TrustedProxies: []string{"192.0.2.0/24"},
	})
	s.register(t)

	// Behind the proxy every forwarded client gets its own window
	for i := range 6 {
		assert.Equal(t, http.StatusUnauthorized, s.loginFrom(t, "192.0.2.10:4000", fmt.Sprintf("10.0.0.%d", i)))
	}

	for range 5 {
		s.loginFrom(t, "192.0.2.10:4000", "10.0.1.1")
	}
	assert.Equal(t, http.StatusTooManyRequests, s.loginFrom(t, "192.0.2.10:4000", "10.0.1.1"))
}

func TestVerifyPage(t *testing.T) {
	s := newTestServer(t)
	s.register(t)

	token := s.mail.VerificationToken(t)

	// Opened from an email, no API secret
	w := s.get("/verify?token="+url.QueryEscape(token), false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Email verified successfully")

	w = s.get("/verifyEmail?token="+url.QueryEscape(token), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get("/verify", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t)

	w, _ := s.postJSON(t, "/forgot-password", gin.H{"identifier": "alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := s.mail.ResetToken(t)

	w = s.get("/reset-password/"+token, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/reset-password/`+token+`"`)

	w = s.get("/reset-password/unknown", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	form := url.Values{"newPassword": {"newpass1"}}
	req := httptest.NewRequest(http.MethodPost, "/reset-password/"+token, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Password reset successful")

	w, _ = s.postJSON(t, "/Login", gin.H{"username": "alice", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.postJSON(t, "/forgot-password", gin.H{"identifier": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGoogleLoginAndList(t *testing.T) {
	s := newTestServer(t)

	payload := gin.H{"name": "Alice", "email": "a@x.com", "image": "https://img/1.png"}

	w, body := s.postJSON(t, "/google-login", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "created", body["status"])

	w, body = s.postJSON(t, "/google-login", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "updated", body["status"])

	w = s.get("/users", true)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Users []map[string]any `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Users, 1)
}

func TestUpdateProfileOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.register(t)

	w, body := s.postJSON(t, "/getUserData", gin.H{"identifier": "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	id := body["id"].(string)

	w, body = s.postJSON(t, "/updateProfile", gin.H{"id": id, "name": "Alice A"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Alice A", body["user"].(map[string]any)["name"])

	w, _ = s.postJSON(t, "/updateProfile", gin.H{"id": id})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.postJSON(t, "/dashGetPass", gin.H{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := s.postJSON(t, "/dashLogin", gin.H{"username": "admin", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["login"])
}
