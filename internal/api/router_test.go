package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxemap/estates/internal/captcha"
	"luxemap/estates/internal/chat"
	"luxemap/estates/internal/config"
	"luxemap/estates/internal/email"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/services"
	"luxemap/estates/internal/site"
	"luxemap/estates/internal/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret:               "testsecret",
		CaptchaTokenTTL:         time.Minute,
		RateLimitSoftBucketSize: 100,
		RateLimitSoftRefillRate: 100,
		RateLimitHardBucketSize: 100,
		RateLimitHardRefillRate: 100,
	}
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	catalog := fixtures.MustDefault()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	loop := chat.NewLoop(catalog, chat.DefaultDelays())
	go loop.Run(ctx)

	return SetupRouter(ctx, cfg, Dependencies{
		Sessions:   site.NewStore(catalog, time.Hour),
		Chat:       loop,
		Properties: services.NewPropertyService(cfg, catalog, services.NewImageOverrides(nil)),
		Agents:     services.NewAgentService(catalog),
		Content:    services.NewContentService(catalog),
		Saved:      services.NewSavedService(catalog, nil, time.Hour),
		Enquiries:  services.NewEnquiryService(cfg, catalog, nil, nil),
		Newsletter: services.NewNewsletterService(nil, nil),
		Verifier:   captcha.NewTurnstileVerifier(cfg),
	})
}

func TestSetupRouter_PingAndVisitorHeader(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/v1/ping", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-SPA"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupRouter_JsonApiUsesVisitorSession(t *testing.T) {
	r := testRouter(t)

	post := func(body string) map[string]interface{} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/v1/api", bytes.NewBufferString(body))
		req.Header.Set("X-SPA", "router-visitor-1")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := post(`{"method":"selectProperty","arguments":["4"]}`)
	require.Equal(t, true, resp["success"], resp["error"])

	resp = post(`{"method":"getSession"}`)
	require.Equal(t, true, resp["success"], resp["error"])
	session := resp["data"].(map[string]interface{})["session"].(map[string]interface{})
	assert.Equal(t, "router-visitor-1", session["visitor_id"])
	assert.Equal(t, "4", session["panel"].(map[string]interface{})["selected_id"])
}

func TestSetupRouter_AdminRequiresToken(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/v1/admin/enquiries", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func servicePost(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestServiceRouter_Shutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := SetupServiceRouter(testConfig(), nil, shutdown)

	w := servicePost(r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"result":"Shutdown initiated"}`, w.Body.String())

	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown was not signaled")
	}

	// A second request must not block when nobody is listening
	_ = servicePost(r, `{"method":"shutdown"}`)
	w = servicePost(r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceRouter_Errors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupServiceRouter(testConfig(), nil, make(chan struct{}, 1))

	assert.Equal(t, http.StatusBadRequest, servicePost(r, `nope`).Code)
	assert.Equal(t, http.StatusNotFound, servicePost(r, `{"method":"reboot"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, servicePost(r, `{"method":"getTestEmail","arguments":["enquiry","a@b.co"]}`).Code)
}

func TestServiceRouter_GetTestEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := utils.SetupTestRedis(t)
	cfg := testConfig()
	cfg.MockServices = true
	r := SetupServiceRouter(cfg, rdb, make(chan struct{}, 1))

	sender := email.NewRedisSender(rdb, "noreply@luxemap.com")
	require.NoError(t, sender.Send(context.Background(), email.Message{
		To:      []string{"Victoria@LuxeMap.com"},
		Subject: "New enquiry: Azure Villa",
		Body:    "Hi Victoria,",
		Kind:    "enquiry",
	}))

	w := servicePost(r, `{"method":"getTestEmail","arguments":["enquiry","victoria@luxemap.com"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "New enquiry: Azure Villa", resp.Data["subject"])

	// Fetching deletes the key
	w = servicePost(r, `{"method":"getTestEmail","arguments":["enquiry","victoria@luxemap.com"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = servicePost(r, `{"method":"getTestEmail","arguments":["enquiry"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
