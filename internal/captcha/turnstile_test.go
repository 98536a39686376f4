package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxemap/estates/internal/config"
)

func newVerifier(t *testing.T, handler http.HandlerFunc) IVerifier {
	t.Helper()
	cfg := &config.Config{JwtSecret: "test-secret"}
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		cfg.CloudflareTurnstileSecretKey = "cf-secret"
		cfg.CloudflareSiteVerifyURL = srv.URL
	}
	return NewTurnstileVerifier(cfg)
}

func TestVerify_NoSecretSkips(t *testing.T) {
	ok, err := newVerifier(t, nil).Verify(context.Background(), "anything", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "cf-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "1.2.3.4", r.PostForm.Get("remoteip"))
		success := r.PostForm.Get("response") == "good"
		fmt.Fprintf(w, `{"success":%t,"error-codes":[]}`, success)
	})

	ok, err := v.Verify(context.Background(), "good", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(context.Background(), "bad", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_UpstreamError(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ok, err := v.Verify(context.Background(), "good", "")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHumanToken(t *testing.T) {
	v := newVerifier(t, nil)
	client := Client{IP: "1.2.3.4", Fingerprint: "bfp", Visitor: "spa"}

	token, err := v.IssueHumanToken(client, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, v.CheckHumanToken(token, client))

	other := client
	other.Visitor = "other"
	assert.ErrorIs(t, v.CheckHumanToken(token, other), ErrTokenMismatch)

	assert.Error(t, v.CheckHumanToken("garbage", client))

	expired, err := v.IssueHumanToken(client, -time.Minute)
	require.NoError(t, err)
	assert.Error(t, v.CheckHumanToken(expired, client))

	foreign := NewTurnstileVerifier(&config.Config{JwtSecret: "another"})
	assert.Error(t, foreign.CheckHumanToken(token, client))
}
