// internal/common/http/client_test.go
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"cafe"}`))
	}))
	defer server.Close()

	c := NewClient(time.Second, WithHeader("X-Api-Key", "secret"))
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "cafe", out.Name)
}

func TestClient_PostJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "hello", body["prompt"])
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"quotaExceeded"}`))
	}))
	defer server.Close()

	c := NewClient(time.Second)
	err := c.PostJSON(context.Background(), server.URL, map[string]string{"prompt": "hello"}, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "quotaExceeded")
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	// one request per minute with a burst of one: the second call must wait
	c := NewClient(time.Second, WithRateLimit(1, 1))
	require.NoError(t, c.GetJSON(context.Background(), server.URL, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.GetJSON(ctx, server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
