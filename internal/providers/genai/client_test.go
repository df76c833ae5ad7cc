// internal/providers/genai/client_test.go
package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-match/internal/engine/style"
)

func TestClassify_Success(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"text":       "```json\n{\"tags\":[\"치킨\",\"mukbang\"],\"quality\":77,\"ageBands\":[\"20s\"]}\n```",
			"confidence": 0.9,
		})
	}))
	defer server.Close()

	c := NewClassifier(Config{BaseURL: server.URL + "/", APIKey: "secret"}, nil)
	cls, err := c.Classify(context.Background(), "강남 치킨 먹방")
	require.NoError(t, err)

	assert.Equal(t, []string{"치킨", "mukbang"}, cls.Tags)
	assert.Equal(t, 77.0, cls.Quality)
	assert.Equal(t, []string{"20s"}, cls.AgeBands)
	assert.Contains(t, got.Prompt, "강남 치킨 먹방")
	assert.Equal(t, 300, got.MaxTokens)
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "gateway error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: ErrGenAIUnavailable,
		},
		{
			name: "unparseable text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"text":"I think this is a food channel."}`))
			},
			wantErr: style.ErrNoClassification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClassifier(Config{BaseURL: server.URL}, nil)
			_, err := c.Classify(context.Background(), "text")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClassify_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := NewClassifier(Config{BaseURL: server.URL}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Classify(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
