// internal/storage/elasticsearch_test.go
package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-match/internal/common/database"
)

type esCall struct {
	method string
	path   string
	query  string
	body   string
}

type fakeES struct {
	mu      sync.Mutex
	calls   []esCall
	respond func(r *http.Request) (int, string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, esCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
	f.mu.Unlock()

	status, payload := f.respond(r)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func (f *fakeES) last() esCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newESStore(t *testing.T, respond func(r *http.Request) (int, string)) (*ElasticsearchStore, *fakeES) {
	t.Helper()
	fake := &fakeES{respond: respond}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	s := NewElasticsearchStore(&database.ElasticsearchClient{Client: client}, "")
	s.now = func() time.Time { return testNow }
	return s, fake
}

func TestElasticsearchStore_Save(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "already indexed", status: http.StatusConflict},
		{name: "cluster error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fake := newESStore(t, func(*http.Request) (int, string) {
				return tt.status, `{"result":"created"}`
			})

			err := s.Save(context.Background(), record("rec-1", "fp", testNow, time.Hour))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			call := fake.last()
			assert.Equal(t, http.MethodPut, call.method)
			assert.Equal(t, "/"+DefaultIndex+"/_doc/rec-1", call.path)
			assert.Contains(t, call.query, "op_type=create")
			assert.Contains(t, call.body, `"fingerprint":"fp"`)
		})
	}
}

func TestElasticsearchStore_LoadByFingerprint(t *testing.T) {
	want := record("rec-1", "fp", testNow.Add(-time.Hour), 24*time.Hour)
	source, _ := json.Marshal(want)

	s, fake := newESStore(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":1},"hits":[{"_id":"rec-1","_source":` + string(source) + `}]}}`
	})

	got, err := s.LoadByFingerprint(context.Background(), "fp")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	call := fake.last()
	assert.Equal(t, "/"+DefaultIndex+"/_search", call.path)
	assert.Contains(t, call.body, `"term":{"fingerprint":"fp"}`)
	assert.Contains(t, call.body, `"gt":"2026-03-10T12:00:00Z"`)
	assert.Contains(t, call.body, `"createdAt":"desc"`)
}

func TestElasticsearchStore_LoadByFingerprint_NoHits(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty hits", status: http.StatusOK, body: `{"hits":{"total":{"value":0},"hits":[]}}`},
		{name: "index missing", status: http.StatusNotFound, body: `{"error":{"type":"index_not_found_exception"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newESStore(t, func(*http.Request) (int, string) { return tt.status, tt.body })
			got, err := s.LoadByFingerprint(context.Background(), "fp")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestElasticsearchStore_DeleteExpired(t *testing.T) {
	s, fake := newESStore(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"took":12,"deleted":5,"failures":[]}`
	})

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	call := fake.last()
	assert.Equal(t, http.MethodPost, call.method)
	assert.True(t, strings.HasSuffix(call.path, "/_delete_by_query"))
	assert.Contains(t, call.body, `"lte":"2026-03-10T12:00:00Z"`)
}

func TestElasticsearchStore_EnsureSchema(t *testing.T) {
	s, fake := newESStore(t, func(r *http.Request) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	})

	require.NoError(t, s.EnsureSchema(context.Background()))
	call := fake.last()
	assert.Equal(t, http.MethodPut, call.method)
	assert.Equal(t, "/"+DefaultIndex, call.path)
	assert.Contains(t, call.body, `"fingerprint"`)
}
