// internal/storage/elasticsearch.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"creator-match/internal/common/database"
	"creator-match/internal/models"
)

const DefaultIndex = "creator-match-analyses"

const recordsMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "fingerprint": {"type": "keyword"},
      "createdAt":   {"type": "date"},
      "expiresAt":   {"type": "date"},
      "profile":     {"type": "object", "enabled": false},
      "matches":     {"type": "object", "enabled": false},
      "stats":       {"type": "object"}
    }
  }
}`

// ElasticsearchStore archives analysis records in an index keyed by id.
type ElasticsearchStore struct {
	es    *database.ElasticsearchClient
	index string
	now   func() time.Time
}

func NewElasticsearchStore(es *database.ElasticsearchClient, index string) *ElasticsearchStore {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchStore{es: es, index: index, now: time.Now}
}

func (s *ElasticsearchStore) EnsureSchema(ctx context.Context) error {
	return s.es.EnsureIndex(ctx, s.index, recordsMapping)
}

// Save indexes rec with create semantics; a conflict means it is already stored.
func (s *ElasticsearchStore) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	res, err := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(body),
		OpType:     "create",
	}.Do(ctx, s.es.Client)
	if err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 409 {
		return fmt.Errorf("index record: %s", res.String())
	}
	return nil
}

func (s *ElasticsearchStore) LoadByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	query := map[string]interface{}{
		"size": 1,
		"sort": []interface{}{map[string]interface{}{"createdAt": "desc"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"fingerprint": fingerprint}},
					map[string]interface{}{"range": map[string]interface{}{
						"expiresAt": map[string]interface{}{"gt": s.now().UTC().Format(time.RFC3339Nano)},
					}},
				},
			},
		},
	}
	body, _ := json.Marshal(query)

	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.es.Client)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search records: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.AnalysisRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(r.Hits.Hits) == 0 {
		return nil, nil
	}
	rec := r.Hits.Hits[0].Source
	return &rec, nil
}

func (s *ElasticsearchStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"expiresAt": map[string]interface{}{"lte": s.now().UTC().Format(time.RFC3339Nano)},
			},
		},
	}
	body, _ := json.Marshal(query)

	res, err := esapi.DeleteByQueryRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.es.Client)
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("delete expired records: %s", res.String())
	}
	var r struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return r.Deleted, nil
}
