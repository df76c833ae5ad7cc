// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"creator-match/internal/common/logger"
	"creator-match/internal/models"
)

var ErrInvalidRecord = errors.New("analysis record requires id and fingerprint")

// Store persists analysis records. LoadByFingerprint returns the newest
// unexpired record, or nil when there is none.
type Store interface {
	Save(ctx context.Context, rec *models.AnalysisRecord) error
	LoadByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

func validate(rec *models.AnalysisRecord) error {
	if rec == nil || rec.ID == "" || rec.Fingerprint == "" {
		return ErrInvalidRecord
	}
	return nil
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.AnalysisRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]*models.AnalysisRecord{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, rec *models.AnalysisRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; !exists {
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *MemoryStore) LoadByFingerprint(_ context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []*models.AnalysisRecord
	for _, r := range s.records {
		if r.Fingerprint == fingerprint && !r.Expired(now) {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})
	return live[0], nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.records {
		if r.Expired(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Mirrored writes to a primary store and copies to mirrors on a best-effort
// basis. Reads fall through to mirrors only when the primary errors.
type Mirrored struct {
	primary Store
	mirrors []Store
	logger  logger.Logger
}

func NewMirrored(primary Store, log logger.Logger, mirrors ...Store) *Mirrored {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Mirrored{
		primary: primary,
		mirrors: mirrors,
		logger:  log.WithFields(map[string]interface{}{"component": "record-store"}),
	}
}

func (m *Mirrored) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := m.primary.Save(ctx, rec); err != nil {
		return err
	}
	for i, mirror := range m.mirrors {
		if err := mirror.Save(ctx, rec); err != nil {
			m.logger.Warn("mirror save failed", map[string]interface{}{
				"mirror":     i,
				"analysisId": rec.ID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (m *Mirrored) LoadByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	rec, err := m.primary.LoadByFingerprint(ctx, fingerprint)
	if err == nil {
		return rec, nil
	}
	for _, mirror := range m.mirrors {
		if r, merr := mirror.LoadByFingerprint(ctx, fingerprint); merr == nil {
			m.logger.Warn("primary record store failed, served from mirror", map[string]interface{}{
				"fingerprint": fingerprint,
				"error":       err.Error(),
			})
			return r, nil
		}
	}
	return nil, err
}

func (m *Mirrored) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := m.primary.DeleteExpired(ctx)
	for i, mirror := range m.mirrors {
		if _, merr := mirror.DeleteExpired(ctx); merr != nil {
			m.logger.Warn("mirror cleanup failed", map[string]interface{}{"mirror": i, "error": merr.Error()})
		}
	}
	return n, err
}
