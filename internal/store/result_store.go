package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizattn/quizattn/internal/filestore"
	"github.com/quizattn/quizattn/internal/model"
)

// ResultStore persists attribution results. Saved after every completed
// record, so a rerun picks up where an interrupted run stopped.
type ResultStore struct {
	store filestore.Store
	key   string
}

func NewResultStore(store filestore.Store, key string) *ResultStore {
	if key == "" {
		key = DefaultResultKey
	}
	return &ResultStore{store: store, key: key}
}

func (s *ResultStore) Key() string {
	return s.key
}

// Load returns the persisted results, or nil when no artifact exists yet.
func (s *ResultStore) Load(ctx context.Context) ([]model.AttributionResult, error) {
	ok, err := s.store.Exists(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rc, err := s.store.Open(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.key, err)
	}
	defer rc.Close()
	var results []model.AttributionResult
	if err := json.NewDecoder(rc).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return results, nil
}

func (s *ResultStore) Save(ctx context.Context, results []model.AttributionResult) error {
	if results == nil {
		results = []model.AttributionResult{}
	}
	data, err := marshalIndent(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}
