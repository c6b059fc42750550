package connector

import (
	"context"
	"fmt"
	"strings"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

// StoreSource is the connector name of the local full-text store.
const StoreSource = "store"

// LocalStore searches previously ingested items. It is never cached.
type LocalStore struct {
	store ports.ItemStore
}

var _ ports.Connector = (*LocalStore)(nil)

// NewLocalStore wraps the persisted item store.
func NewLocalStore(store ports.ItemStore) *LocalStore {
	return &LocalStore{store: store}
}

func (s *LocalStore) Name() string { return StoreSource }

// Search runs a ranked full-text query; the window does not apply.
func (s *LocalStore) Search(ctx context.Context, query string, c ports.Constraints) ([]domain.Item, error) {
	if s.store == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	items, err := s.store.SearchFullText(ctx, query, c.Limit)
	if err != nil {
		return nil, fmt.Errorf("store search: %w", err)
	}
	return items, nil
}
