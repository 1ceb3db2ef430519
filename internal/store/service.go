package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ricesearch/rice-search/internal/qdrant"
)

// Service is a read-only registry over provisioned stores. It answers
// existence checks, config lookups, and version tags; it does not create,
// migrate, or delete stores. Provisioning a store (and its backing Qdrant
// collection) happens out of band, before the search server starts.
type Service struct {
	qdrant  *qdrant.Client
	storage Storage
	stores  map[string]*Store
	mu      sync.RWMutex
}

// ServiceConfig holds configuration for the store registry.
type ServiceConfig struct {
	// StoragePath is the path to store metadata files. Empty uses an
	// in-memory registry (useful for tests).
	StoragePath string
}

// NewService loads the store registry from storage.
func NewService(qdrantClient *qdrant.Client, cfg ServiceConfig) (*Service, error) {
	var storage Storage
	if cfg.StoragePath != "" {
		storage = NewFileStorage(cfg.StoragePath)
	} else {
		storage = NewMemoryStorage()
	}

	svc := &Service{
		qdrant:  qdrantClient,
		storage: storage,
		stores:  make(map[string]*Store),
	}

	if err := svc.loadStores(); err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}

	return svc, nil
}

// loadStores loads all provisioned stores from storage.
func (s *Service) loadStores() error {
	stores, err := s.storage.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, store := range stores {
		s.stores[store.Name] = store
	}

	return nil
}

// GetStore retrieves a store's config by name.
func (s *Service) GetStore(ctx context.Context, name string) (*Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, exists := s.stores[name]
	if !exists {
		return nil, fmt.Errorf("store %s not found", name)
	}

	return store, nil
}

// ListStores returns all provisioned stores.
func (s *Service) ListStores(ctx context.Context) ([]*Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stores := make([]*Store, 0, len(s.stores))
	for _, store := range s.stores {
		stores = append(stores, store)
	}

	return stores, nil
}

// GetStoreStats returns the current statistics for a store, refreshed
// from the live Qdrant collection point count when available.
func (s *Service) GetStoreStats(ctx context.Context, name string) (*StoreStats, error) {
	s.mu.RLock()
	store, exists := s.stores[name]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("store %s not found", name)
	}

	if s.qdrant != nil {
		info, err := s.qdrant.GetCollectionInfo(ctx, name)
		if err == nil {
			store.Stats.ChunkCount = int64(info.PointsCount)
		}
	}

	return &store.Stats, nil
}

// StoreExists checks if a store is registered.
func (s *Service) StoreExists(ctx context.Context, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.stores[name]
	return exists
}

// VersionTag returns a stable tag for a store's current config generation,
// for callers (e.g. an embedding cache keyed by fingerprint + model) that
// want to fold a store's provisioning version into their own cache keys.
func (s *Service) VersionTag(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, exists := s.stores[name]
	if !exists {
		return "", fmt.Errorf("store %s not found", name)
	}

	return fmt.Sprintf("%s-%d", store.Name, store.UpdatedAt.UnixNano()), nil
}
