package valuestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store provides the persisted key-value store with an in-memory cache.
// It wraps a Repository and keeps every value and metadata entry cached
// for fast reads; writes go through to the repository first.
//
// Values are persisted as JSON, so numeric values read back after a
// restart are float64. Consumers must not assume a specific integer type.
//
// All public methods are thread-safe.
type Store struct {
	repo      Repository
	values    map[Key]any
	metadata  map[Key]Metadata
	mu        sync.RWMutex
	logger    Logger
}

// NewStore creates a new value store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:     repo,
		values:   make(map[Key]any),
		metadata: make(map[Key]Metadata),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// RefreshCache reloads all values and metadata from the repository.
// This should be called on application startup.
func (s *Store) RefreshCache(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading values: %w", err)
	}
	metadata, err := s.repo.ListMetadata(ctx)
	if err != nil {
		return fmt.Errorf("loading metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[Key]any, len(records))
	for _, record := range records {
		s.values[record.Key] = record.Value
	}
	s.metadata = metadata

	s.logger.Info("value cache refreshed", "values", len(records), "metadata", len(metadata))
	return nil
}

// Get retrieves a value by key. The second return reports presence.
func (s *Store) Get(_ context.Context, key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Set persists a value and updates the cache (last-write-wins).
func (s *Store) Set(ctx context.Context, key Key, value any) error {
	record := &Record{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return err
	}

	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	s.logger.Debug("value set", "endpoint", key.Endpoint, "property", key.Property, "user_id", key.UserID)
	return nil
}

// Remove deletes a value and its cache entry. Absent keys are a no-op.
func (s *Store) Remove(ctx context.Context, key Key) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()

	return nil
}

// SetMetadata persists metadata for a key. A nil meta removes any existing
// metadata; removal of absent metadata is a no-op.
func (s *Store) SetMetadata(ctx context.Context, key Key, meta *Metadata) error {
	if meta == nil {
		if err := s.repo.DeleteMetadata(ctx, key); err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.metadata, key)
		s.mu.Unlock()
		return nil
	}

	if err := s.repo.UpsertMetadata(ctx, key, meta); err != nil {
		return err
	}

	s.mu.Lock()
	s.metadata[key] = *meta
	s.mu.Unlock()

	return nil
}

// HasMetadata reports whether metadata exists for a key.
func (s *Store) HasMetadata(_ context.Context, key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.metadata[key]
	return ok
}

// GetMetadata retrieves metadata for a key.
// Returns ErrNotFound if no metadata exists.
func (s *Store) GetMetadata(ctx context.Context, key Key) (*Metadata, error) {
	s.mu.RLock()
	meta, ok := s.metadata[key]
	s.mu.RUnlock()
	if ok {
		copied := meta
		return &copied, nil
	}

	// Fall back to the repository in case the cache predates the entry.
	loaded, err := s.repo.GetMetadata(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.mu.Lock()
	s.metadata[key] = *loaded
	s.mu.Unlock()
	return loaded, nil
}

// Count returns the number of cached values.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
