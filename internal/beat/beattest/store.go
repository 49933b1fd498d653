// Package beattest provides an in-memory fake of the beat.Store contract
// for tests that exercise registration and lifecycle paths without an
// embedded cron runner.
package beattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/flemzord/chime/internal/beat"
	"github.com/flemzord/chime/internal/schedule"
)

// Store is an in-memory beat.Store. Failure injection fields make the
// best-effort call-site behavior testable.
type Store struct {
	mu      sync.Mutex
	entries map[string]beat.Entry

	// RegisterErr, UpdateErr and DeleteErr, when set, are returned by the
	// corresponding operation instead of mutating state.
	RegisterErr error
	UpdateErr   error
	DeleteErr   error

	// Call counters.
	Registers int
	Updates   int
	Deletes   int
}

// Compile-time interface check.
var _ beat.Store = (*Store)(nil)

// New creates an empty fake store.
func New() *Store {
	return &Store{entries: make(map[string]beat.Entry)}
}

// Register implements beat.Store.
func (s *Store) Register(_ context.Context, name, jobRef string, d schedule.Descriptor, args []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Registers++
	if s.RegisterErr != nil {
		return "", s.RegisterErr
	}

	key := beat.Key(name)
	s.entries[key] = beat.Entry{
		Key:        key,
		Name:       name,
		JobRef:     jobRef,
		Descriptor: d,
		Args:       append([]string(nil), args...),
	}
	return key, nil
}

// Update implements beat.Store.
func (s *Store) Update(_ context.Context, key string, d schedule.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Updates++
	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", beat.ErrNotFound, key)
	}
	e.Descriptor = d
	s.entries[key] = e
	return nil
}

// Delete implements beat.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Deletes++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	if _, ok := s.entries[key]; !ok {
		return fmt.Errorf("%w: %s", beat.ErrNotFound, key)
	}
	delete(s.entries, key)
	return nil
}

// Lookup implements beat.Store.
func (s *Store) Lookup(_ context.Context, key string) (beat.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return beat.Entry{}, fmt.Errorf("%w: %s", beat.ErrNotFound, key)
	}
	return e, nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Has reports whether an entry named name is present.
func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[beat.Key(name)]
	return ok
}

// Entry returns the entry named name and whether it exists.
func (s *Store) Entry(name string) (beat.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[beat.Key(name)]
	return e, ok
}
