package beat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/chime/internal/schedule"
)

// CronStore is a Store backed by an embedded cron runner. Entries live in
// process memory; durability comes from the definition store, which
// re-registers every active definition at boot (see scheduling.Restore).
//
// The runner may fire entries concurrently, including overlapping firings
// of a slow entry. The handler pipeline is built to tolerate that.
type CronStore struct {
	mu       sync.Mutex
	runner   *cron.Cron
	entries  map[string]cronEntry // key -> entry + runner id
	handlers Handlers
	logger   *slog.Logger
	baseCtx  context.Context
	started  bool
}

type cronEntry struct {
	Entry
	id cron.EntryID
}

// NewCronStore creates a CronStore dispatching to the given handlers.
func NewCronStore(logger *slog.Logger, handlers Handlers) *CronStore {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &CronStore{
		runner:   cron.New(cron.WithParser(parser)),
		entries:  make(map[string]cronEntry),
		handlers: handlers,
		logger:   logger,
		baseCtx:  context.Background(),
	}
}

// Start begins firing due entries. Handlers run with a context derived
// from ctx; cancelling it stops in-flight work on the next check.
func (s *CronStore) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.baseCtx = ctx
	s.runner.Start()
	s.started = true
	s.logger.Info("beat: store started", "entries", len(s.entries))
}

// Stop halts firing and waits for in-flight handlers to return. The
// drain happens outside the lock: a firing can call back into the store
// (a terminate decision deletes its own entry) and must be able to
// acquire it.
func (s *CronStore) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	drained := s.runner.Stop()
	s.mu.Unlock()

	<-drained.Done()
	s.logger.Info("beat: store stopped")
	return nil
}

// Register implements Store. An existing entry with the same name is
// replaced, mirroring the overwrite-by-name semantics of the external
// store this gateway models.
func (s *CronStore) Register(_ context.Context, name, jobRef string, d schedule.Descriptor, args []string) (string, error) {
	handler, ok := s.handlers[jobRef]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownJobRef, jobRef)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(name)
	entry := Entry{
		Key:        key,
		Name:       name,
		JobRef:     jobRef,
		Descriptor: d,
		Args:       append([]string(nil), args...),
	}

	// The replacement is added before the old entry is removed, so a
	// failed AddFunc leaves the existing registration intact.
	id, err := s.runner.AddFunc(d.Spec(), s.fire(entry, handler))
	if err != nil {
		return "", fmt.Errorf("beat: register %q: %w", name, err)
	}

	if old, exists := s.entries[key]; exists {
		s.runner.Remove(old.id)
		s.logger.Info("beat: replacing entry", "name", name)
	}
	s.entries[key] = cronEntry{Entry: entry, id: id}
	return key, nil
}

// Update implements Store. Only the schedule changes; job reference and
// arguments carry over unchanged.
func (s *CronStore) Update(_ context.Context, key string, d schedule.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	handler, ok := s.handlers[old.JobRef]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobRef, old.JobRef)
	}

	entry := old.Entry
	entry.Descriptor = d

	id, err := s.runner.AddFunc(d.Spec(), s.fire(entry, handler))
	if err != nil {
		return fmt.Errorf("beat: update %s: %w", key, err)
	}

	s.runner.Remove(old.id)
	s.entries[key] = cronEntry{Entry: entry, id: id}
	return nil
}

// Delete implements Store.
func (s *CronStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.runner.Remove(old.id)
	delete(s.entries, key)
	return nil
}

// Lookup implements Store.
func (s *CronStore) Lookup(_ context.Context, key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return e.Entry, nil
}

// Len returns the number of live entries.
func (s *CronStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire wraps a handler invocation for one entry. Handler errors are logged
// and never propagate to the runner: a single failed firing must not stop
// future firings.
func (s *CronStore) fire(entry Entry, handler Handler) func() {
	return func() {
		s.mu.Lock()
		ctx := s.baseCtx
		s.mu.Unlock()

		if err := handler(ctx, entry.Args); err != nil {
			s.logger.Error("beat: entry firing failed",
				"name", entry.Name,
				"job", entry.JobRef,
				"error", err,
			)
		}
	}
}
