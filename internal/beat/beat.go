// Package beat is the gateway to the external recurring-job store. It
// translates a schedule descriptor plus job identity and arguments into an
// entry keyed by an opaque string, and supports create, update, delete and
// lookup. The production implementation (CronStore) embeds a cron runner
// that fires due entries and invokes the registered handler with the stored
// argument list.
//
// Gateway failures are non-fatal by contract: callers log them and keep the
// authoritative definition row, accepting a possibly-orphaned definition
// until the explicit reconcile operation repairs it.
package beat

import (
	"context"
	"errors"

	"github.com/flemzord/chime/internal/schedule"
)

// KeyPrefix namespaces entry keys in the external store.
const KeyPrefix = "chime:entry:"

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when no entry exists for a key. Deleting an
	// already-absent key reports this; callers treat it as benign.
	ErrNotFound = errors.New("beat: entry not found")

	// ErrUnknownJobRef is returned by Register when no handler is known
	// for the requested job reference.
	ErrUnknownJobRef = errors.New("beat: unknown job reference")
)

// Handler executes one firing of a job with the positional arguments that
// were stored at registration time.
type Handler func(ctx context.Context, args []string) error

// Handlers maps job references (e.g. "chime.send_template") to handlers.
type Handlers map[string]Handler

// Entry is one record in the external recurring-job store.
type Entry struct {
	// Key is the opaque storage key owned by the gateway.
	Key string

	// Name is the human name. The store is overwrite-by-name: registering
	// an entry whose name is already present replaces the old entry.
	Name string

	// JobRef identifies the handler to invoke at due times.
	JobRef string

	// Descriptor is the firing schedule.
	Descriptor schedule.Descriptor

	// Args is the positional argument list passed to the handler verbatim.
	Args []string
}

// Store is the scheduler gateway contract. Implementations own the opaque
// entry keys; callers never construct keys themselves.
type Store interface {
	// Register creates a brand-new entry and returns its key. Safe to call
	// when an entry with the same name already exists (overwrite-by-name).
	Register(ctx context.Context, name, jobRef string, d schedule.Descriptor, args []string) (string, error)

	// Update rewrites the schedule of an existing entry. Job reference and
	// arguments are immutable after creation; callers that need new
	// arguments delete and re-register.
	Update(ctx context.Context, key string, d schedule.Descriptor) error

	// Delete removes the entry. Returns ErrNotFound for an absent key.
	Delete(ctx context.Context, key string) error

	// Lookup returns the entry stored under key, or ErrNotFound.
	Lookup(ctx context.Context, key string) (Entry, error)
}

// Key derives the storage key for an entry name.
func Key(name string) string {
	return KeyPrefix + name
}
