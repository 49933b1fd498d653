package store

import (
	"errors"
	"time"

	"github.com/flemzord/chime/internal/schedule"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// Status is the recorded outcome of one firing.
type Status string

// Execution outcomes.
const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Definition is the authoritative record of one schedule: what to run,
// when, against which target, and under which termination conditions.
type Definition struct {
	// ID is the internal numeric id, used by handlers to re-fetch state.
	ID int64

	// ExternalID is the externally exposed opaque id, stable across
	// re-registration; carried in the handler argument list.
	ExternalID string

	// Name is the human name; it doubles as the external entry name and
	// must therefore be unique among live registrations.
	Name string

	// JobRef identifies the handler the external runner invokes.
	JobRef string

	// Target and payload parameters, carried opaquely.
	ChatID            string
	TemplateName      string
	TemplateNamespace string

	// Schedule is the normalized firing schedule.
	Schedule schedule.Descriptor

	// BeatKey is the gateway entry key. Empty until registration is
	// confirmed; non-empty implies a live entry in the external store.
	BeatKey string

	// Termination conditions and live counters.
	EndAt          *time.Time
	ExecutionCount int64
	MaxExecutions  *int64

	// Active is true until lifecycle termination or explicit delete.
	Active bool

	// GroupID is the owning bulk definition id, empty for standalone
	// definitions. The relation cascades edits and deletes from the
	// parent, nothing else.
	GroupID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BulkDefinition is a template that fans out into one Definition per
// entry of its delimited target list.
type BulkDefinition struct {
	ID                string // opaque uuid
	ChatIDs           string // comma-delimited target list, as entered
	Name              string
	JobRef            string
	TemplateName      string
	TemplateNamespace string
	Schedule          schedule.Descriptor
	EndAt             *time.Time
	MaxExecutions     *int64
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExecutionRecord is one immutable audit entry for one firing. The
// denormalized fields are copied from the live definition at creation
// time (snapshot, not a live join) so the record survives parent deletion.
type ExecutionRecord struct {
	ID int64

	// DefinitionID is nulled when the parent definition is deleted; the
	// record itself is never cascaded away.
	DefinitionID *int64

	ExternalID string

	// Local execution date (2006-01-02) and time (15:04:05).
	Date string
	Time string

	Status Status

	// Denormalized snapshot fields.
	DefinitionName string
	ScheduleKind   string
	ChatID         string
	TemplateName   string
	TemplateNamespace string
}
