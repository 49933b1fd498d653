// Package lifecycle decides, at each firing, whether a definition keeps
// running or is retired. Termination is one-way: once a definition trips
// its expiry date or execution quota it is disabled and its gateway entry
// removed, and nothing in the core re-enables it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chime/internal/beat"
	"github.com/flemzord/chime/internal/store"
)

// Reason explains a Terminate decision.
type Reason string

// Termination reasons.
const (
	ReasonExpired      Reason = "expired"
	ReasonQuotaReached Reason = "quota_reached"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Terminate bool
	Reason    Reason
}

// Evaluate applies the termination policy to def at the given instant.
// The expiry date is checked first, then the execution quota. The count
// is the pre-increment value of the current firing, so a quota of N
// permits at least N executions, not exactly N.
func Evaluate(def store.Definition, now time.Time) Decision {
	if def.EndAt != nil && !now.Before(*def.EndAt) {
		return Decision{Terminate: true, Reason: ReasonExpired}
	}
	if def.MaxExecutions != nil && def.ExecutionCount >= *def.MaxExecutions {
		return Decision{Terminate: true, Reason: ReasonQuotaReached}
	}
	return Decision{}
}

// Enforcer carries out Terminate decisions: persist the disable, then
// best-effort remove the gateway entry.
type Enforcer struct {
	store  *store.Store
	beat   beat.Store
	logger *slog.Logger
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(st *store.Store, bt beat.Store, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{store: st, beat: bt, logger: logger}
}

// Check evaluates def and, on a Terminate decision, retires it: active is
// persisted false first, then the gateway entry is deleted. The gateway
// delete is best-effort — a failure (including an already-absent key from
// a racing double-fire) is logged and the termination stands.
//
// Callers skip the payload action whenever the returned decision
// terminates: termination pre-empts execution.
func (e *Enforcer) Check(ctx context.Context, def store.Definition, now time.Time) (Decision, error) {
	// A definition that lost the double-fire race is already retired;
	// re-evaluating it must not mutate anything again.
	if !def.Active {
		return Decision{Terminate: true}, nil
	}

	decision := Evaluate(def, now)
	if !decision.Terminate {
		return decision, nil
	}

	if err := e.store.Deactivate(ctx, def.ID); err != nil {
		return decision, fmt.Errorf("lifecycle: disable definition %d: %w", def.ID, err)
	}

	if def.BeatKey != "" {
		if err := e.beat.Delete(ctx, def.BeatKey); err != nil {
			if errors.Is(err, beat.ErrNotFound) {
				e.logger.Info("lifecycle: gateway entry already gone",
					"definition", def.ID, "key", def.BeatKey)
			} else {
				e.logger.Error("lifecycle: gateway delete failed",
					"definition", def.ID, "key", def.BeatKey, "error", err)
			}
		}
	}

	e.logger.Info("lifecycle: definition retired",
		"definition", def.ID,
		"name", def.Name,
		"reason", string(decision.Reason),
	)
	return decision, nil
}
