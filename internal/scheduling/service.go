// Package scheduling orchestrates the dual write between the definition
// store and the scheduler gateway: create-and-register, update-and-resync,
// delete-with-detach, bulk fan-out, and the explicit reconcile repair
// operation.
//
// There is deliberately no transaction spanning the two stores. The
// definition row is authoritative and always persisted; gateway failures
// are logged and leave an orphaned definition (present but never firing)
// until Reconcile repairs it.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flemzord/chime/internal/beat"
	"github.com/flemzord/chime/internal/job"
	"github.com/flemzord/chime/internal/store"
)

// Service owns definition lifecycle orchestration.
type Service struct {
	store  *store.Store
	beat   beat.Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(st *store.Store, bt beat.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, beat: bt, logger: logger}
}

// CreateAndRegister persists def, then registers it with the gateway and
// stores the entry key back onto the row. A missing external id is
// assigned here. Registration failure is non-fatal: the row persists with
// an empty key and the definition simply never fires until reconciled.
func (s *Service) CreateAndRegister(ctx context.Context, def *store.Definition) error {
	if def.ExternalID == "" {
		def.ExternalID = uuid.NewString()
	}
	if !job.KnownRef(def.JobRef) {
		return fmt.Errorf("scheduling: unknown job reference %q", def.JobRef)
	}

	if err := s.store.CreateDefinition(ctx, def); err != nil {
		return err
	}

	s.register(ctx, def)
	return nil
}

// UpdateAndResync persists def's field changes, then rewrites the gateway
// entry (delete-then-create) so timing and arguments reflect the new
// state. An inactive definition ends up with no gateway entry.
func (s *Service) UpdateAndResync(ctx context.Context, def *store.Definition) error {
	if err := s.store.UpdateDefinition(ctx, def); err != nil {
		return err
	}

	if def.BeatKey != "" {
		if err := s.beat.Delete(ctx, def.BeatKey); err != nil && !errors.Is(err, beat.ErrNotFound) {
			s.logger.Error("scheduling: gateway delete during resync failed",
				"definition", def.ID, "key", def.BeatKey, "error", err)
		}
		def.BeatKey = ""
		if err := s.store.SetBeatKey(ctx, def.ID, ""); err != nil {
			return err
		}
	}

	s.register(ctx, def)
	return nil
}

// Delete removes a definition: its execution records are detached first
// (history survives), then the gateway entry is removed best-effort, then
// the row goes away.
func (s *Service) Delete(ctx context.Context, id int64) error {
	def, err := s.store.Definition(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.store.DetachExecutions(ctx, def.ID); err != nil {
		return err
	}

	if def.BeatKey != "" {
		if err := s.beat.Delete(ctx, def.BeatKey); err != nil && !errors.Is(err, beat.ErrNotFound) {
			s.logger.Error("scheduling: gateway delete failed, removing row anyway",
				"definition", def.ID, "key", def.BeatKey, "error", err)
		}
	}

	return s.store.DeleteDefinition(ctx, def.ID)
}

// Reconcile re-registers every active definition that has no gateway
// entry. It is the explicit repair primitive for orphans left behind by
// failed registrations or partial fan-outs; nothing calls it
// automatically. Returns the number of definitions repaired.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	orphans, err := s.store.OrphanedDefinitions(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range orphans {
		def := orphans[i]
		s.register(ctx, &def)
		if def.BeatKey != "" {
			repaired++
		}
	}

	s.logger.Info("scheduling: reconcile finished",
		"orphans", len(orphans), "repaired", repaired)
	return repaired, nil
}

// Restore registers every active definition at boot. The embedded cron
// store keeps entries in process memory only, so the authoritative rows
// are replayed into it on every start; keys are name-derived and stable.
func (s *Service) Restore(ctx context.Context) error {
	defs, err := s.store.ActiveDefinitions(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for i := range defs {
		def := defs[i]
		s.register(ctx, &def)
		if def.BeatKey != "" {
			restored++
		}
	}

	s.logger.Info("scheduling: definitions restored", "active", len(defs), "registered", restored)
	return nil
}

// register creates the gateway entry for def and persists the key.
// Best-effort by contract: failures are logged and def keeps an empty
// key. Inactive definitions are never registered.
func (s *Service) register(ctx context.Context, def *store.Definition) {
	if !def.Active {
		return
	}

	key, err := s.beat.Register(ctx, def.Name, def.JobRef, def.Schedule, job.Args(*def))
	if err != nil {
		s.logger.Error("scheduling: gateway registration failed, definition orphaned",
			"definition", def.ID, "name", def.Name, "error", err)
		return
	}

	def.BeatKey = key
	if err := s.store.SetBeatKey(ctx, def.ID, key); err != nil {
		s.logger.Error("scheduling: persisting gateway key failed",
			"definition", def.ID, "key", key, "error", err)
	}
}
