// Package runner contains the firing-time side of the system: the
// handlers invoked by the scheduler gateway, the execution recorder,
// the live event hub, and the runner metrics.
//
// Each handler composes the same pipeline: decode the stored argument
// list, re-fetch the authoritative definition row, apply the lifecycle
// policy, deliver the payload, record the outcome. Termination pre-empts
// the payload: a firing that trips the policy sends nothing and records
// nothing.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chime/internal/beat"
	"github.com/flemzord/chime/internal/job"
	"github.com/flemzord/chime/internal/lifecycle"
	"github.com/flemzord/chime/internal/notify"
	"github.com/flemzord/chime/internal/store"
)

// Runner wires the firing-time pipeline.
type Runner struct {
	store    *store.Store
	enforcer *lifecycle.Enforcer
	notifier *notify.Client
	recorder *Recorder
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Runner. metrics may be nil.
func New(st *store.Store, enf *lifecycle.Enforcer, cl *notify.Client, rec *Recorder, metrics *Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    st,
		enforcer: enf,
		notifier: cl,
		recorder: rec,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Handlers returns the handler table the gateway dispatches on.
func (r *Runner) Handlers() beat.Handlers {
	return beat.Handlers{
		job.RefSendTemplate: r.handleSendTemplate,
		job.RefMonitor:      r.handleMonitor,
	}
}

func (r *Runner) handleSendTemplate(ctx context.Context, args []string) error {
	def, terminated, err := r.prepare(ctx, job.RefSendTemplate, args)
	if err != nil || terminated || def == nil {
		return err
	}

	start := r.now()
	sendErr := r.notifier.SendTemplate(ctx, def.ChatID, def.TemplateName, def.TemplateNamespace)
	r.metrics.observePayload(r.now().Sub(start).Seconds())

	return r.finish(ctx, *def, sendErr)
}

func (r *Runner) handleMonitor(ctx context.Context, args []string) error {
	def, terminated, err := r.prepare(ctx, job.RefMonitor, args)
	if err != nil || terminated || def == nil {
		return err
	}

	start := r.now()
	probeErr := r.notifier.CheckService(ctx)
	r.metrics.observePayload(r.now().Sub(start).Seconds())

	return r.finish(ctx, *def, probeErr)
}

// prepare decodes the argument list, re-fetches the definition, and runs
// the lifecycle check. It returns a nil definition for a stale firing
// whose row is already gone (benign: the entry loses the race with a
// delete), and terminated=true when the policy retired the definition.
func (r *Runner) prepare(ctx context.Context, ref string, args []string) (*store.Definition, bool, error) {
	p, err := job.Parse(ref, args)
	if err != nil {
		return nil, false, err
	}

	def, err := r.store.Definition(ctx, p.DefinitionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("runner: firing for deleted definition ignored",
				"job", ref, "definition", p.DefinitionID)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("runner: fetch definition %d: %w", p.DefinitionID, err)
	}

	// The stored arguments carry the termination parameters as of
	// registration; they fill in for a row whose fields were cleared
	// out-of-band, and the fresher value wins when both are set.
	if def.EndAt == nil {
		def.EndAt = p.EndAt
	}
	if def.MaxExecutions == nil {
		def.MaxExecutions = p.MaxExecutions
	}

	decision, err := r.enforcer.Check(ctx, def, r.now())
	if err != nil {
		return nil, false, err
	}
	if decision.Terminate {
		if decision.Reason != "" {
			r.metrics.recordTermination(string(decision.Reason))
		}
		return nil, true, nil
	}
	return &def, false, nil
}

// finish records the outcome of the payload action. The delivery error
// is folded into the record status; it is returned merged with any
// recording error so the gateway logs it, but it never disables the
// schedule.
func (r *Runner) finish(ctx context.Context, def store.Definition, payloadErr error) error {
	status := store.StatusSuccess
	if payloadErr != nil {
		status = store.StatusError
		r.logger.Error("runner: payload delivery failed",
			"definition", def.ID, "name", def.Name, "error", payloadErr)
	}

	if err := r.recorder.Record(ctx, def, status); err != nil {
		return errors.Join(payloadErr, err)
	}
	return payloadErr
}
