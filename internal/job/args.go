// Package job defines the handler references and the positional argument
// lists stored with each gateway entry. The argument list is the wire
// contract between registration time and firing time: handlers receive
// exactly what was stored, so both sides live here.
package job

import (
	"fmt"
	"strconv"
	"time"

	"github.com/flemzord/chime/internal/store"
)

// Handler references understood by the runner.
const (
	RefSendTemplate = "chime.send_template"
	RefMonitor      = "chime.monitor"
)

// KnownRef reports whether ref names a registered handler kind.
func KnownRef(ref string) bool {
	return ref == RefSendTemplate || ref == RefMonitor
}

// Args builds the positional argument list for def according to its job
// reference:
//
//	send_template: internal id, chat id, template name, template namespace,
//	               external id, end_at, max_executions
//	monitor:       internal id, external id, end_at, max_executions
//
// Optional end_at and max_executions are encoded as empty strings when
// unset.
func Args(def store.Definition) []string {
	id := strconv.FormatInt(def.ID, 10)
	endAt := ""
	if def.EndAt != nil {
		endAt = def.EndAt.UTC().Format(time.RFC3339)
	}
	maxExec := ""
	if def.MaxExecutions != nil {
		maxExec = strconv.FormatInt(*def.MaxExecutions, 10)
	}

	if def.JobRef == RefMonitor {
		return []string{id, def.ExternalID, endAt, maxExec}
	}
	return []string{id, def.ChatID, def.TemplateName, def.TemplateNamespace,
		def.ExternalID, endAt, maxExec}
}

// Parsed is the decoded argument list of one firing.
type Parsed struct {
	DefinitionID      int64
	ExternalID        string
	ChatID            string
	TemplateName      string
	TemplateNamespace string
	EndAt             *time.Time
	MaxExecutions     *int64
}

// Parse decodes args for the given job reference.
func Parse(ref string, args []string) (Parsed, error) {
	switch ref {
	case RefSendTemplate:
		if len(args) != 7 {
			return Parsed{}, fmt.Errorf("job: %s expects 7 args, got %d", ref, len(args))
		}
		p := Parsed{
			ChatID:            args[1],
			TemplateName:      args[2],
			TemplateNamespace: args[3],
			ExternalID:        args[4],
		}
		return decodeCommon(p, ref, args[0], args[5], args[6])

	case RefMonitor:
		if len(args) != 4 {
			return Parsed{}, fmt.Errorf("job: %s expects 4 args, got %d", ref, len(args))
		}
		p := Parsed{ExternalID: args[1]}
		return decodeCommon(p, ref, args[0], args[2], args[3])

	default:
		return Parsed{}, fmt.Errorf("job: unknown reference %q", ref)
	}
}

func decodeCommon(p Parsed, ref, id, endAt, maxExec string) (Parsed, error) {
	defID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Parsed{}, fmt.Errorf("job: %s: bad definition id %q: %w", ref, id, err)
	}
	p.DefinitionID = defID

	if endAt != "" {
		t, err := time.Parse(time.RFC3339, endAt)
		if err != nil {
			return Parsed{}, fmt.Errorf("job: %s: bad end_at %q: %w", ref, endAt, err)
		}
		p.EndAt = &t
	}
	if maxExec != "" {
		n, err := strconv.ParseInt(maxExec, 10, 64)
		if err != nil {
			return Parsed{}, fmt.Errorf("job: %s: bad max_executions %q: %w", ref, maxExec, err)
		}
		p.MaxExecutions = &n
	}
	return p, nil
}
