package gateway

import (
	"net/http"
	"strconv"

	"github.com/flemzord/chime/internal/store"
)

const defaultExecutionLimit = 100

// executionJSON is a serializable execution record.
type executionJSON struct {
	ID                int64  `json:"id"`
	DefinitionID      *int64 `json:"definition_id,omitempty"`
	ExternalID        string `json:"external_id"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Status            string `json:"status"`
	DefinitionName    string `json:"definition_name,omitempty"`
	ScheduleKind      string `json:"schedule_kind,omitempty"`
	ChatID            string `json:"chat_id,omitempty"`
	TemplateName      string `json:"template_name,omitempty"`
	TemplateNamespace string `json:"template_namespace,omitempty"`
}

func executionsToJSON(recs []store.ExecutionRecord) []executionJSON {
	out := make([]executionJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, executionJSON{
			ID:                rec.ID,
			DefinitionID:      rec.DefinitionID,
			ExternalID:        rec.ExternalID,
			Date:              rec.Date,
			Time:              rec.Time,
			Status:            string(rec.Status),
			DefinitionName:    rec.DefinitionName,
			ScheduleKind:      rec.ScheduleKind,
			ChatID:            rec.ChatID,
			TemplateName:      rec.TemplateName,
			TemplateNamespace: rec.TemplateNamespace,
		})
	}
	return out
}

func (s *Server) handleListExecutions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultExecutionLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad limit"})
				return
			}
			limit = n
		}

		recs, err := s.store.Executions(r.Context(), limit)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, executionsToJSON(recs))
	}
}

func (s *Server) handleDefinitionExecutions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		// 404 for an unknown definition rather than an empty list.
		if _, err := s.store.Definition(r.Context(), id); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		recs, err := s.store.ExecutionsByDefinition(r.Context(), id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, executionsToJSON(recs))
	}
}

func (s *Server) handleReconcile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repaired, err := s.sched.Reconcile(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
	}
}
