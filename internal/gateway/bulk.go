package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/chime/internal/scheduling"
	"github.com/flemzord/chime/internal/store"
)

// bulkJSON is a serializable bulk definition snapshot.
type bulkJSON struct {
	ID                string       `json:"id"`
	ChatIDs           string       `json:"chat_ids"`
	Targets           []string     `json:"targets"`
	Name              string       `json:"name"`
	JobRef            string       `json:"job_ref"`
	TemplateName      string       `json:"template_name,omitempty"`
	TemplateNamespace string       `json:"template_namespace,omitempty"`
	Schedule          scheduleJSON `json:"schedule"`
	EndAt             *time.Time   `json:"end_at,omitempty"`
	MaxExecutions     *int64       `json:"max_executions,omitempty"`
	Active            bool         `json:"active"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func bulkToJSON(b store.BulkDefinition) bulkJSON {
	return bulkJSON{
		ID:                b.ID,
		ChatIDs:           b.ChatIDs,
		Targets:           scheduling.SplitTargets(b.ChatIDs),
		Name:              b.Name,
		JobRef:            b.JobRef,
		TemplateName:      b.TemplateName,
		TemplateNamespace: b.TemplateNamespace,
		Schedule:          scheduleToJSON(b.Schedule),
		EndAt:             b.EndAt,
		MaxExecutions:     b.MaxExecutions,
		Active:            b.Active,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// bulkRequest is the create/update payload for bulk definitions.
type bulkRequest struct {
	Name              string       `json:"name"`
	JobRef            string       `json:"job_ref"`
	ChatIDs           string       `json:"chat_ids"`
	TemplateName      string       `json:"template_name"`
	TemplateNamespace string       `json:"template_namespace"`
	Schedule          scheduleJSON `json:"schedule"`
	EndAt             *time.Time   `json:"end_at"`
	MaxExecutions     *int64       `json:"max_executions"`
	Active            *bool        `json:"active"`
}

func (req bulkRequest) apply(b *store.BulkDefinition) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(scheduling.SplitTargets(req.ChatIDs)) == 0 {
		return fmt.Errorf("chat_ids must name at least one target")
	}
	desc, err := req.Schedule.normalize()
	if err != nil {
		return err
	}

	b.Name = req.Name
	b.JobRef = req.JobRef
	b.ChatIDs = req.ChatIDs
	b.TemplateName = req.TemplateName
	b.TemplateNamespace = req.TemplateNamespace
	b.Schedule = desc
	b.EndAt = req.EndAt
	b.MaxExecutions = req.MaxExecutions
	b.Active = true
	if req.Active != nil {
		b.Active = *req.Active
	}
	return nil
}

// bulkDetailJSON pairs a bulk definition with its children.
type bulkDetailJSON struct {
	Bulk     bulkJSON         `json:"bulk"`
	Children []definitionJSON `json:"children"`
}

func (s *Server) handleListBulks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bulks, err := s.store.Bulks(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		out := make([]bulkJSON, 0, len(bulks))
		for _, b := range bulks {
			out = append(out, bulkToJSON(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleCreateBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := decodeRequest(r, &req); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		var b store.BulkDefinition
		if err := req.apply(&b); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		children, err := s.sched.CreateBulk(r.Context(), &b)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, bulkDetailJSON{
			Bulk:     bulkToJSON(b),
			Children: definitionsToJSON(children),
		})
	}
}

func (s *Server) handleGetBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		b, err := s.store.Bulk(r.Context(), id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		children, err := s.store.DefinitionsByGroup(r.Context(), id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, bulkDetailJSON{
			Bulk:     bulkToJSON(b),
			Children: definitionsToJSON(children),
		})
	}
}

func (s *Server) handleUpdateBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req bulkRequest
		if err := decodeRequest(r, &req); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		b, err := s.store.Bulk(r.Context(), id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if err := req.apply(&b); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		if err := s.sched.UpdateBulk(r.Context(), &b); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, bulkToJSON(b))
	}
}

func (s *Server) handleDeleteBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := s.sched.DeleteBulk(r.Context(), id); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
