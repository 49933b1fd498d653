package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/chime/internal/schedule"
	"github.com/flemzord/chime/internal/store"
)

// scheduleJSON is the wire form of a schedule descriptor.
type scheduleJSON struct {
	Kind       string `json:"kind"`
	Seconds    uint   `json:"seconds,omitempty"`
	Minute     string `json:"minute,omitempty"`
	Hour       string `json:"hour,omitempty"`
	DayOfMonth string `json:"day_of_month,omitempty"`
	Month      string `json:"month,omitempty"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
}

func (s scheduleJSON) normalize() (schedule.Descriptor, error) {
	return schedule.Normalize(schedule.Input{
		Kind:       schedule.Kind(s.Kind),
		Seconds:    s.Seconds,
		Minute:     s.Minute,
		Hour:       s.Hour,
		DayOfMonth: s.DayOfMonth,
		Month:      s.Month,
		DayOfWeek:  s.DayOfWeek,
	})
}

func scheduleToJSON(d schedule.Descriptor) scheduleJSON {
	return scheduleJSON{
		Kind:       string(d.Kind),
		Seconds:    d.Seconds,
		Minute:     d.Minute,
		Hour:       d.Hour,
		DayOfMonth: d.DayOfMonth,
		Month:      d.Month,
		DayOfWeek:  d.DayOfWeek,
	}
}

// definitionJSON is a serializable definition snapshot.
type definitionJSON struct {
	ID                int64        `json:"id"`
	ExternalID        string       `json:"external_id"`
	Name              string       `json:"name"`
	JobRef            string       `json:"job_ref"`
	ChatID            string       `json:"chat_id,omitempty"`
	TemplateName      string       `json:"template_name,omitempty"`
	TemplateNamespace string       `json:"template_namespace,omitempty"`
	Schedule          scheduleJSON `json:"schedule"`
	ScheduleDisplay   string       `json:"schedule_display"`
	Registered        bool         `json:"registered"`
	EndAt             *time.Time   `json:"end_at,omitempty"`
	ExecutionCount    int64        `json:"execution_count"`
	MaxExecutions     *int64       `json:"max_executions,omitempty"`
	Active            bool         `json:"active"`
	GroupID           string       `json:"group_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func definitionToJSON(d store.Definition) definitionJSON {
	return definitionJSON{
		ID:                d.ID,
		ExternalID:        d.ExternalID,
		Name:              d.Name,
		JobRef:            d.JobRef,
		ChatID:            d.ChatID,
		TemplateName:      d.TemplateName,
		TemplateNamespace: d.TemplateNamespace,
		Schedule:          scheduleToJSON(d.Schedule),
		ScheduleDisplay:   d.Schedule.Display(),
		Registered:        d.BeatKey != "",
		EndAt:             d.EndAt,
		ExecutionCount:    d.ExecutionCount,
		MaxExecutions:     d.MaxExecutions,
		Active:            d.Active,
		GroupID:           d.GroupID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func definitionsToJSON(defs []store.Definition) []definitionJSON {
	out := make([]definitionJSON, 0, len(defs))
	for _, d := range defs {
		out = append(out, definitionToJSON(d))
	}
	return out
}

// definitionRequest is the create/update payload.
type definitionRequest struct {
	Name              string       `json:"name"`
	JobRef            string       `json:"job_ref"`
	ChatID            string       `json:"chat_id"`
	TemplateName      string       `json:"template_name"`
	TemplateNamespace string       `json:"template_namespace"`
	Schedule          scheduleJSON `json:"schedule"`
	EndAt             *time.Time   `json:"end_at"`
	MaxExecutions     *int64       `json:"max_executions"`
	Active            *bool        `json:"active"`
}

// apply validates the request and copies its fields onto def.
func (req definitionRequest) apply(def *store.Definition) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	desc, err := req.Schedule.normalize()
	if err != nil {
		return err
	}

	def.Name = req.Name
	def.JobRef = req.JobRef
	def.ChatID = req.ChatID
	def.TemplateName = req.TemplateName
	def.TemplateNamespace = req.TemplateNamespace
	def.Schedule = desc
	def.EndAt = req.EndAt
	def.MaxExecutions = req.MaxExecutions
	def.Active = true
	if req.Active != nil {
		def.Active = *req.Active
	}
	return nil
}

func decodeRequest(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func urlID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad definition id %q", raw)
	}
	return id, nil
}

func (s *Server) handleListDefinitions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs, err := s.store.Definitions(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, definitionsToJSON(defs))
	}
}

func (s *Server) handleCreateDefinition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req definitionRequest
		if err := decodeRequest(r, &req); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		var def store.Definition
		if err := req.apply(&def); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		if err := s.sched.CreateAndRegister(r.Context(), &def); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, definitionToJSON(def))
	}
}

func (s *Server) handleGetDefinition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		def, err := s.store.Definition(r.Context(), id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, definitionToJSON(def))
	}
}

func (s *Server) handleUpdateDefinition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		var req definitionRequest
		if err := decodeRequest(r, &req); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		def, err := s.store.Definition(r.Context(), id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if err := req.apply(&def); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		if err := s.sched.UpdateAndResync(r.Context(), &def); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, definitionToJSON(def))
	}
}

func (s *Server) handleDeleteDefinition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		if err := s.sched.Delete(r.Context(), id); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
