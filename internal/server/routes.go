package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Ting2004/katachi/internal/engine"
	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/tasks"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.View())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	entries := s.engine.Tasks(r.URL.Query().Get("label"))
	writeJSON(w, http.StatusOK, tasks.RecordList(entries))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	name := taskName(r)
	entry, ok := s.engine.Task(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, snapshot.CodeNotFound, "task not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, entry.Record())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req snapshot.TaskInput
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := tasks.FromInput(req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if err := s.engine.CreateTask(r.Context(), t); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	entry, _ := s.engine.Task(strings.TrimSpace(req.Name))
	writeJSON(w, http.StatusCreated, entry.Record())
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req snapshot.TaskPatch
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := tasks.PatchFrom(req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if p.Empty() {
		writeError(w, r, http.StatusBadRequest, snapshot.CodeInvalid, "nothing to update")
		return
	}

	entry, err := s.engine.UpdateTask(r.Context(), taskName(r), p)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry.Record())
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteTask(r.Context(), taskName(r)); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(done bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := s.engine.Toggle(r.Context(), taskName(r), done)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry.Record())
	}
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	s.maintenance(w, r, s.engine.ApplyDecay(r.Context()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.maintenance(w, r, s.engine.ManualReset(r.Context()))
}

func (s *Server) handleRestoreDefaults(w http.ResponseWriter, r *http.Request) {
	s.maintenance(w, r, s.engine.RestoreDefaults(r.Context()))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.maintenance(w, r, s.engine.Save(r.Context()))
}

// maintenance answers a maintenance operation with the resulting state.
func (s *Server) maintenance(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.View())
}

// taskName returns the {name} path segment, unescaping it when the client
// escaped characters such as '/'.
func taskName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(name); err == nil {
			return u
		}
	}
	return name
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		writeError(w, r, http.StatusNotFound, snapshot.CodeNotFound, err.Error())
	case errors.Is(err, tasks.ErrDuplicate):
		writeError(w, r, http.StatusConflict, snapshot.CodeDuplicate, err.Error())
	case errors.Is(err, tasks.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, snapshot.CodeInvalid, err.Error())
	case errors.Is(err, engine.ErrPersist):
		writeError(w, r, http.StatusInternalServerError, snapshot.CodePersist, err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, snapshot.CodeInternal, "internal error")
	}
}

// maxBodyBytes caps request bodies. A task definition is well under 1KB.
const maxBodyBytes = 64 << 10

// decodeBody decodes a JSON request body into v, writing the error response
// and returning false when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, r, http.StatusRequestEntityTooLarge, snapshot.CodeInvalid, "request body too large")
		return false
	}
	writeError(w, r, http.StatusBadRequest, snapshot.CodeInvalid, "invalid json")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, snapshot.ErrorBody{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
