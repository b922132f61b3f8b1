package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalshiplus/paper-engine/internal/alert"
	"github.com/kalshiplus/paper-engine/internal/model"
)

// CreateAlertResponse is the JSON body returned from POST /api/alerts.
type CreateAlertResponse struct {
	Success    bool        `json:"success"`
	AlertCount int         `json:"alert_count"`
	Alert      model.Alert `json:"alert"`
}

// ListAlerts handles GET /api/alerts
func (s *Server) ListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alerts.List(r.Context()))
}

// CreateAlert handles POST /api/alerts
func (s *Server) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alert.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := s.alerts.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateAlertResponse{
		Success:    true,
		AlertCount: len(s.alerts.List(r.Context())),
		Alert:      a,
	})
}

// DeleteAlert handles DELETE /api/alerts/{id}
// A numeric path segment that matches no id is taken as a list position.
func (s *Server) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	err := s.alerts.Delete(ctx, id)
	if errors.Is(err, alert.ErrAlertNotFound) {
		if index, convErr := strconv.Atoi(id); convErr == nil {
			err = s.alerts.DeleteAt(ctx, index)
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RearmAlert handles POST /api/alerts/{id}/rearm
func (s *Server) RearmAlert(w http.ResponseWriter, r *http.Request) {
	a, err := s.alerts.Rearm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
