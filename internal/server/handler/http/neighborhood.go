package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/ResQWave/internal/middleware"
	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/atinyakov/ResQWave/internal/service"
	"github.com/go-chi/chi/v5"
)

// NeighborhoodService defines the neighborhood operations
// required by the HTTP handlers.
type NeighborhoodService interface {
	MapOwn(ctx context.Context, userID string) (*service.OwnMarker, error)
	MapOthers(ctx context.Context, userID string) ([]service.OtherMarker, error)
	Details(ctx context.Context, userID string) (*service.Details, error)
	Update(ctx context.Context, userID string, u models.NeighborhoodUpdate) error
}

// NeighborhoodHandler serves neighborhood data to the authenticated focal person.
type NeighborhoodHandler struct {
	NeighborhoodService NeighborhoodService
}

// UpdateRequest is the JSON payload of PUT /neighborhood/{id}.
type UpdateRequest struct {
	NoOfHouseholds    int      `json:"noOfHouseholds"`
	NoOfResidents     int      `json:"noOfResidents"`
	FloodSubsideHours string   `json:"floodSubsideHours"`
	Hazards           []string `json:"hazards"`
	OtherInformation  string   `json:"otherInformation"`
}

// MapOwn handles GET /neighborhood/map/own.
func (h *NeighborhoodHandler) MapOwn(w http.ResponseWriter, r *http.Request) {
	m, err := h.NeighborhoodService.MapOwn(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// MapOthers handles GET /neighborhood/map/others.
func (h *NeighborhoodHandler) MapOthers(w http.ResponseWriter, r *http.Request) {
	ms, err := h.NeighborhoodService.MapOthers(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

// Details handles GET /neighborhood/own.
func (h *NeighborhoodHandler) Details(w http.ResponseWriter, r *http.Request) {
	d, err := h.NeighborhoodService.Details(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Update handles PUT /neighborhood/{id}.
func (h *NeighborhoodHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	u := models.NeighborhoodUpdate{
		NeighborhoodID:       chi.URLParam(r, "id"),
		ApproxHouseholds:     req.NoOfHouseholds,
		ApproxResidents:      req.NoOfResidents,
		FloodwaterSubsidence: req.FloodSubsideHours,
		FloodRelatedHazards:  req.Hazards,
	}
	if info := strings.TrimSpace(req.OtherInformation); info != "" {
		u.NotableInfo = []string{info}
	}
	if err := h.NeighborhoodService.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), u); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Neighborhood updated"})
}
