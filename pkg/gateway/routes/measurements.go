package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/registry"
)

type MeasurementHandler struct {
	service *registry.Service
}

func NewMeasurementHandler(service *registry.Service) *MeasurementHandler {
	return &MeasurementHandler{service: service}
}

func (h *MeasurementHandler) Register(r *mux.Router) {
	r.HandleFunc("/measurements", h.handleRecord).Methods(http.MethodPost)
	r.HandleFunc("/measurements", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/measurements/{id:[0-9]+}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *MeasurementHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req models.RecordMeasurementRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	measurement, err := h.service.RecordMeasurement(r.Context(), access.ActorFrom(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, measurement)
}

// handleList serves either one child's history (?child_id=) or the
// cross-facility date range (?start=&end=).
func (h *MeasurementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	actor := access.ActorFrom(r.Context())

	if raw := query.Get("child_id"); raw != "" {
		childID, err := parseID(raw)
		if err != nil {
			respondError(w, r, err)
			return
		}
		measurements, err := h.service.ListMeasurements(r.Context(), actor, childID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, measurements)
		return
	}

	if err := access.Authorize(actor, access.ListMeasurementsByRange, 0); err != nil {
		respondError(w, r, err)
		return
	}
	start, err := parseQueryDate(query.Get("start"), "start")
	if err != nil {
		respondError(w, r, err)
		return
	}
	end, err := parseQueryDate(query.Get("end"), "end")
	if err != nil {
		respondError(w, r, err)
		return
	}
	measurements, err := h.service.ListMeasurementsByDateRange(r.Context(), actor, start, end)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, measurements)
}

func (h *MeasurementHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	deleted, err := h.service.DeleteMeasurement(r.Context(), access.ActorFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func parseQueryDate(raw, name string) (models.Date, error) {
	if raw == "" {
		return models.Date{}, apperr.Validation("%s is required (YYYY-MM-DD)", name)
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, apperr.Validation("%s: %v", name, err)
	}
	return d, nil
}
