package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/registry"
)

type ChildHandler struct {
	service *registry.Service
}

func NewChildHandler(service *registry.Service) *ChildHandler {
	return &ChildHandler{service: service}
}

func (h *ChildHandler) Register(r *mux.Router) {
	r.HandleFunc("/children", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/children", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/children/{id:[0-9]+}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/children/{id:[0-9]+}", h.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/children/{id:[0-9]+}", h.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/children/{id:[0-9]+}/measurements", h.handleMeasurements).Methods(http.MethodGet)
	r.HandleFunc("/children/{id:[0-9]+}/measurements/latest", h.handleLatest).Methods(http.MethodGet)
}

func (h *ChildHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChildRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	child, err := h.service.CreateChild(r.Context(), access.ActorFrom(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) handleList(w http.ResponseWriter, r *http.Request) {
	var facilityID *int64
	if raw := r.URL.Query().Get("facility_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			respondError(w, r, err)
			return
		}
		facilityID = &id
	}
	children, err := h.service.ListChildren(r.Context(), access.ActorFrom(r.Context()), facilityID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, children)
}

func (h *ChildHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	child, err := h.service.GetChild(r.Context(), access.ActorFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req models.UpdateChildRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, r, err)
		return
	}
	child, err := h.service.UpdateChild(r.Context(), access.ActorFrom(r.Context()), id, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	deleted, err := h.service.DeleteChild(r.Context(), access.ActorFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *ChildHandler) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	measurements, err := h.service.ListMeasurements(r.Context(), access.ActorFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, measurements)
}

func (h *ChildHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	measurement, err := h.service.LatestMeasurement(r.Context(), access.ActorFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, measurement)
}
