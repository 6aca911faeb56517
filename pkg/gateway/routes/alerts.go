package routes

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/alerts"
	"github.com/growthwatch/platform/pkg/common/apperr"
)

type AlertHandler struct {
	service *alerts.Service
}

func NewAlertHandler(service *alerts.Service) *AlertHandler {
	return &AlertHandler{service: service}
}

func (h *AlertHandler) Register(r *mux.Router) {
	r.HandleFunc("/alerts", h.handleList).Methods(http.MethodGet)
}

func (h *AlertHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var facilityID *int64
	if raw := query.Get("facility_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			respondError(w, r, err)
			return
		}
		facilityID = &id
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, r, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	list, err := h.service.List(r.Context(), access.ActorFrom(r.Context()), facilityID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}
