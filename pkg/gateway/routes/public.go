package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/registry"
)

// PublicHandler serves the anonymous child report. Mount it on a rate-limited
// router without authentication.
type PublicHandler struct {
	service *registry.Service
}

func NewPublicHandler(service *registry.Service) *PublicHandler {
	return &PublicHandler{service: service}
}

func (h *PublicHandler) Register(r *mux.Router) {
	r.HandleFunc("/children", h.handleMissingToken).Methods(http.MethodGet)
	r.HandleFunc("/children/{token}", h.handleReport).Methods(http.MethodGet)
}

func (h *PublicHandler) handleMissingToken(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, apperr.Validation("token is required"))
}

func (h *PublicHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ResolveByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
