package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
	gatewayauth "github.com/growthwatch/platform/pkg/gateway/auth"
	"github.com/growthwatch/platform/pkg/gateway/middleware"
	"github.com/growthwatch/platform/pkg/identity"
)

type AuthHandler struct {
	service     *identity.Service
	tokenSigner *gatewayauth.JWTManager
}

func NewAuthHandler(service *identity.Service, tokenSigner *gatewayauth.JWTManager) *AuthHandler {
	return &AuthHandler{service: service, tokenSigner: tokenSigner}
}

// RegisterPublic mounts the routes reachable without a token.
func (h *AuthHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/bootstrap", h.handleBootstrap).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", h.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/facilities", h.handleListFacilities).Methods(http.MethodGet)
	r.HandleFunc("/workers", h.handleListWorkers).Methods(http.MethodGet)
	r.HandleFunc("/workers", h.handleRegisterWorker).Methods(http.MethodPost)
	r.HandleFunc("/workers/{id:[0-9]+}", h.handleDeleteWorker).Methods(http.MethodDelete)
}

func (h *AuthHandler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req models.BootstrapRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}

	facilities, user, err := h.service.Bootstrap(r.Context(), req)
	if err != nil {
		logger.Log.WithError(err).Warn("bootstrap failed")
		respondError(w, r, err)
		return
	}

	token, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		respondError(w, r, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusCreated, models.BootstrapResponse{
		Facilities: facilities,
		User:       user,
		Token:      token,
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		logger.Log.WithError(err).Warn("authentication failed")
		respondError(w, r, err)
		return
	}

	token, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		respondError(w, r, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusOK, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := access.ActorFrom(r.Context())
	if actor == nil {
		respondError(w, r, apperr.ErrUnauthenticated)
		return
	}

	user, err := h.service.GetUser(r.Context(), actor.UserID)
	if err != nil {
		respondError(w, r, apperr.ErrUnauthenticated)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		respondError(w, r, apperr.ErrUnauthenticated)
		return
	}
	if err := h.tokenSigner.Revoke(r.Context(), claims); err != nil {
		respondError(w, r, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (h *AuthHandler) handleListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.service.ListFacilities(r.Context(), access.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, facilities)
}

func (h *AuthHandler) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.service.ListWorkers(r.Context(), access.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, workers)
}

func (h *AuthHandler) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterWorkerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.service.RegisterWorker(r.Context(), access.ActorFrom(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	deleted, err := h.service.DeleteWorker(r.Context(), access.ActorFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}
