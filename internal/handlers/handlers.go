package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/chepyr/go-kanban/internal/auth"
	"github.com/chepyr/go-kanban/internal/kanban"
	"github.com/chepyr/go-kanban/internal/ratelimit"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	Service     *kanban.Service
	Tokens      *auth.TokenManager
	RateLimiter ratelimit.Limiter
	Logger      *log.Logger
	// TrustProxy keys sign-in limits on X-Forwarded-For instead of the peer
	// address. Enable only behind a proxy that overwrites the header.
	TrustProxy bool
}

// NewRouter registers every route. All routes except /sign-in and /healthz
// require a bearer token.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestLogger)

	r.HandleFunc("/sign-in", h.SignIn).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(h.AuthMiddleware)

	api.HandleFunc("/boards", h.ListBoards).Methods(http.MethodGet)
	api.HandleFunc("/boards", h.CreateBoard).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}", h.GetBoard).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}", h.UpdateBoard).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}", h.DeleteBoard).Methods(http.MethodDelete)

	api.HandleFunc("/sections", h.CreateSection).Methods(http.MethodPost)
	api.HandleFunc("/sections/{id}", h.UpdateSection).Methods(http.MethodPut)
	api.HandleFunc("/sections/{id}", h.DeleteSection).Methods(http.MethodDelete)
	api.HandleFunc("/sections/{id}/move", h.MoveSection).Methods(http.MethodPut)

	api.HandleFunc("/cards", h.CreateCard).Methods(http.MethodPost)
	api.HandleFunc("/cards/{id}", h.UpdateCard).Methods(http.MethodPut)
	api.HandleFunc("/cards/{id}", h.DeleteCard).Methods(http.MethodDelete)
	api.HandleFunc("/cards/{id}/move", h.MoveCard).Methods(http.MethodPut)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, msg string, code int) {
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	sendJSON(w, code, errorResponse{Error: msg})
}

// fail maps a service error to its status code. entity names the resource
// in 404 messages.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, entity string) {
	var verr *kanban.ValidationError
	switch {
	case errors.As(err, &verr):
		sendError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, kanban.ErrNotFound):
		sendError(w, entity+" not found", http.StatusNotFound)
	case errors.Is(err, kanban.ErrForbidden):
		sendError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, auth.ErrInvalidCredentials):
		sendError(w, "Invalid username or password", http.StatusUnauthorized)
	default:
		h.logger(r).WithError(err).Error("request failed")
		sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}
