package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/chepyr/go-kanban/internal/kanban"
	"github.com/chepyr/go-kanban/internal/models"
)

type contextKey int

const (
	customerKey contextKey = iota
	requestIDKey
)

const requestIDHeader = "X-Request-ID"

func customerFrom(ctx context.Context) *models.Customer {
	customer, _ := ctx.Value(customerKey).(*models.Customer)
	return customer
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (h *Handler) logger(r *http.Request) *log.Entry {
	return h.Logger.WithField("request_id", requestIDFrom(r.Context()))
}

/*
Validate the bearer token, load the customer named by its subject
and add the customer to the request context
*/
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			sendError(w, "Invalid Authorization header", http.StatusUnauthorized)
			return
		}
		username, err := h.Tokens.Validate(strings.TrimSpace(tokenString))
		if err != nil {
			sendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		customer, err := h.Service.CustomerByUsername(ctx, username)
		if errors.Is(err, kanban.ErrNotFound) {
			sendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if err != nil {
			h.fail(w, r, err, "Customer")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), customerKey, customer)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags the request with an id and logs it once served.
func (h *Handler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))
		next.ServeHTTP(rec, r)

		entry := h.logger(r).WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request served")
		} else if rec.status >= http.StatusBadRequest {
			entry.Debug("request served")
		} else {
			entry.Info("request served")
		}
	})
}

// clientIP returns the peer host. The first X-Forwarded-For entry is used
// only when trustProxy is set, since clients can send any value there.
func clientIP(r *http.Request, trustProxy bool) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); trustProxy && forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
