package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chepyr/go-kanban/internal/auth"
)

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ip := clientIP(r, h.TrustProxy)
	if h.RateLimiter != nil {
		allowed, err := h.RateLimiter.Allow(ctx, ip)
		if err != nil {
			h.fail(w, r, err, "")
			return
		}
		if !allowed {
			h.logger(r).WithField("ip", ip).Warn("sign-in rate limit exceeded")
			sendError(w, "Too many sign-in attempts. Please try again later.", http.StatusTooManyRequests)
			return
		}
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if isJSONContentType(r) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			sendError(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	} else {
		input.Username, input.Password = r.FormValue("username"), r.FormValue("password")
	}
	username, password := input.Username, input.Password
	if username == "" || password == "" {
		sendError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	customer, err := h.Service.SignIn(ctx, username, password)
	if err != nil {
		h.fail(w, r, err, "Customer")
		return
	}
	token, err := h.Tokens.Issue(customer.Username)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	h.logger(r).WithField("customer_id", customer.ID).Info("customer signed in")
	sendJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: auth.TokenType})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Service.Ping(ctx); err != nil {
		h.logger(r).WithError(err).Error("database ping failed")
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
