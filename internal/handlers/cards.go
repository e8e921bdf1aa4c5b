package handlers

import (
	"context"
	"encoding/json"
	"net/http"
)

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendError(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	sectionID, err := formID(r, "sectionId")
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	var description *string
	if r.Form.Has("description") {
		d := r.FormValue("description")
		description = &d
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	card, err := h.Service.CreateCard(ctx, customer.ID, sectionID, r.FormValue("title"), description)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	sendJSON(w, http.StatusOK, card)
}

// UpdateCard replaces title and description from a JSON body. An absent or
// null description clears it.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var input struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	card, err := h.Service.UpdateCard(ctx, customer.ID, id, input.Title, input.Description)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	sendJSON(w, http.StatusOK, card)
}

func (h *Handler) MoveCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	sectionID, err := formID(r, "sectionId")
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	position, err := formPosition(r)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	card, err := h.Service.MoveCard(ctx, customer.ID, id, sectionID, position)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	sendJSON(w, http.StatusOK, card)
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	card, err := h.Service.DeleteCard(ctx, customer.ID, id)
	if err != nil {
		h.fail(w, r, err, "Card")
		return
	}
	sendJSON(w, http.StatusOK, card)
}
