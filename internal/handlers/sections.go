package handlers

import (
	"context"
	"net/http"
)

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	boardID, err := formID(r, "boardId")
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	position, err := optionalPosition(r)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	section, err := h.Service.CreateSection(ctx, customer.ID, boardID, r.FormValue("title"), position)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	sendJSON(w, http.StatusOK, section)
}

func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	section, err := h.Service.RenameSection(ctx, customer.ID, id, r.FormValue("newTitle"))
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	sendJSON(w, http.StatusOK, section)
}

func (h *Handler) MoveSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	position, err := formPosition(r)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	section, err := h.Service.MoveSection(ctx, customer.ID, id, position)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	sendJSON(w, http.StatusOK, section)
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	section, err := h.Service.DeleteSection(ctx, customer.ID, id)
	if err != nil {
		h.fail(w, r, err, "Section")
		return
	}
	sendJSON(w, http.StatusOK, section)
}
