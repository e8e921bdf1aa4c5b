package handlers

import (
	"context"
	"net/http"
)

func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	boards, err := h.Service.ListBoards(ctx, customer.ID)
	if err != nil {
		h.fail(w, r, err, "Boards")
		return
	}
	sendJSON(w, http.StatusOK, boards)
}

func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Service.CreateBoard(ctx, customer.ID, r.FormValue("title"))
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	sendJSON(w, http.StatusOK, board)
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Service.GetBoard(ctx, customer.ID, id)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	sendJSON(w, http.StatusOK, board)
}

func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Service.RenameBoard(ctx, customer.ID, id, r.FormValue("newTitle"))
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	sendJSON(w, http.StatusOK, board)
}

func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	customer := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Service.DeleteBoard(ctx, customer.ID, id)
	if err != nil {
		h.fail(w, r, err, "Board")
		return
	}
	sendJSON(w, http.StatusOK, board)
}
