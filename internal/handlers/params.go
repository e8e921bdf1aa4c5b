package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/chepyr/go-kanban/internal/kanban"
)

func parseID(field, raw string) (int64, error) {
	if raw == "" {
		return 0, &kanban.ValidationError{Field: field, Message: "is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &kanban.ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	return parseID("id", mux.Vars(r)["id"])
}

func formID(r *http.Request, field string) (int64, error) {
	return parseID(field, strings.TrimSpace(r.FormValue(field)))
}

func parsePosition(raw string) (int64, error) {
	position, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || position < 0 {
		return 0, &kanban.ValidationError{Field: "position", Message: "must be a non-negative integer"}
	}
	return position, nil
}

func formPosition(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.FormValue("position"))
	if raw == "" {
		return 0, &kanban.ValidationError{Field: "position", Message: "is required"}
	}
	return parsePosition(raw)
}

// optionalPosition returns nil when the position parameter is absent.
func optionalPosition(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.FormValue("position"))
	if raw == "" {
		return nil, nil
	}
	position, err := parsePosition(raw)
	if err != nil {
		return nil, err
	}
	return &position, nil
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}
