package kanban

import (
	"errors"
	"fmt"

	"github.com/chepyr/go-kanban/internal/access"
	"github.com/chepyr/go-kanban/internal/db"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrUsernameTaken = errors.New("username already taken")
)

// ValidationError reports malformed caller input. It is returned before any
// database access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func decisionErr(d access.Decision) error {
	switch d {
	case access.Allowed:
		return nil
	case access.Forbidden:
		return ErrForbidden
	default:
		return ErrNotFound
	}
}

// translate maps repository errors to service errors. A row that vanished
// between the ownership check and the write surfaces as ErrNotFound.
func translate(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
