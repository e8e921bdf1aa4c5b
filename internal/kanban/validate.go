package kanban

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
	MinPasswordLength    = 8
)

// ValidateTitle trims the title and checks its length.
func ValidateTitle(field, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid(field, "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", invalid(field, "must be at most %d characters", MaxTitleLength)
	}
	return title, nil
}

func ValidateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return invalid("description", "must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

func ValidatePosition(position int64) error {
	if position < 0 {
		return invalid("position", "must be non-negative")
	}
	return nil
}

func validateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", invalid("username", "is required")
	}
	if utf8.RuneCountInString(username) > MaxTitleLength {
		return "", invalid("username", "must be at most %d characters", MaxTitleLength)
	}
	if len(password) < MinPasswordLength {
		return "", invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	return username, nil
}
