package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"tasksync-backend/pkg/apperr"
)

const (
	MaxHandleLength      = 32
	MaxDisplayNameLength = 64
	MinPasswordLength    = 6
)

// NormalizeHandle trims, NFKC-folds and lowercases a raw handle so that
// visually identical handles map to the same account.
func NormalizeHandle(raw string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(raw)))
}

// ValidateHandle checks an already normalized handle.
func ValidateHandle(handle string) error {
	n := utf8.RuneCountInString(handle)
	if n == 0 {
		return apperr.Invalid("handle is required")
	}
	if n > MaxHandleLength {
		return apperr.Invalid("handle must be at most %d characters", MaxHandleLength)
	}
	// handles double as document ids in the hosted store
	if handle == "." || handle == ".." || (strings.HasPrefix(handle, "__") && strings.HasSuffix(handle, "__")) {
		return apperr.Invalid("handle is reserved")
	}
	for _, r := range handle {
		if unicode.IsSpace(r) || r == '/' || unicode.IsControl(r) {
			return apperr.Invalid("handle contains invalid characters")
		}
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Invalid("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// CleanDisplayName trims a display name and checks its length.
func CleanDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperr.Invalid("display name is required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", apperr.Invalid("display name must be at most %d characters", MaxDisplayNameLength)
	}
	return name, nil
}
