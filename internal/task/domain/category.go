package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"tasksync-backend/pkg/apperr"
)

// DefaultCategory always exists and cannot be removed.
const DefaultCategory = "General"

// UncategorizedLabel is how a task without a category is shown and filtered.
const UncategorizedLabel = "Uncategorized"

const MaxCategoryLength = 40

// Category is a label owned by one account.
type Category struct {
	AccountID string    `json:"-" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

func CleanCategory(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperr.Invalid("category name is required")
	}
	if utf8.RuneCountInString(name) > MaxCategoryLength {
		return "", apperr.Invalid("category name must be at most %d characters", MaxCategoryLength)
	}
	if strings.EqualFold(name, UncategorizedLabel) {
		return "", apperr.Invalid("%q is reserved", UncategorizedLabel)
	}
	return name, nil
}

func IsDefaultCategory(name string) bool {
	return SameCategory(name, DefaultCategory)
}

// SameCategory reports whether two category names refer to the same
// category. Names compare without regard to case or surrounding space.
func SameCategory(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
