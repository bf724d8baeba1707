package domain

import (
	"sort"
	"strings"

	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/fuzzy"
)

type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusCompleted, StatusOverdue:
		return st, nil
	default:
		return "", apperr.Invalid("unknown status %q", s)
	}
}

// Filter narrows a visible task list. Zero fields match everything.
// Today is needed for StatusOverdue.
type Filter struct {
	Query    string
	Category string
	Status   Status
	Priority Priority
	Today    Date
}

func (f Filter) Matches(t *Task) bool {
	if f.Query != "" && !MatchesQuery(t, f.Query) {
		return false
	}
	if f.Category != "" {
		if f.Category == UncategorizedLabel {
			if t.Category != "" {
				return false
			}
		} else if !SameCategory(t.Category, f.Category) {
			return false
		}
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	switch f.Status {
	case StatusActive:
		return !t.Completed
	case StatusCompleted:
		return t.Completed
	case StatusOverdue:
		return t.IsOverdue(f.Today)
	}
	return true
}

// MatchesQuery is a typo-tolerant search over text, notes and category.
func MatchesQuery(t *Task, query string) bool {
	return fuzzy.MatchAny(query, t.Text, t.Notes, t.Category)
}

// Apply returns the tasks matching f, keeping order.
func (f Filter) Apply(tasks []*Task) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortTasks orders newest first, ties broken by id ascending.
func SortTasks(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
