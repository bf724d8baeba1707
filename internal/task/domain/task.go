package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"tasksync-backend/pkg/apperr"
)

const (
	MaxTextLength  = 500
	MaxNotesLength = 5000
)

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", apperr.Invalid("unknown priority %q", s)
	}
}

// Recurrence says how a task repeats once its due date passes.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RecurrenceNone, nil
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, nil
	default:
		return "", apperr.Invalid("unknown recurrence %q", s)
	}
}

// Next returns the due date following d.
func (r Recurrence) Next(d Date) Date {
	switch r {
	case RecurrenceDaily:
		return d.AddDays(1)
	case RecurrenceWeekly:
		return d.AddDays(7)
	case RecurrenceMonthly:
		return d.AddMonthsClamped(1)
	default:
		return d
	}
}

// Task is a to-do item. OwnerID never changes after creation. SharedWith
// is only meaningful while IsShared is set; in SQL it lives in task_shares.
type Task struct {
	ID           string     `json:"id" gorm:"primaryKey" firestore:"-"`
	OwnerID      string     `json:"owner_id" gorm:"index;not null" firestore:"ownerId"`
	Text         string     `json:"text" gorm:"not null" firestore:"text"`
	Notes        string     `json:"notes" firestore:"notes"`
	DueDate      Date       `json:"due_date,omitempty" gorm:"index" firestore:"dueDate"`
	Category     string     `json:"category" firestore:"category"`
	Priority     Priority   `json:"priority" gorm:"not null" firestore:"priority"`
	Recurrence   Recurrence `json:"recurrence" gorm:"not null" firestore:"recurrence"`
	Completed    bool       `json:"completed" gorm:"index" firestore:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" firestore:"completedAt"`
	IsShared     bool       `json:"is_shared" firestore:"isShared"`
	SharedWith   []string   `json:"shared_with" gorm:"-" firestore:"sharedWith"`
	RolledFromID string     `json:"rolled_from_id,omitempty" gorm:"index" firestore:"rolledFromId"`
	CreatedAt    time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time  `json:"updated_at" firestore:"updatedAt"`
}

// TaskShare is one recipient of a shared task. Position keeps the order
// the owner listed recipients in.
type TaskShare struct {
	TaskID    string `gorm:"primaryKey"`
	AccountID string `gorm:"primaryKey;index"`
	Position  int
}

// Clone returns a deep copy so that subscribers never share mutable state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.SharedWith != nil {
		c.SharedWith = append([]string(nil), t.SharedWith...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// SetCompleted flips the completion flag, stamping CompletedAt on
// false->true and clearing it on true->false. It reports whether anything
// changed.
func (t *Task) SetCompleted(completed bool, now time.Time) bool {
	if t.Completed == completed {
		return false
	}
	t.Completed = completed
	if completed {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	return true
}

// IsOverdue reports whether an incomplete task's due date is before today.
func (t *Task) IsOverdue(today Date) bool {
	return !t.Completed && !t.DueDate.IsZero() && t.DueDate.Before(today)
}

// IsRolloverDue reports whether the sweep should roll t over today.
func (t *Task) IsRolloverDue(today Date) bool {
	return t.Recurrence != RecurrenceNone &&
		!t.DueDate.IsZero() &&
		!t.DueDate.After(today) &&
		!t.Completed
}

// NextOccurrence copies t into the task that follows it in its series.
// The copy has no id and is not completed.
func (t *Task) NextOccurrence(now time.Time) *Task {
	next := t.Clone()
	next.ID = ""
	next.Completed = false
	next.CompletedAt = nil
	next.DueDate = t.Recurrence.Next(t.DueDate)
	next.RolledFromID = t.ID
	next.CreatedAt = now
	next.UpdatedAt = now
	return next
}

func CleanText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", apperr.Invalid("text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", apperr.Invalid("text must be at most %d characters", MaxTextLength)
	}
	return text, nil
}

func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return apperr.Invalid("notes must be at most %d characters", MaxNotesLength)
	}
	return nil
}

// NormalizeShares de-duplicates ids, drops blanks and the owner, and keeps
// the first-seen order.
func NormalizeShares(ownerID string, ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == ownerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
