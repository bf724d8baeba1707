package domain

import "slices"

// Mutability is what a viewer may change on a task.
type Mutability string

const (
	MutabilityNone         Mutability = "none"
	MutabilityCompleteOnly Mutability = "complete_only"
	MutabilityFull         Mutability = "full"
)

// IsVisible: the owner always sees a task; anyone else only while it is
// shared with them.
func IsVisible(t *Task, viewerID string) bool {
	if t == nil || viewerID == "" {
		return false
	}
	if t.OwnerID == viewerID {
		return true
	}
	return t.IsShared && slices.Contains(t.SharedWith, viewerID)
}

func MutabilityFor(t *Task, viewerID string) Mutability {
	switch {
	case t != nil && viewerID != "" && t.OwnerID == viewerID:
		return MutabilityFull
	case IsVisible(t, viewerID):
		return MutabilityCompleteOnly
	default:
		return MutabilityNone
	}
}

// Allows reports whether a viewer with this tier may apply p.
func (m Mutability) Allows(p TaskPatch) bool {
	switch m {
	case MutabilityFull:
		return true
	case MutabilityCompleteOnly:
		return p.OnlyCompletion()
	default:
		return false
	}
}

// View is a task as seen by one viewer.
type View struct {
	*Task
	Mutability Mutability `json:"mutability"`
}

func ViewFor(t *Task, viewerID string) View {
	return View{Task: t, Mutability: MutabilityFor(t, viewerID)}
}
