package domain

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Text       *string
	Notes      *string
	DueDate    *Date
	Category   *string
	Priority   *Priority
	Recurrence *Recurrence
	Completed  *bool
	IsShared   *bool
	SharedWith *[]string
}

func (p TaskPatch) IsEmpty() bool {
	return p.Completed == nil && !p.hasOwnerFields()
}

// OnlyCompletion reports whether the patch is the completion toggle that
// shared recipients are allowed to make.
func (p TaskPatch) OnlyCompletion() bool {
	return p.Completed != nil && !p.hasOwnerFields()
}

func (p TaskPatch) hasOwnerFields() bool {
	return p.Text != nil || p.Notes != nil || p.DueDate != nil || p.Category != nil ||
		p.Priority != nil || p.Recurrence != nil || p.IsShared != nil || p.SharedWith != nil
}

// TouchesSharing reports whether the patch changes who can see the task.
func (p TaskPatch) TouchesSharing() bool {
	return p.IsShared != nil || p.SharedWith != nil
}
