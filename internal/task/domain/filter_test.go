package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	today := Date("2024-01-10")
	rent := &Task{ID: "1", Text: "Pay rent", Category: "Home", Priority: PriorityHigh, DueDate: "2024-01-01"}
	gym := &Task{ID: "2", Text: "Gym", Priority: PriorityLow, Completed: true}
	notes := &Task{ID: "3", Text: "Call mom", Notes: "about the rent", Category: "Family", Priority: PriorityMedium}
	tasks := []*Task{rent, gym, notes}

	ids := func(ts []*Task) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "3"}, ids(Filter{Query: "rent"}.Apply(tasks)))
	assert.Equal(t, []string{"2"}, ids(Filter{Category: UncategorizedLabel}.Apply(tasks)))
	assert.Equal(t, []string{"1"}, ids(Filter{Category: "home"}.Apply(tasks)))
	assert.Equal(t, []string{"1", "3"}, ids(Filter{Status: StatusActive}.Apply(tasks)))
	assert.Equal(t, []string{"2"}, ids(Filter{Status: StatusCompleted}.Apply(tasks)))
	assert.Equal(t, []string{"1"}, ids(Filter{Status: StatusOverdue, Today: today}.Apply(tasks)))
	assert.Equal(t, []string{"2"}, ids(Filter{Priority: PriorityLow}.Apply(tasks)))
	assert.Len(t, Filter{}.Apply(tasks), 3)
}

func TestSortTasks(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []*Task{
		{ID: "b", CreatedAt: t0},
		{ID: "c", CreatedAt: t0.Add(time.Hour)},
		{ID: "a", CreatedAt: t0},
	}
	SortTasks(tasks)
	assert.Equal(t, "c", tasks[0].ID)
	assert.Equal(t, "a", tasks[1].ID)
	assert.Equal(t, "b", tasks[2].ID)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("")
	assert.NoError(t, err)
	assert.Equal(t, StatusAll, s)
	_, err = ParseStatus("archived")
	assert.Error(t, err)
}
