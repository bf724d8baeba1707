package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync-backend/pkg/apperr"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date("2024-02-29"), d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	for _, bad := range []string{"2023-02-29", "01/02/2024", "2024-1-2"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, bad)
	}
}

func TestRecurrenceNext(t *testing.T) {
	cases := []struct {
		recurrence Recurrence
		from, want Date
	}{
		{RecurrenceDaily, "2024-02-28", "2024-02-29"},
		{RecurrenceDaily, "2024-12-31", "2025-01-01"},
		{RecurrenceWeekly, "2024-01-29", "2024-02-05"},
		{RecurrenceMonthly, "2024-01-01", "2024-02-01"},
		{RecurrenceMonthly, "2024-01-31", "2024-02-29"},
		{RecurrenceMonthly, "2023-01-31", "2023-02-28"},
		{RecurrenceMonthly, "2024-03-31", "2024-04-30"},
		{RecurrenceMonthly, "2024-12-15", "2025-01-15"},
		{RecurrenceNone, "2024-01-01", "2024-01-01"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.recurrence.Next(tc.from), "%s from %s", tc.recurrence, tc.from)
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	instant := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, Date("2024-01-01"), DateOf(instant))
	assert.Equal(t, Date("2024-01-02"), DateOf(instant.In(loc)))
}
