package domain

import (
	"math"
	"time"
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type DayCount struct {
	Day   string `json:"day"`
	Date  Date   `json:"date"`
	Count int    `json:"count"`
}

type CategoryCount struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Stats summarizes an account's own tasks for the dashboard.
type Stats struct {
	Total          int                      `json:"total"`
	Completed      int                      `json:"completed"`
	Active         int                      `json:"active"`
	Overdue        int                      `json:"overdue"`
	CompletionRate int                      `json:"completion_rate"`
	ByCategory     map[string]CategoryCount `json:"by_category"`
	ByPriority     map[Priority]int         `json:"by_priority"`
	Weekly         []DayCount               `json:"weekly"`
	Streak         int                      `json:"streak"`
	Level          int                      `json:"level"`
	XP             int                      `json:"xp"`
}

// ComputeStats evaluates dates in now's location. Weekly covers Monday to
// Sunday of the current week; Streak counts consecutive days with at least
// one completion, ending today.
func ComputeStats(tasks []*Task, now time.Time) Stats {
	today := DateOf(now)
	stats := Stats{
		ByCategory: make(map[string]CategoryCount),
		ByPriority: map[Priority]int{PriorityHigh: 0, PriorityMedium: 0, PriorityLow: 0},
	}

	monday := today.AddDays(-((int(now.Weekday()) + 6) % 7))
	stats.Weekly = make([]DayCount, 7)
	for i := range stats.Weekly {
		stats.Weekly[i] = DayCount{Day: weekdayLabels[i], Date: monday.AddDays(i)}
	}

	completionDays := make(map[Date]bool)
	for _, t := range tasks {
		stats.Total++
		stats.ByPriority[t.Priority]++

		category := t.Category
		if category == "" {
			category = UncategorizedLabel
		}
		cc := stats.ByCategory[category]
		cc.Total++

		if t.IsOverdue(today) {
			stats.Overdue++
		}
		if !t.Completed {
			stats.Active++
			stats.ByCategory[category] = cc
			continue
		}

		stats.Completed++
		cc.Completed++
		stats.ByCategory[category] = cc

		if t.CompletedAt == nil {
			continue
		}
		day := DateOf(t.CompletedAt.In(now.Location()))
		completionDays[day] = true
		for i := range stats.Weekly {
			if stats.Weekly[i].Date == day {
				stats.Weekly[i].Count++
			}
		}
	}

	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) * 100 / float64(stats.Total)))
	}
	for day := today; completionDays[day]; day = day.AddDays(-1) {
		stats.Streak++
	}
	stats.Level = stats.Completed/10 + 1
	stats.XP = (stats.Completed * 10) % 100
	return stats
}
