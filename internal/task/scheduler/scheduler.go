package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	notificationdomain "tasksync-backend/internal/notification/domain"
	"tasksync-backend/internal/task/domain"
	"tasksync-backend/internal/task/repository"
)

const runTimeout = 2 * time.Minute

// ReminderNotifier delivers a notification at most once per dedupe key.
type ReminderNotifier interface {
	NotifyOnce(ctx context.Context, userID, dedupeKey string, kind notificationdomain.Type, message string, data map[string]string) (bool, error)
}

// TaskReminderScheduler tells owners, once a day, about their incomplete
// tasks due that day.
type TaskReminderScheduler struct {
	taskRepo repository.TaskRepository
	notifier ReminderNotifier
	location *time.Location
	cron     *cron.Cron
	spec     string
}

// NewTaskReminderScheduler creates a scheduler firing daily at at ("HH:MM")
// in location.
func NewTaskReminderScheduler(
	taskRepo repository.TaskRepository,
	notifier ReminderNotifier,
	at string,
	location *time.Location,
) (*TaskReminderScheduler, error) {
	spec, err := dailySpec(at)
	if err != nil {
		return nil, err
	}
	if location == nil {
		location = time.Local
	}
	return &TaskReminderScheduler{
		taskRepo: taskRepo,
		notifier: notifier,
		location: location,
		cron:     cron.New(cron.WithLocation(location)),
		spec:     spec,
	}, nil
}

// dailySpec turns "HH:MM" into a cron spec.
func dailySpec(at string) (string, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return "", fmt.Errorf("reminder time %q must be HH:MM: %w", at, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Start registers the daily job and starts the cron runner
func (s *TaskReminderScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.SendReminders(ctx, s.today()); err != nil {
			log.Printf("[Scheduler] Reminder run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	s.cron.Start()
	log.Printf("[Scheduler] Due-date reminders scheduled (%s, %s)", s.spec, s.location)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *TaskReminderScheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Scheduler stopped")
}

func (s *TaskReminderScheduler) today() domain.Date {
	return domain.DateOf(time.Now().In(s.location))
}

// SendReminders notifies owners of incomplete tasks due on date and
// returns how many reminders went out. Reminders already sent for the same
// task and date are skipped.
func (s *TaskReminderScheduler) SendReminders(ctx context.Context, date domain.Date) (int, error) {
	tasks, err := s.taskRepo.FindDueOn(ctx, date)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, task := range tasks {
		key := fmt.Sprintf("task_due:%s:%s", task.ID, date)
		message := fmt.Sprintf("\"%s\" is due today", task.Text)
		data := map[string]string{
			"task_id":  task.ID,
			"priority": string(task.Priority),
			"due_date": string(date),
		}

		ok, err := s.notifier.NotifyOnce(ctx, task.OwnerID, key, notificationdomain.TypeTaskDue, message, data)
		if err != nil {
			log.Printf("[Scheduler] Error sending reminder for task %s: %v", task.ID, err)
			continue
		}
		if ok {
			sent++
		}
	}

	if sent > 0 {
		log.Printf("[Scheduler] Sent %d reminders for %s", sent, date)
	}
	return sent, nil
}
