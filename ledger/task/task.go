// Package task holds the jobs a ledger node runs on a schedule.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
	"github.com/lightsparkdev/kylan-go/ledger"
)

// Reader is the read side of a ledger.
type Reader interface {
	GetAccount(ctx context.Context, address common.Address) (*ledger.Account, error)
	ProgramAccounts(ctx context.Context, owner common.Address) ([]*ledger.Account, error)
}

// Task is a task that is scheduled to run.
type Task struct {
	Name string
	// Duration is the duration between each run of the task.
	Duration time.Duration
	// Task is the function that is run when the task is scheduled.
	Task func(ctx context.Context, l Reader, programID common.Address) error
}

// AllTasks returns all the tasks that are scheduled to run.
func AllTasks(config *ledger.Config) []Task {
	var tasks []Task
	if config.AuditInterval > 0 {
		tasks = append(tasks, Task{
			Name:     "audit_custody",
			Duration: config.AuditInterval,
			Task: func(ctx context.Context, l Reader, programID common.Address) error {
				_, err := AuditCustody(ctx, l, programID)
				return err
			},
		})
	}
	return tasks
}

// Schedule adds tasks to s. A task never overlaps with its previous run.
func Schedule(ctx context.Context, s gocron.Scheduler, l Reader, programID common.Address, tasks []Task) error {
	logger := logging.GetLoggerFromContext(ctx)
	for _, task := range tasks {
		run := func() {
			taskLogger := logger.With("task", task.Name)
			if err := task.Task(logging.Inject(ctx, taskLogger), l, programID); err != nil {
				taskLogger.Error("Task failed", "error", err)
			}
		}
		_, err := s.NewJob(
			gocron.DurationJob(task.Duration),
			gocron.NewTask(run),
			gocron.WithName(task.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create job %s: %w", task.Name, err)
		}
		logger.Info("Scheduled task", slog.String("task", task.Name), slog.Duration("every", task.Duration))
	}
	return nil
}
