package jobs

import (
	"context"
	"errors"
	"log/slog"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/ports"

	"github.com/robfig/cron/v3"
)

const DefaultDriverAssignmentSchedule = "*/10 * * * * *"

type driverAssigner interface {
	Handle(ctx context.Context, cmd commands.AssignDriversCommand) (commands.DriverAssignmentReport, error)
}

// DriverAssignmentJob binds free drivers to batches that reached
// ready_for_delivery.
type DriverAssignmentJob struct {
	handler  driverAssigner
	schedule string
	limit    int
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewDriverAssignmentJob(handler driverAssigner, schedule string, limit int, logger *slog.Logger) *DriverAssignmentJob {
	if schedule == "" {
		schedule = DefaultDriverAssignmentSchedule
	}
	return &DriverAssignmentJob{
		handler:  handler,
		schedule: schedule,
		limit:    limit,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With("component", "driver_assignment_job"),
	}
}

func (j *DriverAssignmentJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.run(context.Background()) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Driver assignment job started", "schedule", j.schedule, "limit", j.limit)
	return nil
}

func (j *DriverAssignmentJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Driver assignment job stopped")
}

func (j *DriverAssignmentJob) run(ctx context.Context) {
	cmd, err := commands.NewAssignDriversCommand(j.limit)
	if err != nil {
		j.logger.ErrorContext(ctx, "Driver assignment misconfigured", "error", err)
		return
	}

	if _, err = j.handler.Handle(ctx, cmd); err != nil {
		// an empty roster is an expected outcome
		if errors.Is(err, ports.ErrNoDriverAvailable) {
			j.logger.DebugContext(ctx, "No driver available for ready batches")
			return
		}
		j.logger.ErrorContext(ctx, "Driver assignment failed", "error", err)
	}
}
