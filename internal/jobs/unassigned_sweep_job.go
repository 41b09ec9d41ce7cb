package jobs

import (
	"context"
	"log/slog"

	"dispatch/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "*/30 * * * * *"

type sweepRunner interface {
	Handle(ctx context.Context, cmd commands.SweepUnassignedCommand) (commands.SweepReport, error)
}

// UnassignedSweepJob re-submits approved orders without a batch, covering
// assignments that failed with a retryable error.
type UnassignedSweepJob struct {
	handler  sweepRunner
	schedule string
	limit    int
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewUnassignedSweepJob(handler sweepRunner, schedule string, limit int, logger *slog.Logger) *UnassignedSweepJob {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &UnassignedSweepJob{
		handler:  handler,
		schedule: schedule,
		limit:    limit,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With("component", "unassigned_sweep_job"),
	}
}

func (j *UnassignedSweepJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.run(context.Background()) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Unassigned sweep job started", "schedule", j.schedule, "limit", j.limit)
	return nil
}

func (j *UnassignedSweepJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Unassigned sweep job stopped")
}

func (j *UnassignedSweepJob) run(ctx context.Context) {
	cmd, err := commands.NewSweepUnassignedCommand(j.limit)
	if err != nil {
		j.logger.ErrorContext(ctx, "Unassigned sweep misconfigured", "error", err)
		return
	}

	if _, err = j.handler.Handle(ctx, cmd); err != nil {
		j.logger.ErrorContext(ctx, "Unassigned sweep failed", "error", err)
	}
}
