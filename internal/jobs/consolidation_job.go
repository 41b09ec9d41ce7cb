package jobs

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

const DefaultConsolidationSchedule = "0 */5 * * * *"

type consolidationRunner interface {
	Handle(ctx context.Context, cmd commands.RunConsolidationCommand) (commands.ConsolidationReport, error)
}

// ConsolidationJob runs the consolidation pass on a schedule. A run that is
// still going when the next tick fires makes that tick a no-op.
type ConsolidationJob struct {
	handler  consolidationRunner
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewConsolidationJob creates the job. Each pass gets timeout to finish; zero
// means no limit.
func NewConsolidationJob(
	handler consolidationRunner,
	schedule string,
	timeout time.Duration,
	logger *slog.Logger,
) *ConsolidationJob {
	if schedule == "" {
		schedule = DefaultConsolidationSchedule
	}
	return &ConsolidationJob{
		handler:  handler,
		schedule: schedule,
		timeout:  timeout,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With("component", "consolidation_job"),
	}
}

func (j *ConsolidationJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.run(context.Background()) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Consolidation job started", "schedule", j.schedule)
	return nil
}

// Stop waits for a running pass to finish.
func (j *ConsolidationJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Consolidation job stopped")
}

func (j *ConsolidationJob) run(ctx context.Context) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report, err := j.handler.Handle(ctx, commands.NewRunConsolidationCommand())
	if err != nil {
		// zone failures still leave the rest of the pass applied
		j.logger.ErrorContext(ctx, "Consolidation pass failed", "error", err, "report", report)
		return
	}
	if !report.IsEmpty() {
		j.logger.InfoContext(ctx, "Consolidation pass changed batches", "report", report)
	}
}
