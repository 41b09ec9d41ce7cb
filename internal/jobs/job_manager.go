package jobs

import (
	"fmt"
	"log/slog"
	"time"
)

// Settings configures all jobs. Schedules are six-field cron expressions
// (seconds first); empty ones fall back to the defaults.
type Settings struct {
	ConsolidationSchedule string
	ConsolidationTimeout  time.Duration
	SweepSchedule         string
	SweepLimit            int

	DriverAssignmentSchedule string
	DriverAssignmentLimit    int
}

// JobManager coordinates all scheduled jobs in the application.
type JobManager struct {
	consolidationJob    *ConsolidationJob
	sweepJob            *UnassignedSweepJob
	driverAssignmentJob *DriverAssignmentJob
}

func NewJobManager(
	consolidationJob *ConsolidationJob,
	sweepJob *UnassignedSweepJob,
	driverAssignmentJob *DriverAssignmentJob,
) *JobManager {
	return &JobManager{
		consolidationJob:    consolidationJob,
		sweepJob:            sweepJob,
		driverAssignmentJob: driverAssignmentJob,
	}
}

// NewDefaultJobManager wires every job from its command handler.
func NewDefaultJobManager(
	consolidation consolidationRunner,
	sweep sweepRunner,
	drivers driverAssigner,
	settings Settings,
	logger *slog.Logger,
) *JobManager {
	return NewJobManager(
		NewConsolidationJob(consolidation, settings.ConsolidationSchedule, settings.ConsolidationTimeout, logger),
		NewUnassignedSweepJob(sweep, settings.SweepSchedule, settings.SweepLimit, logger),
		NewDriverAssignmentJob(drivers, settings.DriverAssignmentSchedule, settings.DriverAssignmentLimit, logger),
	)
}

// StartAll starts all scheduled jobs.
// Returns an error if any job fails to start.
func (jm *JobManager) StartAll() error {
	if err := jm.consolidationJob.Start(); err != nil {
		return fmt.Errorf("failed to start consolidation job: %w", err)
	}

	if err := jm.sweepJob.Start(); err != nil {
		// Stop already started jobs if this one fails
		jm.consolidationJob.Stop()
		return fmt.Errorf("failed to start unassigned sweep job: %w", err)
	}

	if err := jm.driverAssignmentJob.Start(); err != nil {
		jm.sweepJob.Stop()
		jm.consolidationJob.Stop()
		return fmt.Errorf("failed to start driver assignment job: %w", err)
	}

	return nil
}

// StopAll stops all scheduled jobs and waits for running ones.
func (jm *JobManager) StopAll() {
	jm.driverAssignmentJob.Stop()
	jm.sweepJob.Stop()
	jm.consolidationJob.Stop()
}
