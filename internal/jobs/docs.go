// Package jobs provides scheduled background tasks for the dispatch service.
//
// Jobs use github.com/robfig/cron/v3 with six-field expressions (seconds
// first). A tick that fires while the previous run is still going is skipped.
//
// # Available Jobs
//
// 1. ConsolidationJob - merges under-filled pending batches of a zone, splits
// overweight batches and corrects drifted totals (default every 5 minutes)
// 2. UnassignedSweepJob - re-submits approved orders without a batch to the
// assignment engine (default every 30 seconds)
// 3. DriverAssignmentJob - binds free drivers from the roster to batches that
// are ready for delivery, oldest first (default every 10 seconds)
//
// # Usage
//
//	jobManager := jobs.NewDefaultJobManager(consolidationHandler, sweepHandler,
//		driverHandler, jobs.Settings{SweepLimit: 500}, logger)
//
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
//
// # Error Handling
//
// - Consolidation failures of single zones are logged; the rest of the pass
// is kept
// - Sweep failures only concern listing the orders; per-order failures are
// counted by the sweep itself
// - An empty driver roster is expected and only logged at debug level
// - Failed job starts will stop any already running jobs
package jobs
