// Package services holds the domain services of batch dispatch: logic that
// spans orders and batches or needs configuration no single aggregate owns.
//
// The package includes:
//   - ZoneResolver: maps an order.Address to a canonical zone id, never failing
//   - WeightCalculator: derives an order's shipping weight from its line items
//   - OrderDispatcher: picks the tightest fitting batch and attaches an order to it
//   - ConsolidationPlanner: pure merge, top-up and split planning for the repair job
package services
