// Package batch models a capacity-bounded group of same-zone orders that is
// dispatched as one truck run.
//
// A batch is created lazily the first time its zone has no open batch that
// fits an incoming order. Its total weight is a cache of the member order
// weights and never exceeds the max capacity of its CapacityPolicy. Status
// follows
//
//	pending -> ready_for_delivery -> assigned -> delivering -> delivered
//	pending -> cancelled
//
// where the first step happens automatically once the total reaches the
// min threshold and the last one is derived from member delivery states.
package batch
