// Package ports defines the contracts between the dispatch core and its
// infrastructure: persistence of batches and orders, the product catalog,
// the driver roster, the lifecycle notifier and the per-zone lock.
package ports
