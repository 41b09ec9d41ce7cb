// Package order models the slice of a customer order that batch dispatch
// reads and writes. The order-management system owns everything else about an
// order.
//
// The package includes:
//   - Order: aggregate root with zone, frozen weight, batch membership and states
//   - Address: typed delivery address consumed only by zone resolution
//   - LineItem: product and quantity pairs the shipping weight is derived from
//   - ApprovalState and DeliveryState: the two independent order state machines
//
// Key business rules:
//   - zone and weight are frozen once set; zone changes only through an explicit re-resolve
//   - only approved orders with a frozen zone and weight join a batch
//   - batch membership changes only through attach, move (compaction) and detach
//   - delivery state mirrors the parent batch: pending -> assigned -> delivering -> delivered
package order
