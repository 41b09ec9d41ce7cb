// Package kernel holds the value objects shared by every aggregate of the
// dispatch domain.
//
//   - UUID: identifier of orders, batches and drivers
//   - Weight: non-negative shipping weight in kilograms, three decimal places
//   - GeoPoint: WGS84 coordinate attached to a delivery address
//
// All of them are immutable, and their zero values fail Validate.
package kernel
