// Package guard detects domain values that were created as zero values instead
// of through their constructors.
package guard

import "errors"

// ErrDefaultConstructorGuard is returned by Validate when the caller passes no
// error of its own.
var ErrDefaultConstructorGuard = errors.New("object must be created via its constructor")

// ConstructorGuard is embedded in aggregates and value objects. Only
// NewConstructorGuard produces a guard that validates, so a zero-value struct
// fails Validate.
//
//	type Batch struct {
//	    id    kernel.UUID
//	    guard guard.ConstructorGuard
//	}
//
//	func (b *Batch) Validate() error {
//	    return b.guard.Validate(ErrBatchNotConstructed)
//	}
type ConstructorGuard struct {
	isConstructed bool
}

func NewConstructorGuard() ConstructorGuard {
	return ConstructorGuard{isConstructed: true}
}

// Validate returns nil for a constructed guard and validationError (or
// ErrDefaultConstructorGuard when it is nil) otherwise.
func (g ConstructorGuard) Validate(validationError error) error {
	if g.isConstructed {
		return nil
	}
	if validationError == nil {
		return ErrDefaultConstructorGuard
	}
	return validationError
}
