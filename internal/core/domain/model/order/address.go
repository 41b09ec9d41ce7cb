package order

import (
	"strings"

	"dispatch/internal/core/domain/model/kernel"
)

// Address is the typed delivery address payload. Every field is optional;
// zone resolution falls back through them in order.
type Address struct {
	zone  string
	line  string
	point *kernel.GeoPoint
}

// NewAddress trims the text fields. A point that fails validation is dropped.
func NewAddress(zone, line string, point *kernel.GeoPoint) Address {
	addr := Address{
		zone: strings.TrimSpace(zone),
		line: strings.TrimSpace(line),
	}
	if point != nil && point.Validate() == nil {
		p := *point
		addr.point = &p
	}
	return addr
}

// Zone is the explicitly supplied zone field, possibly empty or a sentinel.
func (a Address) Zone() string { return a.zone }

// Line is the free-text address line.
func (a Address) Line() string { return a.line }

// Point returns the coordinates and whether they are present.
func (a Address) Point() (kernel.GeoPoint, bool) {
	if a.point == nil {
		return kernel.GeoPoint{}, false
	}
	return *a.point, true
}

func (a Address) IsEmpty() bool {
	return a.zone == "" && a.line == "" && a.point == nil
}
