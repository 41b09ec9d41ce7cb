package kernel

import (
	"errors"
	"fmt"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"

	"github.com/paulmach/orb"
)

// ErrGeoPointIsNotConstructed is returned by Validate for a zero-value GeoPoint.
var ErrGeoPointIsNotConstructed = errs.NewValueIsRequiredError("geo point must be created via NewGeoPoint")

// GeoPoint is a WGS84 coordinate. Only containment tests are made against it;
// no distances are computed.
type GeoPoint struct { //nolint:recvcheck // value object
	lat   float64
	lng   float64
	guard guard.ConstructorGuard
}

func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	var errLat, errLng error
	if lat < -90 || lat > 90 {
		errLat = errs.NewValueIsOutOfRangeError("latitude", lat, -90, 90)
	}
	if lng < -180 || lng > 180 {
		errLng = errs.NewValueIsOutOfRangeError("longitude", lng, -180, 180)
	}
	if err := errors.Join(errLat, errLng); err != nil {
		return GeoPoint{}, err
	}
	return GeoPoint{lat: lat, lng: lng, guard: guard.NewConstructorGuard()}, nil
}

func (p GeoPoint) Validate() error {
	return p.guard.Validate(ErrGeoPointIsNotConstructed)
}

func (p GeoPoint) Lat() float64 { return p.lat }

func (p GeoPoint) Lng() float64 { return p.lng }

// Point returns the coordinate in orb's (x=lng, y=lat) order.
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.lng, p.lat}
}

func (p GeoPoint) IsEqual(other GeoPoint) bool {
	return p.lat == other.lat && p.lng == other.lng
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("GeoPoint(%.6f,%.6f)", p.lat, p.lng)
}
