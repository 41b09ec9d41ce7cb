package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// UnknownZone is the pool for orders whose address matched no zone.
const UnknownZone = "unknown-zone"

// sentinels are explicit zone values that carry no information.
var sentinels = map[string]struct{}{
	"":             {},
	"unknown":      {},
	UnknownZone:    {},
	"unknown zone": {},
	"n/a":          {},
	"na":           {},
	"none":         {},
	"null":         {},
}

// IsUnknownZone reports whether zone is empty or a sentinel value.
func IsUnknownZone(zone string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(zone))]
	return ok
}

// Zone is one configured delivery area. Area may be nil, an orb.Polygon or
// an orb.MultiPolygon.
type Zone struct {
	ID      string
	Name    string
	Aliases []string
	Area    orb.Geometry
}

type zoneTerm struct {
	term   string
	zoneID string
}

// ZoneResolver maps addresses to zone ids. It is immutable after construction
// and safe for concurrent use.
type ZoneResolver struct {
	zones []Zone
	// canonical maps lower-cased ids, names and aliases to zone ids
	canonical map[string]string
	// terms is sorted by descending length for longest-match search
	terms []zoneTerm
}

func NewZoneResolver(zones []Zone) (*ZoneResolver, error) {
	r := &ZoneResolver{canonical: make(map[string]string)}

	var errList []error
	for i, z := range zones {
		z.ID = strings.TrimSpace(z.ID)
		if IsUnknownZone(z.ID) {
			errList = append(errList, errs.NewValueIsInvalidErrorWithCause("zone id", fmt.Errorf("zone %d has a sentinel id %q", i, z.ID)))
			continue
		}
		if err := validateArea(z.Area); err != nil {
			errList = append(errList, fmt.Errorf("zone %s: %w", z.ID, err))
			continue
		}
		for _, term := range append([]string{z.ID, z.Name}, z.Aliases...) {
			key := strings.ToLower(strings.TrimSpace(term))
			if key == "" {
				continue
			}
			if owner, dup := r.canonical[key]; dup && owner != z.ID {
				errList = append(errList, errs.NewValueIsInvalidErrorWithCause("zone alias",
					fmt.Errorf("%q is used by %s and %s", term, owner, z.ID)))
				continue
			}
			if _, dup := r.canonical[key]; !dup {
				r.canonical[key] = z.ID
				r.terms = append(r.terms, zoneTerm{term: key, zoneID: z.ID})
			}
		}
		r.zones = append(r.zones, z)
	}
	if err := errors.Join(errList...); err != nil {
		return nil, err
	}

	sort.SliceStable(r.terms, func(i, j int) bool {
		return len(r.terms[i].term) > len(r.terms[j].term)
	})

	return r, nil
}

// Zones returns the configured zones in configuration order.
func (r *ZoneResolver) Zones() []Zone {
	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// Resolve never fails. It tries, in order, the explicit zone field, the
// longest known zone name inside the address line, polygon containment of
// the coordinates and finally UnknownZone.
func (r *ZoneResolver) Resolve(addr order.Address) string {
	if zone, ok := r.fromExplicit(addr.Zone()); ok {
		return zone
	}
	if zone, ok := r.fromLine(addr.Line()); ok {
		return zone
	}
	if p, ok := addr.Point(); ok {
		if zone, ok := r.fromPoint(p.Point()); ok {
			return zone
		}
	}
	return UnknownZone
}

// Canonical maps a zone id, name or alias to its zone id.
func (r *ZoneResolver) Canonical(value string) (string, bool) {
	zone, ok := r.canonical[strings.ToLower(strings.TrimSpace(value))]
	return zone, ok
}

func (r *ZoneResolver) fromExplicit(value string) (string, bool) {
	if IsUnknownZone(value) {
		return "", false
	}
	if zone, ok := r.Canonical(value); ok {
		return zone, true
	}
	return strings.TrimSpace(value), true
}

func (r *ZoneResolver) fromLine(line string) (string, bool) {
	line = strings.ToLower(line)
	if line == "" {
		return "", false
	}
	for _, t := range r.terms {
		if strings.Contains(line, t.term) {
			return t.zoneID, true
		}
	}
	return "", false
}

func (r *ZoneResolver) fromPoint(p orb.Point) (string, bool) {
	for _, z := range r.zones {
		switch area := z.Area.(type) {
		case orb.Polygon:
			if planar.PolygonContains(area, p) {
				return z.ID, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(area, p) {
				return z.ID, true
			}
		}
	}
	return "", false
}

func validateArea(area orb.Geometry) error {
	switch a := area.(type) {
	case nil:
		return nil
	case orb.Polygon:
		if len(a) == 0 || len(a[0]) < 4 {
			return errs.NewValueIsInvalidErrorWithCause("zone area", errors.New("polygon needs a closed outer ring"))
		}
		return nil
	case orb.MultiPolygon:
		for _, poly := range a {
			if err := validateArea(poly); err != nil {
				return err
			}
		}
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("zone area", fmt.Errorf("%s is not a polygon", area.GeoJSONType()))
	}
}
