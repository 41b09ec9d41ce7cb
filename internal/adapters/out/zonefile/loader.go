// Package zonefile loads zone definitions for the zone resolver from a JSON
// document whose areas are GeoJSON geometries.
package zonefile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dispatch/internal/core/domain/services"

	"github.com/paulmach/orb/geojson"
)

// Document is the on-disk format:
//
//	{"zones": [{"id": "san-roque", "name": "San Roque", "aliases": ["sanroque"],
//	            "area": {"type": "Polygon", "coordinates": [[[123.90, 10.30], ...]]}}]}
type Document struct {
	Zones []ZoneDTO `json:"zones"`
}

type ZoneDTO struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Aliases []string          `json:"aliases,omitempty"`
	Area    *geojson.Geometry `json:"area,omitempty"`
}

// Load reads zones from path. An empty path yields Defaults.
func Load(path string) ([]services.Zone, error) {
	if path == "" {
		return Defaults(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zones file: %w", err)
	}
	defer f.Close()

	zones, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("zones file %s: %w", path, err)
	}
	return zones, nil
}

func Parse(r io.Reader) ([]services.Zone, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}

	zones := make([]services.Zone, 0, len(doc.Zones))
	for _, dto := range doc.Zones {
		zone := services.Zone{
			ID:      dto.ID,
			Name:    dto.Name,
			Aliases: dto.Aliases,
		}
		if dto.Area != nil {
			zone.Area = dto.Area.Geometry()
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// Defaults is the built-in zone set used when no file is configured. It has
// names and aliases only, so coordinates never resolve.
func Defaults() []services.Zone {
	return []services.Zone{
		{ID: "poblacion", Name: "Poblacion", Aliases: []string{"town proper"}},
		{ID: "san-roque", Name: "San Roque"},
		{ID: "san-roque-norte", Name: "San Roque Norte"},
		{ID: "lahug", Name: "Lahug"},
		{ID: "mabolo", Name: "Mabolo"},
	}
}
