package pipeline

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/domain"
)

// Validate checks that fc is a non-empty collection whose features all
// carry a supported geometry. The returned error wraps domain.ErrInvalidInput.
func Validate(fc *geojson.FeatureCollection) error {
	if fc == nil {
		return fmt.Errorf("%w: missing feature collection", domain.ErrInvalidInput)
	}
	if len(fc.Features) == 0 {
		return fmt.Errorf("%w: feature collection has no features", domain.ErrInvalidInput)
	}

	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			return fmt.Errorf("%w: feature %d has no geometry", domain.ErrInvalidInput, i)
		}
		if !supported(f.Geometry) {
			return fmt.Errorf("%w: feature %d has unsupported geometry %s",
				domain.ErrInvalidInput, i, f.Geometry.GeoJSONType())
		}
	}
	return nil
}

func supported(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Point, orb.MultiPoint, orb.LineString, orb.MultiLineString,
		orb.Polygon, orb.MultiPolygon, orb.Bound:
		return true
	case orb.Collection:
		for _, child := range g {
			if !supported(child) {
				return false
			}
		}
		return true
	}
	return false
}
