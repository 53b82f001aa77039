// Package zonal computes per-feature aggregate statistics of a raster over
// the footprint of a vector geometry. Areal geometries select the pixels
// whose centre falls inside them; points and lines select the pixels they
// touch.
package zonal

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/raster"
)

// ErrInvalidGeometry is returned for geometries with non-finite coordinates
// or of an unsupported type.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Source is the read side of a raster needed to compute statistics.
// *raster.Raster satisfies it.
type Source interface {
	WindowFor(minX, minY, maxX, maxY float64) raster.Window
	ScanWindow(w raster.Window, fn func(col, row int, v float64)) error
	PixelCenter(col, row int) (x, y float64)
	PixelAt(x, y float64) (col, row float64)
	Width() int
	Height() int
}

// footprint is the pixel selection of one geometry.
type footprint struct {
	areas  []orb.Polygon
	pixels map[[2]int]struct{}
}

// Stats computes the statistics of geom over src and labels the record
// with the feature's index and id.
func Stats(src Source, index int, featureID any, geom orb.Geometry) (domain.StatisticRecord, error) {
	var acc domain.Accumulator
	if geom == nil {
		return domain.StatisticRecord{}, fmt.Errorf("%w: missing geometry", ErrInvalidGeometry)
	}

	fp := footprint{pixels: make(map[[2]int]struct{})}
	if err := fp.add(src, geom); err != nil {
		return domain.StatisticRecord{}, err
	}

	b := geom.Bound()
	w := src.WindowFor(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	if w.Empty() {
		return acc.Record(index, featureID), nil
	}

	err := src.ScanWindow(w, func(col, row int, v float64) {
		if !math.IsNaN(v) && fp.covers(src, col, row) {
			acc.Add(v)
		}
	})
	if err != nil {
		return domain.StatisticRecord{}, fmt.Errorf("read raster window: %w", err)
	}

	return acc.Record(index, featureID), nil
}

func (fp *footprint) covers(src Source, col, row int) bool {
	if _, ok := fp.pixels[[2]int{col, row}]; ok {
		return true
	}
	if len(fp.areas) == 0 {
		return false
	}
	x, y := src.PixelCenter(col, row)
	pt := orb.Point{x, y}
	for _, poly := range fp.areas {
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return false
}

func (fp *footprint) add(src Source, geom orb.Geometry) error {
	if !finite(geom) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
	}

	switch g := geom.(type) {
	case orb.Point:
		fp.touch(src, g)
	case orb.MultiPoint:
		for _, p := range g {
			fp.touch(src, p)
		}
	case orb.LineString:
		fp.trace(src, g)
	case orb.MultiLineString:
		for _, ls := range g {
			fp.trace(src, ls)
		}
	case orb.Ring:
		fp.areas = append(fp.areas, orb.Polygon{g})
	case orb.Polygon:
		fp.areas = append(fp.areas, g)
	case orb.MultiPolygon:
		fp.areas = append(fp.areas, g...)
	case orb.Bound:
		fp.areas = append(fp.areas, g.ToPolygon())
	case orb.Collection:
		for _, member := range g {
			if err := fp.add(src, member); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unsupported type %s", ErrInvalidGeometry, geom.GeoJSONType())
	}
	return nil
}

// touch selects the pixel containing p, if it lies on the raster.
func (fp *footprint) touch(src Source, p orb.Point) {
	c, r := src.PixelAt(p[0], p[1])
	fp.touchPixel(src, c, r)
}

// trace selects every pixel a line string passes through by sampling each
// segment at half-pixel steps. Segments are first clipped to the raster, so
// the work per segment is bounded by the raster size, not the segment length.
func (fp *footprint) trace(src Source, ls orb.LineString) {
	if len(ls) == 1 {
		fp.touch(src, ls[0])
	}
	for i := 1; i < len(ls); i++ {
		ca, ra := src.PixelAt(ls[i-1][0], ls[i-1][1])
		cb, rb := src.PixelAt(ls[i][0], ls[i][1])

		t0, t1, ok := clipSegment(ca, ra, cb, rb, float64(src.Width()), float64(src.Height()))
		if !ok {
			continue
		}
		dc, dr := cb-ca, rb-ra
		c0, r0 := ca+t0*dc, ra+t0*dr
		c1, r1 := ca+t1*dc, ra+t1*dr

		steps := int(math.Ceil(2*math.Max(math.Abs(c1-c0), math.Abs(r1-r0)))) + 1
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			fp.touchPixel(src, c0+t*(c1-c0), r0+t*(r1-r0))
		}
	}
}

// touchPixel selects the pixel containing fractional position (c, r).
func (fp *footprint) touchPixel(src Source, c, r float64) {
	col, row := int(math.Floor(c)), int(math.Floor(r))
	if col < 0 || row < 0 || col >= src.Width() || row >= src.Height() {
		return
	}
	fp.pixels[[2]int{col, row}] = struct{}{}
}

// clipSegment clips the pixel-space segment (c0,r0)-(c1,r1) to the box
// [0,w] x [0,h] (Liang-Barsky) and returns the parameter range that lies
// inside it.
func clipSegment(c0, r0, c1, r1, w, h float64) (t0, t1 float64, ok bool) {
	t0, t1 = 0, 1
	dc, dr := c1-c0, r1-r0
	for _, edge := range [4][2]float64{
		{-dc, c0}, {dc, w - c0},
		{-dr, r0}, {dr, h - r0},
	} {
		p, q := edge[0], edge[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return t0, t1, true
}

func finite(geom orb.Geometry) bool {
	b := geom.Bound()
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
