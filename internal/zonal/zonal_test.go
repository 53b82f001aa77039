package zonal

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/phrazzld/carbonstats/internal/raster"
	"github.com/phrazzld/carbonstats/internal/raster/rastertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGrid returns a 10x10 raster whose pixel (col, row) holds row*10+col.
func newGrid(t *testing.T, mutate func(vals []float64) string) *raster.Raster {
	t.Helper()

	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i)
	}
	fixture := rastertest.Grid(10, 10, vals)
	if mutate != nil {
		fixture.NoData = mutate(vals)
	}

	r, err := raster.NewRaster(bytes.NewReader(rastertest.Encode(t, fixture)))
	require.NoError(t, err)
	return r
}

func square(minX, minY, maxX, maxY float64) orb.Ring {
	return orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
}

func TestStatsPolygon(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	rec, err := Stats(src, 0, "a", orb.Polygon{square(2, 5, 5, 7)})
	require.NoError(t, err)

	assert.Equal(t, 6, rec.Count)
	assert.Equal(t, "a", rec.FeatureID)
	assert.Equal(t, 32.0, *rec.Min)
	assert.Equal(t, 44.0, *rec.Max)
	assert.Equal(t, 228.0, *rec.Sum)
	assert.Equal(t, 38.0, *rec.Mean)
}

func TestStatsPolygonWithHole(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	rec, err := Stats(src, 1, nil, orb.Polygon{square(0, 6, 4, 10), square(1, 7, 3, 9)})
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Count)
	assert.Equal(t, 1, rec.FeatureIndex)
}

func TestStatsPointsAndLines(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	rec, err := Stats(src, 0, nil, orb.Point{3.2, 8.7})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, 13.0, *rec.Mean)

	rec, err = Stats(src, 0, nil, orb.LineString{{0.5, 9.5}, {3.5, 9.5}})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Count)
	assert.Equal(t, 6.0, *rec.Sum)

	// Both points fall in the same pixel and count once
	rec, err = Stats(src, 0, nil, orb.MultiPoint{{3.2, 8.7}, {3.8, 8.1}})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
}

func TestStatsOutsideRaster(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	rec, err := Stats(src, 0, nil, orb.Polygon{square(50, 50, 60, 60)})
	require.NoError(t, err)
	assert.Zero(t, rec.Count)
	assert.Nil(t, rec.Mean)

	rec, err = Stats(src, 0, nil, orb.Point{-5, -5})
	require.NoError(t, err)
	assert.Zero(t, rec.Count)
}

func TestStatsSkipsNoData(t *testing.T) {
	t.Parallel()
	src := newGrid(t, func(vals []float64) string {
		vals[33] = -1
		return "-1"
	})

	rec, err := Stats(src, 0, nil, orb.Polygon{square(2, 5, 5, 7)})
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Count)
	assert.Equal(t, 195.0, *rec.Sum)
}

func TestStatsInvalidGeometry(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	_, err := Stats(src, 0, nil, orb.Point{math.NaN(), 1})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = Stats(src, 0, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestStatsLongLinesAreClippedToRaster(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	start := time.Now()

	// Row 4 end to end, with a far endpoint
	rec, err := Stats(src, 0, nil, orb.LineString{{0.5, 5.5}, {1e12, 5.5}})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Count)
	assert.Equal(t, 445.0, *rec.Sum)

	// Column 2 top to bottom, both endpoints far away
	rec, err = Stats(src, 0, nil, orb.LineString{{2.5, -1e12}, {2.5, 1e12}})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Count)
	assert.Equal(t, 470.0, *rec.Sum)

	// Never reaches the raster
	rec, err = Stats(src, 0, nil, orb.MultiLineString{{{-1e12, -1e12}, {1e12, -1e12}}})
	require.NoError(t, err)
	assert.Zero(t, rec.Count)

	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStatsWorldPolygon(t *testing.T) {
	t.Parallel()
	src := newGrid(t, nil)

	rec, err := Stats(src, 0, nil, orb.Polygon{square(-180, -90, 180, 90)})
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Count)
	assert.Equal(t, 4950.0, *rec.Sum)
}

func TestClipSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		c0, r0, c1, r1 float64
		t0, t1         float64
		ok             bool
	}{
		{"inside", 1, 1, 9, 9, 0, 1, true},
		{"exits right", 5, 5, 25, 5, 0, 0.25, true},
		{"enters and exits", -10, 5, 20, 5, 1.0 / 3, 2.0 / 3, true},
		{"parallel outside", -1, -5, 20, -5, 0, 0, false},
		{"misses", 20, 20, 30, 30, 0, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t0, t1, ok := clipSegment(tc.c0, tc.r0, tc.c1, tc.r1, 10, 10)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.InDelta(t, tc.t0, t0, 1e-9)
				assert.InDelta(t, tc.t1, t1, 1e-9)
			}
		})
	}
}
