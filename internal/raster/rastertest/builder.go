// Package rastertest builds small GeoTIFF fixtures for tests.
package rastertest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// SampleType selects the on-disk pixel encoding.
type SampleType int

// Supported fixture sample types
const (
	Float32 SampleType = iota
	Int16
	Uint8
)

// Spec describes a single-band GeoTIFF fixture. Values are row-major and
// must hold Width*Height entries.
type Spec struct {
	Width, Height int
	Values        []float64
	Type          SampleType

	// OriginX/OriginY is the model coordinate of the top-left corner
	OriginX, OriginY float64
	PixelSize        float64

	// NoData is written to the GDAL_NODATA tag when non-empty
	NoData string

	Deflate   bool
	Predictor int

	// TileSize > 0 writes a tiled layout, otherwise strips of RowsPerStrip rows
	TileSize     int
	RowsPerStrip int
}

// Grid returns a Spec of w x h pixels of size 1 with the top-left corner at
// (0, h), so pixel (col, row) covers [col, col+1] x [h-row-1, h-row].
func Grid(w, h int, values []float64) Spec {
	return Spec{
		Width: w, Height: h, Values: values,
		OriginX: 0, OriginY: float64(h), PixelSize: 1,
	}
}

// Write encodes spec into dir and returns the file path.
func Write(t testing.TB, dir string, spec Spec) string {
	t.Helper()

	path := filepath.Join(dir, "fixture.tif")
	require.NoError(t, os.WriteFile(path, Encode(t, spec), 0o600))
	return path
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Encode returns the bytes of a little-endian classic TIFF for spec.
func Encode(t testing.TB, spec Spec) []byte {
	t.Helper()
	require.Len(t, spec.Values, spec.Width*spec.Height, "fixture values")

	le := binary.LittleEndian
	size, bits, format := sampleLayout(spec.Type)

	blockW, blockH := spec.Width, spec.RowsPerStrip
	if blockH <= 0 {
		blockH = spec.Height
	}
	if spec.TileSize > 0 {
		blockW, blockH = spec.TileSize, spec.TileSize
	}
	across := (spec.Width + blockW - 1) / blockW
	down := (spec.Height + blockH - 1) / blockH

	var body bytes.Buffer
	body.Write([]byte{'I', 'I', 42, 0, 0, 0, 0, 0})

	var offsets, counts []uint32
	for by := 0; by < down; by++ {
		for bx := 0; bx < across; bx++ {
			rows := blockH
			if spec.TileSize == 0 && (by+1)*blockH > spec.Height {
				rows = spec.Height - by*blockH
			}

			block := make([]byte, blockW*rows*size)
			for y := 0; y < rows; y++ {
				for x := 0; x < blockW; x++ {
					gx, gy := bx*blockW+x, by*blockH+y
					if gx >= spec.Width || gy >= spec.Height {
						continue
					}
					putSample(block[(y*blockW+x)*size:], spec.Type, spec.Values[gy*spec.Width+gx])
				}
			}

			switch spec.Predictor {
			case 2:
				applyHorizontal(block, blockW, size)
			case 3:
				applyFloatingPoint(block, blockW, size)
			}

			if spec.Deflate {
				var zb bytes.Buffer
				zw := zlib.NewWriter(&zb)
				_, err := zw.Write(block)
				require.NoError(t, err)
				require.NoError(t, zw.Close())
				block = zb.Bytes()
			}

			offsets = append(offsets, uint32(body.Len()))
			counts = append(counts, uint32(len(block)))
			body.Write(block)
		}
	}

	compression := uint16(1)
	if spec.Deflate {
		compression = 8
	}
	predictor := uint16(1)
	if spec.Predictor > 0 {
		predictor = uint16(spec.Predictor)
	}

	entries := []entry{
		shortEntry(256, uint16(spec.Width)),
		shortEntry(257, uint16(spec.Height)),
		shortEntry(258, bits),
		shortEntry(259, compression),
		shortEntry(262, 1),
		shortEntry(277, 1),
		shortEntry(317, predictor),
		shortEntry(339, format),
		doubleEntry(33550, spec.PixelSize, spec.PixelSize, 0),
		doubleEntry(33922, 0, 0, 0, spec.OriginX, spec.OriginY, 0),
	}
	if spec.TileSize > 0 {
		entries = append(entries,
			shortEntry(322, uint16(blockW)),
			shortEntry(323, uint16(blockH)),
			longEntry(324, offsets...),
			longEntry(325, counts...),
		)
	} else {
		entries = append(entries,
			longEntry(273, offsets...),
			shortEntry(278, uint16(blockH)),
			longEntry(279, counts...),
		)
	}
	if spec.NoData != "" {
		data := append([]byte(spec.NoData), 0)
		entries = append(entries, entry{tag: 42113, typ: 2, count: uint32(len(data)), data: data})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// IFD goes after the pixel data, overflow values after the IFD
	ifdOffset := uint32(body.Len())
	extraOffset := ifdOffset + 2 + uint32(len(entries))*12 + 4

	var ifd, extra bytes.Buffer
	_ = binary.Write(&ifd, le, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&ifd, le, e.tag)
		_ = binary.Write(&ifd, le, e.typ)
		_ = binary.Write(&ifd, le, e.count)
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			ifd.Write(v)
			continue
		}
		_ = binary.Write(&ifd, le, extraOffset+uint32(extra.Len()))
		extra.Write(e.data)
	}
	_ = binary.Write(&ifd, le, uint32(0))

	out := body.Bytes()
	le.PutUint32(out[4:8], ifdOffset)
	out = append(out, ifd.Bytes()...)
	return append(out, extra.Bytes()...)
}

func sampleLayout(typ SampleType) (size int, bits, format uint16) {
	switch typ {
	case Int16:
		return 2, 16, 2
	case Uint8:
		return 1, 8, 1
	default:
		return 4, 32, 3
	}
}

func putSample(b []byte, typ SampleType, v float64) {
	switch typ {
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case Uint8:
		b[0] = uint8(v)
	default:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

func applyHorizontal(data []byte, width, size int) {
	le := binary.LittleEndian
	rowBytes := width * size
	for row := 0; row+rowBytes <= len(data); row += rowBytes {
		b := data[row : row+rowBytes]
		for i := width - 1; i > 0; i-- {
			switch size {
			case 1:
				b[i] -= b[i-1]
			case 2:
				le.PutUint16(b[i*2:], le.Uint16(b[i*2:])-le.Uint16(b[(i-1)*2:]))
			case 4:
				le.PutUint32(b[i*4:], le.Uint32(b[i*4:])-le.Uint32(b[(i-1)*4:]))
			}
		}
	}
}

func applyFloatingPoint(data []byte, width, size int) {
	rowBytes := width * size
	tmp := make([]byte, rowBytes)
	for row := 0; row+rowBytes <= len(data); row += rowBytes {
		b := data[row : row+rowBytes]
		// Split little-endian samples into big-endian byte planes
		for s := 0; s < width; s++ {
			for k := 0; k < size; k++ {
				tmp[k*width+s] = b[s*size+(size-1-k)]
			}
		}
		copy(b, tmp)
		for i := rowBytes - 1; i > 0; i-- {
			b[i] -= b[i-1]
		}
	}
}

func shortEntry(tag, v uint16) entry {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return entry{tag: tag, typ: 3, count: 1, data: data}
}

func longEntry(tag uint16, vals ...uint32) entry {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return entry{tag: tag, typ: 4, count: uint32(len(vals)), data: data}
}

func doubleEntry(tag uint16, vals ...float64) entry {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return entry{tag: tag, typ: 12, count: uint32(len(vals)), data: data}
}
