package raster

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// TIFF tags read by this package
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGDALNoData          = 42113
)

// TIFF field types
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
	typeLong8     = 16
	typeSLong8    = 17
	typeIFD8      = 18
)

var typeSizes = map[uint16]uint64{
	typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8,
	typeSByte: 1, typeUndefined: 1, typeSShort: 2, typeSLong: 4, typeSRational: 8,
	typeFloat: 4, typeDouble: 8, typeLong8: 8, typeSLong8: 8, typeIFD8: 8,
}

// field is one decoded IFD entry with its raw value bytes.
type field struct {
	typ   uint16
	count uint64
	data  []byte
	order binary.ByteOrder
}

func (f field) uints() ([]uint64, error) {
	out := make([]uint64, 0, f.count)
	for i := uint64(0); i < f.count; i++ {
		switch f.typ {
		case typeByte, typeUndefined:
			out = append(out, uint64(f.data[i]))
		case typeShort:
			out = append(out, uint64(f.order.Uint16(f.data[i*2:])))
		case typeLong:
			out = append(out, uint64(f.order.Uint32(f.data[i*4:])))
		case typeLong8, typeIFD8:
			out = append(out, f.order.Uint64(f.data[i*8:]))
		default:
			return nil, fmt.Errorf("%w: integer field of type %d", ErrUnsupported, f.typ)
		}
	}
	return out, nil
}

func (f field) floats() ([]float64, error) {
	switch f.typ {
	case typeDouble:
		out := make([]float64, f.count)
		for i := range out {
			out[i] = math.Float64frombits(f.order.Uint64(f.data[i*8:]))
		}
		return out, nil
	case typeFloat:
		out := make([]float64, f.count)
		for i := range out {
			out[i] = float64(math.Float32frombits(f.order.Uint32(f.data[i*4:])))
		}
		return out, nil
	}

	ints, err := f.uints()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out, nil
}

func (f field) ascii() string {
	return strings.TrimRight(string(f.data), "\x00 ")
}

// directory holds the fields of the first IFD.
type directory struct {
	order  binary.ByteOrder
	fields map[uint16]field
}

func (d directory) has(tag uint16) bool {
	_, ok := d.fields[tag]
	return ok
}

// scalar returns the first value of an integer tag, or def when it is absent.
func (d directory) scalar(tag uint16, def uint64) (uint64, error) {
	f, ok := d.fields[tag]
	if !ok {
		return def, nil
	}
	vals, err := f.uints()
	if err != nil {
		return 0, fmt.Errorf("tag %d: %w", tag, err)
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

func (d directory) uints(tag uint16) ([]uint64, error) {
	f, ok := d.fields[tag]
	if !ok {
		return nil, fmt.Errorf("%w: missing tag %d", ErrUnsupported, tag)
	}
	return f.uints()
}

// readDirectory parses the TIFF or BigTIFF header and the first IFD.
func readDirectory(r io.ReaderAt) (directory, error) {
	header := make([]byte, 16)
	if _, err := r.ReadAt(header[:8], 0); err != nil {
		return directory{}, fmt.Errorf("read header: %w", err)
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return directory{}, ErrNotTIFF
	}

	var (
		big       bool
		ifdOffset uint64
	)
	switch order.Uint16(header[2:4]) {
	case 42:
		ifdOffset = uint64(order.Uint32(header[4:8]))
	case 43:
		big = true
		if _, err := r.ReadAt(header[8:16], 8); err != nil {
			return directory{}, fmt.Errorf("read bigtiff header: %w", err)
		}
		ifdOffset = order.Uint64(header[8:16])
	default:
		return directory{}, ErrNotTIFF
	}

	countSize, entrySize, inline := uint64(2), uint64(12), uint64(4)
	if big {
		countSize, entrySize, inline = 8, 20, 8
	}

	buf := make([]byte, countSize)
	if _, err := r.ReadAt(buf, int64(ifdOffset)); err != nil {
		return directory{}, fmt.Errorf("read IFD count: %w", err)
	}
	var n uint64
	if big {
		n = order.Uint64(buf)
	} else {
		n = uint64(order.Uint16(buf))
	}

	entries := make([]byte, n*entrySize)
	if _, err := r.ReadAt(entries, int64(ifdOffset+countSize)); err != nil {
		return directory{}, fmt.Errorf("read IFD entries: %w", err)
	}

	dir := directory{order: order, fields: make(map[uint16]field, n)}
	for i := uint64(0); i < n; i++ {
		e := entries[i*entrySize : (i+1)*entrySize]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])

		size, ok := typeSizes[typ]
		if !ok {
			// Unknown field types are skipped as the TIFF spec requires
			continue
		}

		var count uint64
		var value []byte
		if big {
			count = order.Uint64(e[4:12])
			value = e[12:20]
		} else {
			count = uint64(order.Uint32(e[4:8]))
			value = e[8:12]
		}

		total := size * count
		data := make([]byte, total)
		if total <= inline {
			copy(data, value)
		} else {
			var off uint64
			if big {
				off = order.Uint64(value)
			} else {
				off = uint64(order.Uint32(value))
			}
			if _, err := r.ReadAt(data, int64(off)); err != nil {
				return directory{}, fmt.Errorf("read tag %d: %w", tag, err)
			}
		}

		dir.fields[tag] = field{typ: typ, count: count, data: data, order: order}
	}

	return dir, nil
}
