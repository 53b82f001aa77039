package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/image/tiff/lzw"
)

// decodeBlock reads, decompresses and converts strip or tile i. It returns
// the block samples (blockW wide) and the number of valid rows.
func (r *Raster) decodeBlock(i int) ([]float64, int, error) {
	rows := r.blockH
	if !r.tiled {
		// The last strip may be shorter than RowsPerStrip
		if rem := r.height - (i/r.blocksAcross)*r.blockH; rem < rows {
			rows = rem
		}
	}

	raw := make([]byte, r.counts[i])
	if _, err := r.src.ReadAt(raw, int64(r.offsets[i])); err != nil && err != io.EOF {
		return nil, 0, fmt.Errorf("read block %d: %w", i, err)
	}

	want := r.blockW * rows * r.bytesPerPixel
	data, err := r.decompress(raw, want)
	if err != nil {
		return nil, 0, fmt.Errorf("decompress block %d: %w", i, err)
	}
	if len(data) < want {
		return nil, 0, fmt.Errorf("%w: block %d has %d bytes, want %d", ErrCorruptBlock, i, len(data), want)
	}
	data = data[:want]

	order := r.order
	switch r.predictor {
	case predictorHorizontal:
		undoHorizontal(data, r.blockW, r.bytesPerPixel, order)
	case predictorFloatingPoint:
		undoFloatingPoint(data, r.blockW, r.bytesPerPixel)
		// Byte planes are reassembled most significant first
		order = binary.BigEndian
	}

	return r.convert(data, order), rows, nil
}

func (r *Raster) decompress(raw []byte, want int) ([]byte, error) {
	var rc io.ReadCloser
	switch r.compression {
	case compressionNone:
		return raw, nil
	case compressionLZW:
		rc = lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
	case compressionDeflate, compressionDeflateAlt:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		rc = zr
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, r.compression)
	}
	defer rc.Close()

	buf := bytes.NewBuffer(make([]byte, 0, want))
	if _, err := io.Copy(buf, io.LimitReader(rc, int64(want))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// undoHorizontal reverses TIFF predictor 2 in place, row by row.
func undoHorizontal(data []byte, width, size int, order binary.ByteOrder) {
	rowBytes := width * size
	for row := 0; row+rowBytes <= len(data); row += rowBytes {
		b := data[row : row+rowBytes]
		switch size {
		case 1:
			for i := 1; i < width; i++ {
				b[i] += b[i-1]
			}
		case 2:
			for i := 1; i < width; i++ {
				order.PutUint16(b[i*2:], order.Uint16(b[i*2:])+order.Uint16(b[(i-1)*2:]))
			}
		case 4:
			for i := 1; i < width; i++ {
				order.PutUint32(b[i*4:], order.Uint32(b[i*4:])+order.Uint32(b[(i-1)*4:]))
			}
		case 8:
			for i := 1; i < width; i++ {
				order.PutUint64(b[i*8:], order.Uint64(b[i*8:])+order.Uint64(b[(i-1)*8:]))
			}
		}
	}
}

// undoFloatingPoint reverses TIFF predictor 3 in place. After the call every
// sample is stored big-endian.
func undoFloatingPoint(data []byte, width, size int) {
	rowBytes := width * size
	tmp := make([]byte, rowBytes)
	for row := 0; row+rowBytes <= len(data); row += rowBytes {
		b := data[row : row+rowBytes]
		for i := 1; i < rowBytes; i++ {
			b[i] += b[i-1]
		}
		copy(tmp, b)
		for s := 0; s < width; s++ {
			for k := 0; k < size; k++ {
				b[s*size+k] = tmp[k*width+s]
			}
		}
	}
}

func (r *Raster) convert(data []byte, order binary.ByteOrder) []float64 {
	n := len(data) / r.bytesPerPixel
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := data[i*r.bytesPerPixel:]
		switch r.sampleFormat {
		case sampleFormatFloat:
			if r.bytesPerPixel == 4 {
				out[i] = float64(math.Float32frombits(order.Uint32(b)))
			} else {
				out[i] = math.Float64frombits(order.Uint64(b))
			}
		case sampleFormatInt:
			switch r.bytesPerPixel {
			case 1:
				out[i] = float64(int8(b[0]))
			case 2:
				out[i] = float64(int16(order.Uint16(b)))
			default:
				out[i] = float64(int32(order.Uint32(b)))
			}
		default:
			switch r.bytesPerPixel {
			case 1:
				out[i] = float64(b[0])
			case 2:
				out[i] = float64(order.Uint16(b))
			default:
				out[i] = float64(order.Uint32(b))
			}
		}
	}
	return out
}
