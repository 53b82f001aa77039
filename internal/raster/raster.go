package raster

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Compression schemes supported by the block decoder
const (
	compressionNone        = 1
	compressionLZW         = 5
	compressionDeflate     = 8
	compressionDeflateAlt  = 32946
	predictorNone          = 1
	predictorHorizontal    = 2
	predictorFloatingPoint = 3
	sampleFormatUint       = 1
	sampleFormatInt        = 2
	sampleFormatFloat      = 3
)

// GeoTransform maps pixel space to model space using the affine
// convention: X = T[0] + col*T[1] + row*T[2], Y = T[3] + col*T[4] + row*T[5].
type GeoTransform [6]float64

// Window is a rectangle of pixels, in column/row space.
type Window struct {
	X, Y, W, H int
}

// Empty reports whether the window covers no pixels.
func (w Window) Empty() bool {
	return w.W <= 0 || w.H <= 0
}

// Raster is an open, read-only single-band GeoTIFF. All methods are safe for
// concurrent use: the handle is immutable after Open and reads go through
// io.ReaderAt.
type Raster struct {
	src    io.ReaderAt
	closer io.Closer

	width, height   int
	blockW, blockH  int
	blocksAcross    int
	tiled           bool
	offsets, counts []uint64

	order         binary.ByteOrder
	compression   uint64
	predictor     uint64
	sampleFormat  uint64
	bytesPerPixel int

	transform GeoTransform
	noData    *float64
}

// Open opens the GeoTIFF at path. The returned Raster keeps the file open
// until Close is called.
func Open(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}

	r, err := NewRaster(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewRaster parses the GeoTIFF header of src. The caller keeps ownership of src.
func NewRaster(src io.ReaderAt) (*Raster, error) {
	dir, err := readDirectory(src)
	if err != nil {
		return nil, err
	}

	r := &Raster{src: src, order: dir.order}

	width, err := dir.scalar(tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := dir.scalar(tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: zero image size", ErrUnsupported)
	}
	r.width, r.height = int(width), int(height)

	samples, err := dir.scalar(tagSamplesPerPixel, 1)
	if err != nil {
		return nil, err
	}
	if samples != 1 {
		return nil, fmt.Errorf("%w: %d samples per pixel", ErrUnsupported, samples)
	}

	bits, err := dir.scalar(tagBitsPerSample, 1)
	if err != nil {
		return nil, err
	}
	if r.sampleFormat, err = dir.scalar(tagSampleFormat, sampleFormatUint); err != nil {
		return nil, err
	}
	if err := checkSampleLayout(r.sampleFormat, bits); err != nil {
		return nil, err
	}
	r.bytesPerPixel = int(bits / 8)

	if r.compression, err = dir.scalar(tagCompression, compressionNone); err != nil {
		return nil, err
	}
	switch r.compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflateAlt:
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, r.compression)
	}

	if r.predictor, err = dir.scalar(tagPredictor, predictorNone); err != nil {
		return nil, err
	}
	if r.predictor > predictorFloatingPoint {
		return nil, fmt.Errorf("%w: predictor %d", ErrUnsupported, r.predictor)
	}

	if err := r.readLayout(dir); err != nil {
		return nil, err
	}
	if err := r.readGeoreference(dir); err != nil {
		return nil, err
	}

	if f, ok := dir.fields[tagGDALNoData]; ok {
		if v, err := strconv.ParseFloat(f.ascii(), 64); err == nil {
			r.noData = &v
		}
	}

	return r, nil
}

func checkSampleLayout(format, bits uint64) error {
	switch format {
	case sampleFormatUint, sampleFormatInt:
		if bits == 8 || bits == 16 || bits == 32 {
			return nil
		}
	case sampleFormatFloat:
		if bits == 32 || bits == 64 {
			return nil
		}
	}
	return fmt.Errorf("%w: sample format %d with %d bits", ErrUnsupported, format, bits)
}

func (r *Raster) readLayout(dir directory) error {
	if dir.has(tagTileWidth) {
		r.tiled = true
		tw, err := dir.scalar(tagTileWidth, 0)
		if err != nil {
			return err
		}
		th, err := dir.scalar(tagTileLength, 0)
		if err != nil {
			return err
		}
		if tw == 0 || th == 0 {
			return fmt.Errorf("%w: zero tile size", ErrUnsupported)
		}
		r.blockW, r.blockH = int(tw), int(th)
		if r.offsets, err = dir.uints(tagTileOffsets); err != nil {
			return err
		}
		if r.counts, err = dir.uints(tagTileByteCounts); err != nil {
			return err
		}
	} else {
		rows, err := dir.scalar(tagRowsPerStrip, uint64(r.height))
		if err != nil {
			return err
		}
		if rows == 0 || rows > uint64(r.height) {
			rows = uint64(r.height)
		}
		r.blockW, r.blockH = r.width, int(rows)
		if r.offsets, err = dir.uints(tagStripOffsets); err != nil {
			return err
		}
		if r.counts, err = dir.uints(tagStripByteCounts); err != nil {
			return err
		}
	}

	r.blocksAcross = (r.width + r.blockW - 1) / r.blockW
	blocksDown := (r.height + r.blockH - 1) / r.blockH
	want := r.blocksAcross * blocksDown
	if len(r.offsets) < want || len(r.counts) < want {
		return fmt.Errorf("%w: %d blocks declared, %d required", ErrUnsupported, len(r.offsets), want)
	}
	return nil
}

func (r *Raster) readGeoreference(dir directory) error {
	if f, ok := dir.fields[tagModelTransformation]; ok {
		m, err := f.floats()
		if err != nil {
			return err
		}
		if len(m) < 16 {
			return fmt.Errorf("%w: short model transformation", ErrNoGeoreference)
		}
		r.transform = GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
	} else {
		scaleField, okScale := dir.fields[tagModelPixelScale]
		tieField, okTie := dir.fields[tagModelTiepoint]
		if !okScale || !okTie {
			return ErrNoGeoreference
		}
		scale, err := scaleField.floats()
		if err != nil {
			return err
		}
		tie, err := tieField.floats()
		if err != nil {
			return err
		}
		if len(scale) < 2 || len(tie) < 6 {
			return fmt.Errorf("%w: short tie point or pixel scale", ErrNoGeoreference)
		}
		r.transform = GeoTransform{
			tie[3] - tie[0]*scale[0], scale[0], 0,
			tie[4] + tie[1]*scale[1], 0, -scale[1],
		}
	}

	if r.transform[2] != 0 || r.transform[4] != 0 {
		return fmt.Errorf("%w: rotated rasters", ErrUnsupported)
	}
	if r.transform[1] == 0 || r.transform[5] == 0 {
		return fmt.Errorf("%w: zero pixel size", ErrNoGeoreference)
	}
	return nil
}

// Close releases the underlying file, if Open created one.
func (r *Raster) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int { return r.width }

// Height returns the raster height in pixels.
func (r *Raster) Height() int { return r.height }

// Transform returns the pixel-to-model affine transform.
func (r *Raster) Transform() GeoTransform { return r.transform }

// NoData returns the nodata value and whether one is declared.
func (r *Raster) NoData() (float64, bool) {
	if r.noData == nil {
		return 0, false
	}
	return *r.noData, true
}

// PixelCenter returns the model coordinates of the centre of pixel (col, row).
func (r *Raster) PixelCenter(col, row int) (x, y float64) {
	t := r.transform
	return t[0] + (float64(col)+0.5)*t[1], t[3] + (float64(row)+0.5)*t[5]
}

// PixelAt returns the fractional column and row of model point (x, y).
func (r *Raster) PixelAt(x, y float64) (col, row float64) {
	t := r.transform
	return (x - t[0]) / t[1], (y - t[3]) / t[5]
}

// WindowFor returns the pixel window covering the model-space rectangle
// [minX, maxX] x [minY, maxY], clipped to the raster extent.
func (r *Raster) WindowFor(minX, minY, maxX, maxY float64) Window {
	c0, r0 := r.PixelAt(minX, maxY)
	c1, r1 := r.PixelAt(maxX, minY)
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	if r0 > r1 {
		r0, r1 = r1, r0
	}

	x0 := clamp(int(math.Floor(c0)), 0, r.width)
	y0 := clamp(int(math.Floor(r0)), 0, r.height)
	x1 := clamp(int(math.Ceil(c1)), 0, r.width)
	y1 := clamp(int(math.Ceil(r1)), 0, r.height)
	if x1 == x0 && c0 == c1 && x0 < r.width {
		x1 = x0 + 1
	}
	if y1 == y0 && r0 == r1 && y0 < r.height {
		y1 = y0 + 1
	}
	return Window{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReadWindow returns the pixel values of w in row-major order. Nodata and
// NaN pixels are returned as NaN. The window must lie inside the raster.
func (r *Raster) ReadWindow(w Window) ([]float64, error) {
	if err := r.checkWindow(w); err != nil {
		return nil, err
	}
	out := make([]float64, max(w.W, 0)*max(w.H, 0))
	err := r.ScanWindow(w, func(col, row int, v float64) {
		out[(row-w.Y)*w.W+col-w.X] = v
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanWindow calls fn for every pixel of w, one decoded block at a time, so
// memory stays bounded by a single strip or tile whatever the window size.
// Nodata pixels are passed as NaN. Pixels are visited block by block, not
// in row-major order.
func (r *Raster) ScanWindow(w Window, fn func(col, row int, v float64)) error {
	if err := r.checkWindow(w); err != nil {
		return err
	}
	if w.Empty() {
		return nil
	}

	bx0, bx1 := w.X/r.blockW, (w.X+w.W-1)/r.blockW
	by0, by1 := w.Y/r.blockH, (w.Y+w.H-1)/r.blockH

	for by := by0; by <= by1; by++ {
		for bx := bx0; bx <= bx1; bx++ {
			block, rows, err := r.decodeBlock(by*r.blocksAcross + bx)
			if err != nil {
				return err
			}

			// Intersection of the block with the window, in raster space
			gx0, gy0 := bx*r.blockW, by*r.blockH
			ix0, ix1 := max(w.X, gx0), min(w.X+w.W, gx0+r.blockW, r.width)
			iy0, iy1 := max(w.Y, gy0), min(w.Y+w.H, gy0+rows)

			for y := iy0; y < iy1; y++ {
				src := block[(y-gy0)*r.blockW:]
				for x := ix0; x < ix1; x++ {
					fn(x, y, r.mask(src[x-gx0]))
				}
			}
		}
	}
	return nil
}

func (r *Raster) checkWindow(w Window) error {
	if w.X < 0 || w.Y < 0 || w.X+w.W > r.width || w.Y+w.H > r.height {
		return fmt.Errorf("window %+v outside %dx%d raster", w, r.width, r.height)
	}
	return nil
}

func (r *Raster) mask(v float64) float64 {
	if r.noData != nil && v == *r.noData {
		return math.NaN()
	}
	return v
}

// Value returns the single pixel at (col, row).
func (r *Raster) Value(col, row int) (float64, error) {
	vals, err := r.ReadWindow(Window{X: col, Y: row, W: 1, H: 1})
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}
