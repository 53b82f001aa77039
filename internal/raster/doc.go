// Package raster reads single-band GeoTIFF rasters through io.ReaderAt so
// that one open handle can serve any number of concurrent readers. Only
// the blocks covering a requested window are decoded.
package raster
