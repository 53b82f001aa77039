package raster

import "errors"

// Common errors returned by the raster reader
var (
	// ErrNotTIFF is returned when the file header is not a TIFF or BigTIFF header
	ErrNotTIFF = errors.New("not a TIFF file")

	// ErrUnsupported is returned for valid TIFF features this reader does not decode
	ErrUnsupported = errors.New("unsupported raster layout")

	// ErrNoGeoreference is returned when the file carries neither tie points
	// with a pixel scale nor a model transformation
	ErrNoGeoreference = errors.New("raster has no georeferencing")

	// ErrCorruptBlock is returned when a strip or tile decodes to fewer bytes than expected
	ErrCorruptBlock = errors.New("corrupt raster block")
)
