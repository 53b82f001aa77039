// Package domain contains the core entities and error taxonomy of the
// zonal statistics service. It is independent of HTTP, storage, and the
// raster format, and is shared by the task engine and the pipeline.
package domain
