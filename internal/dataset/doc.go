// Package dataset makes the carbon sequestration raster available to the
// pipeline. The file is downloaded at most once per deployment and opened
// once per process; the returned handle is shared by every task.
package dataset
