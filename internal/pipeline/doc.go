// Package pipeline executes the zonal statistics pipeline for one task:
// validate the feature collection, write it to the task's scratch
// directory, materialize it as a vector layer, overlay the layer on the
// raster, and clean up. Every failure is returned as a *domain.TaskError.
package pipeline
