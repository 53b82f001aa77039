// Package sqlite provides the SQLite implementation of the vector layer
// store defined in internal/store. Each layer is a standalone database file
// owned by exactly one task, so layers never share connections or locks.
package sqlite
