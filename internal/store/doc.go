// Package store defines the persistence contract of the per-task vector
// layer. A vector layer is the materialized form of a submitted feature
// collection that the statistics stage reads back, feature by feature, in
// input order. Implementations live under internal/platform.
package store
