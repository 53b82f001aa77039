package store

import (
	"context"
	"database/sql"

	"github.com/paulmach/orb"
)

// LayerFeature is one row of a vector layer.
type LayerFeature struct {
	// Index is the zero-based position of the feature in the submitted collection
	Index      int
	ID         any
	Geometry   orb.Geometry
	Properties map[string]any
}

// FeatureStore persists the features of a single vector layer.
type FeatureStore interface {
	// Insert appends features to the layer. Indexes must be unique.
	// Returns ErrInvalidEntity for features without a geometry.
	Insert(ctx context.Context, features []LayerFeature) error

	// List returns every feature of the layer ordered by Index.
	List(ctx context.Context) ([]LayerFeature, error)

	// Count returns the number of features in the layer.
	Count(ctx context.Context) (int, error)

	// WithTx returns a FeatureStore that runs its statements inside tx.
	WithTx(tx *sql.Tx) FeatureStore
}
