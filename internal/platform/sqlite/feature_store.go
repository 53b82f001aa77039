package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
	"github.com/phrazzld/carbonstats/internal/store"
)

// FeatureStore implements store.FeatureStore on a layer database opened
// with OpenLayer.
type FeatureStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewFeatureStore creates a FeatureStore over db, which may be a *sql.DB or
// a *sql.Tx. If logger is nil, the default logger is used.
func NewFeatureStore(db store.DBTX, logger *slog.Logger) *FeatureStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FeatureStore{
		db:     db,
		logger: logger.With(slog.String("component", "feature_store")),
	}
}

// Ensure FeatureStore implements store.FeatureStore interface
var _ store.FeatureStore = (*FeatureStore)(nil)

// Insert implements store.FeatureStore.Insert.
// Geometries are stored as WKB, ids and properties as JSON text.
func (s *FeatureStore) Insert(ctx context.Context, features []store.LayerFeature) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO features (fid, feature_id, geometry_type, geometry, properties)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return store.NewStoreError("feature", "insert", "prepare statement", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range features {
		if f.Geometry == nil {
			return fmt.Errorf("%w: feature %d has no geometry", store.ErrInvalidEntity, f.Index)
		}

		geom := storable(f.Geometry)
		blob, err := wkb.Marshal(geom)
		if err != nil {
			return fmt.Errorf("%w: feature %d: %v", store.ErrInvalidEntity, f.Index, err)
		}

		var id sql.NullString
		if f.ID != nil {
			raw, err := json.Marshal(f.ID)
			if err != nil {
				return fmt.Errorf("%w: feature %d id: %v", store.ErrInvalidEntity, f.Index, err)
			}
			id = sql.NullString{String: string(raw), Valid: true}
		}

		props := []byte("{}")
		if len(f.Properties) > 0 {
			if props, err = json.Marshal(f.Properties); err != nil {
				return fmt.Errorf("%w: feature %d properties: %v", store.ErrInvalidEntity, f.Index, err)
			}
		}

		if _, err := stmt.ExecContext(ctx, f.Index, id, geom.GeoJSONType(), blob, string(props)); err != nil {
			log.Error("failed to insert feature",
				slog.Int("feature_index", f.Index),
				slog.String("error", err.Error()))
			return store.NewStoreError("feature", "insert", fmt.Sprintf("feature %d", f.Index), MapError(err))
		}
	}

	log.Debug("features inserted", slog.Int("count", len(features)))
	return nil
}

// List implements store.FeatureStore.List.
func (s *FeatureStore) List(ctx context.Context) ([]store.LayerFeature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fid, feature_id, geometry, properties
		FROM features
		ORDER BY fid
	`)
	if err != nil {
		return nil, store.NewStoreError("feature", "list", "query", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []store.LayerFeature
	for rows.Next() {
		var (
			f     store.LayerFeature
			id    sql.NullString
			blob  []byte
			props string
		)
		if err := rows.Scan(&f.Index, &id, &blob, &props); err != nil {
			return nil, store.NewStoreError("feature", "list", "scan", err)
		}

		if f.Geometry, err = wkb.Unmarshal(blob); err != nil {
			return nil, store.NewStoreError("feature", "list", fmt.Sprintf("decode geometry of feature %d", f.Index), err)
		}
		if id.Valid {
			if err := json.Unmarshal([]byte(id.String), &f.ID); err != nil {
				return nil, store.NewStoreError("feature", "list", fmt.Sprintf("decode id of feature %d", f.Index), err)
			}
		}
		if err := json.Unmarshal([]byte(props), &f.Properties); err != nil {
			return nil, store.NewStoreError("feature", "list", fmt.Sprintf("decode properties of feature %d", f.Index), err)
		}

		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("feature", "list", "iterate", err)
	}

	return out, nil
}

// Count implements store.FeatureStore.Count.
func (s *FeatureStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM features`).Scan(&n); err != nil {
		return 0, store.NewStoreError("feature", "count", "query", MapError(err))
	}
	return n, nil
}

// WithTx implements store.FeatureStore.WithTx.
func (s *FeatureStore) WithTx(tx *sql.Tx) store.FeatureStore {
	return &FeatureStore{db: tx, logger: s.logger}
}

// storable converts geometries WKB has no encoding for into their polygon form.
func storable(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Bound:
		return g.ToPolygon()
	case orb.Ring:
		return orb.Polygon{g}
	}
	return g
}
