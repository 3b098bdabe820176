package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/core/domain"
)

// DomainRepo implements ports.DomainRepository on PostGIS. Geometries are
// stored twice: as domain JSON for exact round trips and as a PostGIS
// geometry (SRID 0) for bbox filtering.
type DomainRepo struct {
	db *DB
}

// NewDomainRepo creates a new DomainRepo.
func NewDomainRepo(db *DB) *DomainRepo {
	return &DomainRepo{db: db}
}

// Save writes a domain with its features and groups in one transaction.
func (r *DomainRepo) Save(ctx context.Context, d *domain.Domain) error {
	params, err := json.Marshal(d.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	clusters, err := json.Marshal(nonNil(d.Clusters))
	if err != nil {
		return fmt.Errorf("marshal clusters: %w", err)
	}
	footprints, err := json.Marshal(nonNil(d.Footprints))
	if err != nil {
		return fmt.Errorf("marshal footprints: %w", err)
	}
	hulls, err := json.Marshal(nonNil(d.FeatureHulls))
	if err != nil {
		return fmt.Errorf("marshal feature hulls: %w", err)
	}
	extensions, err := json.Marshal(nonNil(d.Extensions))
	if err != nil {
		return fmt.Errorf("marshal extensions: %w", err)
	}
	bbox, err := json.Marshal(d.BBox)
	if err != nil {
		return fmt.Errorf("marshal bbox: %w", err)
	}
	var extent []byte
	if d.BBox.Defined {
		if extent, err = geometryJSON(d.BBox.Polygon()); err != nil {
			return err
		}
	}

	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO domains (id, created_at, input_count, feature_count, cluster_count,
			                     bbox, extent, params, clusters, footprints, feature_hulls, extensions)
			VALUES ($1, $2, $3, $4, $5, $6,
			        CASE WHEN $7::text IS NULL THEN NULL ELSE ST_SetSRID(ST_GeomFromGeoJSON($7::text), 0) END,
			        $8, $9, $10, $11, $12)
		`, d.ID, d.CreatedAt, d.InputCount, len(d.Features), len(d.Clusters),
			bbox, nullableText(extent), params, clusters, footprints, hulls, extensions)
		if err != nil {
			return fmt.Errorf("insert domain: %w", err)
		}

		batch := &pgx.Batch{}
		for i, f := range d.Features {
			geom, err := json.Marshal(f.Geometry)
			if err != nil {
				return fmt.Errorf("marshal feature %d: %w", f.ID, err)
			}
			gj, err := geometryJSON(f.Geometry)
			if err != nil {
				return fmt.Errorf("feature %d: %w", f.ID, err)
			}
			props, err := json.Marshal(nonNilMap(f.Properties))
			if err != nil {
				return fmt.Errorf("marshal properties %d: %w", f.ID, err)
			}
			batch.Queue(`
				INSERT INTO domain_features (domain_id, feature_id, ordinal, source, geometry, properties, geom)
				VALUES ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_GeomFromGeoJSON($7::text), 0))
			`, d.ID, int64(f.ID), i, f.Source, geom, props, string(gj))
		}
		for i, g := range d.Groups {
			hull, err := json.Marshal(g.Hull)
			if err != nil {
				return fmt.Errorf("marshal hull %q: %w", g.Key, err)
			}
			gb, err := json.Marshal(g.BBox)
			if err != nil {
				return fmt.Errorf("marshal group bbox %q: %w", g.Key, err)
			}
			batch.Queue(`
				INSERT INTO domain_groups (domain_id, ordinal, key, hull, bbox)
				VALUES ($1, $2, $3, $4, $5)
			`, d.ID, i, g.Key, hull, gb)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		return br.Close()
	})
}

const summaryColumns = `id::text, created_at, feature_count, cluster_count, input_count, bbox, params`

func scanSummary(row pgx.Row) (*domain.Summary, error) {
	var (
		s      domain.Summary
		bbox   []byte
		params []byte
	)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.FeatureCount, &s.ClusterCount, &s.InputCount, &bbox, &params); err != nil {
		return nil, err
	}
	if len(bbox) > 0 {
		if err := json.Unmarshal(bbox, &s.BBox); err != nil {
			return nil, fmt.Errorf("decode bbox: %w", err)
		}
	}
	if err := json.Unmarshal(params, &s.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return &s, nil
}

// GetSummary returns the listing view of one domain.
func (r *DomainRepo) GetSummary(ctx context.Context, id string) (*domain.Summary, error) {
	s, err := scanSummary(r.db.Pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM domains WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	return s, err
}

// List returns domains newest first, with the total count.
func (r *DomainRepo) List(ctx context.Context, offset, limit int) ([]domain.Summary, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM domains`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+summaryColumns+` FROM domains
		ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.Summary, 0, limit)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// Features returns a domain's features in output order. A non-nil bbox keeps
// only features whose geometry intersects it.
func (r *DomainRepo) Features(ctx context.Context, id string, bbox *domain.BoundingBox) ([]domain.Feature, error) {
	if _, err := r.GetSummary(ctx, id); err != nil {
		return nil, err
	}

	var (
		rows pgx.Rows
		err  error
	)
	if bbox != nil && bbox.Defined {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT feature_id, source, geometry, properties FROM domain_features
			WHERE domain_id::text = $1 AND geom && ST_MakeEnvelope($2, $3, $4, $5, 0)
			ORDER BY ordinal
		`, id, bbox.Min.X, bbox.Min.Y, bbox.Max.X, bbox.Max.Y)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT feature_id, source, geometry, properties FROM domain_features
			WHERE domain_id::text = $1
			ORDER BY ordinal
		`, id)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feature
	for rows.Next() {
		var (
			f     domain.Feature
			fid   int64
			geom  []byte
			props []byte
		)
		if err := rows.Scan(&fid, &f.Source, &geom, &props); err != nil {
			return nil, err
		}
		f.ID = uint64(fid)
		if err := json.Unmarshal(geom, &f.Geometry); err != nil {
			return nil, fmt.Errorf("decode feature %d: %w", fid, err)
		}
		if err := json.Unmarshal(props, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties %d: %w", fid, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Groups returns the per-group hulls of a domain in stored order.
func (r *DomainRepo) Groups(ctx context.Context, id string) ([]domain.GroupBounds, error) {
	if _, err := r.GetSummary(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT key, hull, bbox FROM domain_groups
		WHERE domain_id::text = $1
		ORDER BY ordinal
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GroupBounds
	for rows.Next() {
		var (
			g          domain.GroupBounds
			hull, bbox []byte
		)
		if err := rows.Scan(&g.Key, &hull, &bbox); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(hull, &g.Hull); err != nil {
			return nil, fmt.Errorf("decode hull %q: %w", g.Key, err)
		}
		if len(bbox) > 0 {
			if err := json.Unmarshal(bbox, &g.BBox); err != nil {
				return nil, fmt.Errorf("decode bbox %q: %w", g.Key, err)
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func geometryJSON(g domain.Geometry) ([]byte, error) {
	b, err := orbjson.NewGeometry(geojson.ToOrb(g)).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	return b, nil
}

func nullableText(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
