package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"heritage-atlas/internal/domain"
)

// CatalogueRepository aggregates the active catalogue by region and GI tag
type CatalogueRepository interface {
	Regions(ctx context.Context) ([]*domain.RegionSummary, error)
	GITags(ctx context.Context) ([]*domain.GITagSummary, error)
	// ActiveProducts returns every active product ordered by name.
	ActiveProducts(ctx context.Context) ([]*domain.Product, error)
	Statistics(ctx context.Context, top int) (*domain.Statistics, error)
}

type catalogueRepository struct {
	db *sql.DB
}

// NewCatalogueRepository creates a new instance of CatalogueRepository
func NewCatalogueRepository(db *sql.DB) CatalogueRepository {
	return &catalogueRepository{db: db}
}

// Regions lists regions with their product counts, largest first
func (r *catalogueRepository) Regions(ctx context.Context) ([]*domain.RegionSummary, error) {
	query := `
		SELECT region, COUNT(*), json_agg(DISTINCT gi_tag ORDER BY gi_tag),
			AVG(latitude), AVG(longitude)
		FROM products
		WHERE is_active = TRUE
		GROUP BY region
		ORDER BY COUNT(*) DESC, region ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	regions := []*domain.RegionSummary{}
	for rows.Next() {
		var (
			region   domain.RegionSummary
			giTags   []byte
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&region.Region, &region.Count, &giTags, &lat, &lng); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		if err := json.Unmarshal(giTags, &region.GITags); err != nil {
			return nil, fmt.Errorf("failed to decode gi tags of %q: %w", region.Region, err)
		}
		if lat.Valid && lng.Valid {
			region.Location = &domain.Location{Latitude: lat.Float64, Longitude: lng.Float64}
		}
		regions = append(regions, &region)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regions: %w", err)
	}

	return regions, nil
}

// GITags lists GI tags with their product counts, largest first
func (r *catalogueRepository) GITags(ctx context.Context) ([]*domain.GITagSummary, error) {
	query := `
		SELECT gi_tag, COUNT(*), json_agg(DISTINCT region ORDER BY region)
		FROM products
		WHERE is_active = TRUE
		GROUP BY gi_tag
		ORDER BY COUNT(*) DESC, gi_tag ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list gi tags: %w", err)
	}
	defer rows.Close()

	tags := []*domain.GITagSummary{}
	for rows.Next() {
		var (
			tag     domain.GITagSummary
			regions []byte
		)
		if err := rows.Scan(&tag.GITag, &tag.Count, &regions); err != nil {
			return nil, fmt.Errorf("failed to scan gi tag: %w", err)
		}
		if err := json.Unmarshal(regions, &tag.Regions); err != nil {
			return nil, fmt.Errorf("failed to decode regions of %q: %w", tag.GITag, err)
		}
		tags = append(tags, &tag)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gi tags: %w", err)
	}

	return tags, nil
}

func (r *catalogueRepository) ActiveProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE ORDER BY name ASC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Statistics counts the active catalogue and lists the top regions and GI
// tags by product count
func (r *catalogueRepository) Statistics(ctx context.Context, top int) (*domain.Statistics, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT region), COUNT(DISTINCT gi_tag), COUNT(DISTINCT artisan_name)
		FROM products
		WHERE is_active = TRUE
	`

	stats := &domain.Statistics{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalProducts,
		&stats.UniqueRegions,
		&stats.UniqueGITags,
		&stats.UniqueArtisans,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count catalogue: %w", err)
	}

	if stats.TopRegions, err = r.topBy(ctx, "region", top); err != nil {
		return nil, err
	}
	if stats.TopGITags, err = r.topBy(ctx, "gi_tag", top); err != nil {
		return nil, err
	}

	return stats, nil
}

// topBy groups on column, which must be a trusted column name.
func (r *catalogueRepository) topBy(ctx context.Context, column string, limit int) ([]domain.NameCount, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*)
		FROM products
		WHERE is_active = TRUE
		GROUP BY %[1]s
		ORDER BY COUNT(*) DESC, %[1]s ASC
		LIMIT $1
	`, column)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank by %s: %w", column, err)
	}
	defer rows.Close()

	ranked := []domain.NameCount{}
	for rows.Next() {
		var nc domain.NameCount
		if err := rows.Scan(&nc.ID, &nc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		ranked = append(ranked, nc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}

	return ranked, nil
}
