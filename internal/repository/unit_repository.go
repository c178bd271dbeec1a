package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/propintel/pipeline/internal/database"
	"github.com/propintel/pipeline/internal/models"
)

// UnitRepository owns the condo_units table. The populate run replaces the
// table contents wholesale; downstream services only read it.
type UnitRepository interface {
	// Refresh truncates condo_units and inserts the given rows in a
	// single transaction, so readers never observe a half-built table.
	Refresh(ctx context.Context, units []models.CondoUnit) error

	// ListMissingCoordinates returns units without a resolved location,
	// the work list for a follow-up geocode enrichment run.
	ListMissingCoordinates(ctx context.Context) ([]models.CondoUnit, error)

	// UpdateLocation writes an enriched location for one unit.
	UpdateLocation(ctx context.Context, unitBBL string, location models.Point) error
}

type unitRepository struct {
	db *database.Database
}

// NewUnitRepository creates a new instance of UnitRepository.
func NewUnitRepository(db *database.Database) UnitRepository {
	return &unitRepository{
		db: db,
	}
}

// Refresh rewrites the table inside one transaction using CopyFrom for the
// bulk insert.
func (r *unitRepository) Refresh(ctx context.Context, units []models.CondoUnit) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin condo_units refresh: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE condo_units`); err != nil {
		return fmt.Errorf("failed to truncate condo_units: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"condo_units"},
		[]string{"unit_bbl", "base_bbl", "unit_designation", "property_id", "display_address", "lat", "lng", "borough", "zip"},
		pgx.CopyFromSlice(len(units), func(i int) ([]interface{}, error) {
			u := units[i]
			var lat, lng *float64
			if u.Location != nil {
				lat, lng = &u.Location.Lat, &u.Location.Lng
			}
			return []interface{}{
				u.UnitBBL,
				u.BaseBBL,
				u.UnitDesignation,
				u.PropertyID,
				u.DisplayAddress,
				lat,
				lng,
				u.Borough,
				u.Zip,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert condo units: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit condo_units refresh: %w", err)
	}

	return nil
}

// ListMissingCoordinates finds units the populate run could not place.
func (r *unitRepository) ListMissingCoordinates(ctx context.Context) ([]models.CondoUnit, error) {
	query := `
		SELECT
			unit_bbl,
			base_bbl,
			unit_designation,
			property_id,
			display_address,
			borough,
			zip
		FROM condo_units
		WHERE lat IS NULL OR lng IS NULL
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query units missing coordinates: %w", err)
	}
	defer rows.Close()

	var units []models.CondoUnit
	for rows.Next() {
		var unit models.CondoUnit
		err := rows.Scan(
			&unit.UnitBBL,
			&unit.BaseBBL,
			&unit.UnitDesignation,
			&unit.PropertyID,
			&unit.DisplayAddress,
			&unit.Borough,
			&unit.Zip,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan condo unit row: %w", err)
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating condo unit rows: %w", err)
	}

	return units, nil
}

// UpdateLocation applies one geocode enrichment result.
func (r *unitRepository) UpdateLocation(ctx context.Context, unitBBL string, location models.Point) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE condo_units
		SET lat = $1, lng = $2
		WHERE unit_bbl = $3
	`, location.Lat, location.Lng, unitBBL)
	if err != nil {
		return fmt.Errorf("failed to update location for unit %s: %w", unitBBL, err)
	}
	return nil
}
