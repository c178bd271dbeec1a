package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/propintel/pipeline/internal/database"
	"github.com/propintel/pipeline/internal/models"
)

// ParcelRepository defines the interface for canonical parcel reads.
type ParcelRepository interface {
	// FindByBBL finds the parcel carrying the given normalized identifier.
	// Returns nil, nil if no parcel is found (not an error).
	// Returns error only for actual database failures.
	FindByBBL(ctx context.Context, bbl string) (*models.Parcel, error)

	// ListAll loads the whole parcel table for in-memory indexing.
	ListAll(ctx context.Context) ([]models.Parcel, error)
}

// parcelRepository is the concrete implementation of ParcelRepository.
type parcelRepository struct {
	db *database.Database
}

// NewParcelRepository creates a new instance of ParcelRepository.
func NewParcelRepository(db *database.Database) ParcelRepository {
	return &parcelRepository{
		db: db,
	}
}

const parcelColumns = `
	id,
	bbl,
	address,
	zip,
	ST_AsGeoJSON(geom) as location
`

// FindByBBL queries the parcel table by normalized identifier.
func (r *parcelRepository) FindByBBL(ctx context.Context, bbl string) (*models.Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE bbl = $1 LIMIT 1`

	parcel, err := scanParcel(r.db.Pool.QueryRow(ctx, query, bbl))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query parcel %s: %w", bbl, err)
	}

	return parcel, nil
}

// ListAll loads every parcel row. The pipeline indexes parcels in memory
// once per run instead of issuing per-record lookups.
func (r *parcelRepository) ListAll(ctx context.Context) ([]models.Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcels: %w", err)
	}
	defer rows.Close()

	var parcels []models.Parcel
	for rows.Next() {
		parcel, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}
		parcels = append(parcels, *parcel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}

	return parcels, nil
}

// scanParcel reads one parcel from a row, parsing the GeoJSON location.
func scanParcel(row pgx.Row) (*models.Parcel, error) {
	var parcel models.Parcel
	var geomJSON []byte

	err := row.Scan(
		&parcel.ID,
		&parcel.BBL,
		&parcel.Address,
		&parcel.Zip,
		&geomJSON,
	)
	if err != nil {
		return nil, err
	}

	if geomJSON != nil {
		var point models.Point
		if err := point.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse location for parcel %s: %w", parcel.BBL, err)
		}
		parcel.Location = &point
	}

	return &parcel, nil
}
