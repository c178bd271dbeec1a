package repository

import (
	"context"
	"fmt"

	"github.com/propintel/pipeline/internal/database"
	"github.com/propintel/pipeline/internal/models"
)

// RegistryRepository reads the condominium-unit registry. The registry is
// input-only; nothing in the pipeline writes it.
type RegistryRepository interface {
	ListAll(ctx context.Context) ([]models.RegistryRow, error)
}

type registryRepository struct {
	db *database.Database
}

// NewRegistryRepository creates a new instance of RegistryRepository.
func NewRegistryRepository(db *database.Database) RegistryRepository {
	return &registryRepository{
		db: db,
	}
}

// ListAll loads every registry row for graph building and unit population.
func (r *registryRepository) ListAll(ctx context.Context) ([]models.RegistryRow, error) {
	query := `
		SELECT
			unit_bbl,
			base_bbl,
			condo_number,
			unit_designation
		FROM condo_registry
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query condo registry: %w", err)
	}
	defer rows.Close()

	var registry []models.RegistryRow
	for rows.Next() {
		var row models.RegistryRow
		err := rows.Scan(
			&row.UnitBBL,
			&row.BaseBBL,
			&row.CondoNumber,
			&row.UnitDesignation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registry row: %w", err)
		}
		registry = append(registry, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registry rows: %w", err)
	}

	return registry, nil
}
