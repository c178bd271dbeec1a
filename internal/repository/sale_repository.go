package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/propintel/pipeline/internal/database"
	"github.com/propintel/pipeline/internal/models"
)

// SaleRepository owns the resolution fields of the raw_sales table. The
// raw source fields are read-only inputs.
type SaleRepository interface {
	// ListAll loads every raw sale, raw fields and current resolution
	// fields included.
	ListAll(ctx context.Context) ([]*models.RawSale, error)

	// UpdateResolutions writes the resolution fields of the given sales
	// back in one batched round trip. Re-runs overwrite; nothing appends.
	UpdateResolutions(ctx context.Context, sales []*models.RawSale) error
}

type saleRepository struct {
	db *database.Database
}

// NewSaleRepository creates a new instance of SaleRepository.
func NewSaleRepository(db *database.Database) SaleRepository {
	return &saleRepository{
		db: db,
	}
}

// ListAll loads the full raw sale table.
func (r *saleRepository) ListAll(ctx context.Context) ([]*models.RawSale, error) {
	query := `
		SELECT
			id,
			borough,
			block,
			lot,
			address,
			apartment,
			price,
			sale_date,
			unit_bbl,
			base_bbl,
			match_method,
			unresolved_reason
		FROM raw_sales
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw sales: %w", err)
	}
	defer rows.Close()

	var sales []*models.RawSale
	for rows.Next() {
		var sale models.RawSale
		var method *string
		err := rows.Scan(
			&sale.ID,
			&sale.Borough,
			&sale.Block,
			&sale.Lot,
			&sale.Address,
			&sale.Apartment,
			&sale.Price,
			&sale.SaleDate,
			&sale.UnitBBL,
			&sale.BaseBBL,
			&method,
			&sale.UnresolvedReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw sale row: %w", err)
		}
		// A stored method this code no longer recognizes is treated as
		// absent so the matcher resolves the sale afresh.
		if method != nil && models.MatchMethod(*method).IsValid() {
			sale.MatchMethod = models.MatchMethod(*method)
		}
		sales = append(sales, &sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw sale rows: %w", err)
	}

	return sales, nil
}

// UpdateResolutions flushes resolution fields with a pgx batch so a
// matcher flush costs one round trip regardless of batch size.
func (r *saleRepository) UpdateResolutions(ctx context.Context, sales []*models.RawSale) error {
	if len(sales) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sale := range sales {
		batch.Queue(`
			UPDATE raw_sales
			SET unit_bbl = $1,
			    base_bbl = $2,
			    match_method = $3,
			    unresolved_reason = $4
			WHERE id = $5
		`, sale.UnitBBL, sale.BaseBBL, string(sale.MatchMethod), sale.UnresolvedReason, sale.ID)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range sales {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to update sale resolution: %w", err)
		}
	}

	return nil
}
