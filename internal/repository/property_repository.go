package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/propintel/pipeline/internal/database"
	"github.com/propintel/pipeline/internal/models"
)

// PropertyRepository reads resolved properties and writes back comp and
// score results. Properties are never deleted by the pipeline.
type PropertyRepository interface {
	// ListScorable loads properties with a ZIP code, the population comp
	// selection and scoring operate on.
	ListScorable(ctx context.Context) ([]models.Property, error)

	// ReplaceComps swaps the stored comp set of one subject property.
	ReplaceComps(ctx context.Context, subjectID uuid.UUID, comps []models.Comp) error

	// UpdateScore persists the opportunity score and confidence tier.
	UpdateScore(ctx context.Context, id uuid.UUID, score int, confidence string) error
}

type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{
		db: db,
	}
}

// ListScorable loads the scoring inputs for every property with a ZIP.
func (r *propertyRepository) ListScorable(ctx context.Context) ([]models.Property, error) {
	query := `
		SELECT
			id,
			bbl,
			address,
			zip,
			sqft,
			year_built,
			bedrooms,
			last_sale_price,
			estimated_value,
			price_per_sqft,
			created_at,
			updated_at
		FROM properties
		WHERE zip IS NOT NULL AND zip <> ''
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		var p models.Property
		err := rows.Scan(
			&p.ID,
			&p.BBL,
			&p.Address,
			&p.Zip,
			&p.Sqft,
			&p.YearBuilt,
			&p.Bedrooms,
			&p.LastSalePrice,
			&p.EstimatedValue,
			&p.PricePerSqft,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		properties = append(properties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	return properties, nil
}

// ReplaceComps deletes the subject's previous comp set and inserts the new
// one in a single transaction, keeping re-runs idempotent.
func (r *propertyRepository) ReplaceComps(ctx context.Context, subjectID uuid.UUID, comps []models.Comp) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin comp replacement: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM comps WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("failed to clear comps for %s: %w", subjectID, err)
	}

	if len(comps) > 0 {
		batch := &pgx.Batch{}
		for _, c := range comps {
			batch.Queue(`
				INSERT INTO comps (subject_id, comp_id, similarity, sqft_adj, age_adj, bedroom_adj, adjusted_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, c.SubjectID, c.CompID, c.Similarity, c.SqftAdj, c.AgeAdj, c.BedroomAdj, c.AdjustedPrice)
		}

		results := tx.SendBatch(ctx, batch)
		for range comps {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert comp for %s: %w", subjectID, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close comp batch for %s: %w", subjectID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit comp replacement: %w", err)
	}

	return nil
}

// UpdateScore writes the derived opportunity score.
func (r *propertyRepository) UpdateScore(ctx context.Context, id uuid.UUID, score int, confidence string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE properties
		SET opportunity_score = $1,
		    score_confidence = $2,
		    updated_at = now()
		WHERE id = $3
	`, score, confidence, id)
	if err != nil {
		return fmt.Errorf("failed to update score for property %s: %w", id, err)
	}
	return nil
}
