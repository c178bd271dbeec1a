// Package matcher resolves raw sale transactions against the identity
// graph and the canonical parcel table. Strategies are applied in a fixed
// priority order and the first success wins; a record is never re-evaluated
// within a run.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/propintel/pipeline/internal/bbl"
	"github.com/propintel/pipeline/internal/identity"
	"github.com/propintel/pipeline/internal/logger"
	"github.com/propintel/pipeline/internal/models"
)

// ParcelLookup is the slice of the parcel repository the matcher needs.
type ParcelLookup interface {
	// FindByBBL returns nil, nil when no parcel carries the identifier.
	FindByBBL(ctx context.Context, id string) (*models.Parcel, error)
}

// SaleWriter persists resolution fields back to the raw_sales table.
type SaleWriter interface {
	UpdateResolutions(ctx context.Context, sales []*models.RawSale) error
}

// Matcher resolves raw sales one pass at a time against a static graph.
type Matcher struct {
	graph     *identity.Graph
	parcels   ParcelLookup
	sales     SaleWriter
	log       *logger.Logger
	batchSize int
}

// New creates a Matcher. batchSize controls how many resolved sales are
// flushed to storage at a time; values below 1 fall back to 500.
func New(graph *identity.Graph, parcels ParcelLookup, sales SaleWriter, log *logger.Logger, batchSize int) *Matcher {
	if batchSize < 1 {
		batchSize = 500
	}
	return &Matcher{
		graph:     graph,
		parcels:   parcels,
		sales:     sales,
		log:       log,
		batchSize: batchSize,
	}
}

// Run resolves every sale in the slice, writing resolution fields back in
// batches, and returns the run summary. Per-record failures are counted in
// the summary; only storage-level write failures abort the run.
func (m *Matcher) Run(ctx context.Context, sales []*models.RawSale) (*Summary, error) {
	summary := NewSummary()
	pending := make([]*models.RawSale, 0, m.batchSize)

	for _, sale := range sales {
		m.resolve(ctx, sale, summary)

		pending = append(pending, sale)
		if len(pending) >= m.batchSize {
			if err := m.sales.UpdateResolutions(ctx, pending); err != nil {
				return summary, fmt.Errorf("failed to write resolution batch: %w", err)
			}
			m.log.Info("Resolution batch written", map[string]interface{}{
				"processed":  summary.Total,
				"unresolved": summary.Unresolved,
			})
			pending = pending[:0]
		}
	}

	if len(pending) > 0 {
		if err := m.sales.UpdateResolutions(ctx, pending); err != nil {
			return summary, fmt.Errorf("failed to write final resolution batch: %w", err)
		}
	}

	m.log.Info("Matching complete", map[string]interface{}{
		"total":      summary.Total,
		"unit":       summary.UnitMatches,
		"block_lot":  summary.BlockLotMatches,
		"unresolved": summary.Unresolved,
	})

	return summary, nil
}

// resolve applies the strategy ladder to a single sale and records the
// outcome on both the sale and the summary. Resolution fields are assigned
// exactly once per run; a re-run overwrites them rather than appending.
func (m *Matcher) resolve(ctx context.Context, sale *models.RawSale, summary *Summary) {
	summary.Total++

	id, err := saleIdentifier(sale)
	if err != nil {
		markUnresolved(sale, models.ReasonMissingBBLComponents)
		summary.AddUnresolved(models.ReasonMissingBBLComponents, evidence(sale, ""))
		return
	}

	// Strategy 1: the raw identifier is a registered unit verbatim.
	if base, ok := m.graph.BaseFor(id.String()); ok {
		unit := id.String()
		sale.UnitBBL = &unit
		sale.BaseBBL = &base
		sale.MatchMethod = models.MatchUnitIdentifier
		sale.UnresolvedReason = nil
		summary.UnitMatches++
		return
	}

	// Strategy 2: block-level fallback through the graph.
	if base, ok := m.blockCandidate(id.BlockPrefix()); ok {
		sale.UnitBBL = nil
		sale.BaseBBL = &base
		sale.MatchMethod = models.MatchBlockLot
		sale.UnresolvedReason = nil
		summary.BlockLotMatches++
		return
	}

	// Strategy 2b: no graph candidates on the block; the identifier may
	// still name a plain (non-condo) parcel directly.
	parcel, err := m.parcels.FindByBBL(ctx, id.String())
	if err != nil {
		m.log.Error("Parcel lookup failed", err, map[string]interface{}{
			"bbl":     id.String(),
			"sale_id": sale.ID,
		})
	}
	if parcel != nil {
		base := parcel.BBL
		sale.UnitBBL = nil
		sale.BaseBBL = &base
		sale.MatchMethod = models.MatchBlockLot
		sale.UnresolvedReason = nil
		summary.BlockLotMatches++
		return
	}

	markUnresolved(sale, models.ReasonNoUnitOrPropertyMatch)
	summary.AddUnresolved(models.ReasonNoUnitOrPropertyMatch, evidence(sale, id.String()))
}

// blockCandidate picks the base parcel for a block prefix. A single
// candidate is adopted outright. With several condominiums on one block the
// base with the most registered units wins; the assumption is that the
// largest building is the intended target when the source truncated the
// unit lot. That is a disambiguation heuristic, not a proof of correctness.
// Ties on unit count fall back to the smallest identifier so that re-runs
// are deterministic.
func (m *Matcher) blockCandidate(prefix string) (string, bool) {
	candidates := m.graph.CandidatesForBlock(prefix)
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	sort.Strings(candidates)
	best := candidates[0]
	for _, c := range candidates[1:] {
		if m.graph.UnitCount(c) > m.graph.UnitCount(best) {
			best = c
		}
	}
	return best, true
}

// saleIdentifier builds the normalized identifier from the sale's raw
// borough/block/lot fields.
func saleIdentifier(sale *models.RawSale) (bbl.ID, error) {
	if sale.Borough == nil || sale.Block == nil || sale.Lot == nil {
		return "", fmt.Errorf("sale %d is missing BBL components", sale.ID)
	}
	return bbl.Normalize(*sale.Borough, *sale.Block, *sale.Lot)
}

// markUnresolved stamps the unresolved outcome on a sale, clearing any
// resolution from a previous run.
func markUnresolved(sale *models.RawSale, reason models.UnresolvedReason) {
	sale.UnitBBL = nil
	sale.BaseBBL = nil
	sale.MatchMethod = models.MatchUnresolved
	r := reason
	sale.UnresolvedReason = &r
}

// evidence renders the human-readable sample string kept per reason bucket.
func evidence(sale *models.RawSale, id string) string {
	addr := ""
	if sale.Address != nil {
		addr = *sale.Address
	}
	if id == "" {
		id = "<no bbl>"
	}
	return fmt.Sprintf("%s [%s]", addr, id)
}
