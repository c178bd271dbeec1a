// Package units rebuilds the canonical condo_units table from the condo
// registry and the parcel table. Each populate run is a full refresh, not
// an incremental upsert: the table is truncated and rewritten so the result
// is a pure function of current registry and parcel state.
package units

import (
	"context"
	"fmt"
	"strings"

	"github.com/propintel/pipeline/internal/bbl"
	"github.com/propintel/pipeline/internal/logger"
	"github.com/propintel/pipeline/internal/models"
)

// Acceptance thresholds for the post-run health report. Shortfalls are
// reported, not fatal; the best-effort table is still committed.
const (
	MinAddressResolvedPct = 99.0
	MinCoordsResolvedPct  = 99.0
)

// UnitWriter replaces the condo_units table contents in one transaction.
type UnitWriter interface {
	Refresh(ctx context.Context, units []models.CondoUnit) error
}

// Report is the populate run's health summary. Callers branch on the Pass
// booleans to decide whether a follow-up enrichment run is needed.
type Report struct {
	RegistryRows    int     `json:"registryRows"`
	UnitsBuilt      int     `json:"unitsBuilt"`
	Duplicates      int     `json:"duplicates"`
	AddressResolved int     `json:"addressResolved"`
	CoordsResolved  int     `json:"coordsResolved"`
	AddressPct      float64 `json:"addressPct"`
	CoordsPct       float64 `json:"coordsPct"`
	AddressPass     bool    `json:"addressPass"`
	CoordsPass      bool    `json:"coordsPass"`
	DuplicatesPass  bool    `json:"duplicatesPass"`
}

// Populator builds canonical CondoUnit records.
type Populator struct {
	writer UnitWriter
	log    *logger.Logger
}

// NewPopulator creates a Populator writing through the given UnitWriter.
func NewPopulator(writer UnitWriter, log *logger.Logger) *Populator {
	return &Populator{writer: writer, log: log}
}

// Populate rebuilds the condo_units table from registry and parcel rows
// and returns the run's health report. Only the final table write is
// fatal; individual rows that cannot be resolved still produce a unit
// record with whatever fields could be filled.
func (p *Populator) Populate(ctx context.Context, registry []models.RegistryRow, parcels []models.Parcel) (*Report, error) {
	byBBL := indexParcels(parcels)
	blockAddr := buildBlockMajority(parcels)

	report := &Report{RegistryRows: len(registry)}
	seen := make(map[string]struct{}, len(registry))
	units := make([]models.CondoUnit, 0, len(registry))

	for _, row := range registry {
		unitID, err := bbl.NormalizeString(row.UnitBBL)
		if err != nil {
			continue
		}
		baseID, err := bbl.NormalizeString(row.BaseBBL)
		if err != nil {
			continue
		}
		if !unitID.IsUnitLot() {
			continue
		}

		// First occurrence wins; later duplicates are dropped and counted.
		if _, dup := seen[unitID.String()]; dup {
			report.Duplicates++
			continue
		}
		seen[unitID.String()] = struct{}{}

		unit := models.CondoUnit{
			UnitBBL:         unitID.String(),
			BaseBBL:         baseID.String(),
			UnitDesignation: row.UnitDesignation,
			Borough:         unitID.Borough(),
		}

		// Resolution order: unit-id parcel join, base-id parcel join,
		// block-level majority-vote fallback.
		parcel := byBBL[unitID.String()]
		if parcel == nil {
			parcel = byBBL[baseID.String()]
		}
		if parcel != nil {
			id := parcel.ID
			unit.PropertyID = &id
			unit.DisplayAddress = displayAddress(parcel.Address, row.UnitDesignation)
			unit.Location = parcel.Location
			unit.Zip = parcel.Zip
		} else if rep := blockAddr[unitID.BlockPrefix()]; rep != nil {
			unit.DisplayAddress = displayAddress(rep.Address, row.UnitDesignation)
			unit.Location = rep.Location
			unit.Zip = rep.Zip
		}

		if unit.DisplayAddress != nil {
			report.AddressResolved++
		}
		if unit.Location != nil {
			report.CoordsResolved++
		}
		units = append(units, unit)
	}

	report.UnitsBuilt = len(units)
	report.finish()

	if err := p.writer.Refresh(ctx, units); err != nil {
		return report, fmt.Errorf("failed to refresh condo_units table: %w", err)
	}

	p.log.Info("Condo unit populate complete", map[string]interface{}{
		"units":       report.UnitsBuilt,
		"duplicates":  report.Duplicates,
		"address_pct": report.AddressPct,
		"coords_pct":  report.CoordsPct,
	})
	if !report.AddressPass || !report.CoordsPass || !report.DuplicatesPass {
		p.log.Warn("Populate run below acceptance thresholds", map[string]interface{}{
			"address_pass":    report.AddressPass,
			"coords_pass":     report.CoordsPass,
			"duplicates_pass": report.DuplicatesPass,
		})
	}

	return report, nil
}

// finish derives the percentage and pass/fail fields.
func (r *Report) finish() {
	if r.UnitsBuilt > 0 {
		r.AddressPct = 100 * float64(r.AddressResolved) / float64(r.UnitsBuilt)
		r.CoordsPct = 100 * float64(r.CoordsResolved) / float64(r.UnitsBuilt)
	}
	r.AddressPass = r.AddressPct >= MinAddressResolvedPct
	r.CoordsPass = r.CoordsPct >= MinCoordsResolvedPct
	r.DuplicatesPass = r.Duplicates == 0
}

// indexParcels builds the normalized-identifier lookup over parcel rows.
func indexParcels(parcels []models.Parcel) map[string]*models.Parcel {
	byBBL := make(map[string]*models.Parcel, len(parcels))
	for i := range parcels {
		id, err := bbl.NormalizeString(parcels[i].BBL)
		if err != nil {
			continue
		}
		if _, ok := byBBL[id.String()]; !ok {
			byBBL[id.String()] = &parcels[i]
		}
	}
	return byBBL
}

// buildBlockMajority picks, per block prefix, the parcel whose normalized
// address string is the most common on that block. When a unit's own parcel
// join fails this representative stands in for the building. Ties break to
// the lexicographically smaller address so re-runs are stable.
func buildBlockMajority(parcels []models.Parcel) map[string]*models.Parcel {
	type tally struct {
		count  int
		addr   string
		parcel *models.Parcel
	}
	counts := make(map[string]map[string]*tally)

	for i := range parcels {
		p := &parcels[i]
		if p.Address == nil || strings.TrimSpace(*p.Address) == "" {
			continue
		}
		id, err := bbl.NormalizeString(p.BBL)
		if err != nil {
			continue
		}
		prefix := id.BlockPrefix()
		addr := strings.ToUpper(strings.Join(strings.Fields(*p.Address), " "))

		if counts[prefix] == nil {
			counts[prefix] = make(map[string]*tally)
		}
		t := counts[prefix][addr]
		if t == nil {
			counts[prefix][addr] = &tally{count: 1, addr: addr, parcel: p}
		} else {
			t.count++
		}
	}

	best := make(map[string]*models.Parcel, len(counts))
	for prefix, addrs := range counts {
		var winner *tally
		for _, t := range addrs {
			if winner == nil || t.count > winner.count ||
				(t.count == winner.count && t.addr < winner.addr) {
				winner = t
			}
		}
		if winner != nil {
			best[prefix] = winner.parcel
		}
	}
	return best
}

// displayAddress formats the human-readable unit address from the building
// address and the unit designation.
func displayAddress(building *string, designation *string) *string {
	if building == nil || strings.TrimSpace(*building) == "" {
		return nil
	}
	addr := strings.TrimSpace(*building)
	if designation != nil && strings.TrimSpace(*designation) != "" {
		addr = fmt.Sprintf("%s, Unit %s", addr, strings.TrimSpace(*designation))
	}
	return &addr
}
