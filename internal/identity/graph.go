// Package identity builds the in-memory identity graph: the indices that
// map condominium unit identifiers to their parent base parcels and block
// prefixes to candidate bases. Matching never scans a table per
// transaction; everything it needs is indexed here once per run.
package identity

import (
	"github.com/propintel/pipeline/internal/bbl"
	"github.com/propintel/pipeline/internal/models"
)

// Graph holds the read-only indices derived from the condo registry.
type Graph struct {
	unitToBase   map[string]string
	blockToBases map[string]map[string]struct{}
	baseToUnits  map[string][]string
}

// Build constructs the identity graph from registry rows. Rows missing
// either identifier are skipped; identifiers are normalized so that graph
// lookups and raw-sale identifiers compare equal. The block index is keyed
// by the block prefix of the *unit* identifier, which is what a raw sale
// reporting only the parent block/lot pair will share.
func Build(rows []models.RegistryRow) *Graph {
	g := &Graph{
		unitToBase:   make(map[string]string, len(rows)),
		blockToBases: make(map[string]map[string]struct{}),
		baseToUnits:  make(map[string][]string),
	}

	for _, row := range rows {
		unit, err := bbl.NormalizeString(row.UnitBBL)
		if err != nil {
			continue
		}
		base, err := bbl.NormalizeString(row.BaseBBL)
		if err != nil {
			continue
		}

		g.unitToBase[unit.String()] = base.String()
		g.baseToUnits[base.String()] = append(g.baseToUnits[base.String()], unit.String())

		prefix := unit.BlockPrefix()
		if g.blockToBases[prefix] == nil {
			g.blockToBases[prefix] = make(map[string]struct{})
		}
		g.blockToBases[prefix][base.String()] = struct{}{}
	}

	return g
}

// BaseFor returns the parent base identifier for a unit identifier, if the
// unit is registered.
func (g *Graph) BaseFor(unit string) (string, bool) {
	base, ok := g.unitToBase[unit]
	return base, ok
}

// CandidatesForBlock returns the set of base identifiers with registered
// units on the given block prefix.
func (g *Graph) CandidatesForBlock(prefix string) []string {
	set := g.blockToBases[prefix]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for base := range set {
		out = append(out, base)
	}
	return out
}

// UnitCount returns how many units are registered under a base.
func (g *Graph) UnitCount(base string) int {
	return len(g.baseToUnits[base])
}

// Size returns the number of indexed units.
func (g *Graph) Size() int {
	return len(g.unitToBase)
}
