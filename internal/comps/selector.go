// Package comps selects comparable sales for each resolved property and
// derives the opportunity score consumed by the rest of the product.
//
// Candidates are grouped by ZIP code and ranked by normalized distance
// over price-per-area, size, and age; randomness survives only as a seeded
// tie-breaker so that runs are reproducible.
package comps

import (
	"math"
	"math/rand"
	"sort"

	"github.com/propintel/pipeline/internal/models"
)

// Selection bounds.
const (
	// DefaultMaxComps caps the comparable set per subject property.
	DefaultMaxComps = 5

	// DefaultMaxAdjustedPrice guards downstream valuation math against
	// corrupt source prices.
	DefaultMaxAdjustedPrice = 50_000_000

	// representativeSqft stands in for the subject's size when it is
	// unknown, so an adjusted price can still be derived.
	representativeSqft = 1000
)

// Adjustment factor bounds, each a small signed fraction.
const (
	maxSqftAdj    = 0.15
	maxAgeAdj     = 0.10
	maxBedroomAdj = 0.06
)

// Selector ranks and bounds comparable sets.
type Selector struct {
	maxComps    int
	maxAdjPrice float64
	seed        int64
}

// NewSelector creates a Selector. maxComps below 1 falls back to the
// default cap; maxAdjPrice at or below zero falls back to the default
// clamp. The seed drives only tie-breaking among equally distant
// candidates.
func NewSelector(maxComps int, maxAdjPrice float64, seed int64) *Selector {
	if maxComps < 1 {
		maxComps = DefaultMaxComps
	}
	if maxAdjPrice <= 0 {
		maxAdjPrice = DefaultMaxAdjustedPrice
	}
	return &Selector{maxComps: maxComps, maxAdjPrice: maxAdjPrice, seed: seed}
}

// GroupByZip buckets properties by ZIP code, dropping those without one.
func GroupByZip(properties []models.Property) map[string][]*models.Property {
	groups := make(map[string][]*models.Property)
	for i := range properties {
		p := &properties[i]
		if p.Zip == "" {
			continue
		}
		groups[p.Zip] = append(groups[p.Zip], p)
	}
	return groups
}

// SelectComps picks the bounded comparable set for a subject from its ZIP
// group, excluding the subject itself, and attaches adjustment factors and
// the clamped adjusted price to each selected comp.
func (s *Selector) SelectComps(subject *models.Property, zipGroup []*models.Property) []models.Comp {
	type ranked struct {
		prop *models.Property
		dist float64
		tie  int
	}

	candidates := make([]ranked, 0, len(zipGroup))
	for _, c := range zipGroup {
		if c.ID == subject.ID {
			continue
		}
		candidates = append(candidates, ranked{prop: c, dist: distance(subject, c)})
	}

	// Seeded shuffle order is the only randomness left in selection; it
	// decides nothing except ties in the distance ranking.
	rng := rand.New(rand.NewSource(s.seed))
	for i, order := range rng.Perm(len(candidates)) {
		candidates[i].tie = order
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].tie < candidates[j].tie
	})

	limit := s.maxComps
	if len(candidates) < limit {
		limit = len(candidates)
	}

	comps := make([]models.Comp, 0, limit)
	for _, c := range candidates[:limit] {
		comps = append(comps, s.buildComp(subject, c.prop, c.dist))
	}
	return comps
}

// buildComp derives the adjustment factors and adjusted price for one
// subject/comparable pair.
func (s *Selector) buildComp(subject, comp *models.Property, dist float64) models.Comp {
	sqftAdj := boundedRatioAdj(subject.Sqft, comp.Sqft, maxSqftAdj)
	ageAdj := ageAdjustment(subject.YearBuilt, comp.YearBuilt)
	bedroomAdj := bedroomAdjustment(subject.Bedrooms, comp.Bedrooms)

	size := representativeSqft
	if subject.Sqft != nil && *subject.Sqft > 0 {
		size = *subject.Sqft
	}

	adjusted := 0.0
	if comp.PricePerSqft != nil && *comp.PricePerSqft > 0 {
		adjusted = *comp.PricePerSqft * float64(size) * (1 + sqftAdj + ageAdj + bedroomAdj)
		if adjusted > s.maxAdjPrice {
			adjusted = s.maxAdjPrice
		}
	}

	return models.Comp{
		SubjectID:     subject.ID,
		CompID:        comp.ID,
		Similarity:    1 / (1 + dist),
		SqftAdj:       sqftAdj,
		AgeAdj:        ageAdj,
		BedroomAdj:    bedroomAdj,
		AdjustedPrice: adjusted,
	}
}

// distance is the normalized dissimilarity between subject and candidate
// over price-per-area, size, and age. A missing attribute on either side
// contributes a full unit of distance instead of pretending similarity.
func distance(subject, comp *models.Property) float64 {
	d := 0.0
	d += relativeGap(subject.PricePerSqft, comp.PricePerSqft)
	d += relativeGapInt(subject.Sqft, comp.Sqft)

	if subject.YearBuilt == nil || comp.YearBuilt == nil {
		d += 1
	} else {
		d += math.Abs(float64(*subject.YearBuilt-*comp.YearBuilt)) / 50
	}
	return d
}

// relativeGap returns |a-b| / a, or 1 when either value is unusable.
func relativeGap(a, b *float64) float64 {
	if a == nil || b == nil || *a <= 0 || *b <= 0 {
		return 1
	}
	return math.Abs(*a-*b) / *a
}

// relativeGapInt is relativeGap over integer attributes.
func relativeGapInt(a, b *int) float64 {
	if a == nil || b == nil || *a <= 0 || *b <= 0 {
		return 1
	}
	return math.Abs(float64(*a-*b)) / float64(*a)
}

// boundedRatioAdj derives the size adjustment: positive when the subject is
// larger than the comp, bounded to ±maxAdj.
func boundedRatioAdj(subject, comp *int, maxAdj float64) float64 {
	if subject == nil || comp == nil || *comp <= 0 {
		return 0
	}
	adj := float64(*subject-*comp) / float64(*comp)
	return clamp(adj, -maxAdj, maxAdj)
}

// ageAdjustment favors the subject being newer than the comp, half a
// percent per year, bounded to ±maxAgeAdj.
func ageAdjustment(subjectYear, compYear *int) float64 {
	if subjectYear == nil || compYear == nil {
		return 0
	}
	adj := float64(*subjectYear-*compYear) * 0.005
	return clamp(adj, -maxAgeAdj, maxAgeAdj)
}

// bedroomAdjustment adds two percent per extra subject bedroom, bounded to
// ±maxBedroomAdj.
func bedroomAdjustment(subjectBeds, compBeds *int) float64 {
	if subjectBeds == nil || compBeds == nil {
		return 0
	}
	adj := float64(*subjectBeds-*compBeds) * 0.02
	return clamp(adj, -maxBedroomAdj, maxBedroomAdj)
}
