// Package pipeline wires the resolution and valuation stages together.
// Every stage receives its storage interfaces and the identity graph
// explicitly; there are no ambient handles, so each stage is testable
// against fixture data.
package pipeline

import (
	"context"
	"fmt"

	"github.com/propintel/pipeline/internal/comps"
	"github.com/propintel/pipeline/internal/config"
	"github.com/propintel/pipeline/internal/geocode"
	"github.com/propintel/pipeline/internal/identity"
	"github.com/propintel/pipeline/internal/logger"
	"github.com/propintel/pipeline/internal/matcher"
	"github.com/propintel/pipeline/internal/models"
	"github.com/propintel/pipeline/internal/repository"
	"github.com/propintel/pipeline/internal/units"
)

// Pipeline orchestrates the batch stages: matching, unit population,
// comp selection and scoring, and geocode enrichment.
type Pipeline struct {
	cfg        *config.Config
	log        *logger.Logger
	parcels    repository.ParcelRepository
	registry   repository.RegistryRepository
	sales      repository.SaleRepository
	units      repository.UnitRepository
	properties repository.PropertyRepository
	geocoder   geocode.BatchNormalizer
}

// RunSummary aggregates every stage's summary for one full run. It is the
// operational contract dashboards and alerting consume.
type RunSummary struct {
	Match   *matcher.Summary `json:"match,omitempty"`
	Units   *units.Report    `json:"units,omitempty"`
	Scoring *ScoringSummary  `json:"scoring,omitempty"`
	Geocode *geocode.Summary `json:"geocode,omitempty"`
}

// ScoringSummary reports the comp/score stage.
type ScoringSummary struct {
	Properties   int `json:"properties"`
	CompsWritten int `json:"compsWritten"`
	WriteErrors  int `json:"writeErrors"`
}

// New creates a Pipeline over explicit repository dependencies. geocoder
// may be nil when no enrichment service is configured; EnrichUnits then
// reports an error and every other stage still works.
func New(
	cfg *config.Config,
	log *logger.Logger,
	parcels repository.ParcelRepository,
	registry repository.RegistryRepository,
	sales repository.SaleRepository,
	unitRepo repository.UnitRepository,
	properties repository.PropertyRepository,
	geocoder geocode.BatchNormalizer,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		log:        log,
		parcels:    parcels,
		registry:   registry,
		sales:      sales,
		units:      unitRepo,
		properties: properties,
		geocoder:   geocoder,
	}
}

// MatchSales builds the identity graph and resolves every raw sale against
// it. A registry or sale load failure is fatal; no partial result is
// meaningful without the base indices.
func (p *Pipeline) MatchSales(ctx context.Context) (*matcher.Summary, error) {
	log := p.log.WithStage("matcher")

	registry, err := p.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load condo registry: %w", err)
	}

	graph := identity.Build(registry)
	log.Info("Identity graph built", map[string]interface{}{
		"registry_rows": len(registry),
		"indexed_units": graph.Size(),
	})

	sales, err := p.sales.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load raw sales: %w", err)
	}

	m := matcher.New(graph, p.parcels, p.sales, log, p.cfg.Matcher.WriteBatchSize)
	return m.Run(ctx, sales)
}

// PopulateUnits rebuilds the condo_units table from the registry and
// parcel tables.
func (p *Pipeline) PopulateUnits(ctx context.Context) (*units.Report, error) {
	log := p.log.WithStage("units")

	registry, err := p.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load condo registry: %w", err)
	}

	parcels, err := p.parcels.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parcel table: %w", err)
	}

	populator := units.NewPopulator(p.units, log)
	return populator.Populate(ctx, registry, parcels)
}

// ScoreProperties selects comparables per ZIP group and recomputes every
// property's opportunity score. Individual write failures are counted in
// the summary and never abort the stage.
func (p *Pipeline) ScoreProperties(ctx context.Context) (*ScoringSummary, error) {
	log := p.log.WithStage("scoring")

	properties, err := p.properties.ListScorable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}

	selector := comps.NewSelector(p.cfg.Comps.MaxComps, p.cfg.Comps.MaxAdjustedPrice, p.cfg.Comps.Seed)
	groups := comps.GroupByZip(properties)

	summary := &ScoringSummary{}
	for _, group := range groups {
		for _, subject := range group {
			summary.Properties++

			selected := selector.SelectComps(subject, group)
			if err := p.properties.ReplaceComps(ctx, subject.ID, selected); err != nil {
				summary.WriteErrors++
				log.Error("Failed to write comps", err, map[string]interface{}{
					"property_id": subject.ID,
				})
			} else {
				summary.CompsWritten += len(selected)
			}

			result := comps.Score(subject.LastSalePrice, subject.EstimatedValue, subject.YearBuilt, subject.Sqft)
			if err := p.properties.UpdateScore(ctx, subject.ID, result.Score, string(result.Confidence)); err != nil {
				summary.WriteErrors++
				log.Error("Failed to write score", err, map[string]interface{}{
					"property_id": subject.ID,
				})
			}
		}
	}

	log.Info("Scoring complete", map[string]interface{}{
		"properties":    summary.Properties,
		"comps_written": summary.CompsWritten,
		"write_errors":  summary.WriteErrors,
	})

	return summary, nil
}

// EnrichUnits geocodes units the populate run left without coordinates.
// Failed or low-confidence results are recorded and skipped, never
// retried within the run. A result that geocoded but could not be
// persisted counts as failed, so the summary reflects what actually
// landed in storage.
func (p *Pipeline) EnrichUnits(ctx context.Context) (*geocode.Summary, error) {
	log := p.log.WithStage("geocode")

	if p.geocoder == nil {
		return nil, fmt.Errorf("no geocoding service configured")
	}

	pending, err := p.units.ListMissingCoordinates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load units missing coordinates: %w", err)
	}
	if len(pending) == 0 {
		return &geocode.Summary{}, nil
	}

	requests := make([]geocode.Request, len(pending))
	for i, unit := range pending {
		addr := ""
		if unit.DisplayAddress != nil {
			addr = *unit.DisplayAddress
		}
		boroughOrZip := unit.Borough
		if unit.Zip != nil && *unit.Zip != "" {
			boroughOrZip = *unit.Zip
		}
		requests[i] = geocode.Request{Address: addr, BoroughOrZip: boroughOrZip}
	}

	dispatcher := geocode.NewDispatcher(p.geocoder, log,
		p.cfg.Geocode.BatchSize, p.cfg.Geocode.MaxPerSecond, p.cfg.Geocode.MaxConcurrent)

	results, outcomes, summary, err := dispatcher.Run(ctx, requests)
	if err != nil {
		return summary, err
	}

	for i, outcome := range outcomes {
		if outcome != geocode.OutcomeApplied {
			continue
		}
		// An applied outcome always carries both coordinates.
		res := results[i]
		point := models.Point{Lat: *res.Latitude, Lng: *res.Longitude, SRID: 4326}
		if err := p.units.UpdateLocation(ctx, pending[i].UnitBBL, point); err != nil {
			log.Error("Failed to persist geocode result", err, map[string]interface{}{
				"unit_bbl": pending[i].UnitBBL,
			})
			// Keep the summary honest: applied means persisted.
			summary.Applied--
			summary.Failed++
		}
	}

	return summary, nil
}

// Run executes every stage in order and returns the consolidated summary.
// Enrichment runs only when a geocoder is configured.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	match, err := p.MatchSales(ctx)
	if err != nil {
		return summary, err
	}
	summary.Match = match

	report, err := p.PopulateUnits(ctx)
	if err != nil {
		return summary, err
	}
	summary.Units = report

	scoring, err := p.ScoreProperties(ctx)
	if err != nil {
		return summary, err
	}
	summary.Scoring = scoring

	if p.geocoder != nil {
		enrich, err := p.EnrichUnits(ctx)
		if err != nil {
			return summary, err
		}
		summary.Geocode = enrich
	}

	return summary, nil
}
