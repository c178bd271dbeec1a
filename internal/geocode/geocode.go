// Package geocode drives the external address-normalization service. The
// service itself is an external collaborator; this package only slices
// pending work into batches and dispatches them with bounded concurrency
// under a per-second request budget, since the upstream enforces its own
// quota.
package geocode

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/propintel/pipeline/internal/logger"
)

// DefaultBatchSize is how many requests are grouped per upstream call.
const DefaultBatchSize = 100

// MinConfidence is the floor under which a geocode result is recorded as
// skipped rather than applied.
const MinConfidence = 0.7

// Request is one address to normalize.
type Request struct {
	Address      string `json:"address"`
	BoroughOrZip string `json:"boroughOrZip"`
}

// Result is the upstream response for one request, in input order.
type Result struct {
	Success           bool     `json:"success"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	BBL               *string  `json:"bbl,omitempty"`
	Confidence        float64  `json:"confidence"`
	NormalizedAddress *string  `json:"normalizedAddress,omitempty"`
}

// Outcome labels what the pipeline did with one request's result.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// BatchNormalizer is the narrow interface to the geocoding service.
// Implementations must return exactly one result per request, in input
// order.
type BatchNormalizer interface {
	BatchNormalize(ctx context.Context, requests []Request) ([]Result, error)
}

// Summary reports one enrichment run.
type Summary struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Dispatcher batches geocode requests against the upstream quota.
type Dispatcher struct {
	client        BatchNormalizer
	log           *logger.Logger
	batchSize     int
	maxConcurrent int
	limiter       *rate.Limiter
}

// NewDispatcher creates a Dispatcher. maxPerSecond caps the request rate,
// maxConcurrent the in-flight batches; non-positive values fall back to
// conservative defaults.
func NewDispatcher(client BatchNormalizer, log *logger.Logger, batchSize, maxPerSecond, maxConcurrent int) *Dispatcher {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if maxPerSecond < 1 {
		maxPerSecond = 10
	}
	if maxConcurrent < 1 {
		maxConcurrent = 2
	}
	// Burst must cover a whole batch or WaitN can never be satisfied.
	burst := maxPerSecond
	if batchSize > burst {
		burst = batchSize
	}
	return &Dispatcher{
		client:        client,
		log:           log,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		limiter:       rate.NewLimiter(rate.Limit(maxPerSecond), burst),
	}
}

// Run dispatches every request, in batches, and returns one outcome-tagged
// result per request in input order. A failed batch marks its requests
// failed and never blocks the remaining batches; nothing is retried. Only
// context cancellation aborts the run.
func (d *Dispatcher) Run(ctx context.Context, requests []Request) ([]Result, []Outcome, *Summary, error) {
	results := make([]Result, len(requests))
	outcomes := make([]Outcome, len(requests))
	summary := &Summary{Total: len(requests)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrent)

	for start := 0; start < len(requests); start += d.batchSize {
		end := start + d.batchSize
		if end > len(requests) {
			end = len(requests)
		}
		start, end := start, end

		g.Go(func() error {
			// One token per request in the batch keeps the aggregate
			// rate under the upstream quota.
			if err := d.limiter.WaitN(gctx, end-start); err != nil {
				return err
			}

			batch, err := d.client.BatchNormalize(gctx, requests[start:end])
			if err != nil || len(batch) != end-start {
				if err != nil {
					d.log.Warn("Geocode batch failed", map[string]interface{}{
						"offset": start,
						"size":   end - start,
						"error":  err.Error(),
					})
				}
				for i := start; i < end; i++ {
					outcomes[i] = OutcomeFailed
				}
				return nil
			}

			for i, res := range batch {
				results[start+i] = res
				outcomes[start+i] = classify(res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, summary, fmt.Errorf("geocode dispatch aborted: %w", err)
	}

	for _, o := range outcomes {
		switch o {
		case OutcomeApplied:
			summary.Applied++
		case OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	d.log.Info("Geocode dispatch complete", map[string]interface{}{
		"total":   summary.Total,
		"applied": summary.Applied,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
	})

	return results, outcomes, summary, nil
}

// classify maps one upstream result to its pipeline outcome. A result
// without both coordinates carries nothing to apply, whatever the upstream
// claims.
func classify(res Result) Outcome {
	switch {
	case !res.Success:
		return OutcomeFailed
	case res.Latitude == nil || res.Longitude == nil:
		return OutcomeFailed
	case res.Confidence < MinConfidence:
		return OutcomeSkipped
	default:
		return OutcomeApplied
	}
}
