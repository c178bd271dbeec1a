package matcher

import "github.com/propintel/pipeline/internal/models"

// MaxReasonSamples caps how many evidence strings each unresolved-reason
// bucket retains for operator diagnosis.
const MaxReasonSamples = 5

// ReasonBucket aggregates one unresolved-reason category.
type ReasonBucket struct {
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

// Summary is the matcher's primary observability output. It is returned to
// the caller rather than only logged, so tooling and tests can assert on
// it directly.
type Summary struct {
	Total           int                                            `json:"total"`
	UnitMatches     int                                            `json:"unitMatches"`
	BlockLotMatches int                                            `json:"blockLotMatches"`
	Unresolved      int                                            `json:"unresolved"`
	Reasons         map[models.UnresolvedReason]*ReasonBucket      `json:"reasons"`
}

// NewSummary returns an empty summary ready for accumulation.
func NewSummary() *Summary {
	return &Summary{
		Reasons: make(map[models.UnresolvedReason]*ReasonBucket),
	}
}

// AddUnresolved counts an unresolved outcome and retains the evidence
// string if the bucket's sample cap has not been reached.
func (s *Summary) AddUnresolved(reason models.UnresolvedReason, evidence string) {
	s.Unresolved++

	bucket := s.Reasons[reason]
	if bucket == nil {
		bucket = &ReasonBucket{}
		s.Reasons[reason] = bucket
	}
	bucket.Count++
	if len(bucket.Samples) < MaxReasonSamples {
		bucket.Samples = append(bucket.Samples, evidence)
	}
}
