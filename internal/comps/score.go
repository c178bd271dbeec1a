package comps

import (
	"math"
	"time"
)

// Confidence tiers attached to an opportunity score.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Component weights of the opportunity score. The five-factor decomposition
// and these weights are surfaced factor-by-factor in the product UI, so
// they are part of the contract, not tuning constants.
const (
	weightMispricing = 0.40
	weightRecency    = 0.15
	weightSize       = 0.15
	weightLiquidity  = 0.15
	weightRisk       = 0.15
)

// neutralComponent is the midpoint every bounded component is centered on.
const neutralComponent = 50.0

// ScoreComponents is the per-factor breakdown of an opportunity score.
// Each component is clamped to [0,100] before weighting.
type ScoreComponents struct {
	Mispricing float64 `json:"mispricing"`
	Recency    float64 `json:"recency"`
	Size       float64 `json:"size"`
	Liquidity  float64 `json:"liquidity"`
	Risk       float64 `json:"risk"`
}

// ScoreResult is the opportunity score with its confidence tier and
// explainable component breakdown.
type ScoreResult struct {
	Score      int             `json:"score"`
	Confidence Confidence      `json:"confidence"`
	Components ScoreComponents `json:"components"`
}

// Score computes the 0-100 opportunity score as a pure function of the
// property's price, estimated value, year built, and size. When price or
// estimated value is missing or non-positive the result is the neutral
// score with Low confidence; a confident score is never fabricated from
// absent inputs.
func Score(price, estimatedValue *float64, yearBuilt, sqft *int) ScoreResult {
	if price == nil || estimatedValue == nil || *price <= 0 || *estimatedValue <= 0 {
		return ScoreResult{
			Score:      int(neutralComponent),
			Confidence: ConfidenceLow,
			Components: ScoreComponents{
				Mispricing: neutralComponent,
				Recency:    neutralComponent,
				Size:       neutralComponent,
				Liquidity:  neutralComponent,
				Risk:       neutralComponent,
			},
		}
	}

	components := ScoreComponents{
		Mispricing: mispricingComponent(*price, *estimatedValue),
		Recency:    recencyComponent(yearBuilt),
		Size:       sizeComponent(sqft),
		// Static placeholders pending transaction-volume and
		// market-volatility inputs.
		Liquidity: neutralComponent,
		Risk:      neutralComponent,
	}

	weighted := components.Mispricing*weightMispricing +
		components.Recency*weightRecency +
		components.Size*weightSize +
		components.Liquidity*weightLiquidity +
		components.Risk*weightRisk

	score := int(math.Round(clamp(weighted, 0, 100)))

	return ScoreResult{
		Score:      score,
		Confidence: confidenceFor(score),
		Components: components,
	}
}

// mispricingComponent rewards a price below the estimated value and
// penalizes one above it, centered at the neutral midpoint. A price equal
// to the estimate scores exactly 50.
func mispricingComponent(price, estimatedValue float64) float64 {
	discount := (estimatedValue - price) / estimatedValue
	return clamp(neutralComponent+discount*100, 0, 100)
}

// recencyComponent favors newer construction. Unknown year built stays
// neutral rather than guessing.
func recencyComponent(yearBuilt *int) float64 {
	if yearBuilt == nil || *yearBuilt <= 0 {
		return neutralComponent
	}
	age := time.Now().Year() - *yearBuilt
	if age < 0 {
		age = 0
	}
	return clamp(100-float64(age), 0, 100)
}

// sizeComponent favors larger units, saturating at 3000 sqft. Unknown size
// stays neutral.
func sizeComponent(sqft *int) float64 {
	if sqft == nil || *sqft <= 0 {
		return neutralComponent
	}
	return clamp(float64(*sqft)/30, 0, 100)
}

// confidenceFor maps a final score to its confidence tier.
func confidenceFor(score int) Confidence {
	switch {
	case score > 70:
		return ConfidenceHigh
	case score > 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
