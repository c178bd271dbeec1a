package models

import "github.com/google/uuid"

// Comp is a directed relation from a subject property to a comparable
// property, with a similarity score and the per-attribute adjustments used
// to derive the adjusted comparable price.
type Comp struct {
	SubjectID     uuid.UUID `json:"subjectId"`
	CompID        uuid.UUID `json:"compId"`
	Similarity    float64   `json:"similarity"` // [0,1]
	SqftAdj       float64   `json:"sqftAdj"`
	AgeAdj        float64   `json:"ageAdj"`
	BedroomAdj    float64   `json:"bedroomAdj"`
	AdjustedPrice float64   `json:"adjustedPrice"`
}
