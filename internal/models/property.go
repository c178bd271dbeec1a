package models

import (
	"time"

	"github.com/google/uuid"
)

// Property represents a canonical real-world parcel. All nullable fields use
// pointers to distinguish between zero values and NULL.
type Property struct {
	ID             uuid.UUID  `json:"id"`
	BBL            *string    `json:"bbl,omitempty"`
	Address        string     `json:"address"`
	Zip            string     `json:"zip"`
	Location       *Point     `json:"location,omitempty"`
	Sqft           *int       `json:"sqft,omitempty"`
	YearBuilt      *int       `json:"yearBuilt,omitempty"`
	Bedrooms       *int       `json:"bedrooms,omitempty"`
	LastSalePrice  *float64   `json:"lastSalePrice,omitempty"`
	EstimatedValue *float64   `json:"estimatedValue,omitempty"`
	PricePerSqft   *float64   `json:"pricePerSqft,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Parcel is a row of the canonical parcel table keyed by opaque id.
// It is the read-only join target for unit population and matching.
type Parcel struct {
	ID       uuid.UUID `json:"id"`
	BBL      string    `json:"bbl"`
	Address  *string   `json:"address,omitempty"`
	Zip      *string   `json:"zip,omitempty"`
	Location *Point    `json:"location,omitempty"`
}

// RegistryRow is a row of the condominium-unit registry: the authoritative
// mapping from unit identifiers to their parent base parcels.
type RegistryRow struct {
	UnitBBL         string  `json:"unitBbl"`
	BaseBBL         string  `json:"baseBbl"`
	CondoNumber     *string `json:"condoNumber,omitempty"`
	UnitDesignation *string `json:"unitDesignation,omitempty"`
}
