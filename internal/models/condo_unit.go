package models

import "github.com/google/uuid"

// CondoUnit represents a single condominium unit within a building.
// The table is rebuilt wholesale by each populate run; no two rows may
// share a unit identifier.
type CondoUnit struct {
	UnitBBL         string     `json:"unitBbl"`
	BaseBBL         string     `json:"baseBbl"`
	UnitDesignation *string    `json:"unitDesignation,omitempty"`
	PropertyID      *uuid.UUID `json:"propertyId,omitempty"`
	DisplayAddress  *string    `json:"displayAddress,omitempty"`
	Location        *Point     `json:"location,omitempty"`
	Borough         string     `json:"borough"`
	Zip             *string    `json:"zip,omitempty"`
}
