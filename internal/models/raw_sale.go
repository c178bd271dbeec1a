package models

import "time"

// RawSale is an external transaction record as received from the source
// feed. The raw fields are immutable; only the resolution fields are
// written by the matcher, and they are overwritten idempotently on re-runs.
type RawSale struct {
	ID        int64      `json:"id"`
	Borough   *string    `json:"borough,omitempty"`
	Block     *string    `json:"block,omitempty"`
	Lot       *string    `json:"lot,omitempty"`
	Address   *string    `json:"address,omitempty"`
	Apartment *string    `json:"apartment,omitempty"`
	Price     *float64   `json:"price,omitempty"`
	SaleDate  *time.Time `json:"saleDate,omitempty"`

	// Resolution fields, owned by the matcher.
	UnitBBL          *string           `json:"unitBbl,omitempty"`
	BaseBBL          *string           `json:"baseBbl,omitempty"`
	MatchMethod      MatchMethod       `json:"matchMethod,omitempty"`
	UnresolvedReason *UnresolvedReason `json:"unresolvedReason,omitempty"`
}
