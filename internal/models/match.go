package models

// MatchMethod records how a raw sale was resolved against the identity graph.
type MatchMethod string

const (
	// MatchUnitIdentifier means the sale's identifier hit a registered
	// condominium unit verbatim.
	MatchUnitIdentifier MatchMethod = "unit_identifier"

	// MatchBlockLot means the sale resolved through the block-level
	// fallback or a direct parcel-table hit.
	MatchBlockLot MatchMethod = "block_lot"

	// MatchUnresolved means no strategy produced a confident placement.
	MatchUnresolved MatchMethod = "unresolved"
)

// IsValid checks if a match method is recognized.
func (m MatchMethod) IsValid() bool {
	switch m {
	case MatchUnitIdentifier, MatchBlockLot, MatchUnresolved:
		return true
	}
	return false
}

// UnresolvedReason categorizes why a raw sale could not be resolved.
type UnresolvedReason string

const (
	// ReasonMissingBBLComponents means the raw record lacked the
	// borough/block/lot fields needed to build an identifier at all.
	ReasonMissingBBLComponents UnresolvedReason = "missing_bbl_components"

	// ReasonNoUnitOrPropertyMatch means the identifier was well formed but
	// hit neither the identity graph nor the parcel table.
	ReasonNoUnitOrPropertyMatch UnresolvedReason = "no_unit_or_property_match"
)
