// Package bbl normalizes Borough-Block-Lot parcel identifiers so that
// identifiers reported by different upstream sources compare byte-equal.
//
// A canonical identifier is a 10-character string: 1-digit borough code,
// 5-digit zero-padded block, 4-digit zero-padded lot.
package bbl

import (
	"fmt"
	"strconv"
	"strings"
)

// Component widths of the canonical identifier.
const (
	BlockWidth = 5
	LotWidth   = 4
	IDLength   = 1 + BlockWidth + LotWidth
)

// CondoUnitLotMin is the conventional lower bound for condominium unit
// lot numbers. Lots at or above this value identify an individual unit
// rather than the parent parcel.
const CondoUnitLotMin = 7501

// BlockPrefixLength is the length of the borough+block prefix shared by
// every lot on the same block.
const BlockPrefixLength = 1 + BlockWidth

// boroughCodes maps two-letter borough abbreviations to their 1-digit codes.
var boroughCodes = map[string]string{
	"MN": "1",
	"BX": "2",
	"BK": "3",
	"QN": "4",
	"SI": "5",
}

// ID is a normalized 10-character parcel identifier.
type ID string

// Normalize builds a canonical identifier from separate borough, block, and
// lot tokens as they appear in upstream feeds. The borough token may be a
// 1-digit numeric code or a two-letter abbreviation (MN, BX, BK, QN, SI).
// Block and lot are zero-padded from whatever digits are present; stray
// punctuation is stripped. Padding is deliberately lenient because upstream
// sources disagree on it, but an unrecognized borough is an error.
func Normalize(borough, block, lot string) (ID, error) {
	code, err := boroughCode(borough)
	if err != nil {
		return "", err
	}

	blockDigits := digitsOnly(block)
	lotDigits := digitsOnly(lot)
	if blockDigits == "" || lotDigits == "" {
		return "", fmt.Errorf("missing block or lot digits (block=%q, lot=%q)", block, lot)
	}
	if len(blockDigits) > BlockWidth {
		blockDigits = strings.TrimLeft(blockDigits, "0")
	}
	if len(lotDigits) > LotWidth {
		lotDigits = strings.TrimLeft(lotDigits, "0")
	}
	if len(blockDigits) > BlockWidth || len(lotDigits) > LotWidth {
		return "", fmt.Errorf("block or lot too wide (block=%q, lot=%q)", block, lot)
	}

	return ID(code + pad(blockDigits, BlockWidth) + pad(lotDigits, LotWidth)), nil
}

// NormalizeString canonicalizes an already-combined identifier string.
// A decimal suffix is stripped when the digits ahead of it already form a
// full identifier ("1002345001.00"); a shorter head treats the point as
// punctuation, so "1002345.001" yields "1002345001". Leading zeros are
// removed and the result re-padded to 10 characters, so identifiers
// produced by different subsystems compare equal.
func NormalizeString(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}

	// A decimal point only carries a source-system suffix when the digits
	// before it already fill the identifier. Otherwise it is separator
	// noise and the digits on both sides belong to the BBL, so
	// "1002345.001" reads as 1002345001.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if head := strings.TrimLeft(digitsOnly(s[:i]), "0"); len(head) >= IDLength {
			s = s[:i]
		}
	}

	digits := strings.TrimLeft(digitsOnly(s), "0")
	if digits == "" {
		return "", fmt.Errorf("identifier %q has no digits", raw)
	}
	if len(digits) > IDLength {
		return "", fmt.Errorf("identifier %q too long after normalization", raw)
	}

	id := ID(pad(digits, IDLength))
	if id.Borough() == "0" {
		return "", fmt.Errorf("identifier %q has no borough component", raw)
	}
	return id, nil
}

// Borough returns the 1-digit borough code component.
func (id ID) Borough() string {
	if len(id) != IDLength {
		return ""
	}
	return string(id[:1])
}

// Block returns the 5-digit block component.
func (id ID) Block() string {
	if len(id) != IDLength {
		return ""
	}
	return string(id[1 : 1+BlockWidth])
}

// Lot returns the 4-digit lot component.
func (id ID) Lot() string {
	if len(id) != IDLength {
		return ""
	}
	return string(id[1+BlockWidth:])
}

// LotNumber returns the lot component as an integer, or 0 when the
// identifier is malformed.
func (id ID) LotNumber() int {
	n, err := strconv.Atoi(id.Lot())
	if err != nil {
		return 0
	}
	return n
}

// BlockPrefix returns the 6-character borough+block prefix shared by every
// lot on the identifier's block.
func (id ID) BlockPrefix() string {
	if len(id) != IDLength {
		return ""
	}
	return string(id[:BlockPrefixLength])
}

// IsUnitLot reports whether the lot component designates an individual
// condominium unit rather than a parent parcel.
func (id ID) IsUnitLot() bool {
	return id.LotNumber() >= CondoUnitLotMin
}

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}

// boroughCode resolves a borough token to its 1-digit code.
func boroughCode(token string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if code, ok := boroughCodes[t]; ok {
		return code, nil
	}
	if len(t) == 1 && t >= "1" && t <= "5" {
		return t, nil
	}
	return "", fmt.Errorf("unrecognized borough token %q", token)
}

// digitsOnly strips everything except ASCII digits.
func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// pad left-pads s with zeros to the given width.
func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
