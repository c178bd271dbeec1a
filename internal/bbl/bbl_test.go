package bbl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NumericBorough(t *testing.T) {
	id, err := Normalize("1", "1234", "7501")

	require.NoError(t, err)
	assert.Equal(t, ID("1012347501"), id)
}

func TestNormalize_BoroughAbbreviations(t *testing.T) {
	tests := []struct {
		borough string
		want    string
	}{
		{"MN", "1"},
		{"BX", "2"},
		{"BK", "3"},
		{"QN", "4"},
		{"SI", "5"},
		{"bk", "3"}, // case-insensitive
	}

	for _, tt := range tests {
		id, err := Normalize(tt.borough, "00001", "0001")
		require.NoError(t, err, "borough %q", tt.borough)
		assert.Equal(t, tt.want, id.Borough(), "borough %q", tt.borough)
	}
}

func TestNormalize_UnrecognizedBorough(t *testing.T) {
	_, err := Normalize("XX", "1234", "1")
	assert.Error(t, err)

	_, err = Normalize("7", "1234", "1")
	assert.Error(t, err)
}

func TestNormalize_PadsShortComponents(t *testing.T) {
	id, err := Normalize("1", "42", "7")

	require.NoError(t, err)
	assert.Equal(t, ID("1000420007"), id)
	assert.Equal(t, "00042", id.Block())
	assert.Equal(t, "0007", id.Lot())
}

func TestNormalize_StripsPunctuation(t *testing.T) {
	id, err := Normalize("1", "1,234", "0001")

	require.NoError(t, err)
	assert.Equal(t, ID("1012340001"), id)
}

func TestNormalize_MissingComponents(t *testing.T) {
	_, err := Normalize("1", "", "7501")
	assert.Error(t, err)

	_, err = Normalize("1", "1234", "")
	assert.Error(t, err)
}

func TestNormalizeString_StripsDecimalSuffix(t *testing.T) {
	id, err := NormalizeString("1002345.001")

	require.NoError(t, err)
	assert.Equal(t, ID("1002345001"), id)
}

func TestNormalizeString_DropsSuffixAfterFullIdentifier(t *testing.T) {
	// Ten digits ahead of the point make everything after it a suffix.
	id, err := NormalizeString("1002345001.00")

	require.NoError(t, err)
	assert.Equal(t, ID("1002345001"), id)

	// Leading zeros on the head do not change how it is read.
	id, err = NormalizeString("0001002345001.00")
	require.NoError(t, err)
	assert.Equal(t, ID("1002345001"), id)
}

func TestNormalizeString_StripsLeadingZerosAndRepads(t *testing.T) {
	// A wider upstream field left-pads the whole identifier with zeros.
	id, err := NormalizeString("0001002345001")

	require.NoError(t, err)
	assert.Equal(t, ID("1002345001"), id)
}

func TestNormalizeString_Idempotent(t *testing.T) {
	first, err := NormalizeString("1002345.001")
	require.NoError(t, err)

	second, err := NormalizeString(first.String())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeString_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no digits", "n/a"},
		{"too long", "99990123456789"},
		{"missing borough", "2345001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeString(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestID_Components(t *testing.T) {
	id := ID("3054327502")

	assert.Equal(t, "3", id.Borough())
	assert.Equal(t, "05432", id.Block())
	assert.Equal(t, "7502", id.Lot())
	assert.Equal(t, 7502, id.LotNumber())
	assert.Equal(t, "305432", id.BlockPrefix())
	assert.True(t, id.IsUnitLot())
}

func TestID_IsUnitLot_Boundary(t *testing.T) {
	assert.True(t, ID("1012347501").IsUnitLot())
	assert.False(t, ID("1012347500").IsUnitLot())
	assert.False(t, ID("1012340001").IsUnitLot())
}
