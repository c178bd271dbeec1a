package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Point represents a PostGIS Point geometry in GeoJSON coordinate order
// [lng, lat]. SRID 4326 (WGS84) is used throughout.
type Point struct {
	Lng  float64
	Lat  float64
	SRID int
}

// Scan implements sql.Scanner for reading point geometry from the database.
// PostGIS returns the geometry as GeoJSON via ST_AsGeoJSON.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, isStr := value.(string); isStr {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("failed to scan Point: expected []byte, got %T", value)
		}
	}

	var geom struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(bytes, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point geometry: %w", err)
	}

	if geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	p.Lng = geom.Coordinates[0]
	p.Lat = geom.Coordinates[1]
	p.SRID = 4326

	return nil
}

// Value implements driver.Valuer for writing point geometry to the database.
// Returns GeoJSON for use with ST_GeomFromGeoJSON in raw SQL.
func (p Point) Value() (driver.Value, error) {
	geoJSON, err := json.Marshal(map[string]interface{}{
		"type":        "Point",
		"coordinates": [2]float64{p.Lng, p.Lat},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal point to GeoJSON: %w", err)
	}
	return string(geoJSON), nil
}

// MarshalJSON implements json.Marshaler, emitting GeoJSON-compliant output.
func (p Point) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{
		Type:        "Point",
		Coordinates: [2]float64{p.Lng, p.Lat},
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}

	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	p.Lng = geom.Coordinates[0]
	p.Lat = geom.Coordinates[1]
	p.SRID = 4326

	return nil
}
