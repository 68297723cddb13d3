package sqlite

import "time"

// PreferenceRecord is one persisted user preference. Value holds JSON.
type PreferenceRecord struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AirportCoordinateRecord is a persisted airport position
type AirportCoordinateRecord struct {
	ICAO      string    `json:"icao"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	FetchedAt time.Time `json:"fetched_at"`
}
