package inbound

import (
	"math"

	"github.com/yegors/if-inbounds/internal/geo"
	"github.com/yegors/if-inbounds/internal/ifapi"
)

// Callsign shown for flights that report none
const unknownCallsign = "N/A"

// knotsPerMach converts ground speed to the Mach figure shown next to the
// aircraft's cruise range
const knotsPerMach = 666.739

// FlightRecord is one inbound flight with its derived geometry
type FlightRecord struct {
	FlightID            string   `json:"flightId"`
	Callsign            string   `json:"callsign"`
	AircraftID          string   `json:"aircraftId"`
	AircraftName        string   `json:"aircraftName"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	Altitude            float64  `json:"altitude"`
	Speed               float64  `json:"speed"`
	Heading             float64  `json:"heading"`
	VerticalSpeed       float64  `json:"verticalSpeed"`
	LastReport          string   `json:"lastReport,omitempty"`
	VirtualOrganization string   `json:"virtualOrganization,omitempty"`

	// Mach from ground speed, and the type's cruise range when catalogued
	Mach    float64  `json:"mach"`
	MinMach *float64 `json:"minMach"`
	MaxMach *float64 `json:"maxMach"`

	// Derived each cycle; nil when the flight has no position
	DistanceToDestination *int   `json:"distanceToDestination"`
	ETAMinutes            string `json:"etaMinutes"`
	HeadingFromAirport    *int   `json:"headingFromAirport"`

	// Display position moved by interpolation, never by the network tick
	Display    *geo.Point `json:"displayPosition,omitempty"`
	Emphasized bool       `json:"emphasized,omitempty"`
}

// HasPosition reports whether the flight reported both coordinates
func (f *FlightRecord) HasPosition() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Clone returns a deep copy
func (f FlightRecord) Clone() FlightRecord {
	f.Latitude = clonePtr(f.Latitude)
	f.Longitude = clonePtr(f.Longitude)
	f.DistanceToDestination = clonePtr(f.DistanceToDestination)
	f.HeadingFromAirport = clonePtr(f.HeadingFromAirport)
	f.Display = clonePtr(f.Display)
	f.MinMach = clonePtr(f.MinMach)
	f.MaxMach = clonePtr(f.MaxMach)
	return f
}

// CloneFlights deep-copies a slice of records
func CloneFlights(flights []FlightRecord) []FlightRecord {
	if flights == nil {
		return nil
	}
	out := make([]FlightRecord, len(flights))
	for i := range flights {
		out[i] = flights[i].Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// newFlightRecord maps an upstream flight to a record without derived fields
func newFlightRecord(f ifapi.Flight) FlightRecord {
	callsign := f.Callsign
	if callsign == "" {
		callsign = unknownCallsign
	}
	rec := FlightRecord{
		FlightID:            f.FlightID,
		Callsign:            callsign,
		AircraftID:          f.AircraftID,
		AircraftName:        AircraftName(f.AircraftID),
		Latitude:            clonePtr(f.Latitude),
		Longitude:           clonePtr(f.Longitude),
		Altitude:            math.Round(f.Altitude),
		Speed:               math.Round(f.Speed),
		Heading:             math.Round(f.Heading),
		VerticalSpeed:       math.Round(f.VerticalSpeed),
		LastReport:          f.LastReport,
		VirtualOrganization: f.VirtualOrganization,
		Mach:                math.Round(f.Speed/knotsPerMach*100) / 100,
		ETAMinutes:          geo.ETANotAvailable,
	}
	if aircraft, ok := LookupAircraft(f.AircraftID); ok {
		rec.MinMach = &aircraft.MinMach
		rec.MaxMach = &aircraft.MaxMach
	}
	return rec
}

// Controller is one staffed frequency at an airport
type Controller struct {
	FrequencyName string `json:"frequencyName"`
	Username      string `json:"username"`
	Type          int    `json:"type"`
}

func (c Controller) String() string {
	return c.FrequencyName + ": " + c.Username
}

// ActiveAirport is a busy airport in the session
type ActiveAirport struct {
	ICAO         string `json:"icao"`
	InboundCount int    `json:"inboundCount"`
	HasATC       bool   `json:"hasATC"`
	HasApproach  bool   `json:"hasApproach"`
}

// DistanceCounts buckets inbound flights by distance to the airport
type DistanceCounts struct {
	Within50  int `json:"50nm"`
	Within200 int `json:"200nm"`
	Within500 int `json:"500nm"`
}

// ATCAirport is one row of the staffed-airport overview
type ATCAirport struct {
	ICAO           string         `json:"icao"`
	Frequencies    string         `json:"frequencies"`
	DistanceCounts DistanceCounts `json:"distanceCounts"`
	TotalInbounds  int            `json:"totalInbounds"`
}
