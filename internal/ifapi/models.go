package ifapi

import "encoding/json"

// envelope is the wrapper every upstream response carries
type envelope struct {
	ErrorCode *int            `json:"errorCode"`
	Result    json.RawMessage `json:"result"`
}

// Airport is the subset of /airport/{icao} the tracker uses
type Airport struct {
	ICAO      string   `json:"icao"`
	IATA      string   `json:"iata,omitempty"`
	Name      string   `json:"name,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// AirportStatus is the session view of one airport
type AirportStatus struct {
	AirportICAO          string        `json:"airportIcao"`
	AirportName          string        `json:"airportName,omitempty"`
	InboundFlightsCount  int           `json:"inboundFlightsCount"`
	InboundFlights       []string      `json:"inboundFlights"`
	OutboundFlightsCount int           `json:"outboundFlightsCount"`
	OutboundFlights      []string      `json:"outboundFlights"`
	ATCFacilities        []ATCFacility `json:"atcFacilities"`
}

// Flight is one live flight in a session. Position fields are pointers so a
// missing report can be told apart from the equator or prime meridian.
type Flight struct {
	FlightID            string   `json:"flightId"`
	UserID              string   `json:"userId,omitempty"`
	AircraftID          string   `json:"aircraftId"`
	LiveryID            string   `json:"liveryId,omitempty"`
	Callsign            string   `json:"callsign"`
	Username            string   `json:"username,omitempty"`
	VirtualOrganization string   `json:"virtualOrganization,omitempty"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	Altitude            float64  `json:"altitude"`
	Speed               float64  `json:"speed"`
	VerticalSpeed       float64  `json:"verticalSpeed"`
	Track               float64  `json:"track"`
	Heading             float64  `json:"heading"`
	LastReport          string   `json:"lastReport,omitempty"`
}

// ATCFacility is one staffed frequency
type ATCFacility struct {
	FrequencyID         string  `json:"frequencyId"`
	UserID              string  `json:"userId,omitempty"`
	Username            string  `json:"username"`
	VirtualOrganization string  `json:"virtualOrganization,omitempty"`
	AirportName         string  `json:"airportName"`
	Type                int     `json:"type"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	StartTime           string  `json:"startTime,omitempty"`
}

// WorldAirport is one entry of the session world summary
type WorldAirport struct {
	AirportICAO          string        `json:"airportIcao"`
	InboundFlightsCount  int           `json:"inboundFlightsCount"`
	OutboundFlightsCount int           `json:"outboundFlightsCount"`
	ATCFacilities        []ATCFacility `json:"atcFacilities,omitempty"`
}
