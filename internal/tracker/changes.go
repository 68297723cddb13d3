package tracker

import (
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// ChangeType classifies a flight change between two network refreshes
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// FlightChange is one difference between consecutive inbound lists
type FlightChange struct {
	Type     ChangeType `json:"type"`
	FlightID string     `json:"flightId"`
	Callsign string     `json:"callsign,omitempty"`
}

// ChangeSummary counts the changes of one refresh
type ChangeSummary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// ChangeDetector tracks inbound flights between network refreshes
type ChangeDetector struct {
	previous map[string]inbound.FlightRecord
	logger   *logger.Logger
}

// NewChangeDetector creates a new change detector
func NewChangeDetector(log *logger.Logger) *ChangeDetector {
	return &ChangeDetector{
		previous: make(map[string]inbound.FlightRecord),
		logger:   log.Named("changes"),
	}
}

// DetectChanges compares current with the previous list and remembers current.
// Added and updated flights are reported in the order of current; removed
// flights follow.
func (cd *ChangeDetector) DetectChanges(current []inbound.FlightRecord) []FlightChange {
	var changes []FlightChange
	currentMap := make(map[string]inbound.FlightRecord, len(current))

	for _, f := range current {
		currentMap[f.FlightID] = f
		prev, exists := cd.previous[f.FlightID]
		switch {
		case !exists:
			changes = append(changes, FlightChange{Type: ChangeAdded, FlightID: f.FlightID, Callsign: f.Callsign})
		case rawChanged(prev, f):
			changes = append(changes, FlightChange{Type: ChangeUpdated, FlightID: f.FlightID, Callsign: f.Callsign})
		}
	}

	for id, prev := range cd.previous {
		if _, exists := currentMap[id]; !exists {
			changes = append(changes, FlightChange{Type: ChangeRemoved, FlightID: id, Callsign: prev.Callsign})
		}
	}

	cd.previous = currentMap
	if len(changes) > 0 {
		cd.logger.Debug("Detected flight changes", logger.Int("count", len(changes)))
	}
	return changes
}

// Reset forgets the previous list
func (cd *ChangeDetector) Reset() {
	cd.previous = make(map[string]inbound.FlightRecord)
}

// Summarize counts changes by type
func Summarize(changes []FlightChange) ChangeSummary {
	var s ChangeSummary
	for _, c := range changes {
		switch c.Type {
		case ChangeAdded:
			s.Added++
		case ChangeUpdated:
			s.Updated++
		case ChangeRemoved:
			s.Removed++
		}
	}
	return s
}

// rawChanged compares the reported fields only; derived and display fields
// are ignored.
func rawChanged(prev, cur inbound.FlightRecord) bool {
	if !floatPtrEqual(prev.Latitude, cur.Latitude) || !floatPtrEqual(prev.Longitude, cur.Longitude) {
		return true
	}
	return prev.Altitude != cur.Altitude ||
		prev.Speed != cur.Speed ||
		prev.Heading != cur.Heading ||
		prev.VerticalSpeed != cur.VerticalSpeed ||
		prev.Callsign != cur.Callsign ||
		prev.AircraftID != cur.AircraftID ||
		prev.LastReport != cur.LastReport
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
