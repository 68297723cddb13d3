package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yegors/if-inbounds/internal/geo"
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/pkg/logger"
)

func TestDetectChanges(t *testing.T) {
	cd := NewChangeDetector(logger.NewNop())

	a, b := northbound("a"), northbound("b")
	changes := cd.DetectChanges([]inbound.FlightRecord{a, b})
	assert.Equal(t, ChangeSummary{Added: 2}, Summarize(changes))

	// derived and display fields alone do not count as an update
	a.Display = &geo.Point{Latitude: 5}
	a.ETAMinutes = "1:00"
	changes = cd.DetectChanges([]inbound.FlightRecord{a, b})
	assert.Empty(t, changes)

	moved := b.Clone()
	*moved.Latitude = -0.5
	c := northbound("c")
	changes = cd.DetectChanges([]inbound.FlightRecord{moved, c})
	assert.ElementsMatch(t, []FlightChange{
		{Type: ChangeUpdated, FlightID: "b", Callsign: "TESTb"},
		{Type: ChangeAdded, FlightID: "c", Callsign: "TESTc"},
		{Type: ChangeRemoved, FlightID: "a", Callsign: "TESTa"},
	}, changes)
}

func TestDetectChangesPositionAppears(t *testing.T) {
	cd := NewChangeDetector(logger.NewNop())

	nopos := inbound.FlightRecord{FlightID: "x"}
	cd.DetectChanges([]inbound.FlightRecord{nopos})

	withPos := nopos
	withPos.Latitude = f64(1)
	withPos.Longitude = f64(1)
	changes := cd.DetectChanges([]inbound.FlightRecord{withPos})
	assert.Equal(t, ChangeSummary{Updated: 1}, Summarize(changes))

	cd.Reset()
	changes = cd.DetectChanges([]inbound.FlightRecord{withPos})
	assert.Equal(t, ChangeSummary{Added: 1}, Summarize(changes))
}
