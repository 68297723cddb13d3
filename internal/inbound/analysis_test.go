package inbound

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkFlight(id string, distance, heading int, eta string) FlightRecord {
	return FlightRecord{
		FlightID:              id,
		DistanceToDestination: &distance,
		HeadingFromAirport:    &heading,
		ETAMinutes:            eta,
	}
}

func flightIDs(flights []FlightRecord) []string {
	out := make([]string, 0, len(flights))
	for _, f := range flights {
		out = append(out, f.FlightID)
	}
	return out
}

func TestCountByDistance(t *testing.T) {
	flights := []FlightRecord{
		mkFlight("a", 0, 0, "0:00"),
		mkFlight("b", 50, 0, "0:00"),
		mkFlight("c", 51, 0, "0:00"),
		mkFlight("d", 200, 0, "0:00"),
		mkFlight("e", 201, 0, "0:00"),
		mkFlight("f", 500, 0, "0:00"),
		mkFlight("g", 501, 0, "0:00"),
		{FlightID: "nopos"},
	}
	assert.Equal(t, DistanceCounts{Within50: 2, Within200: 2, Within500: 2}, CountByDistance(flights))
	assert.Equal(t, DistanceCounts{}, CountByDistance(nil))
}

func TestDistanceCountsJSON(t *testing.T) {
	b, err := json.Marshal(DistanceCounts{Within50: 1, Within200: 2, Within500: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"50nm":1,"200nm":2,"500nm":3}`, string(b))
}

func TestFilterHidesOutsideDistanceRange(t *testing.T) {
	flights := []FlightRecord{
		mkFlight("near", 10, 90, "2:00"),
		mkFlight("mid", 100, 180, "20:00"),
		mkFlight("far", 400, 270, "80:00"),
		{FlightID: "nopos", ETAMinutes: "N/A"},
	}

	got := Filter(flights, FilterOptions{DistanceRange: &Range{Min: 0, Max: 150}})
	assert.Equal(t, []string{"near", "mid"}, flightIDs(got))

	// without a distance range nothing is hidden
	got = Filter(flights, FilterOptions{})
	assert.Len(t, got, 4)
}

func TestFilterEmphasizesHeadingRange(t *testing.T) {
	flights := []FlightRecord{
		mkFlight("east", 10, 90, "2:00"),
		mkFlight("south", 10, 180, "3:00"),
		{FlightID: "nopos"},
	}

	got := Filter(flights, FilterOptions{HeadingRange: &Range{Min: 45, Max: 135}})
	require.Len(t, got, 3)
	assert.True(t, got[0].Emphasized)
	assert.False(t, got[1].Emphasized)
	assert.False(t, got[2].Emphasized)
	assert.False(t, flights[0].Emphasized, "input is not modified")
}

func TestFilterIgnoresInvalidRanges(t *testing.T) {
	flights := []FlightRecord{mkFlight("a", 10, 90, "2:00")}
	got := Filter(flights, FilterOptions{
		DistanceRange: &Range{Min: 100, Max: 0},
		HeadingRange:  &Range{Min: math.NaN(), Max: 10},
	})
	require.Len(t, got, 1)
	assert.False(t, got[0].Emphasized)
}

func TestFilterOptionsValidate(t *testing.T) {
	assert.NoError(t, FilterOptions{}.Validate())
	assert.NoError(t, FilterOptions{HeadingRange: &Range{Min: 10, Max: 10}}.Validate())
	assert.ErrorIs(t, FilterOptions{DistanceRange: &Range{Min: 5, Max: 1}}.Validate(), ErrInvalidRange)
}

func TestClassifyGap(t *testing.T) {
	cases := map[int64]SeparationLevel{
		0:   SeparationCritical,
		10:  SeparationCritical,
		11:  SeparationClose,
		30:  SeparationClose,
		60:  SeparationModerate,
		120: SeparationWatch,
		121: SeparationNone,
	}
	for gap, want := range cases {
		assert.Equal(t, want, classifyGap(gap), "gap %d", gap)
	}
}

func TestSeparationKeepsMostSevere(t *testing.T) {
	flights := []FlightRecord{
		mkFlight("a", 10, 90, "5:00"),
		mkFlight("b", 10, 90, "5:08"),  // 8 s after a
		mkFlight("c", 10, 90, "5:50"),  // 42 s after b
		mkFlight("d", 10, 90, "10:00"), // far behind
		mkFlight("e", 10, 90, "N/A"),
		mkFlight("f", 10, 90, ">12hrs"),
	}

	levels := Separation(flights, nil)
	assert.Equal(t, map[string]SeparationLevel{
		"a": SeparationCritical,
		"b": SeparationCritical,
		"c": SeparationModerate,
	}, levels)
}

func TestSeparationSplitsByHeadingGroup(t *testing.T) {
	flights := []FlightRecord{
		mkFlight("in1", 10, 90, "5:00"),
		mkFlight("out1", 10, 270, "5:05"),
		mkFlight("in2", 10, 100, "6:30"),
		mkFlight("out2", 10, 260, "5:20"),
	}

	levels := Separation(flights, &Range{Min: 45, Max: 135})
	// in1/in2 are 90 s apart, out1/out2 15 s; the 5 s cross-group gap is ignored
	assert.Equal(t, SeparationWatch, levels["in1"])
	assert.Equal(t, SeparationWatch, levels["in2"])
	assert.Equal(t, SeparationClose, levels["out1"])
	assert.Equal(t, SeparationClose, levels["out2"])
}

func TestSeparationLevelJSON(t *testing.T) {
	b, err := json.Marshal(map[string]SeparationLevel{"a": SeparationCritical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"critical"}`, string(b))
}

func TestFrequencySummary(t *testing.T) {
	assert.Equal(t, "GTADS", frequencySummary([]int{FrequencyATIS, FrequencyDeparture, FrequencyApproach, FrequencyTower, FrequencyGround}))
	assert.Equal(t, "", frequencySummary([]int{FrequencyUnicom, FrequencyClearance, FrequencyCenter, 99}))
	assert.Equal(t, "T", frequencySummary([]int{FrequencyTower, FrequencyTower}))
}

func TestAircraftCatalogue(t *testing.T) {
	a, ok := LookupAircraft("a266b67f-03e3-4f8c-a2bb-b57cfd4b12f3")
	require.True(t, ok)
	assert.Equal(t, "A320", a.Name)
	assert.InDelta(t, 0.82, a.MaxMach, 1e-9)
	assert.Equal(t, "UNKN", AircraftName("not-an-aircraft"))
}

func TestSeparationLevelRoundTrip(t *testing.T) {
	var got map[string]SeparationLevel
	require.NoError(t, json.Unmarshal([]byte(`{"a":"close","b":"none"}`), &got))
	assert.Equal(t, map[string]SeparationLevel{"a": SeparationClose, "b": SeparationNone}, got)

	var l SeparationLevel
	assert.Error(t, l.UnmarshalText([]byte("bogus")))
}

func spacedFlight(id string, lon float64, distance int, report string) FlightRecord {
	lat := 0.0
	return FlightRecord{
		FlightID:              id,
		Latitude:              &lat,
		Longitude:             &lon,
		DistanceToDestination: &distance,
		LastReport:            report,
	}
}

func TestAverageSpacing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) string { return now.Add(-ago).Format(time.RFC3339Nano) }

	flights := []FlightRecord{
		spacedFlight("a", 0.05, 3, at(5*time.Minute)),
		spacedFlight("c", 0.25, 12, at(20*time.Minute)),
		spacedFlight("b", 0.15, 9, at(10*time.Minute)),
		// excluded: stale, outside 13 nm, unparseable report, no position
		spacedFlight("stale", 1.0, 5, at(61*time.Minute)),
		spacedFlight("far", 2.0, 14, at(time.Minute)),
		spacedFlight("garbled", 3.0, 2, "yesterday"),
		{FlightID: "nopos", LastReport: at(time.Minute)},
	}

	nm, ok := AverageSpacing(flights, now)
	require.True(t, ok)
	// consecutive flights are 0.1 degree of longitude apart on the equator
	assert.InDelta(t, 6.0, nm, 0.05)
}

func TestAverageSpacingNeedsTwoRecentFlights(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, ok := AverageSpacing(nil, now)
	assert.False(t, ok)

	_, ok = AverageSpacing([]FlightRecord{
		spacedFlight("a", 0.05, 3, now.Add(-time.Minute).Format(time.RFC3339)),
		spacedFlight("old", 0.15, 9, now.Add(-2*time.Hour).Format(time.RFC3339)),
	}, now)
	assert.False(t, ok, "a stale report leaves a single flight")
}
