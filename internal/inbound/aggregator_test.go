package inbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/if-inbounds/internal/cache"
	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/internal/geo"
	"github.com/yegors/if-inbounds/internal/ifapi"
	"github.com/yegors/if-inbounds/pkg/logger"
)

type fakeAPI struct {
	mu        sync.Mutex
	airports  map[string]*ifapi.Airport
	statuses  map[string]*ifapi.AirportStatus
	flights   []ifapi.Flight
	atis      map[string]string
	atc       []ifapi.ATCFacility
	world     []ifapi.WorldAirport
	flightErr error
	calls     map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		airports: map[string]*ifapi.Airport{},
		statuses: map[string]*ifapi.AirportStatus{},
		atis:     map[string]string{},
		calls:    map[string]int{},
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) GetAirport(ctx context.Context, icao string) (*ifapi.Airport, error) {
	f.record("airport")
	if a, ok := f.airports[icao]; ok {
		return a, nil
	}
	return nil, ifapi.ErrAirportNotFound
}

func (f *fakeAPI) GetAirportStatus(ctx context.Context, icao string) (*ifapi.AirportStatus, error) {
	f.record("status")
	if s, ok := f.statuses[icao]; ok {
		return s, nil
	}
	return &ifapi.AirportStatus{AirportICAO: icao}, nil
}

func (f *fakeAPI) GetFlights(ctx context.Context) ([]ifapi.Flight, error) {
	f.record("flights")
	if f.flightErr != nil {
		return nil, f.flightErr
	}
	return f.flights, nil
}

func (f *fakeAPI) GetATIS(ctx context.Context, icao string) (string, error) {
	f.record("atis")
	if a, ok := f.atis[icao]; ok {
		return a, nil
	}
	return "", ifapi.ErrNotFound
}

func (f *fakeAPI) GetATC(ctx context.Context) ([]ifapi.ATCFacility, error) {
	f.record("atc")
	return f.atc, nil
}

func (f *fakeAPI) GetWorld(ctx context.Context) ([]ifapi.WorldAirport, error) {
	f.record("world")
	return f.world, nil
}

type memCoords struct {
	points map[string]geo.Point
	times  map[string]time.Time
	saves  int
}

func (m *memCoords) GetAirportCoordinates(ctx context.Context, icao string) (geo.Point, time.Time, bool, error) {
	p, ok := m.points[icao]
	return p, m.times[icao], ok, nil
}

func (m *memCoords) SaveAirportCoordinates(ctx context.Context, icao string, p geo.Point, fetchedAt time.Time) error {
	m.points[icao] = p
	m.times[icao] = fetchedAt
	m.saves++
	return nil
}

func ptr(v float64) *float64 { return &v }

func newTestAggregator(api *fakeAPI, coords CoordinateStore) *Aggregator {
	store := cache.NewStore(cache.DefaultExpirations)
	return NewAggregator(api, store, coords, config.DefaultConfig().Cache, logger.NewNop())
}

// KZZZ sits at 0,0 so distances and bearings are easy to check
func seedKZZZ(api *fakeAPI) {
	api.airports["KZZZ"] = &ifapi.Airport{ICAO: "KZZZ", Latitude: ptr(0), Longitude: ptr(0)}
	api.statuses["KZZZ"] = &ifapi.AirportStatus{
		AirportICAO:    "KZZZ",
		InboundFlights: []string{"slow", "fast", "nopos", "gone"},
		ATCFacilities: []ifapi.ATCFacility{
			{Username: "twr", Type: FrequencyTower, AirportName: "KZZZ"},
			{Username: "ctr", Type: FrequencyCenter, AirportName: "KZZZ"},
			{Username: "atis", Type: FrequencyATIS, AirportName: "KZZZ"},
		},
	}
	api.flights = []ifapi.Flight{
		// 1 degree north at 120 kt is 30:01 out
		{FlightID: "slow", Callsign: "SLOW1", AircraftID: "ef677903-f8d3-414f-a190-233b2b855d46", Latitude: ptr(1), Longitude: ptr(0), Speed: 120},
		// 1 degree east at 480 kt is 7:30 out
		{FlightID: "fast", Callsign: "FAST1", AircraftID: "unknown", Latitude: ptr(0), Longitude: ptr(1), Speed: 480},
		{FlightID: "nopos", Callsign: ""},
		{FlightID: "other", Callsign: "OTHER", Latitude: ptr(5), Longitude: ptr(5), Speed: 300},
	}
}

func TestInboundsEnrichesAndSorts(t *testing.T) {
	api := newFakeAPI()
	seedKZZZ(api)
	agg := newTestAggregator(api, nil)

	flights, err := agg.Inbounds(context.Background(), "KZZZ")
	require.NoError(t, err)
	require.Len(t, flights, 3, "ids missing from the session are dropped")

	assert.Equal(t, "fast", flights[0].FlightID)
	assert.Equal(t, "slow", flights[1].FlightID)
	assert.Equal(t, "nopos", flights[2].FlightID)

	fast := flights[0]
	assert.Equal(t, "UNKN", fast.AircraftName)
	require.NotNil(t, fast.DistanceToDestination)
	assert.Equal(t, 61, *fast.DistanceToDestination)
	require.NotNil(t, fast.HeadingFromAirport)
	assert.Equal(t, 90, *fast.HeadingFromAirport)
	assert.InDelta(t, 0.72, fast.Mach, 1e-9)
	assert.Nil(t, fast.MinMach)
	assert.Nil(t, fast.MaxMach)

	slow := flights[1]
	assert.Equal(t, "C172", slow.AircraftName)
	assert.Equal(t, "30:01", slow.ETAMinutes)
	assert.Equal(t, 0, *slow.HeadingFromAirport)
	assert.InDelta(t, 0.18, slow.Mach, 1e-9)
	require.NotNil(t, slow.MinMach)
	require.NotNil(t, slow.MaxMach)
	assert.InDelta(t, 0.15, *slow.MinMach, 1e-9)
	assert.InDelta(t, 0.20, *slow.MaxMach, 1e-9)

	nopos := flights[2]
	assert.Equal(t, "N/A", nopos.Callsign)
	assert.Equal(t, geo.ETANotAvailable, nopos.ETAMinutes)
	assert.Nil(t, nopos.DistanceToDestination)
	assert.Nil(t, nopos.HeadingFromAirport)
}

func TestInboundsUnknownAirport(t *testing.T) {
	agg := newTestAggregator(newFakeAPI(), nil)
	_, err := agg.Inbounds(context.Background(), "XXXX")
	assert.ErrorIs(t, err, ifapi.ErrAirportNotFound)
}

func TestInboundsNoInboundFlights(t *testing.T) {
	api := newFakeAPI()
	api.airports["KEMP"] = &ifapi.Airport{ICAO: "KEMP", Latitude: ptr(10), Longitude: ptr(10)}
	agg := newTestAggregator(api, nil)

	flights, err := agg.Inbounds(context.Background(), "KEMP")
	require.NoError(t, err)
	assert.Empty(t, flights)
	assert.Equal(t, 0, api.count("flights"))
}

func TestInboundsPropagatesFlightErrors(t *testing.T) {
	api := newFakeAPI()
	seedKZZZ(api)
	api.flightErr = ifapi.ErrRateLimited
	agg := newTestAggregator(api, nil)

	_, err := agg.Inbounds(context.Background(), "KZZZ")
	assert.ErrorIs(t, err, ifapi.ErrRateLimited)
	assert.True(t, ifapi.IsFatal(err))
}

func TestRepeatedInboundsUseCaches(t *testing.T) {
	api := newFakeAPI()
	seedKZZZ(api)
	agg := newTestAggregator(api, nil)

	for i := 0; i < 3; i++ {
		_, err := agg.Inbounds(context.Background(), "KZZZ")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, api.count("airport"))
	assert.Equal(t, 1, api.count("status"))
	// "gone" never resolves, so the shared flights entry is what saves the refetch
	assert.Equal(t, 1, api.count("flights"))
}

func TestFlightDetailsDeduplicatesLastSeenWins(t *testing.T) {
	api := newFakeAPI()
	api.flights = []ifapi.Flight{
		{FlightID: "a", Callsign: "FIRST"},
		{FlightID: "b", Callsign: "B"},
		{FlightID: "a", Callsign: "SECOND"},
	}
	agg := newTestAggregator(api, nil)

	got, err := agg.FlightDetails(context.Background(), []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SECOND", got[0].Callsign)
	assert.Equal(t, "B", got[1].Callsign)
}

func TestCoordinatesArePersistedAndReused(t *testing.T) {
	api := newFakeAPI()
	api.airports["KLAX"] = &ifapi.Airport{ICAO: "KLAX", Latitude: ptr(33.94), Longitude: ptr(-118.41)}
	coords := &memCoords{points: map[string]geo.Point{}, times: map[string]time.Time{}}

	p, err := newTestAggregator(api, coords).AirportCoordinates(context.Background(), "KLAX")
	require.NoError(t, err)
	assert.InDelta(t, 33.94, p.Latitude, 1e-9)
	assert.Equal(t, 1, coords.saves)

	// a fresh aggregator, as after a restart, reads the stored value
	p, err = newTestAggregator(api, coords).AirportCoordinates(context.Background(), "KLAX")
	require.NoError(t, err)
	assert.InDelta(t, -118.41, p.Longitude, 1e-9)
	assert.Equal(t, 1, api.count("airport"))
}

func TestStaleStoredCoordinatesAreRefetched(t *testing.T) {
	api := newFakeAPI()
	api.airports["EGLL"] = &ifapi.Airport{ICAO: "EGLL", Latitude: ptr(51.47), Longitude: ptr(-0.45)}
	coords := &memCoords{
		points: map[string]geo.Point{"EGLL": {Latitude: 1, Longitude: 1}},
		times:  map[string]time.Time{"EGLL": time.Now().Add(-100 * 24 * time.Hour)},
	}

	p, err := newTestAggregator(api, coords).AirportCoordinates(context.Background(), "EGLL")
	require.NoError(t, err)
	assert.InDelta(t, 51.47, p.Latitude, 1e-9)
	assert.Equal(t, 1, api.count("airport"))
}

func TestATIS(t *testing.T) {
	api := newFakeAPI()
	api.atis["KSFO"] = "information Charlie"
	agg := newTestAggregator(api, nil)

	assert.Equal(t, "information Charlie", agg.ATIS(context.Background(), "KSFO"))
	assert.Equal(t, "information Charlie", agg.ATIS(context.Background(), "KSFO"))
	assert.Equal(t, 1, api.count("atis"))

	assert.Equal(t, ATISUnavailable, agg.ATIS(context.Background(), "KOAK"))
}

func TestControllersOrder(t *testing.T) {
	api := newFakeAPI()
	seedKZZZ(api)
	api.statuses["KZZZ"].ATCFacilities = append(api.statuses["KZZZ"].ATCFacilities,
		ifapi.ATCFacility{Username: "odd", Type: 42},
		ifapi.ATCFacility{Username: "gnd", Type: FrequencyGround},
	)
	agg := newTestAggregator(api, nil)

	controllers, err := agg.Controllers(context.Background(), "KZZZ")
	require.NoError(t, err)

	var names []string
	for _, c := range controllers {
		names = append(names, c.String())
	}
	assert.Equal(t, []string{"ATIS: atis", "Ground: gnd", "Tower: twr", "Center: ctr", "Unknown: odd"}, names)
	assert.Equal(t, []Controller{{FrequencyName: "Center", Username: "ctr", Type: FrequencyCenter}}, CenterFrequencies(controllers))
}

func TestActiveAirports(t *testing.T) {
	api := newFakeAPI()
	api.world = []ifapi.WorldAirport{
		{AirportICAO: "KLAX", InboundFlightsCount: 40},
		{AirportICAO: "KSFO", InboundFlightsCount: 25},
		{AirportICAO: "EGLL", InboundFlightsCount: 60},
		{AirportICAO: "KJFK", InboundFlightsCount: 10},
		{AirportICAO: "KSEA", InboundFlightsCount: 5},
		{AirportICAO: "KBOS", InboundFlightsCount: 0},
	}
	api.atc = []ifapi.ATCFacility{
		{AirportName: "KLAX", Type: FrequencyTower},
		{AirportName: "KLAX", Type: FrequencyApproach},
		{AirportName: "KJFK", Type: FrequencyGround},
	}
	agg := newTestAggregator(api, nil)

	got, err := agg.ActiveAirports(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []ActiveAirport{
		{ICAO: "EGLL", InboundCount: 60},
		{ICAO: "KLAX", InboundCount: 40, HasATC: true, HasApproach: true},
		{ICAO: "KSFO", InboundCount: 25},
		{ICAO: "KJFK", InboundCount: 10, HasATC: true},
	}, got)
}

func TestATCSummary(t *testing.T) {
	api := newFakeAPI()
	seedKZZZ(api)
	api.atc = []ifapi.ATCFacility{
		{AirportName: "KZZZ", Type: FrequencyATIS},
		{AirportName: "KZZZ", Type: FrequencyTower},
		{AirportName: "KZZZ", Type: FrequencyGround},
		{AirportName: "KZZZ", Type: FrequencyCenter},
		{AirportName: "NOPE", Type: FrequencyTower},
		{AirportName: "", Type: FrequencyTower},
	}
	agg := newTestAggregator(api, nil)

	rows, err := agg.ATCSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1, "airports that cannot be resolved are skipped")
	assert.Equal(t, "KZZZ", rows[0].ICAO)
	assert.Equal(t, "GTS", rows[0].Frequencies)
	assert.Equal(t, 3, rows[0].TotalInbounds)
	assert.Equal(t, DistanceCounts{Within200: 2}, rows[0].DistanceCounts)
}

func TestInvalidateSharedForcesRefetch(t *testing.T) {
	api := newFakeAPI()
	agg := newTestAggregator(api, nil)

	_, _ = agg.World(context.Background())
	_, _ = agg.World(context.Background())
	assert.Equal(t, 1, api.count("world"))

	agg.InvalidateShared()
	_, _ = agg.World(context.Background())
	assert.Equal(t, 2, api.count("world"))
}

func TestUpdateDerivedClearsStaleValues(t *testing.T) {
	rec := FlightRecord{Latitude: ptr(1), Longitude: ptr(0), Speed: 120}
	UpdateDerived(&rec, geo.Point{})
	require.NotNil(t, rec.DistanceToDestination)

	rec.Latitude = nil
	UpdateDerived(&rec, geo.Point{})
	assert.Nil(t, rec.DistanceToDestination)
	assert.Equal(t, geo.ETANotAvailable, rec.ETAMinutes)
}

func TestSortByETA(t *testing.T) {
	flights := []FlightRecord{
		{FlightID: "na1", ETAMinutes: "N/A"},
		{FlightID: "late", ETAMinutes: "5:00"},
		{FlightID: "far", ETAMinutes: ">12hrs"},
		{FlightID: "soon", ETAMinutes: "1:30"},
		{FlightID: "na2", ETAMinutes: "N/A"},
	}
	SortByETA(flights)

	var ids []string
	for _, f := range flights {
		ids = append(ids, f.FlightID)
	}
	assert.Equal(t, []string{"soon", "late", "na1", "far", "na2"}, ids)
}

func TestCloneIsDeep(t *testing.T) {
	d := 10
	orig := []FlightRecord{{FlightID: "a", Latitude: ptr(1), DistanceToDestination: &d}}
	cp := CloneFlights(orig)
	*cp[0].Latitude = 2
	*cp[0].DistanceToDestination = 20
	assert.Equal(t, 1.0, *orig[0].Latitude)
	assert.Equal(t, 10, d)
}

func TestLoaderErrorIsNotCached(t *testing.T) {
	api := newFakeAPI()
	seedKZZZ(api)
	api.flightErr = errors.New("boom")
	agg := newTestAggregator(api, nil)

	_, err := agg.Inbounds(context.Background(), "KZZZ")
	require.Error(t, err)

	api.flightErr = nil
	flights, err := agg.Inbounds(context.Background(), "KZZZ")
	require.NoError(t, err)
	assert.Len(t, flights, 3)
}
