package inbound

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yegors/if-inbounds/internal/cache"
	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/internal/geo"
	"github.com/yegors/if-inbounds/internal/ifapi"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// ATISUnavailable is returned in place of ATIS text when none can be fetched
const ATISUnavailable = "ATIS not available"

// Keys of the session-wide resources in cache.KindShared
const (
	sharedFlights = "flights"
	sharedWorld   = "world"
	sharedATC     = "atc"
)

// API is the subset of the upstream client the aggregator needs
type API interface {
	GetAirport(ctx context.Context, icao string) (*ifapi.Airport, error)
	GetAirportStatus(ctx context.Context, icao string) (*ifapi.AirportStatus, error)
	GetFlights(ctx context.Context) ([]ifapi.Flight, error)
	GetATIS(ctx context.Context, icao string) (string, error)
	GetATC(ctx context.Context) ([]ifapi.ATCFacility, error)
	GetWorld(ctx context.Context) ([]ifapi.WorldAirport, error)
}

// CoordinateStore persists airport coordinates across restarts
type CoordinateStore interface {
	GetAirportCoordinates(ctx context.Context, icao string) (geo.Point, time.Time, bool, error)
	SaveAirportCoordinates(ctx context.Context, icao string, p geo.Point, fetchedAt time.Time) error
}

// Aggregator combines airport, inbound and telemetry data into flight records
type Aggregator struct {
	api    API
	coords CoordinateStore
	store  *cache.Store

	coordinates *cache.Loader[geo.Point]
	status      *cache.Loader[*ifapi.AirportStatus]
	inboundIDs  *cache.Loader[[]string]
	atis        *cache.Loader[string]
	controllers *cache.Loader[[]Controller]
	flights     *cache.Loader[[]ifapi.Flight]
	world       *cache.Loader[[]ifapi.WorldAirport]
	atc         *cache.Loader[[]ifapi.ATCFacility]

	details *expirable.LRU[string, ifapi.Flight]
	logger  *logger.Logger
}

// NewAggregator creates a new aggregator. coords may be nil, in which case
// coordinates live only in memory.
func NewAggregator(api API, store *cache.Store, coords CoordinateStore, cfg config.CacheConfig, log *logger.Logger) *Aggregator {
	size := cfg.FlightDetailsSize
	if size <= 0 {
		size = 2048
	}
	window := time.Duration(cfg.FlightDetailsSeconds) * time.Second

	return &Aggregator{
		api:         api,
		coords:      coords,
		store:       store,
		coordinates: cache.NewLoader[geo.Point](store, cache.KindAirportCoordinates),
		status:      cache.NewLoader[*ifapi.AirportStatus](store, cache.KindShared),
		inboundIDs:  cache.NewLoader[[]string](store, cache.KindInboundFlightIDs),
		atis:        cache.NewLoader[string](store, cache.KindATIS),
		controllers: cache.NewLoader[[]Controller](store, cache.KindControllers),
		flights:     cache.NewLoader[[]ifapi.Flight](store, cache.KindShared),
		world:       cache.NewLoader[[]ifapi.WorldAirport](store, cache.KindShared),
		atc:         cache.NewLoader[[]ifapi.ATCFacility](store, cache.KindShared),
		details:     expirable.NewLRU[string, ifapi.Flight](size, nil, window),
		logger:      log.Named("aggregator"),
	}
}

// AirportCoordinates resolves the position of an airport. Lookups are served
// from memory, then from the persistent store, then from the network.
func (a *Aggregator) AirportCoordinates(ctx context.Context, icao string) (geo.Point, error) {
	if p, ok := cache.For[geo.Point](a.store, cache.KindAirportCoordinates).Get(icao); ok {
		return p, nil
	}

	if a.coords != nil {
		p, fetchedAt, found, err := a.coords.GetAirportCoordinates(ctx, icao)
		if err != nil {
			a.logger.Warn("Failed to read stored airport coordinates",
				logger.String("icao", icao),
				logger.Error(err),
			)
		} else if found && time.Since(fetchedAt) <= a.store.Expiration(cache.KindAirportCoordinates) {
			a.store.SetAt(cache.KindAirportCoordinates, icao, p, fetchedAt)
			return p, nil
		}
	}

	return a.coordinates.Load(ctx, icao, func(ctx context.Context) (geo.Point, error) {
		airport, err := a.api.GetAirport(ctx, icao)
		if err != nil {
			return geo.Point{}, err
		}
		p := geo.Point{Latitude: *airport.Latitude, Longitude: *airport.Longitude}
		if a.coords != nil {
			if err := a.coords.SaveAirportCoordinates(ctx, icao, p, time.Now()); err != nil {
				a.logger.Warn("Failed to persist airport coordinates",
					logger.String("icao", icao),
					logger.Error(err),
				)
			}
		}
		return p, nil
	})
}

func (a *Aggregator) airportStatus(ctx context.Context, icao string) (*ifapi.AirportStatus, error) {
	return a.status.Load(ctx, "status:"+icao, func(ctx context.Context) (*ifapi.AirportStatus, error) {
		return a.api.GetAirportStatus(ctx, icao)
	})
}

// InboundFlightIDs returns the ids of flights heading to icao
func (a *Aggregator) InboundFlightIDs(ctx context.Context, icao string) ([]string, error) {
	return a.inboundIDs.Load(ctx, icao, func(ctx context.Context) ([]string, error) {
		status, err := a.airportStatus(ctx, icao)
		if err != nil {
			return nil, err
		}
		if status.InboundFlights == nil {
			return []string{}, nil
		}
		return status.InboundFlights, nil
	})
}

// sessionFlights returns every flight in the session, shared across callers
func (a *Aggregator) sessionFlights(ctx context.Context) ([]ifapi.Flight, error) {
	return a.flights.Load(ctx, sharedFlights, a.api.GetFlights)
}

// FlightDetails resolves telemetry for ids. Ids seen within the detail window
// are reused; the rest come from a single session-wide flights fetch. Ids the
// session no longer reports are dropped. The result holds one entry per id,
// the last seen winning.
func (a *Aggregator) FlightDetails(ctx context.Context, ids []string) ([]ifapi.Flight, error) {
	byID := make(map[string]ifapi.Flight, len(ids))
	var missing []string
	for _, id := range ids {
		if f, ok := a.details.Get(id); ok {
			byID[id] = f
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		all, err := a.sessionFlights(ctx)
		if err != nil {
			return nil, err
		}
		want := make(map[string]struct{}, len(missing))
		for _, id := range missing {
			want[id] = struct{}{}
		}
		for _, f := range all {
			if _, ok := want[f.FlightID]; !ok {
				continue
			}
			byID[f.FlightID] = f
			a.details.Add(f.FlightID, f)
		}
	}

	seen := make(map[string]struct{}, len(byID))
	flights := make([]ifapi.Flight, 0, len(byID))
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		flights = append(flights, f)
	}
	return flights, nil
}

// Inbounds returns the enriched inbound flights of icao sorted by ETA.
// Flights without a position stay in the list with "N/A" derived fields.
func (a *Aggregator) Inbounds(ctx context.Context, icao string) ([]FlightRecord, error) {
	airport, err := a.AirportCoordinates(ctx, icao)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve airport %s: %w", icao, err)
	}

	ids, err := a.InboundFlightIDs(ctx, icao)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inbound flight ids for %s: %w", icao, err)
	}
	if len(ids) == 0 {
		return []FlightRecord{}, nil
	}

	details, err := a.FlightDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flight details for %s: %w", icao, err)
	}

	records := make([]FlightRecord, 0, len(details))
	for _, f := range details {
		rec := newFlightRecord(f)
		UpdateDerived(&rec, airport)
		records = append(records, rec)
	}
	SortByETA(records)

	a.logger.Debug("Aggregated inbound flights",
		logger.String("icao", icao),
		logger.Int("inbound_ids", len(ids)),
		logger.Int("flights", len(records)),
	)
	return records, nil
}

// UpdateDerived recomputes distance, bearing and ETA of rec relative to airport
func UpdateDerived(rec *FlightRecord, airport geo.Point) {
	rec.DistanceToDestination = nil
	rec.HeadingFromAirport = nil
	rec.ETAMinutes = geo.ETANotAvailable
	if !rec.HasPosition() {
		return
	}

	lat, lon := *rec.Latitude, *rec.Longitude
	if d, err := geo.Distance(lat, lon, airport.Latitude, airport.Longitude); err == nil {
		nm := int(math.Ceil(d))
		rec.DistanceToDestination = &nm
	}
	if b, err := geo.Bearing(airport.Latitude, airport.Longitude, lat, lon); err == nil {
		deg := int(math.Round(b)) % 360
		rec.HeadingFromAirport = &deg
	}
	rec.ETAMinutes = geo.ETA(lat, lon, airport.Latitude, airport.Longitude, rec.Speed)
}

// SortByETA orders flights by ascending ETA; unparseable ETAs go last and
// keep their relative order.
func SortByETA(flights []FlightRecord) {
	sort.SliceStable(flights, func(i, j int) bool {
		return geo.ETASortKey(flights[i].ETAMinutes) < geo.ETASortKey(flights[j].ETAMinutes)
	})
}

// ATIS returns the current ATIS of icao, or ATISUnavailable
func (a *Aggregator) ATIS(ctx context.Context, icao string) string {
	atis, err := a.atis.Load(ctx, icao, func(ctx context.Context) (string, error) {
		return a.api.GetATIS(ctx, icao)
	})
	if err != nil || atis == "" {
		if err != nil {
			a.logger.Warn("Failed to fetch ATIS", logger.String("icao", icao), logger.Error(err))
		}
		return ATISUnavailable
	}
	return atis
}

// Controllers returns the staffed frequencies of icao in display order
func (a *Aggregator) Controllers(ctx context.Context, icao string) ([]Controller, error) {
	return a.controllers.Load(ctx, icao, func(ctx context.Context) ([]Controller, error) {
		status, err := a.airportStatus(ctx, icao)
		if err != nil {
			return nil, err
		}
		return buildControllers(status.ATCFacilities), nil
	})
}

// ATC returns every staffed frequency in the session
func (a *Aggregator) ATC(ctx context.Context) ([]ifapi.ATCFacility, error) {
	return a.atc.Load(ctx, sharedATC, a.api.GetATC)
}

// World returns the per-airport summary of the session
func (a *Aggregator) World(ctx context.Context) ([]ifapi.WorldAirport, error) {
	return a.world.Load(ctx, sharedWorld, a.api.GetWorld)
}

// InvalidateShared drops the session-wide resources so the next call refetches
func (a *Aggregator) InvalidateShared() {
	a.flights.Invalidate(sharedFlights)
	a.world.Invalidate(sharedWorld)
	a.atc.Invalidate(sharedATC)
}

// ActiveAirports returns the busiest airports by inbound count, joined with
// whether they are staffed and whether approach is open.
func (a *Aggregator) ActiveAirports(ctx context.Context, limit int) ([]ActiveAirport, error) {
	world, err := a.World(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch world: %w", err)
	}
	facilities, err := a.ATC(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch atc: %w", err)
	}

	staffed := make(map[string]bool)
	approach := make(map[string]bool)
	for _, f := range facilities {
		staffed[f.AirportName] = true
		if f.Type == FrequencyApproach {
			approach[f.AirportName] = true
		}
	}

	airports := make([]ActiveAirport, 0, len(world))
	for _, w := range world {
		if w.InboundFlightsCount <= 0 {
			continue
		}
		airports = append(airports, ActiveAirport{
			ICAO:         w.AirportICAO,
			InboundCount: w.InboundFlightsCount,
			HasATC:       staffed[w.AirportICAO],
			HasApproach:  approach[w.AirportICAO],
		})
	}
	sort.SliceStable(airports, func(i, j int) bool {
		return airports[i].InboundCount > airports[j].InboundCount
	})
	if limit > 0 && len(airports) > limit {
		airports = airports[:limit]
	}
	return airports, nil
}

// ATCSummary lists every staffed airport with its frequency letters and
// inbound counts by distance, busiest first. Airports whose inbounds cannot
// be resolved are skipped.
func (a *Aggregator) ATCSummary(ctx context.Context) ([]ATCAirport, error) {
	facilities, err := a.ATC(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch atc: %w", err)
	}

	var order []string
	types := make(map[string][]int)
	for _, f := range facilities {
		if f.AirportName == "" {
			continue
		}
		if _, ok := types[f.AirportName]; !ok {
			order = append(order, f.AirportName)
		}
		types[f.AirportName] = append(types[f.AirportName], f.Type)
	}

	rows := make([]ATCAirport, 0, len(order))
	for _, icao := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		flights, err := a.Inbounds(ctx, icao)
		if err != nil {
			if ifapi.IsFatal(err) {
				return nil, err
			}
			a.logger.Debug("Skipping staffed airport",
				logger.String("icao", icao),
				logger.Error(err),
			)
			continue
		}
		freqs := frequencySummary(types[icao])
		if freqs == "" {
			freqs = "N/A"
		}
		rows = append(rows, ATCAirport{
			ICAO:           icao,
			Frequencies:    freqs,
			DistanceCounts: CountByDistance(flights),
			TotalInbounds:  len(flights),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalInbounds > rows[j].TotalInbounds
	})
	return rows, nil
}
