package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/internal/geo"
	"github.com/yegors/if-inbounds/internal/ifapi"
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// ErrInvalidICAO is returned by Start for anything but four uppercase letters
var ErrInvalidICAO = errors.New("invalid ICAO code")

// State of the refresh loop
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "active":
		*s = StateActive
	default:
		return fmt.Errorf("unknown tracker state %q", text)
	}
	return nil
}

// Source supplies the data the tracker refreshes
type Source interface {
	AirportCoordinates(ctx context.Context, icao string) (geo.Point, error)
	Inbounds(ctx context.Context, icao string) ([]inbound.FlightRecord, error)
	Controllers(ctx context.Context, icao string) ([]inbound.Controller, error)
	ATIS(ctx context.Context, icao string) string
	ActiveAirports(ctx context.Context, limit int) ([]inbound.ActiveAirport, error)
}

// Snapshot is a copy of the tracker state safe to hand to readers
type Snapshot struct {
	State             State                   `json:"state"`
	ICAO              string                  `json:"icao,omitempty"`
	Airport           *geo.Point              `json:"airport,omitempty"`
	Generation        uint64                  `json:"generation"`
	LastAPIUpdate     time.Time               `json:"lastApiUpdateTime"`
	LastError         string                  `json:"lastError,omitempty"`
	Flights           []inbound.FlightRecord  `json:"flights"`
	LastChanges       ChangeSummary           `json:"lastChanges"`
	ATIS              string                  `json:"atis,omitempty"`
	Controllers       []inbound.Controller    `json:"controllers"`
	CenterFrequencies []inbound.Controller    `json:"centerFrequencies"`
	ActiveAirports    []inbound.ActiveAirport `json:"activeAirports"`
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithIntervals overrides the configured tick periods
func WithIntervals(network, atc, interpolation time.Duration) Option {
	return func(t *Tracker) {
		t.networkInterval = network
		t.atcInterval = atc
		t.interpolationInterval = interpolation
	}
}

// Tracker periodically refreshes the inbound flights of one airport and
// extrapolates their display positions between refreshes. It is the only
// writer of the flight list; readers get copies through Snapshot.
type Tracker struct {
	source Source
	logger *logger.Logger
	now    func() time.Time

	networkInterval       time.Duration
	atcInterval           time.Duration
	interpolationInterval time.Duration
	horizon               int
	activeLimit           int

	// control serialises Start and Stop
	control sync.Mutex
	wg      sync.WaitGroup

	mu             sync.RWMutex
	state          State
	generation     uint64
	cancel         context.CancelFunc
	icao           string
	airport        geo.Point
	flights        []inbound.FlightRecord
	tracks         map[string][]geo.Point
	lastAPIUpdate  time.Time
	lastError      string
	lastChanges    ChangeSummary
	atis           string
	controllers    []inbound.Controller
	activeAirports []inbound.ActiveAirport
	changes        *ChangeDetector
}

// New creates an idle tracker
func New(source Source, cfg config.TrackerConfig, log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		source:                source,
		logger:                log.Named("tracker"),
		now:                   time.Now,
		networkInterval:       cfg.RefreshInterval(),
		atcInterval:           cfg.ATCInterval(),
		interpolationInterval: cfg.InterpolationInterval(),
		horizon:               cfg.InterpolationHorizonSecond,
		activeLimit:           cfg.ActiveAirportsLimit,
		tracks:                make(map[string][]geo.Point),
	}
	t.changes = NewChangeDetector(t.logger)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins tracking icao. A tracker already active is stopped first. The
// first refresh runs before Start returns, so an unknown airport or a fatal
// upstream error is reported to the caller and the tracker stays idle.
func (t *Tracker) Start(ctx context.Context, icao string) error {
	if !config.ValidICAO(icao) {
		return fmt.Errorf("%w: %q", ErrInvalidICAO, icao)
	}

	t.control.Lock()
	defer t.control.Unlock()

	t.stopLocked()

	airport, err := t.source.AirportCoordinates(ctx, icao)
	if err != nil {
		return fmt.Errorf("failed to resolve airport %s: %w", icao, err)
	}

	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.icao = icao
	t.airport = airport
	t.flights = nil
	t.tracks = make(map[string][]geo.Point)
	t.lastAPIUpdate = time.Time{}
	t.lastError = ""
	t.lastChanges = ChangeSummary{}
	t.atis = ""
	t.controllers = nil
	t.activeAirports = nil
	t.changes.Reset()
	t.mu.Unlock()

	flights, err := t.source.Inbounds(ctx, icao)
	if err != nil {
		if ifapi.IsFatal(err) || errors.Is(err, ifapi.ErrAirportNotFound) {
			return fmt.Errorf("initial refresh of %s failed: %w", icao, err)
		}
		t.logger.Warn("Initial refresh failed, will retry on next tick",
			logger.String("icao", icao),
			logger.Error(err),
		)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.state = StateActive
	t.cancel = cancel
	if err == nil {
		t.applyFlightsLocked(flights)
	} else {
		t.lastError = err.Error()
	}
	t.mu.Unlock()

	t.logger.Info("Tracking started",
		logger.String("icao", icao),
		logger.Duration("network_interval", t.networkInterval),
		logger.Duration("atc_interval", t.atcInterval),
		logger.Int("flights", len(flights)),
	)

	t.wg.Add(3)
	go t.loop(runCtx, t.networkInterval, false, func(ctx context.Context) { t.refreshFlights(ctx, gen, icao) })
	go t.loop(runCtx, t.atcInterval, true, func(ctx context.Context) { t.refreshATC(ctx, gen, icao) })
	go t.loop(runCtx, t.interpolationInterval, false, func(context.Context) { t.interpolate(gen) })
	return nil
}

// Stop halts every tick. When Stop returns no tick goroutine is running and
// no further state change will happen until the next Start.
func (t *Tracker) Stop() {
	t.control.Lock()
	defer t.control.Unlock()
	t.stopLocked()
}

func (t *Tracker) stopLocked() {
	t.mu.Lock()
	wasActive := t.state == StateActive
	t.deactivateLocked()
	t.mu.Unlock()

	t.wg.Wait()
	if wasActive {
		t.logger.Info("Tracking stopped")
	}
}

// deactivateLocked moves to Idle and invalidates the current generation
func (t *Tracker) deactivateLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.state == StateActive {
		t.generation++
	}
	t.state = StateIdle
}

// halt is the fail-fast path taken from inside a tick
func (t *Tracker) halt(gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || t.state != StateActive {
		return
	}
	t.lastError = err.Error()
	t.deactivateLocked()
	t.logger.Error("Tracking stopped after unrecoverable error",
		logger.String("icao", t.icao),
		logger.Error(err),
	)
}

func (t *Tracker) loop(ctx context.Context, interval time.Duration, immediate bool, tick func(context.Context)) {
	defer t.wg.Done()
	if interval <= 0 {
		return
	}
	if immediate {
		tick(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a tick may have been queued just before cancellation
			if ctx.Err() != nil {
				return
			}
			tick(ctx)
		}
	}
}

// refreshFlights is the network tick: inbound flights, then the tracked
// airport's controllers and ATIS
func (t *Tracker) refreshFlights(ctx context.Context, gen uint64, icao string) {
	flights, err := t.source.Inbounds(ctx, icao)
	if err != nil {
		t.handleTickError(ctx, gen, "flight refresh", err)
		return
	}

	t.mu.Lock()
	if gen != t.generation || t.state != StateActive {
		t.mu.Unlock()
		t.logger.Debug("Discarding flights from a stopped generation", logger.Int64("generation", int64(gen)))
		return
	}
	t.applyFlightsLocked(flights)
	t.mu.Unlock()

	t.refreshControllers(ctx, gen, icao)
}

// applyFlightsLocked replaces the flight list and rebuilds the display tracks
func (t *Tracker) applyFlightsLocked(flights []inbound.FlightRecord) {
	changes := t.changes.DetectChanges(flights)
	t.lastChanges = Summarize(changes)

	tracks := make(map[string][]geo.Point, len(flights))
	records := inbound.CloneFlights(flights)
	for i := range records {
		f := &records[i]
		if !f.HasPosition() {
			f.Display = nil
			continue
		}
		f.Display = &geo.Point{Latitude: *f.Latitude, Longitude: *f.Longitude}
		if t.horizon > 0 && f.Speed > 0 {
			tracks[f.FlightID] = geo.Track(*f.Latitude, *f.Longitude, f.Speed, f.Heading, t.horizon)
		}
	}

	t.flights = records
	t.tracks = tracks
	t.lastAPIUpdate = t.now()
	t.lastError = ""

	t.logger.Debug("Flights refreshed",
		logger.String("icao", t.icao),
		logger.Int("flights", len(records)),
		logger.Int("added", t.lastChanges.Added),
		logger.Int("updated", t.lastChanges.Updated),
		logger.Int("removed", t.lastChanges.Removed),
	)
}

// refreshATC is the ATC tick: controllers, ATIS and the busiest airports
func (t *Tracker) refreshATC(ctx context.Context, gen uint64, icao string) {
	if !t.refreshControllers(ctx, gen, icao) {
		return
	}

	active, err := t.source.ActiveAirports(ctx, t.activeLimit)
	if err != nil {
		t.handleTickError(ctx, gen, "active airports refresh", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || t.state != StateActive {
		return
	}
	t.activeAirports = active
}

// refreshControllers updates controllers and ATIS of the tracked airport. It
// reports false when the tick must end.
func (t *Tracker) refreshControllers(ctx context.Context, gen uint64, icao string) bool {
	controllers, err := t.source.Controllers(ctx, icao)
	if err != nil {
		if t.handleTickError(ctx, gen, "controllers refresh", err) {
			return false
		}
		controllers = nil
	}

	atis := t.source.ATIS(ctx, icao)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || t.state != StateActive {
		return false
	}
	t.controllers = controllers
	t.atis = atis
	return true
}

// handleTickError logs err and reports whether the tick must end. Fatal
// errors stop the tracker.
func (t *Tracker) handleTickError(ctx context.Context, gen uint64, what string, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if ifapi.IsFatal(err) {
		t.halt(gen, err)
		return true
	}
	t.logger.Warn("Tick failed",
		logger.String("tick", what),
		logger.Error(err),
	)
	t.mu.Lock()
	if gen == t.generation {
		t.lastError = err.Error()
	}
	t.mu.Unlock()
	return false
}

// interpolate moves each display position along its precomputed track to
// the point matching the time since the last network refresh. Raw fields
// are left untouched.
func (t *Tracker) interpolate(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || t.state != StateActive || t.lastAPIUpdate.IsZero() {
		return
	}

	step := int(t.now().Sub(t.lastAPIUpdate) / time.Second)
	for i := range t.flights {
		f := &t.flights[i]
		track, ok := t.tracks[f.FlightID]
		if !ok || len(track) == 0 || step <= 0 {
			continue
		}
		idx := min(step, len(track)) - 1
		p := track[idx]
		f.Display = &p
	}
}

// State returns the current state
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot returns a deep copy of the tracker state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		State:             t.state,
		ICAO:              t.icao,
		Generation:        t.generation,
		LastAPIUpdate:     t.lastAPIUpdate,
		LastError:         t.lastError,
		Flights:           inbound.CloneFlights(t.flights),
		LastChanges:       t.lastChanges,
		ATIS:              t.atis,
		Controllers:       append([]inbound.Controller(nil), t.controllers...),
		CenterFrequencies: inbound.CenterFrequencies(t.controllers),
		ActiveAirports:    append([]inbound.ActiveAirport(nil), t.activeAirports...),
	}
	if t.icao != "" {
		airport := t.airport
		s.Airport = &airport
	}
	if s.Flights == nil {
		s.Flights = []inbound.FlightRecord{}
	}
	return s
}
