package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/internal/storage/sqlite"
	"github.com/yegors/if-inbounds/internal/tracker"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// InboundService answers the on-demand airport queries
type InboundService interface {
	Inbounds(ctx context.Context, icao string) ([]inbound.FlightRecord, error)
	ATIS(ctx context.Context, icao string) string
	Controllers(ctx context.Context, icao string) ([]inbound.Controller, error)
	ActiveAirports(ctx context.Context, limit int) ([]inbound.ActiveAirport, error)
	ATCSummary(ctx context.Context) ([]inbound.ATCAirport, error)
}

// Tracker is the periodic tracker controlled through /tracking
type Tracker interface {
	Start(ctx context.Context, icao string) error
	Stop()
	Snapshot() tracker.Snapshot
}

// PreferenceStore persists dashboard preferences
type PreferenceStore interface {
	SetPreference(ctx context.Context, name, value string, ttl time.Duration) error
	GetPreference(ctx context.Context, name string) (*sqlite.PreferenceRecord, error)
}

// Handler serves the API endpoints
type Handler struct {
	inbounds InboundService
	tracker  Tracker
	prefs    PreferenceStore
	config   *config.Config
	started  time.Time
	now      func() time.Time
	logger   *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(inbounds InboundService, tracker Tracker, prefs PreferenceStore, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		inbounds: inbounds,
		tracker:  tracker,
		prefs:    prefs,
		config:   cfg,
		started:  time.Now(),
		now:      time.Now,
		logger:   log.Named("api-handler"),
	}
}

// InboundsResponse is the body of GET /airports/{icao}/inbounds.
// AverageSpacingNM is null when fewer than two flights are on final.
type InboundsResponse struct {
	ICAO             string                             `json:"icao"`
	Flights          []inbound.FlightRecord             `json:"flights"`
	Total            int                                `json:"total"`
	DistanceCounts   inbound.DistanceCounts             `json:"distanceCounts"`
	Separation       map[string]inbound.SeparationLevel `json:"separation"`
	AverageSpacingNM *float64                           `json:"averageSpacingNm"`
}

// TrackingResponse is the body of GET /tracking
type TrackingResponse struct {
	tracker.Snapshot
	Total            int                                `json:"total"`
	DistanceCounts   inbound.DistanceCounts             `json:"distanceCounts"`
	Separation       map[string]inbound.SeparationLevel `json:"separation"`
	AverageSpacingNM *float64                           `json:"averageSpacingNm"`
}

type startTrackingRequest struct {
	ICAO string `json:"icao"`
}

// GetInbounds returns the enriched, ETA-sorted inbounds of an airport with
// the optional heading and distance filters applied
func (h *Handler) GetInbounds(w http.ResponseWriter, r *http.Request) {
	icao, err := icaoParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	opts, err := filterOptions(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	flights, err := h.inbounds.Inbounds(r.Context(), icao)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, InboundsResponse{
		ICAO:             icao,
		Flights:          nonNil(inbound.Filter(flights, opts)),
		Total:            len(flights),
		DistanceCounts:   inbound.CountByDistance(flights),
		Separation:       inbound.Separation(flights, opts.HeadingRange),
		AverageSpacingNM: h.averageSpacing(flights),
	})
}

// GetATIS returns the ATIS text of an airport
func (h *Handler) GetATIS(w http.ResponseWriter, r *http.Request) {
	icao, err := icaoParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"icao": icao,
		"atis": h.inbounds.ATIS(r.Context(), icao),
	})
}

// GetControllers returns the staffed frequencies of an airport
func (h *Handler) GetControllers(w http.ResponseWriter, r *http.Request) {
	icao, err := icaoParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	controllers, err := h.inbounds.Controllers(r.Context(), icao)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"icao":              icao,
		"controllers":       nonNil(controllers),
		"centerFrequencies": nonNil(inbound.CenterFrequencies(controllers)),
	})
}

// GetActiveAirports returns the staffed airports with the most inbounds
func (h *Handler) GetActiveAirports(w http.ResponseWriter, r *http.Request) {
	limit := h.config.Tracker.ActiveAirportsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, r, invalidInput("limit must be a positive integer"))
			return
		}
		limit = n
	}

	airports, err := h.inbounds.ActiveAirports(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(airports))
}

// GetATCSummary returns every staffed airport with its frequencies and
// inbound counts
func (h *Handler) GetATCSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.inbounds.ATCSummary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(summary))
}

// StartTracking starts periodic tracking of the requested airport
func (h *Handler) StartTracking(w http.ResponseWriter, r *http.Request) {
	var req startTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, invalidInput("invalid request body"))
		return
	}
	icao := normalizeICAO(req.ICAO)

	if err := h.tracker.Start(r.Context(), icao); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.savePreference(r.Context(), prefICAO, icao, h.searchTTL()); err != nil {
		h.logger.Warn("Failed to remember airport", logger.String("icao", icao), logger.Error(err))
	}

	writeJSON(w, http.StatusOK, h.tracking(r, inbound.FilterOptions{}))
}

// StopTracking stops the tracker
func (h *Handler) StopTracking(w http.ResponseWriter, r *http.Request) {
	h.tracker.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// GetTracking returns the tracker state with its current flights
func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	opts, err := filterOptions(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.tracking(r, opts))
}

func (h *Handler) tracking(r *http.Request, opts inbound.FilterOptions) TrackingResponse {
	snap := h.tracker.Snapshot()
	all := snap.Flights
	snap.Flights = nonNil(inbound.Filter(all, opts))
	snap.Controllers = nonNil(snap.Controllers)
	snap.CenterFrequencies = nonNil(snap.CenterFrequencies)
	snap.ActiveAirports = nonNil(snap.ActiveAirports)
	return TrackingResponse{
		Snapshot:         snap,
		Total:            len(all),
		DistanceCounts:   inbound.CountByDistance(all),
		Separation:       inbound.Separation(all, opts.HeadingRange),
		AverageSpacingNM: h.averageSpacing(all),
	}
}

func (h *Handler) averageSpacing(flights []inbound.FlightRecord) *float64 {
	nm, ok := inbound.AverageSpacing(flights, h.now())
	if !ok {
		return nil
	}
	return &nm
}

// GetHealth reports liveness and the tracker state
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"tracker": snap.State,
		"icao":    snap.ICAO,
	})
}

func icaoParam(r *http.Request) (string, error) {
	icao := normalizeICAO(chi.URLParam(r, "icao"))
	if !config.ValidICAO(icao) {
		return "", invalidInput("ICAO code must be four letters: %q", icao)
	}
	return icao, nil
}

func normalizeICAO(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// filterOptions reads headingMin/headingMax and distanceMin/distanceMax.
// A range needs both bounds.
func filterOptions(r *http.Request) (inbound.FilterOptions, error) {
	q := r.URL.Query()
	var opts inbound.FilterOptions
	var err error
	if opts.HeadingRange, err = rangeParam(q.Get("headingMin"), q.Get("headingMax"), "heading"); err != nil {
		return opts, err
	}
	if opts.DistanceRange, err = rangeParam(q.Get("distanceMin"), q.Get("distanceMax"), "distance"); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func rangeParam(minValue, maxValue, name string) (*inbound.Range, error) {
	if minValue == "" && maxValue == "" {
		return nil, nil
	}
	if minValue == "" || maxValue == "" {
		return nil, invalidInput("%s range needs both bounds", name)
	}
	lo, err := strconv.ParseFloat(minValue, 64)
	if err != nil {
		return nil, invalidInput("%s minimum is not a number", name)
	}
	hi, err := strconv.ParseFloat(maxValue, 64)
	if err != nil {
		return nil, invalidInput("%s maximum is not a number", name)
	}
	return &inbound.Range{Min: lo, Max: hi}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
