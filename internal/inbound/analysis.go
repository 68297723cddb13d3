package inbound

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yegors/if-inbounds/internal/geo"
)

// ErrInvalidRange is returned for a range whose bounds are missing or reversed
var ErrInvalidRange = errors.New("invalid range")

// Range is an inclusive [Min, Max] interval
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate checks that both bounds are numbers and Min <= Max
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
		return ErrInvalidRange
	}
	return nil
}

// Contains reports whether v lies within the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// FilterOptions selects which flights are shown and which are emphasized
type FilterOptions struct {
	// HeadingRange flags flights whose bearing from the airport falls inside
	HeadingRange *Range `json:"headingRange,omitempty"`
	// DistanceRange hides flights whose distance falls outside
	DistanceRange *Range `json:"distanceRange,omitempty"`
}

// Validate checks every range that is set
func (o FilterOptions) Validate() error {
	for _, r := range []*Range{o.HeadingRange, o.DistanceRange} {
		if r != nil {
			if err := r.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Filter applies the distance and heading options to a copy of flights.
// Flights outside the distance range are removed, including those without a
// known distance. Flights within the heading range are marked Emphasized.
// Invalid ranges are ignored.
func Filter(flights []FlightRecord, opts FilterOptions) []FlightRecord {
	distance := validRange(opts.DistanceRange)
	heading := validRange(opts.HeadingRange)

	out := make([]FlightRecord, 0, len(flights))
	for _, f := range flights {
		rec := f.Clone()
		if distance != nil {
			if rec.DistanceToDestination == nil || !distance.Contains(float64(*rec.DistanceToDestination)) {
				continue
			}
		}
		rec.Emphasized = heading != nil && inHeadingRange(&rec, *heading)
		out = append(out, rec)
	}
	return out
}

func validRange(r *Range) *Range {
	if r == nil || r.Validate() != nil {
		return nil
	}
	return r
}

func inHeadingRange(f *FlightRecord, r Range) bool {
	return f.HeadingFromAirport != nil && r.Contains(float64(*f.HeadingFromAirport))
}

// CountByDistance buckets flights into 0-50, 51-200 and 201-500 nm.
// Flights without a distance or beyond 500 nm are not counted.
func CountByDistance(flights []FlightRecord) DistanceCounts {
	var counts DistanceCounts
	for _, f := range flights {
		if f.DistanceToDestination == nil {
			continue
		}
		switch d := *f.DistanceToDestination; {
		case d <= 50:
			counts.Within50++
		case d <= 200:
			counts.Within200++
		case d <= 500:
			counts.Within500++
		}
	}
	return counts
}

// SeparationLevel grades how close two consecutive arrivals are. Higher
// values take priority.
type SeparationLevel int

const (
	SeparationNone SeparationLevel = iota
	SeparationWatch
	SeparationModerate
	SeparationClose
	SeparationCritical
)

var separationNames = map[SeparationLevel]string{
	SeparationNone:     "none",
	SeparationWatch:    "watch",
	SeparationModerate: "moderate",
	SeparationClose:    "close",
	SeparationCritical: "critical",
}

func (l SeparationLevel) String() string {
	return separationNames[l]
}

// MarshalText encodes the level by name
func (l SeparationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name
func (l *SeparationLevel) UnmarshalText(text []byte) error {
	for level, name := range separationNames {
		if name == string(text) {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unknown separation level %q", text)
}

// classifyGap maps an ETA gap in seconds to a level
func classifyGap(seconds int64) SeparationLevel {
	switch {
	case seconds <= 10:
		return SeparationCritical
	case seconds <= 30:
		return SeparationClose
	case seconds <= 60:
		return SeparationModerate
	case seconds <= 120:
		return SeparationWatch
	default:
		return SeparationNone
	}
}

// Separation grades each flight by the ETA gap to its neighbours in arrival
// order, keeping the most severe. With a heading range set, flights inside
// and outside the range are sequenced separately; flights without a bearing
// then belong to neither group. Flights without a valid ETA are ignored.
// Only flights with a level above SeparationNone appear in the result.
func Separation(flights []FlightRecord, headingRange *Range) map[string]SeparationLevel {
	heading := validRange(headingRange)

	var groups [][]FlightRecord
	if heading == nil {
		groups = [][]FlightRecord{flights}
	} else {
		var inside, outside []FlightRecord
		for _, f := range flights {
			if f.HeadingFromAirport == nil {
				continue
			}
			if inHeadingRange(&f, *heading) {
				inside = append(inside, f)
			} else {
				outside = append(outside, f)
			}
		}
		groups = [][]FlightRecord{inside, outside}
	}

	levels := make(map[string]SeparationLevel)
	for _, group := range groups {
		gradeGroup(group, levels)
	}
	return levels
}

type timedFlight struct {
	id  string
	eta int64
}

func gradeGroup(group []FlightRecord, levels map[string]SeparationLevel) {
	timed := make([]timedFlight, 0, len(group))
	for _, f := range group {
		if eta, ok := geo.ParseETA(f.ETAMinutes); ok {
			timed = append(timed, timedFlight{id: f.FlightID, eta: eta})
		}
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].eta < timed[j].eta })

	for i := 1; i < len(timed); i++ {
		level := classifyGap(timed[i].eta - timed[i-1].eta)
		if level == SeparationNone {
			continue
		}
		for _, id := range []string{timed[i-1].id, timed[i].id} {
			if level > levels[id] {
				levels[id] = level
			}
		}
	}
}

const (
	// spacingRadiusNM bounds the final-approach area sampled for spacing
	spacingRadiusNM = 13
	// spacingWindow drops flights whose last report is older than this
	spacingWindow = 60 * time.Minute
)

type reportedFlight struct {
	at       time.Time
	lat, lon float64
}

// AverageSpacing returns the mean distance in nautical miles between
// consecutive flights within spacingRadiusNM of the airport, ordered by
// their last report. Flights that reported more than an hour before now, or
// whose report time cannot be parsed, are left out. ok is false when fewer
// than two flights qualify.
func AverageSpacing(flights []FlightRecord, now time.Time) (nm float64, ok bool) {
	cutoff := now.Add(-spacingWindow)

	recent := make([]reportedFlight, 0, len(flights))
	for _, f := range flights {
		if !f.HasPosition() || f.DistanceToDestination == nil || *f.DistanceToDestination > spacingRadiusNM {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, f.LastReport)
		if err != nil || at.Before(cutoff) {
			continue
		}
		recent = append(recent, reportedFlight{at: at, lat: *f.Latitude, lon: *f.Longitude})
	}
	if len(recent) < 2 {
		return 0, false
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].at.Before(recent[j].at) })

	var total float64
	var pairs int
	for i := 1; i < len(recent); i++ {
		d, err := geo.Distance(recent[i-1].lat, recent[i-1].lon, recent[i].lat, recent[i].lon)
		if err != nil {
			continue
		}
		total += d
		pairs++
	}
	if pairs == 0 {
		return 0, false
	}
	return math.Round(total/float64(pairs)*100) / 100, true
}
