// Package geo holds the great-circle math used to place inbound aircraft
// relative to the tracked airport.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// EarthRadiusNM is the mean Earth radius in nautical miles.
	EarthRadiusNM = 3440.0

	// MaxETAMinutes is the horizon past which an ETA is reported as ETAOverLimit.
	MaxETAMinutes = 720

	ETANotAvailable = "N/A"
	ETAOverLimit    = ">12hrs"
)

// ErrInvalidInput is returned when a coordinate is missing or not a number.
var ErrInvalidInput = errors.New("invalid coordinates")

const rad = math.Pi / 180.0

func validate(coords ...float64) error {
	for _, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, coords)
		}
	}
	return nil
}

// Distance returns the haversine distance between two points in nautical miles.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := validate(lat1, lon1, lat2, lon2); err != nil {
		return 0, err
	}

	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dphi := (lat2 - lat1) * rad
	dlambda := (lon2 - lon1) * rad

	a := math.Pow(math.Sin(dphi/2), 2) + math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dlambda/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusNM * c, nil
}

// Bearing returns the initial great-circle course from point 1 to point 2,
// in degrees within [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := validate(lat1, lon1, lat2, lon2); err != nil {
		return 0, err
	}

	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dlambda := (lon2 - lon1) * rad

	y := math.Sin(dlambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dlambda)

	deg := math.Atan2(y, x) / rad
	if deg < 0 {
		deg += 360
	}
	// tiny negative angles round up to exactly 360
	if deg >= 360 {
		deg = 0
	}
	return deg, nil
}

// ETA formats the time to cover the distance from the current position to the
// destination at the given ground speed as "M:SS". It returns ETANotAvailable
// for non-positive speed, invalid coordinates or a zero distance, and
// ETAOverLimit beyond twelve hours.
func ETA(curLat, curLon, destLat, destLon, groundSpeedKts float64) string {
	if !(groundSpeedKts > 0) {
		return ETANotAvailable
	}

	distance, err := Distance(curLat, curLon, destLat, destLon)
	if err != nil || distance <= 0 {
		return ETANotAvailable
	}

	hours := distance / groundSpeedKts
	totalSeconds := int64(math.Round(hours * 3600))
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	if minutes > MaxETAMinutes {
		return ETAOverLimit
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// ParseETA converts an "M:SS" string back into seconds. The second return is
// false for ETANotAvailable, ETAOverLimit and anything malformed.
func ParseETA(eta string) (int64, bool) {
	if eta == "" || eta == ETANotAvailable || strings.HasPrefix(eta, ">") {
		return 0, false
	}
	m, s, found := strings.Cut(eta, ":")
	if !found {
		return 0, false
	}
	minutes, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return minutes*60 + seconds, true
}

// ETASortKey returns the ETA in seconds, or +Inf when it cannot be parsed.
func ETASortKey(eta string) float64 {
	if s, ok := ParseETA(eta); ok {
		return float64(s)
	}
	return math.Inf(1)
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Project dead-reckons a position forward along a constant great-circle course.
func Project(lat, lon, groundSpeedKts, headingDeg float64, d time.Duration) Point {
	distance := groundSpeedKts * d.Hours()
	angular := distance / EarthRadiusNM
	brg := headingDeg * rad

	phi1 := lat * rad
	lambda1 := lon * rad

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(angular) + math.Cos(phi1)*math.Sin(angular)*math.Cos(brg))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(brg)*math.Sin(angular)*math.Cos(phi1),
		math.Cos(angular)-math.Sin(phi1)*math.Sin(phi2),
	)

	return Point{
		Latitude:  phi2 / rad,
		Longitude: math.Mod(lambda2/rad+540, 360) - 180,
	}
}

// Track returns the positions reached after each of the next steps seconds.
// Index i holds the position at i+1 seconds.
func Track(lat, lon, groundSpeedKts, headingDeg float64, steps int) []Point {
	positions := make([]Point, 0, steps)
	cur := Point{Latitude: lat, Longitude: lon}
	for i := 0; i < steps; i++ {
		cur = Project(cur.Latitude, cur.Longitude, groundSpeedKts, headingDeg, time.Second)
		positions = append(positions, cur)
	}
	return positions
}
