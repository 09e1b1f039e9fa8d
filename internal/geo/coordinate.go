// Package geo provides the geographic primitives shared by the bearing
// and trilateration engines: validated WGS84 coordinates and great-circle
// distance.
package geo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// EarthRadius is the mean Earth radius in meters used for all
// great-circle calculations.
const EarthRadius = 6371000.0

// ErrCoordinateOutOfRange is returned when a latitude or longitude is
// outside its valid range. Coordinates that fail construction never reach
// the estimators.
type ErrCoordinateOutOfRange struct {
	Field string
	Value float64
}

func (e *ErrCoordinateOutOfRange) Error() string {
	return fmt.Sprintf("geo: %s out of range: %g", e.Field, e.Value)
}

// Coordinate is an immutable latitude/longitude pair in decimal degrees.
// Construct it with New or Parse; a zero Coordinate is valid (0,0).
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// New validates and returns a Coordinate. Latitude must be within
// [-90, 90] and longitude within [-180, 180].
func New(latitude, longitude float64) (Coordinate, error) {
	if latitude < -90 || latitude > 90 || math.IsNaN(latitude) {
		return Coordinate{}, &ErrCoordinateOutOfRange{"latitude", latitude}
	}
	if longitude < -180 || longitude > 180 || math.IsNaN(longitude) {
		return Coordinate{}, &ErrCoordinateOutOfRange{"longitude", longitude}
	}
	return Coordinate{Latitude: latitude, Longitude: longitude}, nil
}

// DistanceTo returns the haversine great-circle distance to other,
// in meters.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	lat1 := radians(c.Latitude)
	lat2 := radians(other.Latitude)
	dLat := radians(other.Latitude - c.Latitude)
	dLon := radians(other.Longitude - c.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * h
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// MapsURL returns a Google Maps link for the coordinate.
func (c Coordinate) MapsURL() string {
	return fmt.Sprintf("https://maps.google.com/?q=%g,%g", c.Latitude, c.Longitude)
}

var (
	decimalPattern = regexp.MustCompile(`^(-?\d+\.?\d*)\s*,\s*(-?\d+\.?\d*)$`)
	dmsPattern     = regexp.MustCompile(`^(\d+)°(\d+)'([\d.]+)"([NS])\s*,?\s*(\d+)°(\d+)'([\d.]+)"([EW])$`)
)

// Parse reads a coordinate from its decimal ("37.7749,-122.4194") or
// DMS (`37°46'29.64"N, 122°25'9.84"W`) string form.
func Parse(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)

	if m := decimalPattern.FindStringSubmatch(s); m != nil {
		lat, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Coordinate{}, fmt.Errorf("geo: parsing latitude: %w", err)
		}
		lon, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Coordinate{}, fmt.Errorf("geo: parsing longitude: %w", err)
		}
		return New(lat, lon)
	}

	if m := dmsPattern.FindStringSubmatch(s); m != nil {
		lat, err := dmsToDecimal(m[1], m[2], m[3])
		if err != nil {
			return Coordinate{}, err
		}
		if m[4] == "S" {
			lat = -lat
		}
		lon, err := dmsToDecimal(m[5], m[6], m[7])
		if err != nil {
			return Coordinate{}, err
		}
		if m[8] == "W" {
			lon = -lon
		}
		return New(lat, lon)
	}

	return Coordinate{}, fmt.Errorf("geo: invalid coordinate format: %q", s)
}

func dmsToDecimal(deg, min, sec string) (float64, error) {
	d, err := strconv.ParseFloat(deg, 64)
	if err != nil {
		return 0, fmt.Errorf("geo: parsing degrees: %w", err)
	}
	m, err := strconv.ParseFloat(min, 64)
	if err != nil {
		return 0, fmt.Errorf("geo: parsing minutes: %w", err)
	}
	s, err := strconv.ParseFloat(sec, 64)
	if err != nil {
		return 0, fmt.Errorf("geo: parsing seconds: %w", err)
	}
	return d + m/60 + s/3600, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
