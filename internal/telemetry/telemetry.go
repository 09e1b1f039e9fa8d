// Package telemetry supplies the scanner position for location-tagged
// signal measurements.
package telemetry

import (
	"time"

	"github.com/towerhunt/tower-hunter/internal/geo"
)

type Provider interface {
	Get() *Position
}

// Position is one scanner position fix.
type Position struct {
	Timestamp time.Time      `json:"timestamp"`
	Location  geo.Coordinate `json:"location"`
	Heading   *float64       `json:"heading,omitempty"` // array orientation in degrees, if known
}

// Static is a Provider for a scanner that does not move during a
// session, such as a tripod deployment surveyed once.
type Static struct {
	position Position
}

// NewStatic returns a provider that always reports the given fix.
func NewStatic(location geo.Coordinate, heading *float64) *Static {
	return &Static{position: Position{
		Timestamp: time.Now(),
		Location:  location,
		Heading:   heading,
	}}
}

func (s *Static) Get() *Position {
	p := s.position
	p.Timestamp = time.Now()
	return &p
}
