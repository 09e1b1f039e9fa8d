package app

import (
	"errors"
	"flag"
	"fmt"

	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/locate"
)

// Config is the position-estimation tool configuration.
type Config struct {
	DBPath  string
	TowerID string

	ReferencePower   float64
	PathLossExponent float64

	// Plan switches from position estimation to printing a hunting plan.
	// Without a tower ID the top threat in the database is picked.
	Plan     bool
	Position *geo.Coordinate

	PlotFile string
	FontPath string
}

// Named path-loss environments accepted by the -env flag.
var environments = map[string]float64{
	"free-space":  locate.PathLossFreeSpace,
	"urban":       locate.PathLossUrban,
	"dense-urban": locate.PathLossDenseUrban,
}

func NewConfigFromCLI() (*Config, error) {
	c := &Config{}

	var environment, at string
	flag.StringVar(&c.DBPath, "db", "", "Path to the tower database")
	flag.StringVar(&c.TowerID, "t", "", "Tower unique ID to locate")
	flag.Float64Var(&c.ReferencePower, "ref", locate.DefaultReferencePower, "Reference power at 1 m in dBm")
	flag.StringVar(&environment, "env", "urban", "Path-loss environment. [free-space, urban, dense-urban]")
	flag.BoolVar(&c.Plan, "plan", false, "Print a hunting plan instead of estimating a position")
	flag.StringVar(&at, "at", "", `Current position as "lat,lon" to anchor scan recommendations`)
	flag.StringVar(&c.PlotFile, "plot", "", "Write a PNG plot of the estimate to this path")
	flag.StringVar(&c.FontPath, "font", "", "TTF font for plot labels (optional)")
	flag.Parse()

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.TowerID == "" && !c.Plan {
		err = errors.New("tower id is required")
	} else if _, ok := environments[environment]; !ok {
		err = fmt.Errorf("invalid environment: %s", environment)
	}

	if err == nil && at != "" {
		var position geo.Coordinate
		if position, err = geo.Parse(at); err == nil {
			c.Position = &position
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.PathLossExponent = environments[environment]
	return c, nil
}
