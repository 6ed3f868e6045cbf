// lanecheck validates a lane geometry file and optionally reports which
// lane a probe point falls in. Useful when drawing lane polygons for a
// new camera view:
//
//	lanecheck -lanes config/lanes.json -probe 640,480 -probe 100,100
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/lanewatch-data/lanewatch/internal/lanes"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

type probeList []string

func (p *probeList) String() string { return strings.Join(*p, " ") }

func (p *probeList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// parseProbe parses an "x,y" pixel coordinate.
func parseProbe(s string) (x, y float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("probe must be 'x,y', got %q", s)
	}
	x, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid probe x '%s': %w", parts[0], err)
	}
	y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid probe y '%s': %w", parts[1], err)
	}
	return x, y, nil
}

func main() {
	lanesPath := flag.String("lanes", "config/lanes.json", "Lane geometry file to validate")
	var probes probeList
	flag.Var(&probes, "probe", "Probe point 'x,y' to assign (repeatable)")
	flag.Parse()

	laneSet, err := lanes.Load(*lanesPath)
	if err != nil {
		log.Fatalf("lane file invalid: %v", err)
	}

	fmt.Printf("%s: %d lanes\n", *lanesPath, laneSet.Len())
	for _, def := range laneSet.Lanes() {
		fmt.Printf("  %s: %d vertices\n", def.ID, len(def.Polygon.Vertices))
	}

	if len(probes) == 0 {
		return
	}

	assigner := lanes.NewAssigner(laneSet)
	exitCode := 0
	for _, p := range probes {
		x, y, err := parseProbe(p)
		if err != nil {
			log.Printf("%v", err)
			exitCode = 1
			continue
		}
		// A probe is a degenerate box centred on the point.
		lane := assigner.Assign(video.BoundingBox{X1: x, Y1: y, X2: x, Y2: y})
		if lane == lanes.Unassigned {
			fmt.Printf("  (%g,%g) -> no lane\n", x, y)
		} else {
			fmt.Printf("  (%g,%g) -> lane %s\n", x, y, lane)
		}
	}
	os.Exit(exitCode)
}
