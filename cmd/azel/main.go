// Command azel prints the pointing solution from an observer to a target.
// With no flags it solves the reference case from the University of
// Waterloo to the CN Tower.
//
//	azel -obs-lat 43.4723 -obs-lon -80.5449 -obs-h 300 \
//	     -tgt-lat 43.6426 -tgt-lon -79.3871 -tgt-h 553.3 -precision 32
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/azel"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("azel", flag.ContinueOnError)
	fs.SetOutput(stderr)

	obsLat := fs.Float64("obs-lat", 43.4723, "observer latitude in degrees")
	obsLon := fs.Float64("obs-lon", -80.5449, "observer longitude in degrees")
	obsH := fs.Float64("obs-h", 300.0, "observer height above the ellipsoid in meters")
	tgtLat := fs.Float64("tgt-lat", 43.6426, "target latitude in degrees")
	tgtLon := fs.Float64("tgt-lon", -79.3871, "target longitude in degrees")
	tgtH := fs.Float64("tgt-h", 553.3, "target height above the ellipsoid in meters")
	precision := fs.Int("precision", 64, "floating point width, 64 or 32")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	observer := azel.GeodeticPosition{LatitudeDeg: *obsLat, LongitudeDeg: *obsLon, HeightM: *obsH}
	target := azel.GeodeticPosition{LatitudeDeg: *tgtLat, LongitudeDeg: *tgtLon, HeightM: *tgtH}

	var (
		out fmt.Stringer
		err error
	)
	switch *precision {
	case 64:
		out, err = azel.Solve(&observer, &target)
	case 32:
		out, err = azel.Solve(narrow(observer), narrow(target))
	default:
		fmt.Fprintf(stderr, "ERROR: -precision must be 64 or 32, got %d\n", *precision)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}

	fmt.Fprintln(stdout, out)
	return 0
}

func narrow(p azel.GeodeticPosition) *azel.Position[float32] {
	return &azel.Position[float32]{
		LatitudeDeg:  float32(p.LatitudeDeg),
		LongitudeDeg: float32(p.LongitudeDeg),
		HeightM:      float32(p.HeightM),
	}
}
