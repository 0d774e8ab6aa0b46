package azel

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput is the only failure Solve reports. Every other error in
	// this package wraps it.
	ErrInvalidInput = errors.New("azel: invalid input")

	ErrNilObserver = fmt.Errorf("%w: observer position is missing", ErrInvalidInput)
	ErrNilTarget   = fmt.Errorf("%w: target position is missing", ErrInvalidInput)

	ErrNotFinite  = fmt.Errorf("%w: coordinate is not finite", ErrInvalidInput)
	ErrOutOfRange = fmt.Errorf("%w: coordinate out of range", ErrInvalidInput)
)

// Position is a point referenced to the WGS-84 ellipsoid.
type Position[T Float] struct {
	LatitudeDeg  T // geodetic latitude, degrees
	LongitudeDeg T // longitude, east positive, degrees
	HeightM      T // height above the ellipsoid, meters
}

// GeodeticPosition is the double precision Position.
type GeodeticPosition = Position[float64]

// Validate reports whether p is a physically meaningful position: all
// fields finite, latitude in [-90, 90] and longitude in [-180, 180].
// Solve does not call it; out-of-range input still yields a defined result.
func (p Position[T]) Validate() error {
	lat, lon, h := float64(p.LatitudeDeg), float64(p.LongitudeDeg), float64(p.HeightM)
	for _, v := range [...]float64{lat, lon, h} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNotFinite
		}
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %g", ErrOutOfRange, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %g", ErrOutOfRange, lon)
	}
	return nil
}

// LineOfSight describes a target as seen from an observer.
type LineOfSight[T Float] struct {
	AzimuthDeg   T // [0, 360), clockwise from true north
	ElevationDeg T // [-90, 90], positive above the local horizon
	RangeM       T // slant range, meters
}

// LookAngles is the double precision LineOfSight.
type LookAngles = LineOfSight[float64]

func (l LineOfSight[T]) String() string {
	return fmt.Sprintf("Az: %.3f deg  El: %.3f deg  Range: %.1f m",
		float64(l.AzimuthDeg), float64(l.ElevationDeg), float64(l.RangeM))
}

// Solve returns the line of sight from observer to target.
//
// A nil observer or target yields an error wrapping ErrInvalidInput and no
// computation is performed. Coordinates are otherwise taken as given.
func Solve[T Float](observer, target *Position[T]) (LineOfSight[T], error) {
	if observer == nil {
		return LineOfSight[T]{}, ErrNilObserver
	}
	if target == nil {
		return LineOfSight[T]{}, ErrNilTarget
	}

	d := GeodeticToECEF(*target).Sub(GeodeticToECEF(*observer))
	return ENUToLineOfSight(ECEFToENU(d, *observer)), nil
}

// ENUToLineOfSight reduces an ENU displacement to azimuth, elevation and
// range.
//
// A zero-length vector is reported as the zenith (azimuth 0, elevation 90,
// range 0). A purely vertical vector reports azimuth 0.
func ENUToLineOfSight[T Float](v ENU[T]) LineOfSight[T] {
	east, north := positiveZero(v.East), positiveZero(v.North)

	horizontal := hypot(east, north)
	rng := hypot(horizontal, v.Up)
	if rng == 0 {
		return LineOfSight[T]{AzimuthDeg: 0, ElevationDeg: 90, RangeM: 0}
	}

	return LineOfSight[T]{
		AzimuthDeg:   WrapAzimuth(radToDeg(atan2(east, north))),
		ElevationDeg: radToDeg(atan2(v.Up, horizontal)),
		RangeM:       rng,
	}
}

// WrapAzimuth maps an angle in degrees into [0, 360).
func WrapAzimuth[T Float](deg T) T {
	r := T(math.Mod(float64(deg), 360))
	if r < 0 {
		r += 360
	}
	// A tiny negative r rounds up to exactly 360 above.
	if r >= 360 {
		r = 0
	}
	return r
}

// positiveZero turns -0 into +0. math.Atan2(+0, -0) is pi, which would
// point a vertical line of sight due south.
func positiveZero[T Float](v T) T {
	if v == 0 {
		return 0
	}
	return v
}
