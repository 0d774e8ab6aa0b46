// Package azel points an antenna: given an observer and a target on the
// WGS-84 ellipsoid it returns the target's azimuth, elevation and slant
// range in the observer's local East-North-Up frame.
//
// The transform runs in three pure steps: geodetic to ECEF for both
// positions, rotation of the ECEF difference into ENU at the observer, and
// reduction of the ENU vector to spherical angles. Nothing in the package
// allocates, logs, or touches mutable shared state, so Solve can be called
// from any number of goroutines on every tracking tick.
//
// Precision is a type parameter. float64 is the reference; float32
// reproduces the single-precision build used on small microcontrollers and
// differs from float64 in the least significant digits.
package azel

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Float is the set of floating point types the solver can run in.
type Float interface {
	~float32 | ~float64
}

// ECEF is an Earth-Centered Earth-Fixed position or displacement in meters.
type ECEF[T Float] struct {
	X, Y, Z T
}

// Sub returns p - q component-wise.
func (p ECEF[T]) Sub(q ECEF[T]) ECEF[T] {
	return ECEF[T]{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// GeodeticToECEF converts a WGS-84 geodetic position to ECEF meters.
func GeodeticToECEF[T Float](p Position[T]) ECEF[T] {
	sinLat, cosLat := sincos(degToRad(p.LatitudeDeg))
	sinLon, cosLon := sincos(degToRad(p.LongitudeDeg))

	// Radius of curvature in the prime vertical.
	n := T(wgs84A) / sqrt(1-T(wgs84E2)*sinLat*sinLat)

	return ECEF[T]{
		X: (n + p.HeightM) * cosLat * cosLon,
		Y: (n + p.HeightM) * cosLat * sinLon,
		Z: (n*(1-T(wgs84E2)) + p.HeightM) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF meters back to a WGS-84 geodetic position.
//
// Latitude starts from Bowring's estimate and is refined a fixed five
// times, which converges to well under a millimeter for anything between
// the Earth's center and geostationary altitude. The arithmetic runs in
// float64 regardless of T.
func ECEFToGeodetic[T Float](v ECEF[T]) Position[T] {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)

	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)
	lat := math.Atan2(z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var h float64
	if math.Abs(cosLat) > 1e-10 {
		h = p/cosLat - n
	} else {
		// On the polar axis p/cosLat is 0/0.
		h = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Position[T]{
		LatitudeDeg:  T(lat * 180 / math.Pi),
		LongitudeDeg: T(lon * 180 / math.Pi),
		HeightM:      T(h),
	}
}

func degToRad[T Float](d T) T {
	return d * (math.Pi / 180)
}

func radToDeg[T Float](r T) T {
	return r * (180 / math.Pi)
}

// The math package only speaks float64. Evaluating there and rounding the
// result back to T matches a correctly rounded single-precision libm.

func sincos[T Float](rad T) (sin, cos T) {
	s, c := math.Sincos(float64(rad))
	return T(s), T(c)
}

func sqrt[T Float](x T) T {
	return T(math.Sqrt(float64(x)))
}

func hypot[T Float](p, q T) T {
	return T(math.Hypot(float64(p), float64(q)))
}

func atan2[T Float](y, x T) T {
	return T(math.Atan2(float64(y), float64(x)))
}
