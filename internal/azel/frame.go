package azel

// ENU is a displacement in the local East-North-Up tangent frame, meters.
type ENU[T Float] struct {
	East, North, Up T
}

// ECEFToENU rotates an ECEF displacement into the ENU frame anchored at
// origin. Only the origin's latitude and longitude matter; height does not
// change the orientation of the tangent plane.
func ECEFToENU[T Float](d ECEF[T], origin Position[T]) ENU[T] {
	sinLat, cosLat := sincos(degToRad(origin.LatitudeDeg))
	sinLon, cosLon := sincos(degToRad(origin.LongitudeDeg))

	return ENU[T]{
		East:  -sinLon*d.X + cosLon*d.Y,
		North: -sinLat*cosLon*d.X - sinLat*sinLon*d.Y + cosLat*d.Z,
		Up:    cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z,
	}
}
