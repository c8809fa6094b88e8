package geo

import "math"

// earthRadiusKM is the mean earth radius used by the spherical approximation.
const earthRadiusKM = 6371.0

// Coordinate is an immutable (longitude, latitude) pair in degrees.
type Coordinate struct {
	Longitude float64 `json:"longitude" db:"longitude"`
	Latitude  float64 `json:"latitude" db:"latitude"`
}

// Valid reports whether the coordinate is within geographic bounds.
func (c Coordinate) Valid() bool {
	return c.Longitude >= -180 && c.Longitude <= 180 &&
		c.Latitude >= -90 && c.Latitude <= 90
}

// DistanceKM returns the great-circle distance between a and b in kilometers,
// computed with the haversine formula. Symmetric, zero iff a == b.
func DistanceKM(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}
