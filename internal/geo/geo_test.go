package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKMZeroForEqualPoints(t *testing.T) {
	points := []Coordinate{
		{Longitude: 0, Latitude: 0},
		{Longitude: 106.8456, Latitude: -6.2088},
		{Longitude: -180, Latitude: 90},
	}
	for _, p := range points {
		assert.Zero(t, DistanceKM(p, p))
	}
}

func TestDistanceKMSymmetric(t *testing.T) {
	jakarta := Coordinate{Longitude: 106.8456, Latitude: -6.2088}
	bandung := Coordinate{Longitude: 107.6191, Latitude: -6.9175}
	surabaya := Coordinate{Longitude: 112.7521, Latitude: -7.2575}

	assert.Equal(t, DistanceKM(jakarta, bandung), DistanceKM(bandung, jakarta))
	assert.Equal(t, DistanceKM(jakarta, surabaya), DistanceKM(surabaya, jakarta))
}

func TestDistanceKMKnownDistances(t *testing.T) {
	jakarta := Coordinate{Longitude: 106.8456, Latitude: -6.2088}
	bandung := Coordinate{Longitude: 107.6191, Latitude: -6.9175}

	// Roughly 118 km between the two city centers.
	d := DistanceKM(jakarta, bandung)
	assert.InDelta(t, 118, d, 5)

	// One degree of latitude is about 111 km.
	a := Coordinate{Longitude: 0, Latitude: 0}
	b := Coordinate{Longitude: 0, Latitude: 1}
	assert.InDelta(t, 111.19, DistanceKM(a, b), 0.5)
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Longitude: 106.8, Latitude: -6.2}.Valid())
	assert.True(t, Coordinate{Longitude: 180, Latitude: -90}.Valid())
	assert.False(t, Coordinate{Longitude: 181, Latitude: 0}.Valid())
	assert.False(t, Coordinate{Longitude: 0, Latitude: 90.1}.Valid())
}
