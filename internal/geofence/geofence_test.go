package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var office = Coordinate{Latitude: 13.274497, Longitude: 79.121317}

// north moves c by meters along its meridian.
func north(c Coordinate, meters float64) Coordinate {
	return Coordinate{
		Latitude:  c.Latitude + meters/(EarthRadiusMeters*math.Pi/180),
		Longitude: c.Longitude,
	}
}

func TestDistance_SamePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Distance(office, office))
}

func TestDistance_IsSymmetric(t *testing.T) {
	a := Coordinate{Latitude: 13.2746, Longitude: 79.1214}
	assert.InDelta(t, Distance(a, office), Distance(office, a), 1e-9)
}

func TestDistance_AlongMeridian(t *testing.T) {
	assert.InDelta(t, 500, Distance(north(office, 500), office), 0.01)
	assert.InDelta(t, 100, Distance(north(office, 100), office), 0.01)
}

func TestValidate_UserNearOfficeIsWithin(t *testing.T) {
	user := Coordinate{Latitude: 13.2746, Longitude: 79.1214}
	d, within := Validate(user, office, 100)
	assert.True(t, within)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 100.0)
}

func TestValidate_FarUserIsOutside(t *testing.T) {
	d, within := Validate(north(office, 500), office, 100)
	assert.False(t, within)
	assert.InDelta(t, 500, d, 0.5)
}

func TestValidate_BoundaryIsInclusive(t *testing.T) {
	user := north(office, 100)
	exact := Distance(user, office)

	_, within := Validate(user, office, exact)
	assert.True(t, within, "distance equal to radius must be inside")

	_, within = Validate(user, office, math.Nextafter(exact, 0))
	assert.False(t, within)
}

func TestFence_Check(t *testing.T) {
	f := Fence{Center: office, RadiusMeters: 100}
	_, within := f.Check(north(office, 99))
	assert.True(t, within)
	_, within = f.Check(north(office, 101))
	assert.False(t, within)
}
