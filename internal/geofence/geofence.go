package geofence

import "math"

// EarthRadiusMeters is the equatorial radius used for distance calculations.
const EarthRadiusMeters = 6378137.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Validate reports the distance from user to office and whether it falls
// inside the radius. The boundary is inclusive.
func Validate(user, office Coordinate, radiusMeters float64) (float64, bool) {
	d := Distance(user, office)
	return d, d <= radiusMeters
}

// Fence is a circular boundary around a fixed center.
type Fence struct {
	Center       Coordinate
	RadiusMeters float64
}

// Check validates c against the fence.
func (f Fence) Check(c Coordinate) (float64, bool) {
	return Validate(c, f.Center, f.RadiusMeters)
}
