package geo

import "math"

const earthRadiusM = 6371000.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Fence is a circular area around a reference coordinate.
type Fence struct {
	Center  Point
	RadiusM float64
}

// DistanceM returns the haversine great-circle distance between two points in meters.
func DistanceM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// Contains reports whether p falls within the fence radius.
func (f Fence) Contains(p Point) bool {
	return DistanceM(f.Center, p) <= f.RadiusM
}
