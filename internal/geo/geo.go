// Package geo provides the WGS84 coordinate arithmetic used across the
// incident pipeline: distances, bearings, degree/kilometer conversions and
// grid bucketing. All functions are pure and take coordinates in degrees
// with longitude first.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// KmPerDegree is the approximate length of one degree of latitude. One
// degree of longitude shrinks by cos(latitude) toward the poles.
const KmPerDegree = 111.32

// Bounds is a lat/lon rectangle, inclusive on all edges.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// NigeriaBounds is the approximate national bounding box. It is a coarse
// proxy for the border, not a polygon test: points near the corners can
// fall in neighboring countries.
var NigeriaBounds = Bounds{MinLat: 4.0, MaxLat: 14.0, MinLon: 2.5, MaxLon: 15.0}

// Contains reports whether the point lies inside the rectangle.
func (b Bounds) Contains(lon, lat float64) bool {
	return b.MinLon <= lon && lon <= b.MaxLon &&
		b.MinLat <= lat && lat <= b.MaxLat
}

// WithinNigeria reports whether the coordinates fall inside the national
// bounding box.
func WithinNigeria(lon, lat float64) bool {
	return NigeriaBounds.Contains(lon, lat)
}

// HaversineKm returns the great-circle distance between two points in
// kilometers. Symmetric, zero for identical points.
func HaversineKm(lon1, lat1, lon2, lat2 float64) float64 {
	rLon1 := lon1 * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLon2 := lon2 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	dLon := rLon2 - rLon1
	dLat := rLat2 - rLat1

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * EarthRadiusKm
}

var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassBearing returns the initial bearing from point 1 to point 2,
// quantized to the nearest of the 8 compass points.
func CompassBearing(lon1, lat1, lon2, lat2 float64) string {
	rLon1 := lon1 * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLon2 := lon2 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	dLon := rLon2 - rLon1

	x := math.Sin(dLon) * math.Cos(rLat2)
	y := math.Cos(rLat1)*math.Sin(rLat2) - math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLon)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	bearing = math.Mod(bearing+360, 360)

	idx := int(math.Round(bearing/45)) % 8
	return compassPoints[idx]
}

// KmToDegrees converts kilometers to approximate degrees of latitude.
func KmToDegrees(km float64) float64 {
	return km / KmPerDegree
}

// DegreesToKm converts degrees to approximate kilometers at the given
// latitude, averaging the latitude and longitude spans.
func DegreesToKm(degrees, lat float64) float64 {
	latKm := degrees * KmPerDegree
	lonKm := degrees * KmPerDegree * math.Cos(lat*math.Pi/180)
	return (latKm + lonKm) / 2
}

// GridCellID snaps a coordinate to a regular grid of the given resolution
// and returns a stable "{lat}_{lon}" identifier. Points within roughly half
// a cell width collide to the same cell.
func GridCellID(lon, lat, resolutionKm float64) string {
	resolutionDeg := KmToDegrees(resolutionKm)

	gridLat := math.Round(lat/resolutionDeg) * resolutionDeg
	gridLon := math.Round(lon/resolutionDeg) * resolutionDeg

	return fmt.Sprintf("%.2f_%.2f", gridLat, gridLon)
}
