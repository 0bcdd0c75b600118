// Package heatmap places municipality incident totals on the map. DATATRAN
// rows rarely carry usable coordinates, so points fall back to the UF
// centroid plus a deterministic per-municipality offset: the same
// municipality always lands on the same spot.
package heatmap

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"

	"github.com/lfarias/rodovia/internal/models"
)

const (
	latRange = 0.6
	lonRange = 0.9
)

// uf centroids, approximate state capitals.
var centroids = map[string][2]float64{
	"AC": {-8.77, -70.55}, "AL": {-9.62, -35.73}, "AP": {1.41, -51.77}, "AM": {-3.13, -60.02},
	"BA": {-12.96, -38.51}, "CE": {-3.73, -38.54}, "DF": {-15.79, -47.88}, "ES": {-20.31, -40.34},
	"GO": {-16.64, -49.31}, "MA": {-2.53, -44.34}, "MT": {-12.64, -55.42}, "MS": {-20.51, -54.54},
	"MG": {-19.92, -43.94}, "PA": {-1.45, -48.50}, "PB": {-7.12, -34.86}, "PR": {-25.43, -49.27},
	"PE": {-8.05, -34.90}, "PI": {-5.09, -42.80}, "RJ": {-22.91, -43.17}, "RN": {-5.79, -35.20},
	"RS": {-30.03, -51.23}, "RO": {-10.83, -63.34}, "RR": {2.82, -60.67}, "SC": {-27.59, -48.55},
	"SP": {-23.55, -46.63}, "SE": {-10.90, -37.07}, "TO": {-10.25, -48.32},
}

// geographic center of Brazil, used when the UF is unknown.
var defaultCentroid = [2]float64{-14.2350, -51.9253}

type Point struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight int     `json:"weight"`
}

// Centroid returns the centroid for a UF code, reporting whether it is known.
func Centroid(uf string) (lat, lon float64, ok bool) {
	c, ok := centroids[uf]
	if !ok {
		return defaultCentroid[0], defaultCentroid[1], false
	}
	return c[0], c[1], true
}

// jitter derives a reproducible offset from the seed text. The first and
// second 8 hex digits of the MD5 sum become fractions of the lat and lon
// ranges.
func jitter(seed string) (latOff, lonOff float64) {
	sum := md5.Sum([]byte(seed))
	h := hex.EncodeToString(sum[:])
	latBits, _ := strconv.ParseUint(h[0:8], 16, 64)
	lonBits, _ := strconv.ParseUint(h[8:16], 16, 64)
	latFrac := float64(latBits) / float64(0xFFFFFFFF)
	lonFrac := float64(lonBits) / float64(0xFFFFFFFF)
	latOff = (latFrac - 0.5) * 2 * latRange
	lonOff = (lonFrac - 0.5) * 2 * lonRange
	return latOff, lonOff
}

// BuildPoints maps municipality totals to weighted coordinates.
func BuildPoints(counts []models.MunicipalityCount) []Point {
	points := make([]Point, 0, len(counts))
	for _, mc := range counts {
		lat, lon, _ := Centroid(mc.UF)
		latOff, lonOff := jitter(mc.UF + "|" + mc.Municipality)
		points = append(points, Point{
			Lat:    lat + latOff,
			Lon:    lon + lonOff,
			Weight: mc.Count,
		})
	}
	return points
}
