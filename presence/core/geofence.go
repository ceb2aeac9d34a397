package core

import (
	"fmt"
	"math"
)

const (
	EarthRadiusMeters = 6371000.0

	// MaxAccuracyMeters is the worst GPS fix we accept. Anything less precise
	// fails before the distance is computed.
	MaxAccuracyMeters = 50.0
)

type GeofenceInput struct {
	Lat               float64
	Lng               float64
	AccuracyMeters    *float64
	OfficeLat         float64
	OfficeLng         float64
	MaxDistanceMeters float64
}

type GeofenceResult struct {
	IsValid        bool       `json:"isValid"`
	DistanceMeters float64    `json:"distanceMeters"`
	Message        string     `json:"message"`
	Reason         ReasonCode `json:"reason,omitempty"`
}

func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func ValidateGeofence(in GeofenceInput) GeofenceResult {
	if !ValidCoordinates(in.Lat, in.Lng) || !ValidCoordinates(in.OfficeLat, in.OfficeLng) {
		return GeofenceResult{
			Message: "invalid coordinates",
			Reason:  ReasonInvalidCoordinates,
		}
	}

	if in.AccuracyMeters != nil {
		acc := *in.AccuracyMeters
		if math.IsNaN(acc) || acc > MaxAccuracyMeters {
			return GeofenceResult{
				Message: fmt.Sprintf("GPS accuracy too low (%.0fm > %.0fm)", acc, MaxAccuracyMeters),
				Reason:  ReasonLowAccuracy,
			}
		}
	}

	distance := roundTo(HaversineMeters(in.Lat, in.Lng, in.OfficeLat, in.OfficeLng), 2)
	if distance > in.MaxDistanceMeters {
		return GeofenceResult{
			DistanceMeters: distance,
			Message:        fmt.Sprintf("%.2fm from office, maximum is %.0fm", distance, in.MaxDistanceMeters),
			Reason:         ReasonOutOfRange,
		}
	}

	return GeofenceResult{
		IsValid:        true,
		DistanceMeters: distance,
		Message:        fmt.Sprintf("within %.0fm of office", in.MaxDistanceMeters),
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
