package models

import "time"

// SensorSnapshot is one complete, validated telemetry reading from the garden controller.
// The zero value is the snapshot shown before the first message arrives.
type SensorSnapshot struct {
	Temperature  float64 `json:"temperature"`   // Celsius
	AirHumidity  float64 `json:"air_humidity"`  // % RH
	SoilHumidity float64 `json:"soil_humidity"` // % volumetric
	PH           float64 `json:"ph"`            // 0-14
	PumpOn       bool    `json:"pump_on"`
}

// HistoryEntry is a snapshot stamped with its server-side receive time.
type HistoryEntry struct {
	Snapshot   SensorSnapshot `json:"snapshot"`
	ReceivedAt time.Time      `json:"received_at"`
}

// SensorPayload is the wire record published by the device on the telemetry topic.
// Pointers distinguish a missing key from a zero reading.
type SensorPayload struct {
	Temperatura *float64 `json:"temperatura"`
	UmidadeAr   *float64 `json:"umidadeAr"`
	UmidadeSolo *float64 `json:"umidadeSolo"`
	PH          *float64 `json:"ph"`
	Bomba       *bool    `json:"bomba"`
}

// Field selects one numeric reading of a snapshot.
type Field string

const (
	FieldTemperature  Field = "temperatura"
	FieldAirHumidity  Field = "umidadeAr"
	FieldSoilHumidity Field = "umidadeSolo"
	FieldPH           Field = "ph"
)

// NumericFields lists every numeric field in wire order.
var NumericFields = []Field{FieldTemperature, FieldAirHumidity, FieldSoilHumidity, FieldPH}

// Value returns the reading selected by f. Unknown fields yield 0.
func (s SensorSnapshot) Value(f Field) float64 {
	switch f {
	case FieldTemperature:
		return s.Temperature
	case FieldAirHumidity:
		return s.AirHumidity
	case FieldSoilHumidity:
		return s.SoilHumidity
	case FieldPH:
		return s.PH
	default:
		return 0
	}
}
