package services

import (
	"time"

	"garden-monitor/internal/connstate"
	"garden-monitor/internal/derived"
	"garden-monitor/internal/models"
)

// Dashboard is the read-only projection handed to renderers.
type Dashboard struct {
	Snapshot        models.SensorSnapshot `json:"snapshot"`
	ConnectionState connstate.State       `json:"connection_state"`
	ConnectionLabel string                `json:"connection_label"`
	BadgeClass      string                `json:"badge_class"`
	RelativeUpdate  string                `json:"relative_update,omitempty"`
	HasUpdate       bool                  `json:"has_update"`
	LastUpdate      *time.Time            `json:"last_update,omitempty"`
	HistorySize     int                   `json:"history_size"`
	Trends          Trends                `json:"trends"`
	Status          Statuses              `json:"status"`
	Levels          Levels                `json:"levels"`
}

type Trends struct {
	Temperature  derived.Trend `json:"temperature"`
	AirHumidity  derived.Trend `json:"air_humidity"`
	SoilHumidity derived.Trend `json:"soil_humidity"`
}

type Statuses struct {
	Temperature string `json:"temperature"`
	Soil        string `json:"soil"`
	PH          string `json:"ph"`
}

type Levels struct {
	AirHumidity  derived.Gauge `json:"air_humidity"`
	SoilHumidity derived.Gauge `json:"soil_humidity"`
}

// buildDashboard derives every presentation value from the current snapshot
// and the entries that precede it.
func buildDashboard(current models.SensorSnapshot, prior []models.HistoryEntry, trendWindow int, state connstate.State) Dashboard {
	return Dashboard{
		Snapshot:        current,
		ConnectionState: state,
		ConnectionLabel: state.Label(),
		BadgeClass:      state.BadgeClass(),
		Trends: Trends{
			Temperature:  derived.TrendOf(current.Temperature, prior, models.FieldTemperature, trendWindow),
			AirHumidity:  derived.TrendOf(current.AirHumidity, prior, models.FieldAirHumidity, trendWindow),
			SoilHumidity: derived.TrendOf(current.SoilHumidity, prior, models.FieldSoilHumidity, trendWindow),
		},
		Status: Statuses{
			Temperature: derived.TemperatureStatus(current.Temperature),
			Soil:        derived.SoilStatus(current.SoilHumidity),
			PH:          derived.PHStatus(current.PH),
		},
		Levels: Levels{
			AirHumidity:  derived.LevelOf(current.AirHumidity, derived.AirHumidityThresholds),
			SoilHumidity: derived.LevelOf(current.SoilHumidity, derived.SoilHumidityThresholds),
		},
	}
}
