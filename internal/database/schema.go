package database

// SQL schemas for all ClickHouse tables

const (
	// GardenReadingsTableSQL creates the garden_readings table
	GardenReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS garden_readings (
			received_at DateTime64(3),
			topic String,
			temperature Float64,
			air_humidity Float64,
			soil_humidity Float64,
			ph Float64,
			pump_on Bool
		) ENGINE = MergeTree()
		ORDER BY (topic, received_at)
		PARTITION BY toYYYYMM(received_at)
	`

	insertReadingSQL = `
		INSERT INTO garden_readings (received_at, topic, temperature, air_humidity, soil_humidity, ph, pump_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		GardenReadingsTableSQL,
	}
}
