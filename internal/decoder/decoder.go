// Package decoder turns raw telemetry payloads into validated snapshots.
package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"garden-monitor/internal/models"
)

// ErrMalformed is matched by every decode failure.
var ErrMalformed = errors.New("malformed payload")

// Decode parses a JSON telemetry record into a SensorSnapshot.
//
// All five fields must be present and finite. Unknown keys are ignored.
// Partial records are rejected rather than merged with older readings.
func Decode(raw []byte) (models.SensorSnapshot, error) {
	var payload models.SensorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.SensorSnapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	temp, err := requireFinite(models.FieldTemperature, payload.Temperatura)
	if err != nil {
		return models.SensorSnapshot{}, err
	}
	air, err := requireFinite(models.FieldAirHumidity, payload.UmidadeAr)
	if err != nil {
		return models.SensorSnapshot{}, err
	}
	soil, err := requireFinite(models.FieldSoilHumidity, payload.UmidadeSolo)
	if err != nil {
		return models.SensorSnapshot{}, err
	}
	ph, err := requireFinite(models.FieldPH, payload.PH)
	if err != nil {
		return models.SensorSnapshot{}, err
	}
	if payload.Bomba == nil {
		return models.SensorSnapshot{}, fmt.Errorf("%w: missing field %q", ErrMalformed, "bomba")
	}

	return models.SensorSnapshot{
		Temperature:  temp,
		AirHumidity:  air,
		SoilHumidity: soil,
		PH:           ph,
		PumpOn:       *payload.Bomba,
	}, nil
}

func requireFinite(field models.Field, v *float64) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformed, field)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("%w: field %q is not finite", ErrMalformed, field)
	}
	return *v, nil
}
