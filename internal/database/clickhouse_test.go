package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garden-monitor/internal/models"
)

type execCall struct {
	query string
	args  []any
}

type fakeConn struct {
	calls   []execCall
	execErr error
	closed  bool
}

func (f *fakeConn) Exec(_ context.Context, query string, args ...any) error {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return f.execErr
}

func (f *fakeConn) Ping(context.Context) error { return nil }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestInitSchema_CreatesAllTables(t *testing.T) {
	fc := &fakeConn{}
	db := newWithConn(fc, nil)

	require.NoError(t, db.InitSchema(context.Background()))
	require.Len(t, fc.calls, len(AllTables()))
	assert.Contains(t, fc.calls[0].query, "CREATE TABLE IF NOT EXISTS garden_readings")
}

func TestSaveReading_BindsColumnsInOrder(t *testing.T) {
	fc := &fakeConn{}
	db := newWithConn(fc, nil)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	err := db.SaveReading(context.Background(), "wokwi/jardim/dados", models.HistoryEntry{
		Snapshot: models.SensorSnapshot{
			Temperature:  24.1,
			AirHumidity:  58,
			SoilHumidity: 33,
			PH:           6.9,
			PumpOn:       true,
		},
		ReceivedAt: at,
	})
	require.NoError(t, err)

	require.Len(t, fc.calls, 1)
	assert.Contains(t, fc.calls[0].query, "INSERT INTO garden_readings")
	assert.Equal(t, []any{at, "wokwi/jardim/dados", 24.1, 58.0, 33.0, 6.9, true}, fc.calls[0].args)
}

func TestSaveReading_WrapsError(t *testing.T) {
	cause := errors.New("code: 241, memory limit exceeded")
	db := newWithConn(&fakeConn{execErr: cause}, nil)

	err := db.SaveReading(context.Background(), "t", models.HistoryEntry{})
	assert.ErrorIs(t, err, cause)
}

func TestClose(t *testing.T) {
	fc := &fakeConn{}
	require.NoError(t, newWithConn(fc, nil).Close())
	assert.True(t, fc.closed)
}
