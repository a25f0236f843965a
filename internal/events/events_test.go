package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	payload := []byte(`{"service_id":"svc-1"}`)

	mock.ExpectExec("INSERT INTO widget_events").
		WithArgs(id, TypeBookingSubmitted, "inst-1", "comp-1", payload, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgRepository(mock)
	err = repo.Record(context.Background(), Event{
		ID:         id,
		Type:       TypeBookingSubmitted,
		InstanceID: "inst-1",
		CompanyID:  "comp-1",
		Payload:    payload,
		CreatedAt:  at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_RecordError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO widget_events").
		WithArgs(pgxmock.AnyArg(), TypeCatalogFailed, "inst-1", "comp-1", []byte("{}"), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = NewPgRepository(mock).Record(context.Background(), Event{
		Type:       TypeCatalogFailed,
		InstanceID: "inst-1",
		CompanyID:  "comp-1",
	})
	assert.ErrorContains(t, err, "insert widget event")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_PruneBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM widget_events").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := NewPgRepository(mock).PruneBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(zerolog.New(&buf))

	require.NoError(t, rec.Record(context.Background(), Event{
		Type:       TypeWidgetMounted,
		InstanceID: "inst-9",
		CompanyID:  "comp-9",
	}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, TypeWidgetMounted, line["event_type"])
	assert.Equal(t, "inst-9", line["instance_id"])
	assert.Equal(t, map[string]any{}, line["payload"])
}
