package events

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder persists widget lifecycle events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes events to the service log. Used when no database is
// configured.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) error {
	r.logger.Info().
		Str("event_type", ev.Type).
		Str("instance_id", ev.InstanceID).
		Str("company_id", ev.CompanyID).
		RawJSON("payload", payloadOrEmpty(ev.Payload)).
		Msg("widget event")
	return nil
}

func payloadOrEmpty(p []byte) []byte {
	if len(p) == 0 {
		return []byte("{}")
	}
	return p
}
