package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeWidgetMounted    = "WIDGET_MOUNTED"
	TypeCatalogLoaded    = "CATALOG_LOADED"
	TypeCatalogFailed    = "CATALOG_FAILED"
	TypeBookingSubmitted = "BOOKING_SUBMITTED"
	TypeBookingFailed    = "BOOKING_FAILED"
	TypeWidgetTornDown   = "WIDGET_TORN_DOWN"
)

// Event is one step of a widget instance's lifecycle.
type Event struct {
	ID         uuid.UUID
	Type       string
	InstanceID string
	CompanyID  string
	Payload    []byte
	CreatedAt  time.Time
}
