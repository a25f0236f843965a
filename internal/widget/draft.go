package widget

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/hackgods/petcare-booking-widget/internal/marketplace"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04"
	dateTimeLayout = "2006-01-02T15:04:05.000Z"
)

var ErrInvalidDraft = errors.New("booking widget: invalid booking details")

// ValidationError explains why a draft was rejected. It matches
// ErrInvalidDraft with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "booking widget: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDraft
}

// BookingDraft is the form state of one submission.
type BookingDraft struct {
	ServiceID     string
	Date          string
	Time          string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	PetName       string
	Notes         string
}

// DraftFromForm serializes the named form fields.
func DraftFromForm(v url.Values) BookingDraft {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return BookingDraft{
		ServiceID:     get("serviceId"),
		Date:          get("date"),
		Time:          get("time"),
		CustomerName:  get("customerName"),
		CustomerEmail: get("customerEmail"),
		CustomerPhone: get("customerPhone"),
		PetName:       get("petName"),
		Notes:         get("notes"),
	}
}

// CombineDateTime joins a calendar date and an HH:MM time into the
// dateTime the marketplace expects. With a nil location the wall-clock
// value is stamped as UTC as-is; otherwise it is converted from loc.
func CombineDateTime(date, clock string, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout+" "+clockLayout, date+" "+clock, loc)
	if err != nil {
		return "", &ValidationError{Field: "dateTime", Message: "Please choose a valid date and time."}
	}
	return t.UTC().Format(dateTimeLayout), nil
}

// Validate mirrors the browser-side constraints of the rendered form.
func (d BookingDraft) Validate(minDate string) error {
	required := []struct {
		field string
		value string
	}{
		{"serviceId", d.ServiceID},
		{"date", d.Date},
		{"time", d.Time},
		{"customerName", d.CustomerName},
		{"customerEmail", d.CustomerEmail},
		{"customerPhone", d.CustomerPhone},
		{"petName", d.PetName},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Field: r.field, Message: "Please fill in all required fields."}
		}
	}

	// bare addresses only, as <input type="email"> accepts
	if addr, err := mail.ParseAddress(d.CustomerEmail); err != nil || addr.Address != d.CustomerEmail {
		return &ValidationError{Field: "customerEmail", Message: "Please enter a valid email address."}
	}
	if _, err := time.Parse(dateLayout, d.Date); err != nil || !isSlot(d.Time) {
		return &ValidationError{Field: "dateTime", Message: "Please choose a valid date and time."}
	}
	// both are YYYY-MM-DD so lexical order is calendar order
	if minDate != "" && d.Date < minDate {
		return &ValidationError{Field: "date", Message: "Please choose a date from tomorrow onwards."}
	}
	return nil
}

// Request converts the draft into the outbound booking payload. The
// separate date and time are folded into DateTime.
func (d BookingDraft) Request(loc *time.Location) (marketplace.BookingRequest, error) {
	dateTime, err := CombineDateTime(d.Date, d.Time, loc)
	if err != nil {
		return marketplace.BookingRequest{}, err
	}
	return marketplace.BookingRequest{
		ServiceID:     d.ServiceID,
		DateTime:      dateTime,
		CustomerName:  d.CustomerName,
		CustomerEmail: d.CustomerEmail,
		CustomerPhone: d.CustomerPhone,
		PetName:       d.PetName,
		Notes:         d.Notes,
	}, nil
}
