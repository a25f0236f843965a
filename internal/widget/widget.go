// Package widget is the booking widget runtime: it owns one mount point of
// a host document and walks it through loading, form and result stages
// while talking to the marketplace API.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/petcare-booking-widget/internal/events"
	"github.com/hackgods/petcare-booking-widget/internal/marketplace"
	"github.com/hackgods/petcare-booking-widget/internal/observability/metrics"
	redisclient "github.com/hackgods/petcare-booking-widget/internal/redis"
)

type Stage string

const (
	StageIdle         Stage = "idle"
	StageLoading      Stage = "loading"
	StageForm         Stage = "form"
	StageCatalogError Stage = "catalog_error"
	StageSuccess      Stage = "success"
	StageClosed       Stage = "closed"
)

const (
	// InstanceAttr marks the mount point with the owning instance.
	InstanceAttr = "data-booking-widget-instance"

	submitLabel     = "Book Appointment"
	submittingLabel = "Booking..."

	msgCatalogFailed  = "Failed to load services. Please try again later."
	msgBookingFailed  = "Failed to create booking. Please try again."
	msgInFlight       = "Your booking is already being submitted. Please wait."
	msgBookingCreated = "Booking created successfully! We'll contact you soon to confirm your appointment."
)

var (
	ErrNotMounted         = errors.New("booking widget: not mounted")
	ErrFormNotRendered    = errors.New("booking widget: booking form is not rendered")
	ErrSubmissionInFlight = errors.New("booking widget: submission already in flight")
	ErrClosed             = errors.New("booking widget: instance torn down")
)

// Catalog is the part of the marketplace API the widget calls.
type Catalog interface {
	ListServices(ctx context.Context, companyID string) ([]marketplace.Service, error)
	CreateBooking(ctx context.Context, booking marketplace.BookingRequest) error
}

// Widget is one booking widget instance. It is not safe for concurrent use.
type Widget struct {
	id         string
	cfg        Configuration
	catalog    Catalog
	httpClient *http.Client
	locker     redisclient.Locker
	recorder   events.Recorder
	metrics    *metrics.WidgetMetrics
	logger     zerolog.Logger
	now        func() time.Time
	action     string

	doc        *goquery.Document
	mount      *goquery.Selection
	stage      Stage
	services   []marketplace.Service
	draft      BookingDraft
	banner     string
	submitting bool
	closed     bool
}

type Option func(*Widget)

// WithInstanceID pins the instance id, e.g. when rebuilding a stored
// instance. A random id is used otherwise.
func WithInstanceID(id string) Option {
	return func(w *Widget) {
		if id != "" {
			w.id = id
		}
	}
}

// WithCatalog replaces the marketplace client built from the configuration.
func WithCatalog(c Catalog) Option {
	return func(w *Widget) { w.catalog = c }
}

// WithHTTPClient sets the HTTP client of the default marketplace client.
func WithHTTPClient(hc *http.Client) Option {
	return func(w *Widget) { w.httpClient = hc }
}

// WithLocker guards submissions of this instance with a distributed lock.
func WithLocker(l redisclient.Locker) Option {
	return func(w *Widget) { w.locker = l }
}

func WithEventRecorder(r events.Recorder) Option {
	return func(w *Widget) { w.recorder = r }
}

func WithMetrics(m *metrics.WidgetMetrics) Option {
	return func(w *Widget) { w.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

// WithSubmitAction sets the URL the rendered form posts to.
func WithSubmitAction(action string) Option {
	return func(w *Widget) { w.action = action }
}

// New validates the configuration and returns an unmounted instance. It
// touches neither the document nor the network.
func New(cfg Configuration, opts ...Option) (*Widget, error) {
	cfg = Merge(cfg, Defaults())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Widget{
		id:     uuid.NewString(),
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
		stage:  StageIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.catalog == nil {
		w.catalog = marketplace.NewClient(cfg.APIURL, cfg.APIKey, marketplace.WithHTTPClient(w.httpClient))
	}
	return w, nil
}

// Init creates a widget, mounts it on doc and loads the catalog. Only
// configuration and mount errors fail it; a failed catalog load is shown
// inside the widget.
func Init(ctx context.Context, doc *goquery.Document, cfg Configuration, opts ...Option) (*Widget, error) {
	w, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Mount(ctx, doc); err != nil {
		return nil, err
	}
	_ = w.Load(ctx)
	return w, nil
}

func (w *Widget) ID() string { return w.id }

func (w *Widget) Config() Configuration { return w.cfg }

func (w *Widget) Stage() Stage { return w.stage }

func (w *Widget) Services() []marketplace.Service { return w.services }

// FormID is the element id of this instance's booking form.
func (w *Widget) FormID() string {
	return "booking-form-" + w.id
}

// Mount injects the stylesheet, takes over the mount point and shows the
// loading placeholder.
func (w *Widget) Mount(ctx context.Context, doc *goquery.Document) error {
	if w.closed {
		return ErrClosed
	}

	injectStylesheet(doc)

	mount, err := findMount(doc, w.cfg)
	if err != nil {
		return err
	}

	w.doc = doc
	w.mount = mount
	w.mount.SetAttr(InstanceAttr, w.id)
	w.stage = StageLoading
	w.render()

	w.record(ctx, events.TypeWidgetMounted, map[string]any{"theme": w.cfg.Theme})
	return nil
}

// Load fetches the service catalog and renders the booking form, or an
// error banner when the fetch fails. There is no automatic retry.
func (w *Widget) Load(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	if w.mount == nil {
		return ErrNotMounted
	}

	w.stage = StageLoading
	w.render()

	start := time.Now()
	services, err := w.catalog.ListServices(ctx, w.cfg.CompanyID)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		w.metrics.ObserveCatalog("error", elapsed)
		w.stage = StageCatalogError
		w.banner = msgCatalogFailed
		w.services = nil
		w.render()
		w.logger.Warn().Err(err).Str("instance_id", w.id).Str("company_id", w.cfg.CompanyID).Msg("catalog load failed")
		w.record(ctx, events.TypeCatalogFailed, map[string]any{"error": err.Error()})
		return fmt.Errorf("load catalog: %w", err)
	}

	if services == nil {
		services = []marketplace.Service{}
	}
	w.metrics.ObserveCatalog("ok", elapsed)
	w.services = services
	w.stage = StageForm
	w.banner = ""
	w.render()
	w.record(ctx, events.TypeCatalogLoaded, map[string]any{"services": len(services)})
	return nil
}

// Submit handles one booking form submission. Network and validation
// failures are rendered as a banner above the form and also returned.
func (w *Widget) Submit(ctx context.Context, form url.Values) error {
	if w.closed {
		return ErrClosed
	}
	if w.mount == nil {
		return ErrNotMounted
	}
	if w.stage != StageForm {
		return ErrFormNotRendered
	}

	w.draft = DraftFromForm(form)

	req, err := w.prepare(w.draft)
	if err != nil {
		w.metrics.ObserveBooking("invalid", 0)
		w.showError(messageFor(err))
		return err
	}

	start := time.Now()
	send := func(ctx context.Context) error {
		w.setSubmitting(true)
		defer w.setSubmitting(false)
		return w.catalog.CreateBooking(ctx, req)
	}
	if w.locker != nil {
		err = w.locker.WithInstanceLock(ctx, w.id, send)
	} else {
		err = send(ctx)
	}
	elapsed := time.Since(start).Seconds()

	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		w.metrics.ObserveBooking("in_flight", 0)
		w.showError(msgInFlight)
		return ErrSubmissionInFlight
	}
	if err != nil {
		w.metrics.ObserveBooking("error", elapsed)
		w.showError(msgBookingFailed)
		w.logger.Warn().Err(err).Str("instance_id", w.id).Str("company_id", w.cfg.CompanyID).Msg("booking submission failed")
		w.record(ctx, events.TypeBookingFailed, map[string]any{"service_id": req.ServiceID, "error": err.Error()})
		return fmt.Errorf("create booking: %w", err)
	}

	w.metrics.ObserveBooking("ok", elapsed)
	w.stage = StageSuccess
	w.banner = ""
	w.draft = BookingDraft{}
	w.render()
	w.record(ctx, events.TypeBookingSubmitted, map[string]any{"service_id": req.ServiceID, "date_time": req.DateTime})
	return nil
}

// Teardown empties the mount point and retires the instance.
func (w *Widget) Teardown(ctx context.Context) {
	if w.closed {
		return
	}
	if w.mount != nil {
		w.mount.Empty()
		w.mount.RemoveAttr(InstanceAttr)
	}
	w.closed = true
	w.stage = StageClosed
	w.mount = nil
	w.record(ctx, events.TypeWidgetTornDown, nil)
}

// Fragment renders the stylesheet followed by the mount point, for hosts
// that splice the widget into their own markup.
func (w *Widget) Fragment() (string, error) {
	if w.mount == nil {
		return "", ErrNotMounted
	}
	style, err := goquery.OuterHtml(w.doc.Find("style#" + StylesheetID).First())
	if err != nil {
		return "", err
	}
	body, err := goquery.OuterHtml(w.mount)
	if err != nil {
		return "", err
	}
	return style + body, nil
}

// Document is the host document the widget is mounted on.
func (w *Widget) Document() *goquery.Document {
	return w.doc
}

func (w *Widget) prepare(d BookingDraft) (marketplace.BookingRequest, error) {
	if err := d.Validate(w.minDate()); err != nil {
		return marketplace.BookingRequest{}, err
	}
	if !w.offers(d.ServiceID) {
		return marketplace.BookingRequest{}, &ValidationError{Field: "serviceId", Message: "Please choose one of the listed services."}
	}
	return d.Request(w.cfg.location())
}

func (w *Widget) offers(serviceID string) bool {
	for _, s := range w.services {
		if s.ID == serviceID {
			return true
		}
	}
	return false
}

func (w *Widget) minDate() string {
	now := w.now()
	if loc := w.cfg.location(); loc != nil {
		now = now.In(loc)
	}
	return MinBookableDate(now)
}

func (w *Widget) setSubmitting(on bool) {
	w.submitting = on
	w.render()
}

func (w *Widget) showError(msg string) {
	w.banner = msg
	w.render()
}

func messageFor(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return msgBookingFailed
}

func (w *Widget) record(ctx context.Context, eventType string, payload map[string]any) {
	if w.recorder == nil {
		return
	}

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			w.logger.Error().Err(err).Str("event_type", eventType).Msg("marshal widget event payload")
			data = nil
		}
	}

	ev := events.Event{
		ID:         uuid.New(),
		Type:       eventType,
		InstanceID: w.id,
		CompanyID:  w.cfg.CompanyID,
		Payload:    data,
		CreatedAt:  w.now().UTC(),
	}
	if err := w.recorder.Record(ctx, ev); err != nil {
		w.logger.Error().Err(err).Str("event_type", eventType).Str("instance_id", w.id).Msg("record widget event")
	}
}
