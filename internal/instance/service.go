// Package instance hosts booking widgets on the server: every request
// rebuilds the widget from its stored configuration, drives one lifecycle
// step and hands back the rendered markup.
package instance

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

	"github.com/hackgods/petcare-booking-widget/internal/config"
	"github.com/hackgods/petcare-booking-widget/internal/events"
	"github.com/hackgods/petcare-booking-widget/internal/marketplace"
	"github.com/hackgods/petcare-booking-widget/internal/observability/metrics"
	redisclient "github.com/hackgods/petcare-booking-widget/internal/redis"
	"github.com/hackgods/petcare-booking-widget/internal/widget"
)

const mountID = "booking-widget"

var (
	ErrNotFound = errors.New("widget instance not found")
	// ErrCatalogUnavailable marks a submission that never reached the form
	// because the service catalog could not be loaded.
	ErrCatalogUnavailable = errors.New("service catalog unavailable")
)

// Rendered is the outcome of one lifecycle step.
type Rendered struct {
	ID    string
	Stage widget.Stage
	// HTML is the stylesheet plus the mount point.
	HTML string
	// Page is the full host document.
	Page string
}

// CatalogFactory builds the marketplace client for one instance.
type CatalogFactory func(cfg widget.Configuration) widget.Catalog

type Service struct {
	store      Store
	locker     redisclient.Locker
	recorder   events.Recorder
	metrics    *metrics.WidgetMetrics
	logger     zerolog.Logger
	cfg        config.Config
	httpClient *http.Client
	catalogs   CatalogFactory
	now        func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.WidgetMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.httpClient = hc }
}

func WithCatalogFactory(f CatalogFactory) Option {
	return func(s *Service) { s.catalogs = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, locker redisclient.Locker, recorder events.Recorder, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		store:    store,
		locker:   locker,
		recorder: recorder,
		logger:   zerolog.Nop(),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalogs == nil {
		s.catalogs = s.marketplaceCatalog
	}
	return s
}

// marketplaceCatalog always targets the configured marketplace; a caller
// supplied apiUrl is never dialed from the server.
func (s *Service) marketplaceCatalog(cfg widget.Configuration) widget.Catalog {
	return marketplace.NewClient(s.cfg.MarketplaceURL, cfg.APIKey, marketplace.WithHTTPClient(s.httpClient))
}

// Defaults are the server-wide fallbacks merged under every configuration.
func (s *Service) Defaults() widget.Configuration {
	return widget.Configuration{
		Container: widget.DefaultContainer,
		APIURL:    s.cfg.MarketplaceURL,
		Theme:     s.cfg.DefaultTheme,
		Timezone:  s.cfg.DefaultTimezone,
	}
}

// Create validates a configuration, stores a new instance and renders its
// first stage. A failed catalog load still yields a stored instance.
func (s *Service) Create(ctx context.Context, cfg widget.Configuration) (*Rendered, error) {
	cfg.Container = ""
	cfg.ContainerNode = nil
	cfg = widget.Merge(cfg, s.Defaults())

	id := uuid.NewString()
	w, err := widget.New(cfg, s.widgetOptions(id, cfg)...)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	s.metrics.InstanceCreated()

	return s.mountAndLoad(ctx, w)
}

// Render rebuilds a stored instance with a fresh catalog.
func (s *Service) Render(ctx context.Context, id string) (*Rendered, error) {
	w, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.mountAndLoad(ctx, w)
}

// Submit replays one booking form submission against a stored instance.
// The rendered result is returned alongside any submission error so the
// caller can show the banner.
func (s *Service) Submit(ctx context.Context, id string, form url.Values) (*Rendered, error) {
	w, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.mount(ctx, w); err != nil {
		return nil, err
	}
	if loadErr := w.Load(ctx); loadErr != nil {
		out, err := s.rendered(w)
		if err != nil {
			return nil, err
		}
		return out, fmt.Errorf("%w: %w", ErrCatalogUnavailable, loadErr)
	}

	submitErr := w.Submit(ctx, form)
	out, err := s.rendered(w)
	if err != nil {
		return nil, err
	}
	return out, submitErr
}

// Teardown retires a stored instance.
func (s *Service) Teardown(ctx context.Context, id string) error {
	w, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	w.Teardown(ctx)

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, redisclient.ErrInstanceNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

// BootstrapPage runs marker-based setup over a host page. A page without a
// usable marker comes back unchanged with a nil instance id.
func (s *Service) BootstrapPage(ctx context.Context, doc *goquery.Document) (*Rendered, error) {
	cfg, ok := widget.ConfigFromMarker(doc.Find(widget.MarkerSelector).First())
	if !ok {
		return unchanged(doc)
	}

	id := uuid.NewString()
	cfg = widget.Merge(cfg, s.Defaults())
	w, err := widget.Bootstrap(ctx, doc, s.Defaults(), s.widgetOptions(id, cfg)...)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return unchanged(doc)
	}

	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	s.metrics.InstanceCreated()

	return s.rendered(w)
}

func unchanged(doc *goquery.Document) (*Rendered, error) {
	page, err := widget.RenderDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return &Rendered{Page: page}, nil
}

func (s *Service) widgetOptions(id string, cfg widget.Configuration) []widget.Option {
	opts := []widget.Option{
		widget.WithInstanceID(id),
		widget.WithCatalog(s.catalogs(cfg)),
		widget.WithEventRecorder(s.recorder),
		widget.WithMetrics(s.metrics),
		widget.WithLogger(s.logger),
		widget.WithClock(s.now),
		widget.WithSubmitAction(s.submitAction(id)),
	}
	if s.locker != nil {
		opts = append(opts, widget.WithLocker(s.locker))
	}
	return opts
}

func (s *Service) submitAction(id string) string {
	return s.cfg.PublicBaseURL + "/v1/widgets/" + url.PathEscape(id) + "/bookings"
}

func (s *Service) save(ctx context.Context, w *widget.Widget) error {
	cfg := w.Config()
	cfg.Container = ""

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	inst := redisclient.Instance{
		ID:        w.ID(),
		Config:    data,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, inst); err != nil {
		return fmt.Errorf("store instance: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*widget.Widget, error) {
	inst, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, redisclient.ErrInstanceNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load instance: %w", err)
	}

	var cfg widget.Configuration
	if err := json.Unmarshal(inst.Config, &cfg); err != nil {
		return nil, fmt.Errorf("decode instance %s: %w", id, err)
	}
	cfg = widget.Merge(cfg, s.Defaults())

	return widget.New(cfg, s.widgetOptions(inst.ID, cfg)...)
}

func (s *Service) mount(ctx context.Context, w *widget.Widget) error {
	if err := w.Mount(ctx, widget.NewHostDocument(mountID)); err != nil {
		return fmt.Errorf("mount widget: %w", err)
	}
	return nil
}

func (s *Service) mountAndLoad(ctx context.Context, w *widget.Widget) (*Rendered, error) {
	if err := s.mount(ctx, w); err != nil {
		return nil, err
	}
	if err := w.Load(ctx); err != nil {
		// already rendered as a banner
		s.logger.Debug().Err(err).Str("instance_id", w.ID()).Msg("catalog unavailable")
	}
	return s.rendered(w)
}

func (s *Service) rendered(w *widget.Widget) (*Rendered, error) {
	fragment, err := w.Fragment()
	if err != nil {
		return nil, fmt.Errorf("render fragment: %w", err)
	}
	page, err := widget.RenderDocument(w.Document())
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return &Rendered{
		ID:    w.ID(),
		Stage: w.Stage(),
		HTML:  fragment,
		Page:  page,
	}, nil
}
