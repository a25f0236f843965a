package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/petcare-booking-widget/internal/config"
	"github.com/hackgods/petcare-booking-widget/internal/events"
	"github.com/hackgods/petcare-booking-widget/internal/instance"
	"github.com/hackgods/petcare-booking-widget/internal/observability/metrics"
	redisclient "github.com/hackgods/petcare-booking-widget/internal/redis"
)

type testEnv struct {
	handler     http.Handler
	mr          *miniredis.Miniredis
	booked      atomic.Int32
	failCatalog atomic.Bool
}

func newTestEnv(t *testing.T, burst int) *testEnv {
	return newTestEnvWith(t, func(cfg *RouterConfig) { cfg.SubmitBurst = burst })
}

func newTestEnvWith(t *testing.T, configure func(*RouterConfig)) *testEnv {
	t.Helper()
	env := &testEnv{}

	market := http.NewServeMux()
	market.HandleFunc("/api/v1/marketplace/companies/", func(w http.ResponseWriter, r *http.Request) {
		if env.failCatalog.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"services":[{"id":"svc-1","name":"Grooming","price":45}]}`))
	})
	market.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		env.booked.Add(1)
		w.WriteHeader(http.StatusCreated)
	})
	marketSrv := httptest.NewServer(market)
	t.Cleanup(marketSrv.Close)

	env.mr = miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: env.mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewWidgetMetrics(reg)
	logger := zerolog.Nop()

	svc := instance.NewService(
		redisclient.NewInstanceStore(rdb, time.Hour),
		redisclient.NewRedisInstanceLocker(rdb, 30*time.Second),
		events.NewLogRecorder(logger),
		config.Config{MarketplaceURL: marketSrv.URL, DefaultTheme: "light"},
		instance.WithMetrics(m),
		instance.WithLogger(logger),
		instance.WithClock(func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }),
	)

	cfg := RouterConfig{
		Service:        svc,
		Redis:          rdb,
		Gatherer:       reg,
		Logger:         logger,
		AllowedOrigins: []string{"https://groomers.example"},
		SubmitPerMin:   1,
		SubmitBurst:    5,
		CreatePerMin:   60,
		CreateBurst:    20,
		Env:            "test",
		Version:        "test",
	}
	if configure != nil {
		configure(&cfg)
	}
	env.handler = NewRouter(cfg)
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createWidget(t *testing.T) WidgetResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/widgets", strings.NewReader(`{"apiKey":"key-123","companyId":"company-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp WidgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func bookingBody() string {
	return url.Values{
		"serviceId":     {"svc-1"},
		"date":          {"2024-03-15"},
		"time":          {"14:30"},
		"customerName":  {"Jane Doe"},
		"customerEmail": {"jane@example.com"},
		"customerPhone": {"555-0100"},
		"petName":       {"Rex"},
	}.Encode()
}

func submitRequest(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/widgets/"+id+"/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCreateWidget(t *testing.T) {
	env := newTestEnv(t, 5)

	resp := env.createWidget(t)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "form", resp.Stage)
	assert.Contains(t, resp.HTML, "booking-form-"+resp.ID)
}

func TestCreateWidgetValidation(t *testing.T) {
	env := newTestEnv(t, 5)

	cases := map[string]struct {
		body string
		code string
	}{
		"bad json":         {`{`, "invalid_request_body"},
		"missing company":  {`{"apiKey":"key-123"}`, "invalid_configuration"},
		"unknown timezone": {`{"apiKey":"k","companyId":"c","timezone":"Mars/Base"}`, "invalid_configuration"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/widgets", strings.NewReader(tc.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

func TestSubmitBookingJSON(t *testing.T) {
	env := newTestEnv(t, 5)
	created := env.createWidget(t)

	rec := env.do(t, submitRequest(created.ID, bookingBody()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp WidgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Stage)
	assert.Empty(t, resp.Error)
	assert.Equal(t, int32(1), env.booked.Load())
}

func TestSubmitBookingInvalid(t *testing.T) {
	env := newTestEnv(t, 5)
	created := env.createWidget(t)

	rec := env.do(t, submitRequest(created.ID, "serviceId=svc-1"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp WidgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_booking", resp.Error)
	assert.Equal(t, "form", resp.Stage)
	assert.Contains(t, resp.HTML, "Please fill in all required fields.")
	assert.Zero(t, env.booked.Load())
}

func TestSubmitBookingBrowserPost(t *testing.T) {
	env := newTestEnv(t, 5)
	created := env.createWidget(t)

	req := submitRequest(created.ID, bookingBody())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := env.do(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
	assert.Contains(t, rec.Body.String(), "booking-widget__success")
}

func TestSubmitBookingRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	created := env.createWidget(t)

	first := env.do(t, submitRequest(created.ID, "serviceId=svc-1"))
	assert.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := env.do(t, submitRequest(created.ID, bookingBody()))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Zero(t, env.booked.Load())
}

func TestSubmitBookingIgnoresForwardedForByDefault(t *testing.T) {
	env := newTestEnv(t, 1)
	created := env.createWidget(t)

	allowed := 0
	for i := 0; i < 20; i++ {
		req := submitRequest(created.ID, "serviceId=svc-1")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("1.2.3.%d", i))
		rec := env.do(t, req)
		if rec.Code != http.StatusTooManyRequests {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed)
}

func TestSubmitBookingBehindTrustedProxy(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *RouterConfig) {
		cfg.SubmitBurst = 1
		cfg.TrustProxy = true
	})
	created := env.createWidget(t)

	submitFrom := func(fwd string) int {
		req := submitRequest(created.ID, "serviceId=svc-1")
		req.Header.Set("X-Forwarded-For", fwd)
		return env.do(t, req).Code
	}

	assert.Equal(t, http.StatusUnprocessableEntity, submitFrom("203.0.113.7"))
	assert.Equal(t, http.StatusUnprocessableEntity, submitFrom("203.0.113.8"))
	// a forged leading hop does not change the address the proxy appended
	assert.Equal(t, http.StatusTooManyRequests, submitFrom("9.9.9.9, 203.0.113.7"))
}

func TestSubmitBookingCatalogOutage(t *testing.T) {
	env := newTestEnv(t, 5)
	created := env.createWidget(t)
	env.failCatalog.Store(true)

	rec := env.do(t, submitRequest(created.ID, bookingBody()))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp WidgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "catalog_unavailable", resp.Error)
	assert.Equal(t, "catalog_error", resp.Stage)
	assert.Zero(t, env.booked.Load())
}

func TestCreateWidgetRateLimited(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *RouterConfig) {
		cfg.CreatePerMin = 1
		cfg.CreateBurst = 2
	})

	env.createWidget(t)
	env.createWidget(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/widgets", strings.NewReader(`{"apiKey":"key-123","companyId":"company-1"}`))
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, req).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/embed?api-key=key-123&company-id=company-1", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, env.mr.Keys(), 2)
}

func TestCreateWidgetBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, 5)
	body := `{"apiKey":"` + strings.Repeat("k", maxFormBytes) + `","companyId":"company-1"}`

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/widgets", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, env.mr.Keys())
}

func TestWidgetNotFound(t *testing.T) {
	env := newTestEnv(t, 5)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/widgets/nope", nil),
		httptest.NewRequest(http.MethodDelete, "/v1/widgets/nope", nil),
		submitRequest("nope", bookingBody()),
	} {
		rec := env.do(t, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.Method)
	}
}

func TestGetAndDeleteWidget(t *testing.T) {
	env := newTestEnv(t, 5)
	created := env.createWidget(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/widgets/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp WidgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/widgets/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.mr.Exists("widget:instance:"+created.ID))
}

func TestEmbed(t *testing.T) {
	env := newTestEnv(t, 5)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/embed?api-key=key-123&company-id=company-1&theme=dark", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking-widget--dark")
	assert.Contains(t, rec.Body.String(), `<style id="booking-widget-styles">`)
}

func TestEmbedMissingParameters(t *testing.T) {
	env := newTestEnv(t, 5)

	for _, target := range []string{"/embed", "/embed?api-key=key-123", "/embed?company-id=company-1"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Empty(t, env.mr.Keys())
}

func TestBootstrapPageRoute(t *testing.T) {
	env := newTestEnv(t, 5)
	page := `<html><head></head><body><section data-booking-widget data-api-key="key-123" data-company-id="company-1"></section></body></html>`

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/pages/bootstrap", strings.NewReader(page)))

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Widget-Instance")
	require.NotEmpty(t, id)
	assert.Contains(t, rec.Body.String(), "booking-form-"+id)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 5)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])

	env.mr.Close()
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 5)
	env.createWidget(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "petcare_booking_widget_instances_created_total 1")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, 5)

	req := httptest.NewRequest(http.MethodOptions, "/v1/widgets", nil)
	req.Header.Set("Origin", "https://groomers.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://groomers.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = env.do(t, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t, 5)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := env.do(t, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
