package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/petcare-booking-widget/internal/logging"
	"github.com/hackgods/petcare-booking-widget/internal/widget"
)

type SimConfig struct {
	APIBaseURL  string
	APIKey      string
	Companies   int
	Duration    time.Duration
	Workers     int
	CreateRatio float64
	RenderRatio float64
	SubmitRatio float64
	DaysAhead   int
}

type widgetRef struct {
	ID       string
	Services []string
}

// WidgetPool is the set of widgets created during the run.
type WidgetPool struct {
	mu      sync.RWMutex
	widgets []widgetRef
}

func (p *WidgetPool) Add(ref widgetRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.widgets = append(p.widgets, ref)
}

func (p *WidgetPool) Random(faker *gofakeit.Faker) (widgetRef, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.widgets) == 0 {
		return widgetRef{}, false
	}
	return p.widgets[faker.Number(0, len(p.widgets)-1)], true
}

func (p *WidgetPool) All() []widgetRef {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]widgetRef(nil), p.widgets...)
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, lo, hi, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Create   OperationMetrics
	Render   OperationMetrics
	Submit   OperationMetrics
	Teardown OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *WidgetPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	cfg := loadConfig()
	logger := logging.New("info", "dev")

	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Str("target", cfg.APIBaseURL).
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("create", cfg.CreateRatio).
		Float64("render", cfg.RenderRatio).
		Float64("submit", cfg.SubmitRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   &WidgetPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.Cleanup()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		APIKey:      getEnv("SIM_API_KEY", "sim-key"),
		Companies:   getInt("SIM_COMPANIES", 20),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		CreateRatio: getFloat("SIM_CREATE_RATIO", 0.2),
		RenderRatio: getFloat("SIM_RENDER_RATIO", 0.4),
		SubmitRatio: getFloat("SIM_SUBMIT_RATIO", 0.4),
		DaysAhead:   getInt("SIM_DAYS_AHEAD", 30),
	}

	// Normalize ratios
	total := cfg.CreateRatio + cfg.RenderRatio + cfg.SubmitRatio
	if total > 0 {
		cfg.CreateRatio /= total
		cfg.RenderRatio /= total
		cfg.SubmitRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Companies <= 0 {
		return errors.New("SIM_COMPANIES must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return errors.New("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	s.logger.Info().Int("widgets", len(s.pool.All())).Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := faker.Float64()
		switch {
		case r < s.config.CreateRatio:
			s.doCreate(ctx, faker)
		case r < s.config.CreateRatio+s.config.RenderRatio:
			s.doRender(ctx, faker)
		default:
			s.doSubmit(ctx, faker)
		}
	}
}

func (s *Simulator) doCreate(ctx context.Context, faker *gofakeit.Faker) {
	body, _ := json.Marshal(map[string]string{
		"apiKey":    s.config.APIKey,
		"companyId": fmt.Sprintf("company-%03d", faker.Number(1, s.config.Companies)),
	})

	start := time.Now()
	resp, payload, err := s.send(ctx, http.MethodPost, "/v1/widgets", "application/json", bytes.NewReader(body))
	latency := time.Since(start)

	success := false
	if err == nil && resp.StatusCode == http.StatusCreated {
		var created struct {
			ID   string `json:"id"`
			HTML string `json:"html"`
		}
		if json.Unmarshal(payload, &created) == nil && created.ID != "" {
			success = true
			s.pool.Add(widgetRef{ID: created.ID, Services: serviceIDs(created.HTML)})
		}
	}
	throttled := err == nil && resp.StatusCode == http.StatusTooManyRequests
	s.metrics.Create.Record(latency, success, throttled)
}

func (s *Simulator) doRender(ctx context.Context, faker *gofakeit.Faker) {
	ref, ok := s.pool.Random(faker)
	if !ok {
		return
	}

	start := time.Now()
	resp, _, err := s.send(ctx, http.MethodGet, "/v1/widgets/"+ref.ID, "", nil)
	latency := time.Since(start)

	s.metrics.Render.Record(latency, err == nil && resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) doSubmit(ctx context.Context, faker *gofakeit.Faker) {
	ref, ok := s.pool.Random(faker)
	if !ok || len(ref.Services) == 0 {
		return
	}

	slots := widget.TimeSlots()
	date := time.Now().AddDate(0, 0, faker.Number(1, s.config.DaysAhead)).Format("2006-01-02")
	form := url.Values{
		"serviceId":     {ref.Services[faker.Number(0, len(ref.Services)-1)]},
		"date":          {date},
		"time":          {slots[faker.Number(0, len(slots)-1)]},
		"customerName":  {faker.Name()},
		"customerEmail": {faker.Email()},
		"customerPhone": {faker.Phone()},
		"petName":       {faker.PetName()},
		"notes":         {faker.RandomString([]string{"", "First visit", "Anxious around other dogs", "Needs medication at noon"})},
	}

	start := time.Now()
	resp, _, err := s.send(ctx, http.MethodPost, "/v1/widgets/"+ref.ID+"/bookings",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusTooManyRequests
	}
	s.metrics.Submit.Record(latency, success, conflict)
}

// Cleanup tears down every widget created during the run.
func (s *Simulator) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ref := range s.pool.All() {
		start := time.Now()
		resp, _, err := s.send(ctx, http.MethodDelete, "/v1/widgets/"+ref.ID, "", nil)
		latency := time.Since(start)
		s.metrics.Teardown.Record(latency, err == nil && resp.StatusCode == http.StatusNoContent, false)
	}
}

func (s *Simulator) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	return resp, payload, err
}

// serviceIDs reads the offered service ids out of a rendered widget.
func serviceIDs(fragment string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	var ids []string
	doc.Find(`select[name="serviceId"] option`).Each(func(_ int, opt *goquery.Selection) {
		if v, _ := opt.Attr("value"); v != "" {
			ids = append(ids, v)
		}
	})
	return ids
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Target: %s\n", s.config.APIBaseURL)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create widget", &s.metrics.Create)
	printOperationReport("Render widget", &s.metrics.Render)
	printOperationReport("Submit booking", &s.metrics.Submit)
	printOperationReport("Teardown widget", &s.metrics.Teardown)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected (in flight / rate limited): %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n", avg, lo, hi, p50, p95)
	fmt.Println()
}
