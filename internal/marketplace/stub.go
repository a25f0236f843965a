package marketplace

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var stubServiceNames = []string{
	"Dog Grooming",
	"Cat Grooming",
	"Nail Trim",
	"Dog Walking",
	"Pet Sitting",
	"Overnight Boarding",
	"Puppy Training",
	"Vaccination Visit",
	"Dental Cleaning",
	"Flea Treatment",
}

// Stub is an in-memory stand-in for the marketplace API. Catalogs are
// generated per company and stay stable for the life of the process.
type Stub struct {
	mu       sync.Mutex
	apiKey   string
	catalogs map[string][]Service
	bookings []BookingRequest
	logger   zerolog.Logger
}

// NewStub returns a stub that accepts only apiKey, or any key when apiKey
// is empty.
func NewStub(apiKey string, logger zerolog.Logger) *Stub {
	return &Stub{
		apiKey:   apiKey,
		catalogs: make(map[string][]Service),
		logger:   logger,
	}
}

func (s *Stub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Get("/api/v1/marketplace/companies/{companyID}/services", s.listServices)
	r.Post("/api/v1/bookings", s.createBooking)
	return r
}

// Bookings returns every booking accepted so far.
func (s *Stub) Bookings() []BookingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BookingRequest(nil), s.bookings...)
}

func (s *Stub) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch {
		case !ok || key == "":
			stubError(w, http.StatusUnauthorized, "missing bearer token")
			return
		case s.apiKey != "" && key != s.apiKey:
			stubError(w, http.StatusForbidden, "invalid api key")
			return
		case r.Header.Get(SourceHeader) == "":
			stubError(w, http.StatusBadRequest, "missing "+SourceHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Stub) listServices(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	services := s.catalog(companyID)
	s.logger.Debug().Str("company_id", companyID).Int("services", len(services)).Msg("stub catalog served")
	stubJSON(w, http.StatusOK, servicesResponse{Services: services})
}

func (s *Stub) createBooking(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		stubError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", req.DateTime); err != nil {
		stubError(w, http.StatusUnprocessableEntity, "dateTime must look like 2006-01-02T15:04:05.000Z")
		return
	}
	if req.CustomerName == "" || req.CustomerEmail == "" || req.PetName == "" {
		stubError(w, http.StatusUnprocessableEntity, "customer and pet details are required")
		return
	}
	if !s.knownService(req.ServiceID) {
		stubError(w, http.StatusUnprocessableEntity, "unknown serviceId")
		return
	}

	s.mu.Lock()
	s.bookings = append(s.bookings, req)
	s.mu.Unlock()

	s.logger.Info().Str("service_id", req.ServiceID).Str("date_time", req.DateTime).Msg("stub booking accepted")
	stubJSON(w, http.StatusCreated, map[string]string{"id": uuid.NewString(), "status": "pending"})
}

func (s *Stub) catalog(companyID string) []Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	if services, ok := s.catalogs[companyID]; ok {
		return services
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(companyID))
	faker := gofakeit.New(h.Sum64())

	count := faker.Number(3, 6)
	seen := make(map[string]bool, count)
	services := make([]Service, 0, count)
	for len(services) < count {
		name := faker.RandomString(stubServiceNames)
		if seen[name] {
			continue
		}
		seen[name] = true
		services = append(services, Service{
			ID:    faker.UUID(),
			Name:  name,
			Price: math.Round(faker.Price(15, 150)*100) / 100,
		})
	}

	s.catalogs[companyID] = services
	return services
}

func (s *Stub) knownService(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, services := range s.catalogs {
		for _, svc := range services {
			if svc.ID == id {
				return true
			}
		}
	}
	return false
}

func stubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func stubError(w http.ResponseWriter, status int, msg string) {
	stubJSON(w, status, map[string]string{"error": msg})
}
