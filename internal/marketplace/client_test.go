package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListServices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/marketplace/companies/comp-1/services", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, SourceValue, r.Header.Get(SourceHeader))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"services": []map[string]any{
				{"id": "svc-1", "name": "Dog Grooming", "price": 45.5},
				{"id": "svc-2", "name": "Cat Boarding", "price": 30},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "key-1")
	services, err := c.ListServices(context.Background(), "comp-1")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, Service{ID: "svc-1", Name: "Dog Grooming", Price: 45.5}, services[0])
}

func TestListServices_MissingFieldYieldsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	services, err := NewClient(ts.URL, "key").ListServices(context.Background(), "comp")
	require.NoError(t, err)
	assert.NotNil(t, services)
	assert.Empty(t, services)
}

func TestListServices_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "key").ListServices(context.Background(), "comp")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestCreateBooking(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/bookings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key-2", r.Header.Get("Authorization"))
		assert.Equal(t, SourceValue, r.Header.Get(SourceHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"bk-1"}`))
	}))
	defer ts.Close()

	err := NewClient(ts.URL, "key-2").CreateBooking(context.Background(), BookingRequest{
		ServiceID:     "svc-1",
		DateTime:      "2024-03-15T14:30:00.000Z",
		CustomerName:  "Ann",
		CustomerEmail: "ann@example.com",
		CustomerPhone: "555-0100",
		PetName:       "Rex",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-15T14:30:00.000Z", got["dateTime"])
	assert.Equal(t, "", got["notes"])
	assert.NotContains(t, got, "date")
	assert.NotContains(t, got, "time")
}

func TestCreateBooking_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewClient(ts.URL, "key").CreateBooking(context.Background(), BookingRequest{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestMissingAPIKey(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", " ").ListServices(context.Background(), "comp")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
