package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/petcare-booking-widget/internal/instance"
	"github.com/hackgods/petcare-booking-widget/internal/widget"
)

const (
	maxFormBytes = 64 << 10
	maxPageBytes = 2 << 20
)

// WidgetService is what the HTTP layer needs from instance.Service.
type WidgetService interface {
	Create(ctx context.Context, cfg widget.Configuration) (*instance.Rendered, error)
	Render(ctx context.Context, id string) (*instance.Rendered, error)
	Submit(ctx context.Context, id string, form url.Values) (*instance.Rendered, error)
	Teardown(ctx context.Context, id string) error
	BootstrapPage(ctx context.Context, doc *goquery.Document) (*instance.Rendered, error)
}

func createWidgetHandler(svc WidgetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateWidgetRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		out, err := svc.Create(r.Context(), req.configuration())
		if err != nil {
			handleWidgetError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, widgetResponse(out, ""))
	}
}

func getWidgetHandler(svc WidgetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.Render(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleWidgetError(w, r, err)
			return
		}
		if wantsHTML(r) {
			writeHTML(w, http.StatusOK, out.Page)
			return
		}
		writeJSON(w, http.StatusOK, widgetResponse(out, ""))
	}
}

func submitBookingHandler(svc WidgetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "could not parse form body")
			return
		}

		out, err := svc.Submit(r.Context(), chi.URLParam(r, "id"), r.PostForm)
		if out == nil {
			handleWidgetError(w, r, err)
			return
		}

		status := submitStatus(err)
		if err != nil && status == http.StatusBadGateway {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("instance_id", out.ID).Msg("booking submission failed")
		}
		if wantsHTML(r) {
			writeHTML(w, status, out.Page)
			return
		}

		msg := ""
		if err != nil {
			msg = errorCode(err)
		}
		writeJSON(w, status, widgetResponse(out, msg))
	}
}

func deleteWidgetHandler(svc WidgetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Teardown(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleWidgetError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// embedHandler serves a standalone page for iframe embedding.
func embedHandler(svc WidgetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := CreateWidgetRequest{
			APIKey:    q.Get("api-key"),
			CompanyID: q.Get("company-id"),
			Theme:     q.Get("theme"),
			Timezone:  q.Get("timezone"),
		}
		if req.APIKey == "" || req.CompanyID == "" {
			writeError(w, http.StatusBadRequest, "missing_parameters", "api-key and company-id are required")
			return
		}

		out, err := svc.Create(r.Context(), req.configuration())
		if err != nil {
			handleWidgetError(w, r, err)
			return
		}
		writeHTML(w, http.StatusOK, out.Page)
	}
}

func bootstrapPageHandler(svc WidgetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPageBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "page_too_large", err.Error())
			return
		}

		doc, err := widget.ParseDocument(bytes.NewReader(body))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_page", err.Error())
			return
		}

		out, err := svc.BootstrapPage(r.Context(), doc)
		if err != nil {
			handleWidgetError(w, r, err)
			return
		}
		if out.ID != "" {
			w.Header().Set("X-Widget-Instance", out.ID)
		}
		writeHTML(w, http.StatusOK, out.Page)
	}
}

func widgetResponse(out *instance.Rendered, errCode string) WidgetResponse {
	return WidgetResponse{
		ID:    out.ID,
		Stage: string(out.Stage),
		HTML:  out.HTML,
		Error: errCode,
	}
}

func submitStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, widget.ErrInvalidDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, widget.ErrSubmissionInFlight),
		errors.Is(err, widget.ErrFormNotRendered):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, widget.ErrInvalidDraft):
		return "invalid_booking"
	case errors.Is(err, widget.ErrSubmissionInFlight):
		return "submission_in_flight"
	case errors.Is(err, widget.ErrFormNotRendered):
		return "form_not_rendered"
	case errors.Is(err, instance.ErrCatalogUnavailable):
		return "catalog_unavailable"
	default:
		return "marketplace_error"
	}
}

func handleWidgetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, widget.ErrMissingAPIKey),
		errors.Is(err, widget.ErrMissingCompanyID),
		errors.Is(err, widget.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, "invalid_configuration", err.Error())
	case errors.Is(err, instance.ErrNotFound):
		writeError(w, http.StatusNotFound, "widget_not_found", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("widget request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
