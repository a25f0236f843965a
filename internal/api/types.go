package api

import "github.com/hackgods/petcare-booking-widget/internal/widget"

// CreateWidgetRequest is the programmatic configuration a host sends. The
// marketplace URL is fixed by the server.
type CreateWidgetRequest struct {
	APIKey    string `json:"apiKey"`
	CompanyID string `json:"companyId"`
	Theme     string `json:"theme,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

func (r CreateWidgetRequest) configuration() widget.Configuration {
	return widget.Configuration{
		APIKey:    r.APIKey,
		CompanyID: r.CompanyID,
		Theme:     r.Theme,
		Timezone:  r.Timezone,
	}
}

type WidgetResponse struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
	HTML  string `json:"html"`
	Error string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
