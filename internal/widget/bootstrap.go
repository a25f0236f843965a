package widget

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// MarkerSelector finds the element a host page marks for automatic setup.
const MarkerSelector = "[data-booking-widget]"

const (
	attrAPIKey    = "data-api-key"
	attrCompanyID = "data-company-id"
	attrTheme     = "data-theme"
	attrTimezone  = "data-timezone"
	attrAPIURL    = "data-api-url"
)

// ConfigFromMarker reads a configuration off a marker element. The marker
// itself becomes the mount point. ok is false when either credential is
// missing.
func ConfigFromMarker(marker *goquery.Selection) (cfg Configuration, ok bool) {
	if marker.Length() == 0 {
		return Configuration{}, false
	}
	apiKey, _ := marker.Attr(attrAPIKey)
	companyID, _ := marker.Attr(attrCompanyID)
	if apiKey == "" || companyID == "" {
		return Configuration{}, false
	}

	cfg = Configuration{
		APIKey:        apiKey,
		CompanyID:     companyID,
		ContainerNode: marker.Get(0),
	}
	cfg.Theme, _ = marker.Attr(attrTheme)
	cfg.Timezone, _ = marker.Attr(attrTimezone)
	cfg.APIURL, _ = marker.Attr(attrAPIURL)
	return cfg, true
}

// Bootstrap initializes a widget on the first marker element of doc. A
// page without a usable marker is left untouched and yields a nil widget
// and a nil error.
func Bootstrap(ctx context.Context, doc *goquery.Document, defaults Configuration, opts ...Option) (*Widget, error) {
	cfg, ok := ConfigFromMarker(doc.Find(MarkerSelector).First())
	if !ok {
		return nil, nil
	}
	return Init(ctx, doc, Merge(cfg, defaults), opts...)
}
