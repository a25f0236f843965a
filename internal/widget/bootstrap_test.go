package widget

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapFromMarker(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<html><head></head><body>
<div data-booking-widget data-api-key="key-123" data-company-id="company-1" data-theme="dark"></div>
</body></html>`))
	require.NoError(t, err)
	cat := testCatalog()

	w, err := Bootstrap(context.Background(), doc, Defaults(), WithCatalog(cat))
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.Equal(t, "company-1", w.Config().CompanyID)
	assert.Equal(t, "dark", w.Config().Theme)
	assert.Equal(t, StageForm, w.Stage())
	assert.Equal(t, 1, doc.Find("[data-booking-widget] .booking-widget--dark form").Length())
}

func TestBootstrapNoop(t *testing.T) {
	pages := map[string]string{
		"no marker":     `<html><body><div id="booking-widget"></div></body></html>`,
		"no company id": `<html><body><div data-booking-widget data-api-key="key-123"></div></body></html>`,
		"empty api key": `<html><body><div data-booking-widget data-api-key="" data-company-id="c"></div></body></html>`,
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			doc, err := ParseDocument(strings.NewReader(page))
			require.NoError(t, err)
			before, err := RenderDocument(doc)
			require.NoError(t, err)
			cat := testCatalog()

			w, err := Bootstrap(context.Background(), doc, Defaults(), WithCatalog(cat))

			assert.NoError(t, err)
			assert.Nil(t, w)
			assert.Zero(t, cat.listCalls)
			after, err := RenderDocument(doc)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}
