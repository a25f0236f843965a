package widget

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StylesheetID tags the single stylesheet the widget injects per document.
const StylesheetID = "booking-widget-styles"

var ErrMountNotFound = errors.New("booking widget: container not found")

// ParseDocument reads a host page.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// NewHostDocument returns an empty page holding one mount point with the
// given element id.
func NewHostDocument(mountID string) *goquery.Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(
		`<!DOCTYPE html><html><head><meta charset="utf-8"></head><body><div id="` +
			html.EscapeString(mountID) + `"></div></body></html>`))
	return doc
}

// injectStylesheet adds the widget stylesheet to the document head unless
// a previous initialization already did. It reports whether it added one.
func injectStylesheet(doc *goquery.Document) bool {
	if doc.Find("style#"+StylesheetID).Length() > 0 {
		return false
	}

	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: StylesheetID}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: stylesheet})

	target := doc.Find("head").First()
	if target.Length() == 0 {
		target = doc.Selection
	}
	target.AppendNodes(style)
	return true
}

func findMount(doc *goquery.Document, cfg Configuration) (*goquery.Selection, error) {
	var sel *goquery.Selection
	if cfg.ContainerNode != nil {
		sel = doc.FindNodes(cfg.ContainerNode)
	} else {
		sel = doc.Find(cfg.Container).First()
	}
	if sel.Length() == 0 {
		return nil, ErrMountNotFound
	}
	return sel, nil
}

// RenderDocument serializes the whole page.
func RenderDocument(doc *goquery.Document) (string, error) {
	return doc.Html()
}
