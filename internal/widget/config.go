package widget

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	DefaultContainer = "#booking-widget"
	DefaultAPIURL    = "https://api.petcare-marketplace.com"
	DefaultTheme     = "light"
)

var (
	ErrMissingAPIKey    = errors.New("booking widget: apiKey is required")
	ErrMissingCompanyID = errors.New("booking widget: companyId is required")
	ErrInvalidTimezone  = errors.New("booking widget: unknown timezone")
)

// Configuration is what a host page hands to the widget. It is immutable
// once the widget is created.
type Configuration struct {
	APIKey    string `json:"apiKey"`
	CompanyID string `json:"companyId"`
	Container string `json:"container,omitempty"`
	APIURL    string `json:"apiUrl,omitempty"`
	Theme     string `json:"theme,omitempty"`
	// Timezone is the IANA zone the customer's date and time are entered
	// in. Empty keeps the legacy behavior of stamping the wall-clock value
	// with a UTC designator unchanged.
	Timezone string `json:"timezone,omitempty"`

	// ContainerNode mounts the widget on a specific element and wins over
	// Container.
	ContainerNode *html.Node `json:"-"`
}

// Defaults returns the built-in configuration fallbacks.
func Defaults() Configuration {
	return Configuration{
		Container: DefaultContainer,
		APIURL:    DefaultAPIURL,
		Theme:     DefaultTheme,
	}
}

// Merge fills every empty field of cfg from def.
func Merge(cfg, def Configuration) Configuration {
	if cfg.Container == "" {
		cfg.Container = def.Container
	}
	if cfg.APIURL == "" {
		cfg.APIURL = def.APIURL
	}
	if cfg.Theme == "" {
		cfg.Theme = def.Theme
	}
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.ContainerNode == nil {
		cfg.ContainerNode = def.ContainerNode
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg
}

func (c Configuration) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.CompanyID) == "" {
		return ErrMissingCompanyID
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTimezone, c.Timezone)
		}
	}
	return nil
}

// location is nil when no timezone is configured.
func (c Configuration) location() *time.Location {
	if c.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}
