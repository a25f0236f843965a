package widget

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed assets/widget.css
var stylesheet string

//go:embed templates/widget.html
var widgetTemplate string

var tmpl = template.Must(template.New("widget").Parse(widgetTemplate))

type serviceOption struct {
	ID       string
	Label    string
	Selected bool
}

type slotOption struct {
	Value    string
	Selected bool
}

type view struct {
	Theme       string
	Stage       string
	FormID      string
	Action      string
	Error       string
	Success     string
	ShowForm    bool
	MinDate     string
	Services    []serviceOption
	Slots       []slotOption
	Draft       BookingDraft
	Submitting  bool
	SubmitLabel string
}

func (w *Widget) view() view {
	v := view{
		Theme:       w.cfg.Theme,
		Stage:       string(w.stage),
		FormID:      w.FormID(),
		Action:      w.action,
		Error:       w.banner,
		ShowForm:    w.stage == StageForm,
		MinDate:     w.minDate(),
		Draft:       w.draft,
		Submitting:  w.submitting,
		SubmitLabel: submitLabel,
	}
	if w.submitting {
		v.SubmitLabel = submittingLabel
	}
	if w.stage == StageSuccess {
		v.Success = msgBookingCreated
	}

	v.Services = make([]serviceOption, 0, len(w.services))
	for _, s := range w.services {
		v.Services = append(v.Services, serviceOption{
			ID:       s.ID,
			Label:    fmt.Sprintf("%s - $%.2f", s.Name, s.Price),
			Selected: s.ID == w.draft.ServiceID,
		})
	}
	for _, slot := range TimeSlots() {
		v.Slots = append(v.Slots, slotOption{Value: slot, Selected: slot == w.draft.Time})
	}
	return v
}

// render replaces the whole content of the mount point with the current
// stage.
func (w *Widget) render() {
	if w.mount == nil {
		return
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, w.view()); err != nil {
		// the template is static, so this only fires on a programming error
		w.logger.Error().Err(err).Str("instance_id", w.id).Msg("render widget")
		return
	}
	w.mount.SetHtml(b.String())
}
