// Package render turns a session snapshot into the view-model the HTML page
// and the JSON API show. Render has no side effects.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/export"
	"github.com/briefdesk/briefedit/pkg/search"
	"github.com/briefdesk/briefedit/pkg/session"
)

type View struct {
	SessionID string `json:"sessionId"`
	Subject   string `json:"subject"`

	Cohorts   Panel `json:"cohorts"`
	Locations Panel `json:"locations"`
	Presets   Panel `json:"presets"`
	Keywords  Panel `json:"keywords"`
	ABVRs     Panel `json:"abvrs"`

	ABVRSections []ABVRSection `json:"abvrSections"`
	Staged       []string      `json:"staged"`
	NotFound     []string      `json:"locationsNotFound"`

	Pending   PendingView                 `json:"pending"`
	Dropdowns map[search.Box]DropdownView `json:"dropdowns"`
	Settings  []SettingView               `json:"settings"`
	Age       AgeView                     `json:"age"`

	Forecast     *ForecastView     `json:"forecast,omitempty"`
	Presentation *PresentationView `json:"presentation,omitempty"`

	Buttons []Button        `json:"buttons"`
	Toasts  []session.Toast `json:"toasts"`
}

// Panel is one selectable collection with its select-all box.
type Panel struct {
	Collection brief.Collection `json:"collection"`
	Title      string           `json:"title"`
	Chips      bool             `json:"chips"`
	AllChecked bool             `json:"allChecked"`
	Items      []Item           `json:"items"`
}

// Item is one row or chip. Key addresses it in mutation routes.
type Item struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Detail  string `json:"detail,omitempty"`
	Checked bool   `json:"checked"`
	Group   bool   `json:"group,omitempty"`
}

type ABVRSection struct {
	Title string        `json:"title"`
	Rows  []AudienceRow `json:"rows"`
}

type AudienceRow struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Similarity  string `json:"similarity"`
	Checked     bool   `json:"checked"`
}

type PendingView struct {
	Included         []brief.Chip `json:"included"`
	Excluded         []brief.Chip `json:"excluded"`
	Name             string       `json:"name"`
	NameLocked       bool         `json:"nameLocked"`
	ExcludedDisabled bool         `json:"excludedDisabled"`
}

type DropdownView struct {
	Term    string       `json:"term"`
	Open    bool         `json:"open"`
	Options []OptionView `json:"options"`
}

type OptionView struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Group       bool   `json:"group,omitempty"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// SettingView is a select input. Name matches the session setting names.
type SettingView struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Value   string   `json:"value"`
	Options []string `json:"options,omitempty"`
}

type AgeView struct {
	Mode  brief.AgeMode `json:"mode"`
	Text  string        `json:"text"`
	Min   int           `json:"min"`
	Max   int           `json:"max"`
	Error string        `json:"error,omitempty"`
}

type ForecastView struct {
	Tables []ForecastTable `json:"tables"`
}

type ForecastTable struct {
	Title  string     `json:"title"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type PresentationView struct {
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Trusted bool   `json:"trusted"`
}

// Button is an async action button. Label is the progress text while the
// action runs.
type Button struct {
	Action   session.Action `json:"action"`
	Label    string         `json:"label"`
	Disabled bool           `json:"disabled"`
	Busy     bool           `json:"busy"`
}

var buttonLabels = []struct {
	action session.Action
	label  string
}{
	{session.ActionAddCohort, "Add Cohort"},
	{session.ActionAddABVRs, "Add ABVRs"},
	{session.ActionRefreshABVRs, "Get ABVRs"},
	{session.ActionForecast, "Get Forecast"},
	{session.ActionPresentation, "Create Presentation"},
	{session.ActionSaveLocation, "Save Location"},
	{session.ActionSaveGroup, "Save Location Group"},
}

// Render builds the view of a session snapshot.
func Render(st session.State) View {
	b := st.Brief
	if b == nil {
		b = &brief.Brief{}
	}
	cat := st.Catalog
	if cat == nil {
		cat = &catalog.Catalog{}
	}
	chips := st.Style == brief.StyleChip

	v := View{
		SessionID: st.SessionID,
		Subject:   st.Subject,
		Cohorts:   cohortPanel(b),
		Locations: locationPanel(b, cat),
		Presets:   presetPanel(b, cat, chips),
		Keywords:  keywordPanel(b, chips),
		ABVRs: Panel{
			Collection: brief.ABVRs,
			Title:      brief.ABVRs.Label(),
			AllChecked: b.AllChecked(brief.ABVRs),
		},
		ABVRSections: abvrSections(b),
		Staged:       append([]string{}, st.Staged...),
		NotFound:     append([]string{}, b.LocationsNotFound...),
		Pending: PendingView{
			Included:         append([]brief.Chip{}, st.Pending.Included...),
			Excluded:         append([]brief.Chip{}, st.Pending.Excluded...),
			Name:             st.Pending.Name,
			NameLocked:       st.Pending.NameLocked,
			ExcludedDisabled: st.Pending.ExcludedDisabled(),
		},
		Dropdowns: make(map[search.Box]DropdownView, len(st.Dropdowns)),
		Settings:  settings(b),
		Age:       age(b, st.AgeMode),
		Buttons:   buttons(st),
		Toasts:    append([]session.Toast{}, st.Toasts...),
	}
	for box, d := range st.Dropdowns {
		v.Dropdowns[box] = dropdown(d)
	}
	if st.Forecast != nil {
		v.Forecast = forecast(st.Forecast, cat, b.Duration)
	}
	if p := st.Presentation; p != nil {
		v.Presentation = &PresentationView{Message: p.Message, Trusted: p.Trusted}
		if p.Trusted {
			v.Presentation.URL = p.URL
		}
	}
	return v
}

func cohortPanel(b *brief.Brief) Panel {
	p := Panel{Collection: brief.Cohorts, Title: brief.Cohorts.Label(), AllChecked: b.AllChecked(brief.Cohorts), Items: []Item{}}
	for _, c := range b.Cohorts {
		p.Items = append(p.Items, Item{Key: c.Name, Label: c.Name, Checked: c.Checked})
	}
	return p
}

func presetPanel(b *brief.Brief, cat *catalog.Catalog, chips bool) Panel {
	p := Panel{Collection: brief.Presets, Title: brief.Presets.Label(), Chips: chips, AllChecked: b.AllChecked(brief.Presets), Items: []Item{}}
	for _, pr := range b.Presets {
		it := Item{Key: pr.Key, Label: pr.Key, Checked: pr.Checked}
		if name := cat.PresetDisplayName(pr.Key); name != pr.Key {
			it.Detail = name
		}
		p.Items = append(p.Items, it)
	}
	return p
}

func keywordPanel(b *brief.Brief, chips bool) Panel {
	p := Panel{Collection: brief.Keywords, Title: brief.Keywords.Label(), Chips: chips, AllChecked: b.AllChecked(brief.Keywords), Items: []Item{}}
	for _, k := range b.Keywords {
		p.Items = append(p.Items, Item{Key: k.Keyword, Label: k.Keyword, Checked: k.Checked})
	}
	return p
}

// locationPanel shows group-backed rows by group name only. Other rows list
// their included and excluded names and the row label.
func locationPanel(b *brief.Brief, cat *catalog.Catalog) Panel {
	p := Panel{Collection: brief.Locations, Title: brief.Locations.Label(), AllChecked: b.AllChecked(brief.Locations), Items: []Item{}}
	for i, loc := range b.Locations {
		it := Item{Key: strconv.Itoa(i), Checked: loc.Checked}
		if g, ok := cat.Group(loc.NameAsID); ok {
			it.Label = g.Name
			it.Group = true
		} else {
			it.Label = LocationLabel(loc)
		}
		p.Items = append(p.Items, it)
	}
	return p
}

// LocationLabel renders "A | B (Excluded: C) (ID: name)".
func LocationLabel(loc brief.Location) string {
	var sb strings.Builder
	sb.WriteString(brief.JoinNames(loc.IncludedLocations))
	if len(loc.ExcludedLocations) > 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "(Excluded: %s)", brief.JoinNames(loc.ExcludedLocations))
	}
	if loc.NameAsID != "" {
		fmt.Fprintf(&sb, " (ID: %s)", loc.NameAsID)
	}
	return strings.TrimSpace(sb.String())
}

// abvrSections lists cohort groups first. Codes shown under a cohort are
// left out of the recommended and additional sections.
func abvrSections(b *brief.Brief) []ABVRSection {
	out := []ABVRSection{}
	cohortCodes := b.CohortAudienceCodes()
	for _, g := range b.CohortAudiences {
		title := "From cohorts"
		if g.Cohort != "" {
			title = "From cohort: " + g.Cohort
		}
		if rows := audienceRows(g.Audiences, nil); len(rows) > 0 {
			out = append(out, ABVRSection{Title: title, Rows: rows})
		}
	}
	if rows := audienceRows(b.ABVRs, cohortCodes); len(rows) > 0 {
		out = append(out, ABVRSection{Title: "Recommended", Rows: rows})
	}
	if rows := audienceRows(b.LeftABVRs, cohortCodes); len(rows) > 0 {
		out = append(out, ABVRSection{Title: "Additional", Rows: rows})
	}
	return out
}

func audienceRows(auds []brief.Audience, skip map[string]struct{}) []AudienceRow {
	var rows []AudienceRow
	for _, a := range auds {
		if _, ok := skip[a.ABVR]; ok {
			continue
		}
		rows = append(rows, AudienceRow{
			Code:        a.ABVR,
			Name:        a.Name,
			Description: a.Description,
			Similarity:  Similarity(a.Similarity),
			Checked:     a.Checked,
		})
	}
	return rows
}

// Similarity formats a 0..1 score as a percentage. Zero renders empty.
func Similarity(s float64) string {
	if s == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", s*100)
}

func dropdown(d search.Dropdown) DropdownView {
	v := DropdownView{Term: d.Term, Open: d.Open, Options: []OptionView{}}
	for i, o := range d.Results {
		label := o.Name
		if o.Label != "" {
			label = o.Label + " (" + o.Name + ")"
		}
		v.Options = append(v.Options, OptionView{
			Value:       o.Name,
			Label:       label,
			Group:       o.Group,
			Highlighted: i == d.Highlight,
		})
	}
	return v
}

func settings(b *brief.Brief) []SettingView {
	return []SettingView{
		{Name: session.SettingCreativeSize, Label: "Creative Size", Value: b.CreativeSize, Options: brief.CreativeSizes},
		{Name: session.SettingDeviceCategory, Label: "Device Category", Value: b.DeviceCategory, Options: brief.DeviceCategories},
		{Name: session.SettingTargetGender, Label: "Target Gender", Value: b.TargetGender, Options: brief.TargetGenders},
		{Name: session.SettingDuration, Label: "Duration (days)", Value: strconv.Itoa(b.Duration)},
	}
}

func age(b *brief.Brief, mode brief.AgeMode) AgeView {
	if mode == "" {
		mode = brief.AgeText
	}
	v := AgeView{Mode: mode, Text: b.TargetAge}
	v.Min, v.Max = b.AgeBounds()
	if err := b.ValidateAge(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func forecast(f *brief.Forecast, cat *catalog.Catalog, duration int) *ForecastView {
	if duration <= 0 {
		duration = export.DefaultDuration
	}
	v := &ForecastView{Tables: []ForecastTable{}}
	for _, p := range f.Presets {
		t := ForecastTable{
			Title:  fmt.Sprintf("%s (%d days)", cat.PresetDisplayName(p.Preset), duration),
			Header: export.ForecastHeader,
			Rows:   [][]string{},
		}
		for _, r := range p.Rows {
			t.Rows = append(t.Rows, []string{r.Geo, export.Number(r.User), export.Number(r.Impr)})
		}
		v.Tables = append(v.Tables, t)
	}
	return v
}

// buttons disables a button while its action runs. Presentation also waits
// for a forecast.
func buttons(st session.State) []Button {
	out := make([]Button, 0, len(buttonLabels))
	for _, bl := range buttonLabels {
		btn := Button{Action: bl.action, Label: bl.label}
		if progress, ok := st.InFlight[bl.action]; ok {
			btn.Label = progress
			btn.Disabled = true
			btn.Busy = true
		}
		if bl.action == session.ActionPresentation && st.Forecast == nil {
			btn.Disabled = true
		}
		out = append(out, btn)
	}
	return out
}
