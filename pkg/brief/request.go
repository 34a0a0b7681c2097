package brief

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/tidwall/gjson"
)

// MaxForecastABVRs caps the codes sent with one forecast request.
const MaxForecastABVRs = 200

// ForecastLocation is a location row as the forecast engine expects it.
type ForecastLocation struct {
	IncludedLocations []catalog.LocationRef `json:"includedLocations"`
	ExcludedLocations []catalog.LocationRef `json:"excludedLocations"`
	NameAsID          string                `json:"nameAsId"`
}

type ForecastRequest struct {
	Cohorts        []string           `json:"cohorts"`
	Locations      []ForecastLocation `json:"locations"`
	Preset         []string           `json:"preset"`
	Keywords       []string           `json:"keywords"`
	CreativeSize   string             `json:"creative_size"`
	DeviceCategory string             `json:"device_category"`
	TargetGender   string             `json:"target_gender"`
	TargetAge      string             `json:"target_age"`
	Duration       int                `json:"duration"`
	ABVRs          []string           `json:"abvrs"`
}

func (b *Brief) CheckedCohorts() []string {
	var out []string
	for _, c := range b.Cohorts {
		if c.Checked {
			out = append(out, c.Name)
		}
	}
	return out
}

func (b *Brief) CheckedPresets() []string {
	var out []string
	for _, p := range b.Presets {
		if p.Checked {
			out = append(out, p.Key)
		}
	}
	return out
}

func (b *Brief) CheckedKeywords() []string {
	var out []string
	for _, k := range b.Keywords {
		if k.Checked {
			out = append(out, k.Keyword)
		}
	}
	return out
}

// CheckedLocations returns the checked rows in stored order.
func (b *Brief) CheckedLocations() []ForecastLocation {
	var out []ForecastLocation
	for _, l := range b.Locations {
		if !l.Checked {
			continue
		}
		out = append(out, ForecastLocation{
			IncludedLocations: nonNilRefs(l.IncludedLocations),
			ExcludedLocations: nonNilRefs(l.ExcludedLocations),
			NameAsID:          l.NameAsID,
		})
	}
	return out
}

func nonNilRefs(refs []catalog.LocationRef) []catalog.LocationRef {
	if refs == nil {
		return []catalog.LocationRef{}
	}
	return refs
}

// ForecastRequest builds the forecast call from the checked subset. It fails
// without side effects when locations, presets or keywords are empty or the
// age is invalid.
func (b *Brief) ForecastRequest() (*ForecastRequest, error) {
	locations := b.CheckedLocations()
	if len(locations) == 0 {
		return nil, invalid(ErrMissingSelection, "Missing Locations", "Please select at least one location.")
	}
	presets := b.CheckedPresets()
	if len(presets) == 0 {
		return nil, invalid(ErrMissingSelection, "Missing Presets", "Please select at least one preset.")
	}
	keywords := b.CheckedKeywords()
	if len(keywords) == 0 {
		return nil, invalid(ErrMissingSelection, "Missing Keywords", "Please select at least one keyword.")
	}
	if err := b.ValidateAge(); err != nil {
		return nil, err
	}

	codes := b.CheckedABVRCodes()
	if len(codes) > MaxForecastABVRs {
		codes = codes[:MaxForecastABVRs]
	}
	if codes == nil {
		codes = []string{}
	}

	return &ForecastRequest{
		Cohorts:        nonNil(b.CheckedCohorts()),
		Locations:      locations,
		Preset:         presets,
		Keywords:       keywords,
		CreativeSize:   b.CreativeSize,
		DeviceCategory: b.DeviceCategory,
		TargetGender:   b.TargetGender,
		TargetAge:      b.TargetAge,
		Duration:       b.Duration,
		ABVRs:          codes,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GeoMetrics is one forecast row, in millions.
type GeoMetrics struct {
	Geo  string  `json:"geo"`
	User float64 `json:"user"`
	Impr float64 `json:"impr"`
}

type PresetForecast struct {
	Preset string       `json:"preset"`
	Rows   []GeoMetrics `json:"rows"`
}

// Forecast keeps the upstream preset and location order.
type Forecast struct {
	Presets []PresetForecast
}

var ErrMalformedForecast = errors.New("malformed forecast response")

// ParseForecast reads {preset: {location: {user, impr}}}.
func ParseForecast(raw string) (*Forecast, error) {
	if !gjson.Valid(raw) {
		return nil, ErrMalformedForecast
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, ErrMalformedForecast
	}
	f := &Forecast{}
	root.ForEach(func(preset, locations gjson.Result) bool {
		pf := PresetForecast{Preset: preset.String()}
		locations.ForEach(func(geo, m gjson.Result) bool {
			pf.Rows = append(pf.Rows, GeoMetrics{
				Geo:  geo.String(),
				User: m.Get("user").Float(),
				Impr: m.Get("impr").Float(),
			})
			return true
		})
		f.Presets = append(f.Presets, pf)
		return true
	})
	return f, nil
}

// MarshalJSON writes the upstream shape back, in order.
func (f *Forecast) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range f.Presets {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(p.Preset)
		buf.Write(k)
		buf.WriteString(":{")
		for j, r := range p.Rows {
			if j > 0 {
				buf.WriteByte(',')
			}
			g, _ := json.Marshal(r.Geo)
			m, err := json.Marshal(struct {
				User float64 `json:"user"`
				Impr float64 `json:"impr"`
			}{r.User, r.Impr})
			if err != nil {
				return nil, err
			}
			buf.Write(g)
			buf.WriteByte(':')
			buf.Write(m)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WithDisplayNames returns a copy whose preset keys use display names.
func (f *Forecast) WithDisplayNames(cat *catalog.Catalog) *Forecast {
	out := &Forecast{Presets: make([]PresetForecast, len(f.Presets))}
	for i, p := range f.Presets {
		out.Presets[i] = PresetForecast{
			Preset: cat.PresetDisplayName(p.Preset),
			Rows:   append([]GeoMetrics(nil), p.Rows...),
		}
	}
	return out
}

type PresentationRequest struct {
	EmailSubject string    `json:"email_subject"`
	EmailBody    string    `json:"email_body"`
	ABVRs        string    `json:"abvrs"`
	TargetAge    string    `json:"target_age"`
	ForecastData *Forecast `json:"forecast_data"`
}

// PresentationRequest requires a forecast, one checked audience and a valid age.
func (b *Brief) PresentationRequest(cat *catalog.Catalog, f *Forecast, subject, body string) (*PresentationRequest, error) {
	if f == nil {
		return nil, invalid(ErrNoForecast, "No Data", "No forecast data available for presentation.")
	}
	codes := b.CheckedABVRCodes()
	if len(codes) == 0 {
		return nil, invalid(ErrMissingSelection, "No ABVRs Selected", "Please select at least one ABVR for the presentation.")
	}
	if err := b.ValidateAge(); err != nil {
		return nil, err
	}
	return &PresentationRequest{
		EmailSubject: subject,
		EmailBody:    body,
		ABVRs:        strings.Join(codes, ","),
		TargetAge:    b.TargetAge,
		ForecastData: f.WithDisplayNames(cat),
	}, nil
}
