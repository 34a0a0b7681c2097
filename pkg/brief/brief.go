// Package brief is the editable media-plan brief: its collections, the
// mutations the operator applies to them, and the requests built from the
// checked subset.
package brief

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/briefdesk/briefedit/pkg/catalog"
)

var (
	ErrEmpty             = errors.New("empty value")
	ErrDuplicate         = errors.New("already selected")
	ErrNotInCatalog      = errors.New("not found in catalog")
	ErrNotFound          = errors.New("item not found")
	ErrReservedName      = errors.New("reserved name")
	ErrInputLocked       = errors.New("input locked by location group")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidAge        = errors.New("invalid age range")
	ErrInvalidSetting    = errors.New("invalid setting")
	ErrMissingSelection  = errors.New("missing selection")
	ErrNoForecast        = errors.New("no forecast available")
)

// ValidationError is a user-facing rejection. Title is the toast heading.
type ValidationError struct {
	Title   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, title, format string, args ...interface{}) error {
	return &ValidationError{Title: title, Message: fmt.Sprintf(format, args...), Err: err}
}

type Cohort struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

type Preset struct {
	Key     string `json:"key"`
	Checked bool   `json:"checked"`
}

type Keyword struct {
	Keyword string `json:"keyword"`
	Checked bool   `json:"checked"`
}

// Audience is an audience segment identified by its ABVR code.
type Audience struct {
	ABVR        string  `json:"abvr"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
	Checked     bool    `json:"checked"`
}

// CohortAudiences groups the audiences that came from one cohort.
// An empty Cohort holds cohort audiences that could not be attributed.
type CohortAudiences struct {
	Cohort    string     `json:"cohort"`
	Audiences []Audience `json:"audiences"`
}

// Location is one forecast row. When NameAsID names a known location group
// the entry is shown as that group.
type Location struct {
	IncludedLocations []catalog.LocationRef `json:"includedLocations"`
	ExcludedLocations []catalog.LocationRef `json:"excludedLocations"`
	NameAsID          string                `json:"nameAsId"`
	Checked           bool                  `json:"checked"`
}

type Brief struct {
	Cohorts           []Cohort          `json:"cohort"`
	Locations         []Location        `json:"locations"`
	Presets           []Preset          `json:"preset"`
	Keywords          []Keyword         `json:"keywords"`
	ABVRs             []Audience        `json:"abvrs"`
	LeftABVRs         []Audience        `json:"left_abvrs"`
	CohortAudiences   []CohortAudiences `json:"cohort_auds"`
	CreativeSize      string            `json:"creative_size"`
	DeviceCategory    string            `json:"device_category"`
	TargetGender      string            `json:"target_gender"`
	TargetAge         string            `json:"target_age"`
	Duration          int               `json:"duration"`
	LocationsNotFound []string          `json:"locations_not_found"`
	CohortPPTs        json.RawMessage   `json:"cohort_ppts,omitempty"`
}

// Collection names an editable list of the brief.
type Collection string

const (
	Cohorts   Collection = "cohorts"
	Locations Collection = "locations"
	Presets   Collection = "presets"
	Keywords  Collection = "keywords"
	ABVRs     Collection = "abvrs"
)

var AllCollections = []Collection{Cohorts, Locations, Presets, Keywords, ABVRs}

func ParseCollection(s string) (Collection, error) {
	for _, c := range AllCollections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

// Label is the human name of a collection.
func (c Collection) Label() string {
	switch c {
	case Cohorts:
		return "Cohorts"
	case Locations:
		return "Locations"
	case Presets:
		return "Presets"
	case Keywords:
		return "Keywords"
	case ABVRs:
		return "ABVRs"
	}
	return string(c)
}

// SelectionStyle switches presets and keywords between checkbox rows and toggle chips.
type SelectionStyle string

const (
	StyleCheckbox SelectionStyle = "checkbox"
	StyleChip     SelectionStyle = "chip"
)

func ParseSelectionStyle(s string) (SelectionStyle, error) {
	switch SelectionStyle(s) {
	case StyleCheckbox, "":
		return StyleCheckbox, nil
	case StyleChip:
		return StyleChip, nil
	}
	return "", fmt.Errorf("%w: selection style %q", ErrInvalidSetting, s)
}

// Email is what the operator submits for parsing.
type Email struct {
	Subject string
	Body    string
	Files   []Attachment
}

type Attachment struct {
	Name string
	Data []byte
}

// KeywordAudiences is the backend's answer to a keyword driven ABVR refresh.
type KeywordAudiences struct {
	Keywords  []string
	ABVRs     []Audience
	LeftABVRs []Audience
}

// Presentation is the outcome of a slide generation request.
type Presentation struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"google_slides_url"`
	Trusted bool   `json:"trusted"`
}
