// Package search implements the autocomplete boxes: catalog filtering,
// keyboard navigation of the result list and the debounced audience query.
package search

import (
	"fmt"
	"strings"

	"github.com/briefdesk/briefedit/pkg/catalog"
)

// Option is one dropdown entry.
type Option struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"` // shown instead of Name when set
	ID    int64  `json:"id,omitempty"`
	Group bool   `json:"group,omitempty"`
}

// Box identifies a search input.
type Box string

const (
	CohortBox           Box = "cohort"
	PresetBox           Box = "preset"
	IncludedLocationBox Box = "included_location"
	ExcludedLocationBox Box = "excluded_location"
	ABVRBox             Box = "abvr"
)

var Boxes = []Box{CohortBox, PresetBox, IncludedLocationBox, ExcludedLocationBox, ABVRBox}

func ParseBox(s string) (Box, error) {
	for _, b := range Boxes {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown search box %q", s)
}

// MaxResults bounds a dropdown.
const MaxResults = 50

// Filter keeps options whose name contains term, ignoring case, that exclude
// does not reject. An empty term matches nothing.
func Filter(options []Option, term string, exclude func(Option) bool) []Option {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Option
	for _, o := range options {
		if !strings.Contains(strings.ToLower(o.Name), term) {
			continue
		}
		if exclude != nil && exclude(o) {
			continue
		}
		out = append(out, o)
		if len(out) == MaxResults {
			break
		}
	}
	return out
}

// CohortOptions lists the catalog cohorts.
func CohortOptions(cat *catalog.Catalog) []Option {
	out := make([]Option, len(cat.Cohorts))
	for i, c := range cat.Cohorts {
		out[i] = Option{Name: c.Name}
	}
	return out
}

// PresetOptions lists preset keys.
func PresetOptions(cat *catalog.Catalog) []Option {
	out := make([]Option, len(cat.Presets))
	for i, p := range cat.Presets {
		out[i] = Option{Name: p.Key}
	}
	return out
}

// LocationOptions lists catalog locations, plus the location groups when
// withGroups is set. Groups come first.
func LocationOptions(cat *catalog.Catalog, withGroups bool) []Option {
	var out []Option
	if withGroups {
		for _, name := range cat.GroupNames() {
			out = append(out, Option{Name: name, Group: true})
		}
	}
	for _, l := range cat.Locations {
		out = append(out, Option{Name: l.Name, ID: l.ID})
	}
	return out
}

// NameSet builds an exclude func matching names case-insensitively.
func NameSet(names ...string) func(Option) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return func(o Option) bool {
		_, ok := set[strings.ToLower(o.Name)]
		return ok
	}
}
