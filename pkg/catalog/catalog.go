// Package catalog holds the read-only lookup data the editor validates and
// searches against: cohorts, locations, location groups and presets.
package catalog

import (
	"sort"
	"strings"
)

// LocationRef names a location. Catalog names are "<name>,<countryCode>,<type>".
// ID is zero for freeform names.
type LocationRef struct {
	Name string `json:"name" yaml:"name"`
	ID   int64  `json:"id,omitempty" yaml:"id,omitempty"`
}

// CohortInfo is a named audience bundle and its ABVR codes.
type CohortInfo struct {
	Name  string   `json:"name" yaml:"name"`
	ABVRs []string `json:"abvrs" yaml:"abvrs"`
}

// LocationGroup is a named set of locations owned by the location service.
type LocationGroup struct {
	Name              string        `json:"name" yaml:"name"`
	IncludedLocations []LocationRef `json:"includedLocations" yaml:"includedLocations"`
	ExcludedLocations []LocationRef `json:"excludedLocations" yaml:"excludedLocations"`
}

// PresetInfo is an inventory preset key and the name used on slides.
type PresetInfo struct {
	Key         string `json:"key" yaml:"key" mapstructure:"key"`
	DisplayName string `json:"displayName" yaml:"displayName" mapstructure:"display_name"`
}

type Catalog struct {
	Cohorts   []CohortInfo             `json:"cohorts"`
	Locations []LocationRef            `json:"locations"`
	Groups    map[string]LocationGroup `json:"groups"`
	Presets   []PresetInfo             `json:"presets"`
}

// DefaultPresets is the fixed preset table used when no override is configured.
var DefaultPresets = []PresetInfo{
	{Key: "TIL_All_Cluster_RNF", DisplayName: "TIL"},
	{Key: "TIL_TOI_Only_RNF", DisplayName: "TOI"},
	{Key: "TIL_ET_Only_RNF", DisplayName: "ET"},
	{Key: "TIL_ET_And_TOI_RNF", DisplayName: "TOI+ET"},
	{Key: "TIL_NBT_Only_RNF", DisplayName: "NBT"},
	{Key: "TIL_MT_Only_RNF", DisplayName: "Maharashtra Times"},
	{Key: "TIL_VK_Only_RNF", DisplayName: "Vijay Karnataka"},
	{Key: "TIL_IAG_Only_RNF", DisplayName: "IAG"},
	{Key: "TIL_EIS_Only_RNF", DisplayName: "EI Samay"},
	{Key: "TIL_Tamil_Only_RNF", DisplayName: "Tamil"},
	{Key: "TIL_Telugu_Only_RNF", DisplayName: "Telugu"},
	{Key: "TIL_Malayalam_Only_RNF", DisplayName: "Malayalam"},
	{Key: "TIL_All_Languages_RNF", DisplayName: "All Languages"},
}

// FormatLocationName joins the parts the location service returns into a catalog name.
func FormatLocationName(name, countryCode, locType string) string {
	return name + "," + countryCode + "," + locType
}

// FindCohort matches a cohort name case-insensitively.
func (c *Catalog) FindCohort(name string) (CohortInfo, bool) {
	name = strings.TrimSpace(name)
	for _, co := range c.Cohorts {
		if strings.EqualFold(co.Name, name) {
			return co, true
		}
	}
	return CohortInfo{}, false
}

// CohortCodes returns the ABVR codes of the named cohort, or nil.
func (c *Catalog) CohortCodes(name string) []string {
	co, ok := c.FindCohort(name)
	if !ok {
		return nil
	}
	return co.ABVRs
}

// FindPreset matches a preset by key or display name, case-insensitively.
func (c *Catalog) FindPreset(s string) (PresetInfo, bool) {
	s = strings.TrimSpace(s)
	for _, p := range c.Presets {
		if strings.EqualFold(p.Key, s) {
			return p, true
		}
	}
	for _, p := range c.Presets {
		if strings.EqualFold(p.DisplayName, s) {
			return p, true
		}
	}
	return PresetInfo{}, false
}

// PresetDisplayName maps an internal preset key to its display name.
// Display names and unknown keys are returned unchanged.
func (c *Catalog) PresetDisplayName(key string) string {
	for _, p := range c.Presets {
		if strings.EqualFold(p.Key, key) {
			return p.DisplayName
		}
	}
	return key
}

// FindLocation matches an exact catalog location name.
func (c *Catalog) FindLocation(name string) (LocationRef, bool) {
	for _, l := range c.Locations {
		if l.Name == name {
			return l, true
		}
	}
	return LocationRef{}, false
}

// Group looks a location group up by name.
func (c *Catalog) Group(name string) (LocationGroup, bool) {
	if name == "" || c.Groups == nil {
		return LocationGroup{}, false
	}
	g, ok := c.Groups[name]
	return g, ok
}

// GroupNames returns the group names in sorted order.
func (c *Catalog) GroupNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddLocation appends a location unless one with the same name is already present.
func (c *Catalog) AddLocation(ref LocationRef) {
	if _, ok := c.FindLocation(ref.Name); ok {
		return
	}
	c.Locations = append(c.Locations, ref)
}

// AddGroup inserts or replaces a location group.
func (c *Catalog) AddGroup(g LocationGroup) {
	if c.Groups == nil {
		c.Groups = make(map[string]LocationGroup)
	}
	c.Groups[g.Name] = g
}

// Clone returns a deep copy.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return &Catalog{Groups: map[string]LocationGroup{}}
	}
	out := &Catalog{
		Cohorts:   make([]CohortInfo, len(c.Cohorts)),
		Locations: append([]LocationRef(nil), c.Locations...),
		Groups:    make(map[string]LocationGroup, len(c.Groups)),
		Presets:   append([]PresetInfo(nil), c.Presets...),
	}
	for i, co := range c.Cohorts {
		out.Cohorts[i] = CohortInfo{Name: co.Name, ABVRs: append([]string(nil), co.ABVRs...)}
	}
	for k, g := range c.Groups {
		out.Groups[k] = LocationGroup{
			Name:              g.Name,
			IncludedLocations: append([]LocationRef(nil), g.IncludedLocations...),
			ExcludedLocations: append([]LocationRef(nil), g.ExcludedLocations...),
		}
	}
	return out
}
