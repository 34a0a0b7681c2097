package brief

import (
	"encoding/json"

	"github.com/briefdesk/briefedit/pkg/catalog"
)

// Clone returns a deep copy of the brief.
func (b *Brief) Clone() *Brief {
	if b == nil {
		return nil
	}
	out := *b
	out.Cohorts = append([]Cohort(nil), b.Cohorts...)
	out.Presets = append([]Preset(nil), b.Presets...)
	out.Keywords = append([]Keyword(nil), b.Keywords...)
	out.ABVRs = append([]Audience(nil), b.ABVRs...)
	out.LeftABVRs = append([]Audience(nil), b.LeftABVRs...)
	out.LocationsNotFound = append([]string(nil), b.LocationsNotFound...)
	out.CohortPPTs = append(json.RawMessage(nil), b.CohortPPTs...)

	out.Locations = make([]Location, len(b.Locations))
	for i, l := range b.Locations {
		l.IncludedLocations = append([]catalog.LocationRef(nil), l.IncludedLocations...)
		l.ExcludedLocations = append([]catalog.LocationRef(nil), l.ExcludedLocations...)
		out.Locations[i] = l
	}
	out.CohortAudiences = make([]CohortAudiences, len(b.CohortAudiences))
	for i, g := range b.CohortAudiences {
		g.Audiences = append([]Audience(nil), g.Audiences...)
		out.CohortAudiences[i] = g
	}
	return &out
}

// Clone returns a copy of the pending entry.
func (p PendingLocation) Clone() PendingLocation {
	p.Included = append([]Chip(nil), p.Included...)
	p.Excluded = append([]Chip(nil), p.Excluded...)
	return p
}
