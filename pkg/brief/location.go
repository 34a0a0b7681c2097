package brief

import (
	"strings"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/catalog"
)

// ReservedLocationName is the label the forecast uses for its total row.
const ReservedLocationName = "Overall"

// Chip is a location staged in the pending entry. Group chips stand for a
// whole location group.
type Chip struct {
	Name  string `json:"name"`
	ID    int64  `json:"id,omitempty"`
	Group bool   `json:"group,omitempty"`
}

// PendingLocation is the location entry being composed before it is added.
type PendingLocation struct {
	Included   []Chip `json:"included"`
	Excluded   []Chip `json:"excluded"`
	Name       string `json:"name"`
	NameLocked bool   `json:"nameLocked"`
}

// GroupChip returns the group chip when one is staged.
func (p *PendingLocation) GroupChip() (Chip, bool) {
	for _, c := range p.Included {
		if c.Group {
			return c, true
		}
	}
	return Chip{}, false
}

// ExcludedDisabled reports whether excluded locations can be added.
func (p *PendingLocation) ExcludedDisabled() bool {
	_, ok := p.GroupChip()
	return ok
}

// AddIncluded stages an included location or group. A group replaces every
// other chip and locks the name; a plain location drops a staged group.
func (p *PendingLocation) AddIncluded(c Chip) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid(ErrEmpty, "Missing Locations", "Please select a location.")
	}
	if c.Group {
		p.Included = []Chip{c}
		p.Excluded = nil
		p.Name = c.Name
		p.NameLocked = true
		return nil
	}
	if _, ok := p.GroupChip(); ok {
		p.Included = nil
		p.Name = ""
		p.NameLocked = false
	}
	if hasChip(p.Included, c.Name) {
		return nil
	}
	p.Included = append(p.Included, c)
	return nil
}

// AddExcluded stages an excluded location. Rejected while a group is staged.
func (p *PendingLocation) AddExcluded(c Chip) error {
	if p.ExcludedDisabled() {
		return invalid(ErrInputLocked, "Invalid Selection", "Cannot add excluded locations when a location group is selected.")
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid(ErrEmpty, "Missing Locations", "Please select a location to exclude.")
	}
	if c.Group {
		return invalid(ErrNotInCatalog, "Invalid Selection", "Location groups cannot be excluded.")
	}
	if hasChip(p.Excluded, c.Name) {
		return nil
	}
	p.Excluded = append(p.Excluded, c)
	return nil
}

// RemoveIncluded unstages an included chip. Removing the group chip unlocks
// the inputs and clears the name.
func (p *PendingLocation) RemoveIncluded(i int) error {
	if i < 0 || i >= len(p.Included) {
		return ErrNotFound
	}
	removed := p.Included[i]
	p.Included = append(p.Included[:i], p.Included[i+1:]...)
	if removed.Group {
		p.Name = ""
		p.NameLocked = false
	}
	return nil
}

func (p *PendingLocation) RemoveExcluded(i int) error {
	if i < 0 || i >= len(p.Excluded) {
		return ErrNotFound
	}
	p.Excluded = append(p.Excluded[:i], p.Excluded[i+1:]...)
	return nil
}

// SetName sets the row label. Rejected while a group chip locks it.
func (p *PendingLocation) SetName(name string) error {
	if p.NameLocked {
		return invalid(ErrInputLocked, "Invalid Selection", "The name is taken from the selected location group.")
	}
	p.Name = strings.TrimSpace(name)
	return nil
}

func (p *PendingLocation) Reset() {
	*p = PendingLocation{}
}

func hasChip(chips []Chip, name string) bool {
	for _, c := range chips {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CommitLocation turns the pending entry into a checked location row and
// clears it. Nothing changes when validation fails.
func (b *Brief) CommitLocation(cat *catalog.Catalog, p *PendingLocation) (Location, error) {
	var loc Location

	if g, ok := p.GroupChip(); ok {
		if len(p.Excluded) > 0 {
			return loc, invalid(ErrInputLocked, "Invalid Selection", "Cannot add excluded locations when a location group is selected.")
		}
		if isReserved(g.Name) {
			return loc, reservedErr()
		}
		group, found := cat.Group(g.Name)
		if !found {
			return loc, invalid(ErrNotInCatalog, "Unknown Location Group", "Location group %q is not available.", g.Name)
		}
		loc = Location{
			IncludedLocations: append([]catalog.LocationRef{}, group.IncludedLocations...),
			ExcludedLocations: append([]catalog.LocationRef{}, group.ExcludedLocations...),
			NameAsID:          g.Name,
		}
	} else {
		name := strings.TrimSpace(p.Name)
		if isReserved(name) {
			return loc, reservedErr()
		}
		if len(p.Included) == 0 && len(p.Excluded) == 0 {
			return loc, invalid(ErrEmpty, "Missing Locations", "Please enter at least one included or excluded location.")
		}
		if name == "" {
			if len(p.Included) != 1 || len(p.Excluded) != 0 {
				return loc, invalid(ErrEmpty, "Missing Name as ID", "When you have multiple included locations or excluded locations, you must provide a Name as ID.")
			}
			name = utils.FirstSegment(p.Included[0].Name)
			if isReserved(name) {
				return loc, reservedErr()
			}
		}
		loc = Location{
			IncludedLocations: resolveChips(cat, p.Included),
			ExcludedLocations: resolveChips(cat, p.Excluded),
			NameAsID:          name,
		}
	}

	for _, existing := range b.Locations {
		if sameLocation(existing, loc) {
			return Location{}, invalid(ErrDuplicate, "Already Added", "This location combination is already added.")
		}
	}

	loc.Checked = true
	b.Locations = append(b.Locations, loc)
	p.Reset()
	return loc, nil
}

func isReserved(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ReservedLocationName)
}

func reservedErr() error {
	return invalid(ErrReservedName, "Invalid Name", "%q is reserved and cannot be used as a location name.", ReservedLocationName)
}

func resolveChips(cat *catalog.Catalog, chips []Chip) []catalog.LocationRef {
	out := make([]catalog.LocationRef, 0, len(chips))
	for _, c := range chips {
		ref := catalog.LocationRef{Name: c.Name, ID: c.ID}
		if ref.ID == 0 {
			if found, ok := cat.FindLocation(c.Name); ok {
				ref.ID = found.ID
			}
		}
		out = append(out, ref)
	}
	return out
}

// JoinNames renders location names the way rows are compared and displayed.
func JoinNames(refs []catalog.LocationRef) string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return strings.Join(names, " | ")
}

func sameLocation(a, b Location) bool {
	return JoinNames(a.IncludedLocations) == JoinNames(b.IncludedLocations) &&
		JoinNames(a.ExcludedLocations) == JoinNames(b.ExcludedLocations) &&
		a.NameAsID == b.NameAsID
}

// AddSavedLocation appends a single-location row for a location the operator
// just persisted and drops it from the not-found list.
func (b *Brief) AddSavedLocation(ref catalog.LocationRef) {
	loc := Location{
		IncludedLocations: []catalog.LocationRef{ref},
		ExcludedLocations: []catalog.LocationRef{},
		NameAsID:          utils.FirstSegment(ref.Name),
		Checked:           true,
	}
	if !b.containsLocation(loc) {
		b.Locations = append(b.Locations, loc)
	}
	b.RemoveNotFound(notFoundName(ref.Name))
}

// AddSavedGroup appends a row for a location group that was just persisted.
func (b *Brief) AddSavedGroup(g catalog.LocationGroup) {
	loc := Location{
		IncludedLocations: append([]catalog.LocationRef{}, g.IncludedLocations...),
		ExcludedLocations: append([]catalog.LocationRef{}, g.ExcludedLocations...),
		NameAsID:          g.Name,
		Checked:           true,
	}
	if !b.containsLocation(loc) {
		b.Locations = append(b.Locations, loc)
	}
	b.RemoveNotFound(g.Name)
}

func (b *Brief) containsLocation(loc Location) bool {
	for _, existing := range b.Locations {
		if sameLocation(existing, loc) {
			return true
		}
	}
	return false
}

// RemoveNotFound drops a name from the not-found list.
func (b *Brief) RemoveNotFound(name string) bool {
	for i, n := range b.LocationsNotFound {
		if n == name {
			b.LocationsNotFound = append(b.LocationsNotFound[:i], b.LocationsNotFound[i+1:]...)
			return true
		}
	}
	return false
}

// notFoundName strips the country code and type from a catalog name:
// "New Delhi,IN,city" -> "New Delhi".
func notFoundName(catalogName string) string {
	parts := strings.Split(catalogName, ",")
	if len(parts) <= 2 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-2], ",")
}
