package brief

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/briefdesk/briefedit/pkg/catalog"
)

// Scope tells the view layer how much to redraw after a mutation.
type Scope string

const (
	ScopeItem  Scope = "item"
	ScopePanel Scope = "panel"
)

// Rerender is returned by selection changes.
type Rerender struct {
	Collection Collection   `json:"collection"`
	Scope      Scope        `json:"scope"`
	Key        string       `json:"key,omitempty"`
	Also       []Collection `json:"also,omitempty"`
}

func (b *Brief) cohortIndex(name string) int {
	for i, c := range b.Cohorts {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (b *Brief) presetIndex(key string) int {
	for i, p := range b.Presets {
		if strings.EqualFold(p.Key, key) {
			return i
		}
	}
	return -1
}

func (b *Brief) keywordIndex(kw string) int {
	for i, k := range b.Keywords {
		if strings.EqualFold(k.Keyword, kw) {
			return i
		}
	}
	return -1
}

func (b *Brief) locationIndex(key string) (int, error) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= len(b.Locations) {
		return -1, fmt.Errorf("%w: location %q", ErrNotFound, key)
	}
	return i, nil
}

// Add dispatches a freeform add for cohorts, presets and keywords and
// returns the stored spelling.
func (b *Brief) Add(cat *catalog.Catalog, c Collection, value string) (string, error) {
	switch c {
	case Cohorts:
		return b.AddCohort(cat, value)
	case Presets:
		return b.AddPreset(cat, value)
	case Keywords:
		return b.AddKeyword(value)
	case Locations, ABVRs:
		return "", fmt.Errorf("%w: %s are added through their own entry", ErrUnknownCollection, c)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}

// AddCohort appends a catalog cohort, stored with its catalog spelling.
func (b *Brief) AddCohort(cat *catalog.Catalog, name string) (string, error) {
	name, err := b.ResolveCohort(cat, name)
	if err != nil {
		return "", err
	}
	b.Cohorts = append(b.Cohorts, Cohort{Name: name, Checked: true})
	return name, nil
}

// ResolveCohort returns the catalog name AddCohort would add, without adding it.
func (b *Brief) ResolveCohort(cat *catalog.Catalog, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(ErrEmpty, "Missing Cohort", "Please select or enter a cohort name.")
	}
	info, ok := cat.FindCohort(name)
	if !ok {
		return "", invalid(ErrNotInCatalog, "Cohort Not Found", "Cohort %q not found in available cohorts.", name)
	}
	if b.cohortIndex(info.Name) >= 0 {
		return "", invalid(ErrDuplicate, "Already Selected", "Cohort %q is already selected.", info.Name)
	}
	return info.Name, nil
}

// AddPreset appends a catalog preset by key or display name.
func (b *Brief) AddPreset(cat *catalog.Catalog, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(ErrEmpty, "Missing Preset", "Please enter a preset to add.")
	}
	p, ok := cat.FindPreset(value)
	if !ok {
		return "", invalid(ErrNotInCatalog, "Preset Not Found", "Preset %q not found in available presets.", value)
	}
	if b.presetIndex(p.Key) >= 0 {
		return "", invalid(ErrDuplicate, "Already Selected", "Preset %q is already selected.", p.Key)
	}
	b.Presets = append(b.Presets, Preset{Key: p.Key, Checked: true})
	return p.Key, nil
}

func (b *Brief) AddKeyword(kw string) (string, error) {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return "", invalid(ErrEmpty, "Missing Keyword", "Please enter a keyword to add.")
	}
	if b.keywordIndex(kw) >= 0 {
		return "", invalid(ErrDuplicate, "Already Selected", "Keyword %q is already selected.", kw)
	}
	b.Keywords = append(b.Keywords, Keyword{Keyword: kw, Checked: true})
	return kw, nil
}

// Remove drops an item. Locations are addressed by index, audiences by code.
func (b *Brief) Remove(c Collection, key string) error {
	switch c {
	case Cohorts:
		i := b.cohortIndex(key)
		if i < 0 {
			return fmt.Errorf("%w: cohort %q", ErrNotFound, key)
		}
		name := b.Cohorts[i].Name
		b.Cohorts = append(b.Cohorts[:i], b.Cohorts[i+1:]...)
		b.dropCohortAudiences(name)
	case Presets:
		i := b.presetIndex(key)
		if i < 0 {
			return fmt.Errorf("%w: preset %q", ErrNotFound, key)
		}
		b.Presets = append(b.Presets[:i], b.Presets[i+1:]...)
	case Keywords:
		i := b.keywordIndex(key)
		if i < 0 {
			return fmt.Errorf("%w: keyword %q", ErrNotFound, key)
		}
		b.Keywords = append(b.Keywords[:i], b.Keywords[i+1:]...)
	case Locations:
		i, err := b.locationIndex(key)
		if err != nil {
			return err
		}
		b.Locations = append(b.Locations[:i], b.Locations[i+1:]...)
	case ABVRs:
		if !b.hasAudience(key) {
			return fmt.Errorf("%w: abvr %q", ErrNotFound, key)
		}
		b.ABVRs = withoutAudience(b.ABVRs, key)
		b.LeftABVRs = withoutAudience(b.LeftABVRs, key)
		for i := range b.CohortAudiences {
			b.CohortAudiences[i].Audiences = withoutAudience(b.CohortAudiences[i].Audiences, key)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return nil
}

// Toggle flips an item's checked state.
func (b *Brief) Toggle(c Collection, key string, style SelectionStyle) (Rerender, error) {
	cur, err := b.IsChecked(c, key)
	if err != nil {
		return Rerender{}, err
	}
	return b.SetChecked(c, key, !cur, style)
}

// IsChecked reports an item's checked state. For audiences the first
// occurrence decides.
func (b *Brief) IsChecked(c Collection, key string) (bool, error) {
	switch c {
	case Cohorts:
		if i := b.cohortIndex(key); i >= 0 {
			return b.Cohorts[i].Checked, nil
		}
	case Presets:
		if i := b.presetIndex(key); i >= 0 {
			return b.Presets[i].Checked, nil
		}
	case Keywords:
		if i := b.keywordIndex(key); i >= 0 {
			return b.Keywords[i].Checked, nil
		}
	case Locations:
		i, err := b.locationIndex(key)
		if err != nil {
			return false, err
		}
		return b.Locations[i].Checked, nil
	case ABVRs:
		var found, checked bool
		b.eachAudience(func(a *Audience) {
			if !found && a.ABVR == key {
				found, checked = true, a.Checked
			}
		})
		if found {
			return checked, nil
		}
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return false, fmt.Errorf("%w: %s %q", ErrNotFound, c, key)
}

// SetChecked sets an item's checked state. Unchecking a cohort unchecks
// its audiences in every pool; checking it again restores nothing.
func (b *Brief) SetChecked(c Collection, key string, checked bool, style SelectionStyle) (Rerender, error) {
	r := Rerender{Collection: c, Scope: ScopePanel, Key: key}
	switch c {
	case Cohorts:
		i := b.cohortIndex(key)
		if i < 0 {
			return r, fmt.Errorf("%w: cohort %q", ErrNotFound, key)
		}
		b.Cohorts[i].Checked = checked
		if !checked {
			b.cascadeCohort(b.Cohorts[i].Name)
			r.Also = []Collection{ABVRs}
		}
	case Presets:
		i := b.presetIndex(key)
		if i < 0 {
			return r, fmt.Errorf("%w: preset %q", ErrNotFound, key)
		}
		b.Presets[i].Checked = checked
		if style == StyleChip {
			r.Scope = ScopeItem
		}
	case Keywords:
		i := b.keywordIndex(key)
		if i < 0 {
			return r, fmt.Errorf("%w: keyword %q", ErrNotFound, key)
		}
		b.Keywords[i].Checked = checked
		if style == StyleChip {
			r.Scope = ScopeItem
		}
	case Locations:
		i, err := b.locationIndex(key)
		if err != nil {
			return r, err
		}
		b.Locations[i].Checked = checked
	case ABVRs:
		if !b.hasAudience(key) {
			return r, fmt.Errorf("%w: abvr %q", ErrNotFound, key)
		}
		b.setAudienceChecked(key, checked)
	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return r, nil
}

// SelectAll sets every item of a collection.
func (b *Brief) SelectAll(c Collection, checked bool) (Rerender, error) {
	r := Rerender{Collection: c, Scope: ScopePanel}
	switch c {
	case Cohorts:
		for i := range b.Cohorts {
			b.Cohorts[i].Checked = checked
			if !checked {
				b.cascadeCohort(b.Cohorts[i].Name)
			}
		}
		if !checked {
			r.Also = []Collection{ABVRs}
		}
	case Presets:
		for i := range b.Presets {
			b.Presets[i].Checked = checked
		}
	case Keywords:
		for i := range b.Keywords {
			b.Keywords[i].Checked = checked
		}
	case Locations:
		for i := range b.Locations {
			b.Locations[i].Checked = checked
		}
	case ABVRs:
		b.eachAudience(func(a *Audience) { a.Checked = checked })
	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return r, nil
}

// AllChecked is the select-all state: every item checked, true when empty.
func (b *Brief) AllChecked(c Collection) bool {
	all := true
	switch c {
	case Cohorts:
		for _, x := range b.Cohorts {
			all = all && x.Checked
		}
	case Presets:
		for _, x := range b.Presets {
			all = all && x.Checked
		}
	case Keywords:
		for _, x := range b.Keywords {
			all = all && x.Checked
		}
	case Locations:
		for _, x := range b.Locations {
			all = all && x.Checked
		}
	case ABVRs:
		b.eachAudience(func(a *Audience) { all = all && a.Checked })
	}
	return all
}

func (b *Brief) cascadeCohort(name string) {
	for i := range b.CohortAudiences {
		g := &b.CohortAudiences[i]
		if !strings.EqualFold(g.Cohort, name) {
			continue
		}
		for j := range g.Audiences {
			b.setAudienceChecked(g.Audiences[j].ABVR, false)
		}
	}
}

func (b *Brief) dropCohortAudiences(name string) {
	out := b.CohortAudiences[:0]
	for _, g := range b.CohortAudiences {
		if !strings.EqualFold(g.Cohort, name) {
			out = append(out, g)
		}
	}
	b.CohortAudiences = out
}

// eachAudience visits every audience occurrence: cohort groups, then the
// recommended pool, then the additional pool.
func (b *Brief) eachAudience(fn func(a *Audience)) {
	for i := range b.CohortAudiences {
		for j := range b.CohortAudiences[i].Audiences {
			fn(&b.CohortAudiences[i].Audiences[j])
		}
	}
	for i := range b.ABVRs {
		fn(&b.ABVRs[i])
	}
	for i := range b.LeftABVRs {
		fn(&b.LeftABVRs[i])
	}
}

func (b *Brief) hasAudience(code string) bool {
	found := false
	b.eachAudience(func(a *Audience) {
		if a.ABVR == code {
			found = true
		}
	})
	return found
}

func (b *Brief) setAudienceChecked(code string, checked bool) {
	b.eachAudience(func(a *Audience) {
		if a.ABVR == code {
			a.Checked = checked
		}
	})
}

func withoutAudience(list []Audience, code string) []Audience {
	out := list[:0]
	for _, a := range list {
		if a.ABVR != code {
			out = append(out, a)
		}
	}
	return out
}
