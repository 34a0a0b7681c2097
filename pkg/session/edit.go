package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/search"
)

var addedTitles = map[brief.Collection]string{
	brief.Cohorts:  "Cohort Added",
	brief.Presets:  "Preset Added",
	brief.Keywords: "Keyword Added",
}

// Add appends a cohort, preset or keyword. Cohorts also pull their
// audiences, so they go through the in-flight guard.
func (m *Manager) Add(ctx context.Context, id string, c brief.Collection, value string) (string, error) {
	if c == brief.Cohorts {
		return m.addCohort(ctx, id, value)
	}
	var stored string
	err := m.mutate(id, "Add Error", func(s *Session) error {
		var err error
		stored, err = s.brief.Add(s.catalog, c, value)
		if err != nil {
			return err
		}
		s.toast(ToastSuccess, addedTitles[c], fmt.Sprintf("Added %q to the selection.", stored))
		return nil
	})
	return stored, err
}

func (m *Manager) Remove(id string, c brief.Collection, key string) error {
	return m.mutate(id, "Remove Error", func(s *Session) error {
		return s.brief.Remove(c, key)
	})
}

func (m *Manager) Toggle(id string, c brief.Collection, key string) (brief.Rerender, error) {
	var r brief.Rerender
	err := m.mutate(id, "Selection Error", func(s *Session) error {
		var err error
		r, err = s.brief.Toggle(c, key, m.Style)
		return err
	})
	return r, err
}

func (m *Manager) SetChecked(id string, c brief.Collection, key string, checked bool) (brief.Rerender, error) {
	var r brief.Rerender
	err := m.mutate(id, "Selection Error", func(s *Session) error {
		var err error
		r, err = s.brief.SetChecked(c, key, checked, m.Style)
		return err
	})
	return r, err
}

func (m *Manager) SelectAll(id string, c brief.Collection, checked bool) (brief.Rerender, error) {
	var r brief.Rerender
	err := m.mutate(id, "Selection Error", func(s *Session) error {
		var err error
		r, err = s.brief.SelectAll(c, checked)
		return err
	})
	return r, err
}

// chipFor resolves a location or group name against the catalog.
func chipFor(cat *catalog.Catalog, name string, group bool) brief.Chip {
	name = strings.TrimSpace(name)
	if g, ok := cat.Group(name); ok && (group || !isLocation(cat, name)) {
		return brief.Chip{Name: g.Name, Group: true}
	}
	c := brief.Chip{Name: name}
	if ref, ok := cat.FindLocation(name); ok {
		c.ID = ref.ID
	}
	return c
}

func isLocation(cat *catalog.Catalog, name string) bool {
	_, ok := cat.FindLocation(name)
	return ok
}

func (m *Manager) AddIncludedLocation(id, name string, group bool) error {
	return m.mutate(id, "Invalid Selection", func(s *Session) error {
		return s.pending.AddIncluded(chipFor(s.catalog, name, group))
	})
}

func (m *Manager) AddExcludedLocation(id, name string) error {
	return m.mutate(id, "Invalid Selection", func(s *Session) error {
		return s.pending.AddExcluded(chipFor(s.catalog, name, false))
	})
}

func (m *Manager) RemoveIncludedLocation(id string, i int) error {
	return m.mutate(id, "Invalid Selection", func(s *Session) error {
		return s.pending.RemoveIncluded(i)
	})
}

func (m *Manager) RemoveExcludedLocation(id string, i int) error {
	return m.mutate(id, "Invalid Selection", func(s *Session) error {
		return s.pending.RemoveExcluded(i)
	})
}

func (m *Manager) SetLocationName(id, name string) error {
	return m.mutate(id, "Invalid Selection", func(s *Session) error {
		return s.pending.SetName(name)
	})
}

// CommitLocation adds the pending entry to the brief.
func (m *Manager) CommitLocation(id string) (brief.Location, error) {
	var loc brief.Location
	err := m.mutate(id, "Location Error", func(s *Session) error {
		var err error
		loc, err = s.brief.CommitLocation(s.catalog, &s.pending)
		if err != nil {
			return err
		}
		s.toast(ToastSuccess, "Location Added", "Location added successfully!")
		return nil
	})
	return loc, err
}

// SetTargetAge takes the text form ("18-65", "25+", "All").
func (m *Manager) SetTargetAge(id, value string) error {
	return m.mutate(id, "Invalid Age Range", func(s *Session) error {
		return s.brief.SetTargetAge(value)
	})
}

// SetTargetAgeBounds takes the min/max form.
func (m *Manager) SetTargetAgeBounds(id string, min, max int) error {
	return m.mutate(id, "Invalid Age Range", func(s *Session) error {
		return s.brief.SetTargetAgeBounds(min, max)
	})
}

// Setting names accepted by SetSetting.
const (
	SettingCreativeSize   = "creative_size"
	SettingDeviceCategory = "device_category"
	SettingTargetGender   = "target_gender"
	SettingDuration       = "duration"
)

func (m *Manager) SetSetting(id, name, value string) error {
	return m.mutate(id, "Invalid Setting", func(s *Session) error {
		switch name {
		case SettingCreativeSize:
			return s.brief.SetCreativeSize(value)
		case SettingDeviceCategory:
			return s.brief.SetDeviceCategory(value)
		case SettingTargetGender:
			return s.brief.SetTargetGender(value)
		case SettingDuration:
			fields := strings.Fields(value)
			if len(fields) == 0 {
				return invalid(brief.ErrInvalidSetting, "Invalid Setting", "Duration must be a number of days.")
			}
			days, err := strconv.Atoi(fields[0])
			if err != nil {
				return invalid(brief.ErrInvalidSetting, "Invalid Setting", "Duration must be a number of days.")
			}
			return s.brief.SetDuration(days)
		}
		return invalid(brief.ErrInvalidSetting, "Invalid Setting", "Unknown setting %q.", name)
	})
}

// Search filters the catalog for a search box and shows the results in its
// dropdown. Already selected entries are left out.
func (m *Manager) Search(id string, box search.Box, term string) ([]search.Option, error) {
	if box == search.ABVRBox {
		return nil, fmt.Errorf("audience search is remote, use SearchAudiences")
	}
	var out []search.Option
	err := m.mutate(id, "Search Error", func(s *Session) error {
		switch box {
		case search.CohortBox:
			var names []string
			for _, c := range s.brief.Cohorts {
				names = append(names, c.Name)
			}
			out = search.Filter(search.CohortOptions(s.catalog), term, search.NameSet(names...))
		case search.PresetBox:
			var keys []string
			for _, p := range s.brief.Presets {
				keys = append(keys, p.Key)
			}
			out = search.Filter(search.PresetOptions(s.catalog), term, search.NameSet(keys...))
		case search.IncludedLocationBox:
			out = search.Filter(search.LocationOptions(s.catalog, true), term, search.NameSet(chipNames(s.pending.Included)...))
		case search.ExcludedLocationBox:
			out = search.Filter(search.LocationOptions(s.catalog, false), term, search.NameSet(chipNames(s.pending.Excluded)...))
		default:
			return fmt.Errorf("unknown search box %q", box)
		}
		s.dropdowns[box].Show(term, out)
		return nil
	})
	return out, err
}

func chipNames(chips []brief.Chip) []string {
	out := make([]string, len(chips))
	for i, c := range chips {
		out[i] = c.Name
	}
	return out
}

// Press applies a navigation key to a dropdown. Enter commits the selection
// to the box's target: cohort and preset adds, pending location chips, or
// staged audiences.
func (m *Manager) Press(ctx context.Context, id string, box search.Box, key search.Key) (*search.Selection, error) {
	s, err := m.Store.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	d, ok := s.dropdowns[box]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("unknown search box %q", box)
	}
	sel, committed := d.Press(key)
	s.mu.Unlock()
	if !committed {
		return nil, nil
	}

	switch box {
	case search.CohortBox:
		_, err = m.Add(ctx, id, brief.Cohorts, sel.Option.Name)
	case search.PresetBox:
		_, err = m.Add(ctx, id, brief.Presets, sel.Option.Name)
	case search.IncludedLocationBox:
		err = m.AddIncludedLocation(id, sel.Option.Name, sel.Option.Group)
	case search.ExcludedLocationBox:
		err = m.AddExcludedLocation(id, sel.Option.Name)
	case search.ABVRBox:
		err = m.Stage(id, sel.Option.Name)
	}
	return &sel, err
}

// Stage adds comma separated audience codes to the staged chips.
func (m *Manager) Stage(id, codes string) error {
	return m.mutate(id, "ABVR Error", func(s *Session) error {
		list := utils.SplitCSV(codes)
		if len(list) == 0 {
			return invalid(brief.ErrEmpty, "Missing ABVRs", "Please enter ABVRs to add (comma-separated).")
		}
		s.staged = utils.Dedupe(append(s.staged, list...))
		return nil
	})
}

func (m *Manager) Unstage(id, code string) error {
	return m.mutate(id, "ABVR Error", func(s *Session) error {
		for i, c := range s.staged {
			if c == code {
				s.staged = append(s.staged[:i], s.staged[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: staged abvr %q", brief.ErrNotFound, code)
	})
}

// RemoveNotFound drops a name from the locations-not-found list.
func (m *Manager) RemoveNotFound(id, name string) error {
	return m.mutate(id, "Location Error", func(s *Session) error {
		if !s.brief.RemoveNotFound(name) {
			return fmt.Errorf("%w: location %q", brief.ErrNotFound, name)
		}
		return nil
	})
}
