package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/search"
	"github.com/briefdesk/briefedit/pkg/storage"
)

// guard runs the in-flight bookkeeping of a request-backed action.
func (m *Manager) guard(id string, a Action) (*Session, func(), error) {
	s, err := m.Store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.begin(a); err != nil {
		return nil, nil, err
	}
	return s, func() { s.end(a) }, nil
}

func (m *Manager) addCohort(ctx context.Context, id, value string) (string, error) {
	s, done, err := m.guard(id, ActionAddCohort)
	if err != nil {
		return "", err
	}
	defer done()

	s.mu.Lock()
	name, err := s.brief.ResolveCohort(s.catalog, value)
	if err != nil {
		s.fail("Cohort Error", err)
		s.mu.Unlock()
		return "", err
	}
	codes := s.catalog.CohortCodes(name)
	keywords := s.brief.CheckedKeywords()
	s.mu.Unlock()

	var auds []brief.Audience
	if len(codes) > 0 && m.Audience != nil {
		auds, err = m.Audience.Info(ctx, codes)
	} else {
		auds, err = m.Backend.AddCohort(ctx, []string{name}, keywords)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		m.log().Warnf("Fetching audiences for cohort %q failed: %v", name, err)
		s.fail("Cohort Error", err)
		return "", err
	}
	if name, err = s.brief.AddCohort(s.catalog, name); err != nil {
		s.fail("Cohort Error", err)
		return "", err
	}
	s.brief.SetCohortAudiences(name, auds)
	s.toast(ToastSuccess, "Cohort Added", fmt.Sprintf("Added %q to the selection.", name))
	return name, nil
}

// CommitStaged fetches the staged audiences plus any extra comma separated
// codes and merges them into the brief.
func (m *Manager) CommitStaged(ctx context.Context, id, extra string) (brief.BatchResult, error) {
	s, done, err := m.guard(id, ActionAddABVRs)
	if err != nil {
		return brief.BatchResult{}, err
	}
	defer done()

	s.mu.Lock()
	codes := utils.Dedupe(append(append([]string(nil), s.staged...), utils.SplitCSV(extra)...))
	if len(codes) == 0 {
		err := invalid(brief.ErrEmpty, "Missing ABVRs", "Please enter ABVRs to add (comma-separated).")
		s.fail("ABVR Error", err)
		s.mu.Unlock()
		return brief.BatchResult{}, err
	}
	s.mu.Unlock()

	auds, err := m.Backend.AudiencesByCodes(ctx, codes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail("ABVR Error", err)
		return brief.BatchResult{}, err
	}
	res := s.brief.MergeAudiences(auds)
	s.staged = nil
	if len(res.Added) > 0 {
		s.toast(ToastSuccess, "ABVRs Added", fmt.Sprintf("Added %d new audience segment(s) to the selection.", len(res.Added)))
	} else {
		s.toast(ToastSuccess, "No New ABVRs", "All ABVRs are already in the selection.")
	}
	return res, nil
}

// SearchAudiences queries audiences by name after the debounce period. A
// query overtaken by a newer one returns search.ErrSuperseded and leaves the
// dropdown alone.
func (m *Manager) SearchAudiences(ctx context.Context, id, term string) ([]brief.Audience, error) {
	s, err := m.Store.Get(id)
	if err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	s.mu.Lock()
	keywords := s.brief.CheckedKeywords()
	if term == "" {
		s.dropdowns[search.ABVRBox].Show("", nil)
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	var auds []brief.Audience
	err = s.debounce.Do(ctx, func(ctx context.Context) error {
		var err error
		auds, err = m.Backend.AudiencesByName(ctx, term, keywords)
		return err
	})
	if errors.Is(err, search.ErrSuperseded) {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail("ABVR Error", err)
		return nil, err
	}
	selected := search.NameSet(append(s.brief.AudienceCodes(), s.staged...)...)
	opts := make([]search.Option, 0, len(auds))
	for _, a := range auds {
		opt := search.Option{Name: a.ABVR, Label: a.Name}
		if selected(opt) {
			continue
		}
		opts = append(opts, opt)
	}
	s.dropdowns[search.ABVRBox].Show(term, opts)
	return auds, nil
}

// RefreshABVRs replaces keywords and audience pools with the backend's
// suggestions for the checked keywords.
func (m *Manager) RefreshABVRs(ctx context.Context, id string) error {
	s, done, err := m.guard(id, ActionRefreshABVRs)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	keywords := s.brief.CheckedKeywords()
	cohorts := s.brief.CheckedCohorts()
	if len(keywords) == 0 {
		err := invalid(brief.ErrMissingSelection, "Missing Keywords", "Please select at least one keyword to get ABVRs.")
		s.fail("ABVR Error", err)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	ka, err := m.Backend.ABVRsFromKeywords(ctx, keywords, cohorts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail("ABVR Error", err)
		return err
	}
	s.brief.ReplaceFromKeywords(ka)
	s.toast(ToastSuccess, "ABVRs Updated", fmt.Sprintf("Updated ABVRs based on %d selected keywords.", len(keywords)))
	return nil
}

// Forecast requests a forecast for the checked selections and keeps the
// result on the session.
func (m *Manager) Forecast(ctx context.Context, id string) (*brief.Forecast, error) {
	s, done, err := m.guard(id, ActionForecast)
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.Lock()
	req, err := s.brief.ForecastRequest()
	if err != nil {
		s.fail("Forecast Error", err)
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	f, raw, err := m.Backend.Forecast(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.fail("Forecast Error", err)
		s.mu.Unlock()
		return nil, err
	}
	s.forecast = f
	s.presentation = nil
	s.mu.Unlock()

	m.record(ctx, s.ID, req, raw, f)
	return f, nil
}

func (m *Manager) record(ctx context.Context, sessionID string, req *brief.ForecastRequest, raw string, f *brief.Forecast) {
	if m.History == nil {
		return
	}
	body, err := json.Marshal(req)
	if err != nil {
		m.log().Warnf("Could not encode forecast request: %v", err)
		return
	}
	geos := 0
	for _, p := range f.Presets {
		geos += len(p.Rows)
	}
	if _, err := m.History.RecordForecast(ctx, storage.ForecastRun{
		SessionID: sessionID,
		Request:   string(body),
		Result:    raw,
		Presets:   len(f.Presets),
		Geos:      geos,
	}); err != nil {
		m.log().Warnf("Could not record forecast run: %v", err)
	}
}

// ForecastHistory lists the recorded forecast runs of a session.
func (m *Manager) ForecastHistory(ctx context.Context, id string, limit int) ([]storage.ForecastRun, error) {
	if _, err := m.Store.Get(id); err != nil {
		return nil, err
	}
	if m.History == nil {
		return nil, nil
	}
	return m.History.ListForecastRuns(ctx, storage.ListOptions{SessionID: id, Limit: limit})
}

// Presentation asks for a slide deck built from the last forecast.
func (m *Manager) Presentation(ctx context.Context, id string) (*brief.Presentation, error) {
	s, done, err := m.guard(id, ActionPresentation)
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.Lock()
	req, err := s.brief.PresentationRequest(s.catalog, s.forecast, s.subject, s.body)
	if err != nil {
		s.fail("Presentation Error", err)
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	p, err := m.Presenter.Generate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail("Presentation Error", err)
		return nil, err
	}
	s.presentation = p
	msg := p.Message
	if msg == "" {
		msg = "Presentation has been created successfully!"
	}
	s.toast(ToastSuccess, "Presentation Created", msg)
	switch {
	case p.URL != "" && p.Trusted:
		s.toast(ToastInfo, "Google Slides Ready", "Your presentation is ready! Click the link above to view it.")
	case p.URL != "":
		m.log().Warnf("Presentation link %q is not on an allowed domain", p.URL)
		s.toast(ToastInfo, "Presentation Status", "Presentation created but the link points to an unexpected site.")
	default:
		s.toast(ToastInfo, "Presentation Status", "Presentation created but no link provided.")
	}
	return p, nil
}

// LookupLocations searches the location service.
func (m *Manager) LookupLocations(ctx context.Context, id, term string) ([]catalog.LocationRef, error) {
	if _, err := m.Store.Get(id); err != nil {
		return nil, err
	}
	return m.Locations.Lookup(ctx, term)
}

// SaveLocation persists a single location, adds it to the catalog and to
// the brief, and drops it from the not-found list.
func (m *Manager) SaveLocation(ctx context.Context, id string, ref catalog.LocationRef) error {
	s, done, err := m.guard(id, ActionSaveLocation)
	if err != nil {
		return err
	}
	defer done()

	ref.Name = strings.TrimSpace(ref.Name)
	if ref.Name == "" {
		return m.rejectSave(s, invalid(brief.ErrEmpty, "Missing Data", "Please select a location to save."))
	}
	if ref.ID == 0 {
		return m.rejectSave(s, invalid(brief.ErrNotInCatalog, "Invalid Data", "Selected location is missing required data (id or name)."))
	}

	if err := m.Locations.SaveLocation(ctx, ref); err != nil {
		return m.rejectSave(s, err)
	}
	if m.Catalog != nil {
		m.Catalog.Update(func(c *catalog.Catalog) { c.AddLocation(ref) })
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog.AddLocation(ref)
	s.brief.AddSavedLocation(ref)
	s.toast(ToastSuccess, "Single Location Added", fmt.Sprintf("Successfully added %q to the database and selection.", ref.Name))
	return nil
}

// SaveLocationGroup persists a location group, merges the groups the
// service echoes into the catalog and adds the new group to the brief.
func (m *Manager) SaveLocationGroup(ctx context.Context, id, name string, included, excluded []catalog.LocationRef) error {
	s, done, err := m.guard(id, ActionSaveGroup)
	if err != nil {
		return err
	}
	defer done()

	name = strings.TrimSpace(name)
	switch {
	case len(included) == 0:
		return m.rejectSave(s, invalid(brief.ErrEmpty, "Missing Data", "Please select at least one included location."))
	case name == "":
		return m.rejectSave(s, invalid(brief.ErrEmpty, "Missing Data", "Please enter a name as ID."))
	case strings.EqualFold(name, brief.ReservedLocationName):
		return m.rejectSave(s, invalid(brief.ErrReservedName, "Invalid Name", "%q is reserved and cannot be used as a name.", brief.ReservedLocationName))
	}

	s.mu.Lock()
	included, errIn := resolveRefs(s.catalog, included)
	excluded, errEx := resolveRefs(s.catalog, excluded)
	s.mu.Unlock()
	if err := errors.Join(errIn, errEx); err != nil {
		return m.rejectSave(s, invalid(brief.ErrNotInCatalog, "Invalid Data", "%v", err))
	}

	groups, err := m.Locations.SaveGroup(ctx, name, included, excluded)
	if err != nil {
		return m.rejectSave(s, err)
	}
	saved := catalog.LocationGroup{Name: name, IncludedLocations: included, ExcludedLocations: excluded}
	for _, g := range groups {
		if g.Name == name {
			saved = g
		}
	}
	if len(groups) == 0 {
		groups = []catalog.LocationGroup{saved}
	}
	if m.Catalog != nil {
		m.Catalog.Update(func(c *catalog.Catalog) {
			for _, g := range groups {
				c.AddGroup(g)
			}
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		s.catalog.AddGroup(g)
	}
	s.brief.AddSavedGroup(saved)
	s.toast(ToastSuccess, "Location Group Added", fmt.Sprintf("Successfully added %q as a location group to the database and selection.", name))
	return nil
}

func (m *Manager) rejectSave(s *Session, err error) error {
	s.mu.Lock()
	s.fail("Save Error", err)
	s.mu.Unlock()
	return err
}

// resolveRefs fills missing IDs from the catalog.
func resolveRefs(cat *catalog.Catalog, refs []catalog.LocationRef) ([]catalog.LocationRef, error) {
	out := make([]catalog.LocationRef, 0, len(refs))
	var errs []error
	for _, r := range refs {
		if r.ID == 0 {
			found, ok := cat.FindLocation(r.Name)
			if !ok {
				errs = append(errs, fmt.Errorf("location %q has no id", r.Name))
				continue
			}
			r = found
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}
