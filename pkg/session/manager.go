package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/storage"
)

// Backend is the email/forecast backend.
type Backend interface {
	ProcessEmail(ctx context.Context, email brief.Email) (*brief.Brief, error)
	AddCohort(ctx context.Context, cohorts, keywords []string) ([]brief.Audience, error)
	ABVRsFromKeywords(ctx context.Context, keywords, cohorts []string) (brief.KeywordAudiences, error)
	AudiencesByCodes(ctx context.Context, codes []string) ([]brief.Audience, error)
	AudiencesByName(ctx context.Context, name string, keywords []string) ([]brief.Audience, error)
	Forecast(ctx context.Context, req *brief.ForecastRequest) (*brief.Forecast, string, error)
}

// AudienceInfo resolves audience codes to their details.
type AudienceInfo interface {
	Info(ctx context.Context, codes []string) ([]brief.Audience, error)
}

// LocationService looks up and persists locations and location groups.
type LocationService interface {
	Lookup(ctx context.Context, term string) ([]catalog.LocationRef, error)
	SaveLocation(ctx context.Context, loc catalog.LocationRef) error
	SaveGroup(ctx context.Context, name string, included, excluded []catalog.LocationRef) ([]catalog.LocationGroup, error)
}

// Presenter generates slide decks.
type Presenter interface {
	Generate(ctx context.Context, req *brief.PresentationRequest) (*brief.Presentation, error)
}

// CatalogSource is satisfied by *catalog.Loader.
type CatalogSource interface {
	Get(ctx context.Context) (*catalog.Catalog, error)
	Update(fn func(c *catalog.Catalog))
}

// History records forecast runs. *storage.DB satisfies it.
type History interface {
	RecordForecast(ctx context.Context, run storage.ForecastRun) (int64, error)
	ListForecastRuns(ctx context.Context, opts storage.ListOptions) ([]storage.ForecastRun, error)
}

// Logger abstracts logging so callers can plug logrus in.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Manager runs the editor operations against the session store.
type Manager struct {
	Store     *Store
	Backend   Backend
	Audience  AudienceInfo
	Locations LocationService
	Presenter Presenter
	Catalog   CatalogSource
	History   History // optional

	Style   brief.SelectionStyle
	AgeMode brief.AgeMode
	Log     Logger
}

func (m *Manager) log() Logger {
	if m.Log == nil {
		return nopLogger{}
	}
	return m.Log
}

func invalid(err error, title, format string, args ...interface{}) error {
	return &brief.ValidationError{Title: title, Message: fmt.Sprintf(format, args...), Err: err}
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	return m.Store.Get(id)
}

// State returns a render-ready copy of a session.
func (m *Manager) State(id string) (State, error) {
	s, err := m.Store.Get(id)
	if err != nil {
		return State{}, err
	}
	return s.Snapshot(m.Style, m.AgeMode), nil
}

// catalog returns the current catalog, degraded or not.
func (m *Manager) catalog(ctx context.Context) *catalog.Catalog {
	if m.Catalog == nil {
		return &catalog.Catalog{Presets: catalog.DefaultPresets, Groups: map[string]catalog.LocationGroup{}}
	}
	cat, err := m.Catalog.Get(ctx)
	if err != nil {
		m.log().Warnf("Catalog is degraded: %v", err)
	}
	if cat == nil {
		cat = &catalog.Catalog{Presets: catalog.DefaultPresets, Groups: map[string]catalog.LocationGroup{}}
	}
	return cat
}

// Process sends an email to the backend and opens a session on the brief
// it returns.
func (m *Manager) Process(ctx context.Context, email brief.Email) (*Session, error) {
	if strings.TrimSpace(email.Subject) == "" && strings.TrimSpace(email.Body) == "" && len(email.Files) == 0 {
		return nil, invalid(brief.ErrEmpty, "Missing Email", "Please enter an email subject, body or attachment.")
	}
	b, err := m.Backend.ProcessEmail(ctx, email)
	if err != nil {
		m.log().Warnf("Processing email failed: %v", err)
		return nil, err
	}
	cat := m.catalog(ctx)
	hydrateErr := m.hydrateCohortAudiences(ctx, b, cat)

	s := m.Store.Create(b, cat)
	s.mu.Lock()
	s.subject = email.Subject
	s.body = email.Body
	s.toast(ToastSuccess, "Email Processed", fmt.Sprintf("Found %d cohorts, %d locations and %d keywords.", len(b.Cohorts), len(b.Locations), len(b.Keywords)))
	if hydrateErr != nil {
		s.fail("ABVR Error", hydrateErr)
	}
	s.mu.Unlock()

	m.log().Infof("Session %s opened for %q", s.ID, email.Subject)
	return s, nil
}

// hydrateCohortAudiences fills the cohort section. A brief that already has
// cohort audiences only gets them attributed to cohorts; otherwise the
// catalog codes of each cohort are resolved.
func (m *Manager) hydrateCohortAudiences(ctx context.Context, b *brief.Brief, cat *catalog.Catalog) error {
	if len(b.CohortAudiences) > 0 {
		b.AttributeCohortAudiences(cat)
		return nil
	}
	var all []string
	seen := map[string]struct{}{}
	for _, c := range b.Cohorts {
		for _, code := range cat.CohortCodes(c.Name) {
			if _, ok := seen[code]; !ok {
				seen[code] = struct{}{}
				all = append(all, code)
			}
		}
	}
	if len(all) == 0 || m.Audience == nil {
		return nil
	}
	auds, err := m.Audience.Info(ctx, all)
	if err != nil {
		m.log().Warnf("Could not resolve cohort audiences: %v", err)
		return err
	}
	byCode := make(map[string]brief.Audience, len(auds))
	for _, a := range auds {
		byCode[a.ABVR] = a
	}
	for _, c := range b.Cohorts {
		var group []brief.Audience
		for _, code := range cat.CohortCodes(c.Name) {
			if a, ok := byCode[code]; ok {
				group = append(group, a)
			}
		}
		if len(group) > 0 {
			b.SetCohortAudiences(c.Name, group)
		}
	}
	return nil
}

// mutate runs fn on a session under its lock. Errors become toasts.
func (m *Manager) mutate(id, title string, fn func(s *Session) error) error {
	s, err := m.Store.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s); err != nil {
		s.fail(title, err)
		return err
	}
	return nil
}

// Toasts returns and clears the pending notifications.
func (m *Manager) Toasts(id string) ([]Toast, error) {
	s, err := m.Store.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.toasts
	s.toasts = nil
	return out, nil
}
