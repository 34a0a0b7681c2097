package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/search"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBrief = `{
  "cohort": ["Auto Intenders"],
  "locations": [{"includedLocations": [{"name": "Mumbai,IN,city", "id": 1}], "excludedLocations": [], "nameAsId": "Mumbai"}],
  "preset": ["TIL_All_Cluster_RNF"],
  "keywords": ["cars"],
  "abvrs": [{"abvr": "sf6", "name": "Agriculture"}],
  "left_abvrs": [{"abvr": "rcs", "name": "Cooking"}],
  "target_age": "18-65",
  "duration": "30 Days",
  "locations_not_found": ["Goa"]
}`

type fakeBackend struct {
	mu            sync.Mutex
	brief         string
	forecastBody  string
	forecastErr   error
	forecastGate  chan struct{}
	forecastCalls int
	addCohort     []brief.Audience
	addCohortArgs []string
	byCodes       []brief.Audience
	byName        map[string][]brief.Audience
	keywordAuds   brief.KeywordAudiences
}

func (f *fakeBackend) ProcessEmail(ctx context.Context, email brief.Email) (*brief.Brief, error) {
	return brief.Parse([]byte(f.brief))
}

func (f *fakeBackend) AddCohort(ctx context.Context, cohorts, keywords []string) ([]brief.Audience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCohortArgs = append(f.addCohortArgs, cohorts...)
	return f.addCohort, nil
}

func (f *fakeBackend) ABVRsFromKeywords(ctx context.Context, keywords, cohorts []string) (brief.KeywordAudiences, error) {
	return f.keywordAuds, nil
}

func (f *fakeBackend) AudiencesByCodes(ctx context.Context, codes []string) ([]brief.Audience, error) {
	return f.byCodes, nil
}

func (f *fakeBackend) AudiencesByName(ctx context.Context, name string, keywords []string) ([]brief.Audience, error) {
	return f.byName[name], nil
}

func (f *fakeBackend) Forecast(ctx context.Context, req *brief.ForecastRequest) (*brief.Forecast, string, error) {
	f.mu.Lock()
	f.forecastCalls++
	gate := f.forecastGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.forecastErr != nil {
		return nil, "", f.forecastErr
	}
	fc, err := brief.ParseForecast(f.forecastBody)
	return fc, f.forecastBody, err
}

type fakeAudience struct {
	auds   map[string]brief.Audience
	err    error
	during func()
}

func (f *fakeAudience) Info(ctx context.Context, codes []string) ([]brief.Audience, error) {
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []brief.Audience
	for _, c := range codes {
		if a, ok := f.auds[c]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeLocations struct {
	saved  []catalog.LocationRef
	groups []string
}

func (f *fakeLocations) Lookup(ctx context.Context, term string) ([]catalog.LocationRef, error) {
	return []catalog.LocationRef{{Name: term + ",IN,city", ID: 99}}, nil
}

func (f *fakeLocations) SaveLocation(ctx context.Context, loc catalog.LocationRef) error {
	f.saved = append(f.saved, loc)
	return nil
}

func (f *fakeLocations) SaveGroup(ctx context.Context, name string, included, excluded []catalog.LocationRef) ([]catalog.LocationGroup, error) {
	f.groups = append(f.groups, name)
	return []catalog.LocationGroup{{Name: name, IncludedLocations: included, ExcludedLocations: excluded}}, nil
}

type fakePresenter struct {
	got *brief.PresentationRequest
}

func (f *fakePresenter) Generate(ctx context.Context, req *brief.PresentationRequest) (*brief.Presentation, error) {
	f.got = req
	return &brief.Presentation{Status: "success", URL: "https://docs.google.com/x", Trusted: true}, nil
}

type fakeCatalog struct {
	mu  sync.Mutex
	cat *catalog.Catalog
}

func (f *fakeCatalog) Get(ctx context.Context) (*catalog.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cat.Clone(), nil
}

func (f *fakeCatalog) Update(fn func(c *catalog.Catalog)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.cat)
}

type fakeHistory struct {
	mu   sync.Mutex
	runs []storage.ForecastRun
}

func (f *fakeHistory) RecordForecast(ctx context.Context, run storage.ForecastRun) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return int64(len(f.runs)), nil
}

func (f *fakeHistory) ListForecastRuns(ctx context.Context, opts storage.ListOptions) ([]storage.ForecastRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.ForecastRun(nil), f.runs...), nil
}

type fixture struct {
	m         *Manager
	backend   *fakeBackend
	audience  *fakeAudience
	locations *fakeLocations
	presenter *fakePresenter
	catalog   *fakeCatalog
	history   *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: &fakeBackend{
			brief:        testBrief,
			forecastBody: `{"TIL_All_Cluster_RNF": {"Mumbai": {"user": 1.5, "impr": 3.25}}}`,
		},
		audience: &fakeAudience{auds: map[string]brief.Audience{
			"au1": {ABVR: "au1", Name: "Car buyers"},
			"au2": {ABVR: "au2", Name: "Bike buyers"},
			"tr1": {ABVR: "tr1", Name: "Flyers"},
		}},
		locations: &fakeLocations{},
		presenter: &fakePresenter{},
		catalog: &fakeCatalog{cat: &catalog.Catalog{
			Cohorts: []catalog.CohortInfo{
				{Name: "Auto Intenders", ABVRs: []string{"au1", "au2"}},
				{Name: "Travellers", ABVRs: []string{"tr1"}},
				{Name: "Gamers"},
			},
			Locations: []catalog.LocationRef{{Name: "Mumbai,IN,city", ID: 1}, {Name: "Delhi,IN,city", ID: 2}},
			Groups: map[string]catalog.LocationGroup{
				"Metros": {Name: "Metros", IncludedLocations: []catalog.LocationRef{{Name: "Mumbai,IN,city", ID: 1}, {Name: "Delhi,IN,city", ID: 2}}},
			},
			Presets: catalog.DefaultPresets,
		}},
		history: &fakeHistory{},
	}
	store := NewStore(time.Hour)
	store.Debounce = 30 * time.Millisecond
	f.m = &Manager{
		Store:     store,
		Backend:   f.backend,
		Audience:  f.audience,
		Locations: f.locations,
		Presenter: f.presenter,
		Catalog:   f.catalog,
		History:   f.history,
		Style:     brief.StyleCheckbox,
		AgeMode:   brief.AgeText,
	}
	return f
}

func (f *fixture) open(t *testing.T) string {
	t.Helper()
	s, err := f.m.Process(context.Background(), brief.Email{Subject: "Plan", Body: "Run cars campaign"})
	require.NoError(t, err)
	return s.ID
}

func (f *fixture) state(t *testing.T, id string) State {
	t.Helper()
	st, err := f.m.State(id)
	require.NoError(t, err)
	return st
}

func lastToast(st State) Toast {
	if len(st.Toasts) == 0 {
		return Toast{}
	}
	return st.Toasts[len(st.Toasts)-1]
}

func TestProcessHydratesCohortAudiences(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	st := f.state(t, id)
	require.Len(t, st.Brief.CohortAudiences, 1)
	g := st.Brief.CohortAudiences[0]
	assert.Equal(t, "Auto Intenders", g.Cohort)
	require.Len(t, g.Audiences, 2)
	assert.True(t, g.Audiences[0].Checked)
	assert.Equal(t, "Plan", st.Subject)
	assert.Equal(t, "Email Processed", lastToast(st).Title)
}

func TestProcessRejectsEmptyEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Process(context.Background(), brief.Email{Subject: " "})
	var ve *brief.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, f.m.Store.Len())
}

func TestAddCohortFetchesCatalogCodes(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	name, err := f.m.Add(context.Background(), id, brief.Cohorts, "travellers")
	require.NoError(t, err)
	assert.Equal(t, "Travellers", name)

	st := f.state(t, id)
	require.Len(t, st.Brief.CohortAudiences, 2)
	assert.Equal(t, "tr1", st.Brief.CohortAudiences[1].Audiences[0].ABVR)
	assert.Empty(t, f.backend.addCohortArgs)
}

func TestAddCohortWithoutCodesAsksBackend(t *testing.T) {
	f := newFixture(t)
	f.backend.addCohort = []brief.Audience{{ABVR: "gm1", Name: "Console"}}
	id := f.open(t)

	_, err := f.m.Add(context.Background(), id, brief.Cohorts, "Gamers")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gamers"}, f.backend.addCohortArgs)
	st := f.state(t, id)
	assert.Equal(t, "gm1", st.Brief.CohortAudiences[1].Audiences[0].ABVR)
}

func TestAddCohortUpstreamFailureLeavesBriefUnchanged(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	f.audience.err = &services.HTTPError{Service: "audience", Op: "getAudienceInfo", StatusCode: 503, Detail: "down"}

	_, err := f.m.Add(context.Background(), id, brief.Cohorts, "Travellers")
	require.ErrorIs(t, err, services.ErrUpstream)

	st := f.state(t, id)
	require.Len(t, st.Brief.Cohorts, 1)
	toast := lastToast(st)
	assert.Equal(t, ToastError, toast.Kind)
	assert.Equal(t, "Cohort Error", toast.Title)
	assert.Equal(t, "down", toast.Message)
}

func TestAddCohortAddsOnlyAfterFetch(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	var during []brief.Cohort
	f.audience.during = func() {
		st, err := f.m.State(id)
		if err == nil {
			during = st.Brief.Cohorts
		}
	}

	_, err := f.m.Add(context.Background(), id, brief.Cohorts, "Travellers")
	require.NoError(t, err)
	assert.Len(t, during, 1)

	st := f.state(t, id)
	require.Len(t, st.Brief.Cohorts, 2)
	assert.Equal(t, "Travellers", st.Brief.Cohorts[1].Name)

	_, err = f.m.Add(context.Background(), id, brief.Cohorts, "travellers")
	assert.ErrorIs(t, err, brief.ErrDuplicate)
}

func TestAddUnknownCohortIsValidationError(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	_, err := f.m.Add(context.Background(), id, brief.Cohorts, "Nope")
	assert.ErrorIs(t, err, brief.ErrNotInCatalog)
	assert.Equal(t, "Cohort Not Found", lastToast(f.state(t, id)).Title)
}

func TestForecastGuardAndHistory(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	gate := make(chan struct{})
	f.backend.forecastGate = gate

	done := make(chan error, 1)
	go func() {
		_, err := f.m.Forecast(context.Background(), id)
		done <- err
	}()
	require.Eventually(t, func() bool {
		st, err := f.m.State(id)
		return err == nil && st.InFlight[ActionForecast] == "Getting Forecast..."
	}, time.Second, 5*time.Millisecond)

	_, err := f.m.Forecast(context.Background(), id)
	assert.ErrorIs(t, err, ErrActionInFlight)

	// a different action is not blocked
	_, err = f.m.Presentation(context.Background(), id)
	assert.ErrorIs(t, err, brief.ErrNoForecast)

	close(gate)
	require.NoError(t, <-done)

	st := f.state(t, id)
	assert.Empty(t, st.InFlight)
	require.NotNil(t, st.Forecast)
	assert.Equal(t, 1.5, st.Forecast.Presets[0].Rows[0].User)

	runs, err := f.m.ForecastHistory(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].SessionID)
	assert.Equal(t, 1, runs[0].Geos)
}

func TestForecastBlockedWithoutKeywords(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	_, err := f.m.SelectAll(id, brief.Keywords, false)
	require.NoError(t, err)

	_, err = f.m.Forecast(context.Background(), id)
	assert.ErrorIs(t, err, brief.ErrMissingSelection)
	assert.Equal(t, 0, f.backend.forecastCalls)
	assert.Equal(t, "Missing Keywords", lastToast(f.state(t, id)).Title)
}

func TestForecastUpstreamError(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	f.backend.forecastErr = &services.HTTPError{Service: "backend", Op: "get-forecast", StatusCode: 500, Detail: "engine down"}

	_, err := f.m.Forecast(context.Background(), id)
	require.Error(t, err)
	st := f.state(t, id)
	assert.Nil(t, st.Forecast)
	assert.Equal(t, "engine down", lastToast(st).Message)
	assert.Empty(t, f.history.runs)
}

func TestPresentationAfterForecast(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	_, err := f.m.Forecast(context.Background(), id)
	require.NoError(t, err)

	p, err := f.m.Presentation(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, p.Trusted)
	assert.Equal(t, "TIL", f.presenter.got.ForecastData.Presets[0].Preset)
	assert.Equal(t, "Plan", f.presenter.got.EmailSubject)
	assert.Equal(t, "Google Slides Ready", lastToast(f.state(t, id)).Title)
}

func TestCommitStagedPartitions(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	f.backend.byCodes = []brief.Audience{{ABVR: "sf6", Name: "Agriculture"}, {ABVR: "new1", Name: "New"}}

	require.NoError(t, f.m.Stage(id, "sf6, new1"))
	require.NoError(t, f.m.Stage(id, "new1"))
	assert.Equal(t, []string{"sf6", "new1"}, f.state(t, id).Staged)

	res, err := f.m.CommitStaged(context.Background(), id, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"new1"}, res.Added)
	assert.Equal(t, []string{"sf6"}, res.AlreadyPresent)

	st := f.state(t, id)
	assert.Empty(t, st.Staged)
	assert.Equal(t, "ABVRs Added", lastToast(st).Title)

	_, err = f.m.CommitStaged(context.Background(), id, " ")
	assert.ErrorIs(t, err, brief.ErrEmpty)
}

func TestSearchAudiencesKeepsLatest(t *testing.T) {
	f := newFixture(t)
	f.backend.byName = map[string][]brief.Audience{
		"car":  {{ABVR: "c1", Name: "Car"}},
		"cars": {{ABVR: "c2", Name: "Cars"}},
	}
	id := f.open(t)

	first := make(chan error, 1)
	go func() {
		_, err := f.m.SearchAudiences(context.Background(), id, "car")
		first <- err
	}()
	time.Sleep(5 * time.Millisecond)
	auds, err := f.m.SearchAudiences(context.Background(), id, "cars")
	require.NoError(t, err)
	assert.Equal(t, "c2", auds[0].ABVR)
	assert.ErrorIs(t, <-first, search.ErrSuperseded)

	d := f.state(t, id).Dropdowns[search.ABVRBox]
	assert.Equal(t, "cars", d.Term)
	assert.Equal(t, []search.Option{{Name: "c2", Label: "Cars"}}, d.Results)
}

func TestSearchAudiencesHidesSelectedCodes(t *testing.T) {
	f := newFixture(t)
	f.backend.byName = map[string][]brief.Audience{
		"a": {
			{ABVR: "SF6", Name: "Agriculture"},
			{ABVR: "rcs", Name: "Cooking"},
			{ABVR: "au1", Name: "Car buyers"},
			{ABVR: "st1", Name: "Staged"},
			{ABVR: "nw1", Name: "New"},
		},
	}
	id := f.open(t)
	require.NoError(t, f.m.Stage(id, "st1"))

	auds, err := f.m.SearchAudiences(context.Background(), id, "a")
	require.NoError(t, err)
	assert.Len(t, auds, 5)

	d := f.state(t, id).Dropdowns[search.ABVRBox]
	assert.Equal(t, []search.Option{{Name: "nw1", Label: "New"}}, d.Results)
}

func TestSearchAndPressAddsPreset(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	results, err := f.m.Search(id, search.PresetBox, "nbt")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	sel, err := f.m.Press(context.Background(), id, search.PresetBox, search.ArrowDown)
	require.NoError(t, err)
	assert.Nil(t, sel)
	sel, err = f.m.Press(context.Background(), id, search.PresetBox, search.Enter)
	require.NoError(t, err)
	require.NotNil(t, sel)

	st := f.state(t, id)
	assert.Equal(t, sel.Option.Name, st.Brief.Presets[len(st.Brief.Presets)-1].Key)
	assert.False(t, st.Dropdowns[search.PresetBox].Open)
}

func TestPendingGroupCommit(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	require.NoError(t, f.m.AddIncludedLocation(id, "Metros", true))
	err := f.m.AddExcludedLocation(id, "Delhi,IN,city")
	require.Error(t, err)
	assert.True(t, f.state(t, id).Pending.NameLocked)

	loc, err := f.m.CommitLocation(id)
	require.NoError(t, err)
	assert.Equal(t, "Metros", loc.NameAsID)
	assert.Len(t, loc.IncludedLocations, 2)
	st := f.state(t, id)
	assert.Empty(t, st.Pending.Included)
	assert.Equal(t, "Location Added", lastToast(st).Title)
}

func TestSaveLocationAndGroup(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	ctx := context.Background()

	err := f.m.SaveLocation(ctx, id, catalog.LocationRef{Name: "Goa,IN,state"})
	assert.ErrorIs(t, err, brief.ErrNotInCatalog)
	assert.Empty(t, f.locations.saved)

	require.NoError(t, f.m.SaveLocation(ctx, id, catalog.LocationRef{Name: "Goa,IN,state", ID: 7}))
	st := f.state(t, id)
	assert.Empty(t, st.Brief.LocationsNotFound)
	assert.Equal(t, "Goa", st.Brief.Locations[len(st.Brief.Locations)-1].NameAsID)
	_, ok := f.catalog.cat.FindLocation("Goa,IN,state")
	assert.True(t, ok)

	err = f.m.SaveLocationGroup(ctx, id, "overall", []catalog.LocationRef{{Name: "Delhi,IN,city"}}, nil)
	assert.ErrorIs(t, err, brief.ErrReservedName)

	require.NoError(t, f.m.SaveLocationGroup(ctx, id, "North", []catalog.LocationRef{{Name: "Delhi,IN,city"}}, nil))
	assert.Equal(t, []string{"North"}, f.locations.groups)
	g, ok := f.catalog.cat.Group("North")
	require.True(t, ok)
	assert.Equal(t, int64(2), g.IncludedLocations[0].ID)
	st = f.state(t, id)
	assert.Equal(t, "North", st.Brief.Locations[len(st.Brief.Locations)-1].NameAsID)
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	var buf bytes.Buffer
	err := f.m.ForecastCSV(id, &buf)
	assert.ErrorIs(t, err, brief.ErrNoForecast)

	_, err = f.m.Forecast(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, f.m.ForecastCSV(id, &buf))
	assert.Contains(t, buf.String(), "Mumbai,1.50,3.25")
	assert.Contains(t, buf.String(), "TIL (30 days)")

	buf.Reset()
	require.NoError(t, f.m.AudienceCSV(id, &buf))
	assert.Contains(t, buf.String(), "sf6,Agriculture,")

	buf.Reset()
	require.NoError(t, f.m.ForecastPDF(id, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSettingsAndAge(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	require.NoError(t, f.m.SetSetting(id, SettingDuration, "15 Days"))
	require.NoError(t, f.m.SetSetting(id, SettingCreativeSize, "interstitial"))
	assert.Error(t, f.m.SetSetting(id, SettingDuration, " "))
	assert.Error(t, f.m.SetSetting(id, "colour", "red"))

	assert.Error(t, f.m.SetTargetAge(id, "65-18"))
	require.NoError(t, f.m.SetTargetAgeBounds(id, 0, 100))

	st := f.state(t, id)
	assert.Equal(t, 15, st.Brief.Duration)
	assert.Equal(t, "Interstitial", st.Brief.CreativeSize)
	assert.Equal(t, brief.AgeAll, st.Brief.TargetAge)
}

func TestStoreExpiry(t *testing.T) {
	st := NewStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	s := st.Create(&brief.Brief{}, nil)
	_, err := st.Get(s.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = st.Get(s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	st.Create(&brief.Brief{}, nil)
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 0, st.Len())
}

func TestToastsAreBounded(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	for i := 0; i < maxToasts+5; i++ {
		_, _ = f.m.Add(context.Background(), id, brief.Keywords, "")
	}
	toasts, err := f.m.Toasts(id)
	require.NoError(t, err)
	assert.Len(t, toasts, maxToasts)
	toasts, _ = f.m.Toasts(id)
	assert.Empty(t, toasts)
}
