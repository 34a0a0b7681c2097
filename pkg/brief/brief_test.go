package brief

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBrief = `{
  "cohort": ["Small and Medium Industries"],
  "locations": [
    {"includedLocations": [{"name": "Rajasthan,IN,STATE", "id": 20468}], "excludedLocations": [], "nameAsId": ""},
    {"includedLocations": ["Haryana,IN,STATE"], "excludedLocations": [], "nameAsId": "Haryana"}
  ],
  "locations_not_found": ["Flagship Locations", {"name": "Canada"}],
  "preset": ["TIL_All_Cluster_RNF"],
  "creative_size": "Banners",
  "device_category": "All Devices",
  "duration": "30 Days",
  "target_gender": "Male",
  "target_age": "18-24",
  "cohort_abvrs": [{"name": "SMI", "description": "d", "abvr": "sf5", "similarity": 0.72}],
  "abvrs": [{"name": "Agriculture", "description": "Agri", "abvr": "sf6", "similarity": 0.72}],
  "left_abvrs": [{"name": "Cooking", "description": "Cook", "abvr": "rcs", "similarity": 0.52}],
  "keywords": ["Farmers", "Agri based businesses"],
  "cohort_ppts": {"x": 1}
}`

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Cohorts: []catalog.CohortInfo{
			{Name: "Small and Medium Industries", ABVRs: []string{"sf5"}},
			{Name: "Auto Intenders", ABVRs: []string{"au1", "au2"}},
		},
		Locations: []catalog.LocationRef{
			{Name: "Mumbai,IN,city", ID: 1},
			{Name: "Delhi,IN,city", ID: 2},
			{Name: "Pune,IN,city", ID: 3},
		},
		Groups: map[string]catalog.LocationGroup{
			"Metros": {Name: "Metros", IncludedLocations: []catalog.LocationRef{{Name: "Mumbai,IN,city", ID: 1}, {Name: "Delhi,IN,city", ID: 2}}},
		},
		Presets: catalog.DefaultPresets,
	}
}

func mustParse(t *testing.T) *Brief {
	t.Helper()
	b, err := Parse([]byte(sampleBrief))
	require.NoError(t, err)
	return b
}

func TestParse(t *testing.T) {
	b := mustParse(t)

	assert.Equal(t, []Cohort{{Name: "Small and Medium Industries", Checked: true}}, b.Cohorts)
	require.Len(t, b.Locations, 2)
	assert.Equal(t, int64(20468), b.Locations[0].IncludedLocations[0].ID)
	assert.Equal(t, "Haryana,IN,STATE", b.Locations[1].IncludedLocations[0].Name)
	assert.True(t, b.Locations[1].Checked)
	assert.Equal(t, []Preset{{Key: "TIL_All_Cluster_RNF", Checked: true}}, b.Presets)
	assert.Len(t, b.Keywords, 2)
	assert.Equal(t, "All", b.DeviceCategory)
	assert.Equal(t, 30, b.Duration)
	assert.Equal(t, "18-24", b.TargetAge)
	assert.Equal(t, []string{"Flagship Locations", "Canada"}, b.LocationsNotFound)
	assert.True(t, b.ABVRs[0].Checked)
	assert.False(t, b.LeftABVRs[0].Checked)
	require.Len(t, b.CohortAudiences, 1)
	assert.Equal(t, "", b.CohortAudiences[0].Cohort)
	assert.JSONEq(t, `{"x": 1}`, string(b.CohortPPTs))

	b.AttributeCohortAudiences(testCatalog())
	require.Len(t, b.CohortAudiences, 1)
	assert.Equal(t, "Small and Medium Industries", b.CohortAudiences[0].Cohort)
}

func TestParseCohortAudsMapAndAgeList(t *testing.T) {
	raw := `{"cohort": ["A"], "cohort_auds": {"A": [{"abvr": "x1", "audience_name": "X"}, "x2"]},
		"target_age": ["18-24", "25-34"], "duration": 14}`
	b, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, b.CohortAudiences, 1)
	assert.Equal(t, "A", b.CohortAudiences[0].Cohort)
	assert.Equal(t, "X", b.CohortAudiences[0].Audiences[0].Name)
	assert.Equal(t, "x2", b.CohortAudiences[0].Audiences[1].ABVR)
	assert.Equal(t, "18-34", b.TargetAge)
	assert.Equal(t, 14, b.Duration)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json", "[1,2]"} {
		_, err := Parse([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestParseMissingAgeIsAll(t *testing.T) {
	b, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, AgeAll, b.TargetAge)
}

func TestAddCohort(t *testing.T) {
	cat := testCatalog()
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
		title   string
	}{
		{"catalog spelling", "auto intenders", "Auto Intenders", nil, ""},
		{"unknown", "Space Tourists", "", ErrNotInCatalog, "Cohort Not Found"},
		{"empty", "  ", "", ErrEmpty, "Missing Cohort"},
		{"duplicate", "SMALL AND MEDIUM INDUSTRIES", "", ErrDuplicate, "Already Selected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustParse(t)
			before := len(b.Cohorts)
			got, err := b.AddCohort(cat, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.title, ve.Title)
				assert.Len(t, b.Cohorts, before)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Cohort{Name: tt.want, Checked: true}, b.Cohorts[len(b.Cohorts)-1])
		})
	}
}

func TestAddPresetAndKeyword(t *testing.T) {
	b := mustParse(t)
	cat := testCatalog()

	key, err := b.AddPreset(cat, "ET")
	require.NoError(t, err)
	assert.Equal(t, "TIL_ET_Only_RNF", key)

	_, err = b.AddPreset(cat, "TIL_ET_Only_RNF")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = b.AddPreset(cat, "Nope")
	assert.ErrorIs(t, err, ErrNotInCatalog)

	_, err = b.AddKeyword("farmers")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = b.Add(cat, Keywords, "Tractors")
	require.NoError(t, err)
	assert.Equal(t, Keyword{Keyword: "Tractors", Checked: true}, b.Keywords[len(b.Keywords)-1])

	_, err = b.Add(cat, Locations, "x")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestSelectAllIsConjunction(t *testing.T) {
	b := mustParse(t)
	assert.True(t, b.AllChecked(Keywords))

	_, err := b.Toggle(Keywords, "Farmers", StyleCheckbox)
	require.NoError(t, err)
	assert.False(t, b.AllChecked(Keywords))

	_, err = b.SelectAll(Keywords, true)
	require.NoError(t, err)
	assert.True(t, b.AllChecked(Keywords))

	empty := &Brief{}
	for _, c := range AllCollections {
		assert.True(t, empty.AllChecked(c), c)
	}

	// the additional pool starts unchecked
	assert.False(t, b.AllChecked(ABVRs))
	_, err = b.SelectAll(ABVRs, true)
	require.NoError(t, err)
	assert.True(t, b.AllChecked(ABVRs))
}

func TestToggleScope(t *testing.T) {
	b := mustParse(t)

	r, err := b.Toggle(Presets, "TIL_All_Cluster_RNF", StyleChip)
	require.NoError(t, err)
	assert.Equal(t, ScopeItem, r.Scope)
	assert.False(t, b.Presets[0].Checked)

	r, err = b.Toggle(Presets, "TIL_All_Cluster_RNF", StyleCheckbox)
	require.NoError(t, err)
	assert.Equal(t, ScopePanel, r.Scope)
	assert.True(t, b.Presets[0].Checked)

	r, err = b.Toggle(Locations, "1", StyleChip)
	require.NoError(t, err)
	assert.Equal(t, ScopePanel, r.Scope)
	assert.False(t, b.Locations[1].Checked)

	_, err = b.Toggle(Locations, "7", StyleChip)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCohortCascade(t *testing.T) {
	b := &Brief{
		Cohorts: []Cohort{{Name: "Auto Intenders", Checked: true}},
		CohortAudiences: []CohortAudiences{
			{Cohort: "Auto Intenders", Audiences: []Audience{{ABVR: "au1", Checked: true}, {ABVR: "au2", Checked: true}}},
		},
		ABVRs:     []Audience{{ABVR: "au1", Checked: true}, {ABVR: "zz", Checked: true}},
		LeftABVRs: []Audience{{ABVR: "au2", Checked: true}},
	}

	r, err := b.Toggle(Cohorts, "auto intenders", StyleCheckbox)
	require.NoError(t, err)
	assert.Equal(t, []Collection{ABVRs}, r.Also)

	for _, a := range b.CohortAudiences[0].Audiences {
		assert.False(t, a.Checked, a.ABVR)
	}
	assert.False(t, b.ABVRs[0].Checked)
	assert.True(t, b.ABVRs[1].Checked)
	assert.False(t, b.LeftABVRs[0].Checked)

	// checking the cohort again leaves its audiences alone
	_, err = b.Toggle(Cohorts, "Auto Intenders", StyleCheckbox)
	require.NoError(t, err)
	assert.False(t, b.ABVRs[0].Checked)
	assert.Equal(t, []string{"zz"}, b.CheckedABVRCodes())
}

func TestToggleABVRAppliesEverywhere(t *testing.T) {
	b := &Brief{
		CohortAudiences: []CohortAudiences{{Cohort: "C", Audiences: []Audience{{ABVR: "a", Checked: true}}}},
		ABVRs:           []Audience{{ABVR: "a", Checked: true}},
	}
	_, err := b.Toggle(ABVRs, "a", StyleCheckbox)
	require.NoError(t, err)
	assert.False(t, b.CohortAudiences[0].Audiences[0].Checked)
	assert.False(t, b.ABVRs[0].Checked)
}

func TestRemove(t *testing.T) {
	b := mustParse(t)
	b.AttributeCohortAudiences(testCatalog())

	require.NoError(t, b.Remove(Cohorts, "Small and Medium Industries"))
	assert.Empty(t, b.Cohorts)
	assert.Empty(t, b.CohortAudiences)

	require.NoError(t, b.Remove(Locations, "0"))
	require.Len(t, b.Locations, 1)
	assert.Equal(t, "Haryana", b.Locations[0].NameAsID)

	require.NoError(t, b.Remove(ABVRs, "rcs"))
	assert.Empty(t, b.LeftABVRs)

	assert.ErrorIs(t, b.Remove(Keywords, "missing"), ErrNotFound)
	assert.ErrorIs(t, b.Remove(Collection("bogus"), "x"), ErrUnknownCollection)
}

func TestPendingGroupExclusivity(t *testing.T) {
	p := &PendingLocation{}
	require.NoError(t, p.AddIncluded(Chip{Name: "Mumbai,IN,city", ID: 1}))
	require.NoError(t, p.AddExcluded(Chip{Name: "Pune,IN,city", ID: 3}))

	require.NoError(t, p.AddIncluded(Chip{Name: "Metros", Group: true}))
	assert.Equal(t, []Chip{{Name: "Metros", Group: true}}, p.Included)
	assert.Empty(t, p.Excluded)
	assert.True(t, p.NameLocked)
	assert.Equal(t, "Metros", p.Name)
	assert.True(t, p.ExcludedDisabled())

	err := p.AddExcluded(Chip{Name: "Delhi,IN,city"})
	assert.ErrorIs(t, err, ErrInputLocked)
	assert.ErrorIs(t, p.SetName("x"), ErrInputLocked)

	require.NoError(t, p.AddIncluded(Chip{Name: "Delhi,IN,city", ID: 2}))
	assert.Equal(t, []Chip{{Name: "Delhi,IN,city", ID: 2}}, p.Included)
	assert.False(t, p.NameLocked)
	assert.Equal(t, "", p.Name)
	assert.False(t, p.ExcludedDisabled())

	// duplicates are ignored
	require.NoError(t, p.AddIncluded(Chip{Name: "Delhi,IN,city", ID: 2}))
	assert.Len(t, p.Included, 1)
}

func TestRemoveGroupChipUnlocks(t *testing.T) {
	p := &PendingLocation{}
	require.NoError(t, p.AddIncluded(Chip{Name: "Metros", Group: true}))
	require.NoError(t, p.RemoveIncluded(0))
	assert.False(t, p.NameLocked)
	assert.Equal(t, "", p.Name)
	assert.ErrorIs(t, p.RemoveIncluded(0), ErrNotFound)
}

func TestCommitLocation(t *testing.T) {
	cat := testCatalog()

	t.Run("single location takes its first segment as name", func(t *testing.T) {
		b := &Brief{}
		p := &PendingLocation{}
		require.NoError(t, p.AddIncluded(Chip{Name: "Mumbai,IN,city"}))
		loc, err := b.CommitLocation(cat, p)
		require.NoError(t, err)
		assert.Equal(t, "Mumbai", loc.NameAsID)
		assert.Equal(t, int64(1), loc.IncludedLocations[0].ID)
		assert.True(t, b.Locations[0].Checked)
		assert.Equal(t, PendingLocation{}, *p)
	})

	t.Run("reserved name", func(t *testing.T) {
		b := &Brief{}
		p := &PendingLocation{}
		require.NoError(t, p.AddIncluded(Chip{Name: "Mumbai,IN,city"}))
		require.NoError(t, p.SetName("overall"))
		_, err := b.CommitLocation(cat, p)
		assert.ErrorIs(t, err, ErrReservedName)
		assert.Empty(t, b.Locations)
		assert.Len(t, p.Included, 1)
	})

	t.Run("name required for several locations", func(t *testing.T) {
		b := &Brief{}
		p := &PendingLocation{}
		require.NoError(t, p.AddIncluded(Chip{Name: "Mumbai,IN,city"}))
		require.NoError(t, p.AddExcluded(Chip{Name: "Pune,IN,city"}))
		_, err := b.CommitLocation(cat, p)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "Missing Name as ID", ve.Title)

		require.NoError(t, p.SetName("West"))
		loc, err := b.CommitLocation(cat, p)
		require.NoError(t, err)
		assert.Equal(t, int64(3), loc.ExcludedLocations[0].ID)
	})

	t.Run("empty entry", func(t *testing.T) {
		_, err := (&Brief{}).CommitLocation(cat, &PendingLocation{})
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("group", func(t *testing.T) {
		b := &Brief{}
		p := &PendingLocation{}
		require.NoError(t, p.AddIncluded(Chip{Name: "Metros", Group: true}))
		loc, err := b.CommitLocation(cat, p)
		require.NoError(t, err)
		assert.Equal(t, "Metros", loc.NameAsID)
		assert.Len(t, loc.IncludedLocations, 2)
	})

	t.Run("group with excluded chips", func(t *testing.T) {
		p := &PendingLocation{Included: []Chip{{Name: "Metros", Group: true}}, Excluded: []Chip{{Name: "Pune,IN,city"}}}
		_, err := (&Brief{}).CommitLocation(cat, p)
		assert.ErrorIs(t, err, ErrInputLocked)
	})

	t.Run("duplicate", func(t *testing.T) {
		b := &Brief{}
		for i := 0; i < 2; i++ {
			p := &PendingLocation{}
			require.NoError(t, p.AddIncluded(Chip{Name: "Delhi,IN,city"}))
			_, err := b.CommitLocation(cat, p)
			if i == 1 {
				assert.ErrorIs(t, err, ErrDuplicate)
			} else {
				require.NoError(t, err)
			}
		}
		assert.Len(t, b.Locations, 1)
	})
}

func TestSavedLocationsLeaveNotFoundList(t *testing.T) {
	b := &Brief{LocationsNotFound: []string{"New Delhi", "North"}}
	b.AddSavedLocation(catalog.LocationRef{Name: "New Delhi,IN,city", ID: 9})
	assert.Equal(t, []string{"North"}, b.LocationsNotFound)
	assert.Equal(t, "New Delhi", b.Locations[0].NameAsID)

	b.AddSavedGroup(catalog.LocationGroup{Name: "North", IncludedLocations: []catalog.LocationRef{{Name: "Delhi,IN,city", ID: 2}}})
	assert.Empty(t, b.LocationsNotFound)
	assert.Len(t, b.Locations, 2)
}

func TestAgeValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"18-65", "18-65", false},
		{"65-18", "", true},
		{"30-30", "", true},
		{"All", "All", false},
		{"all", "All", false},
		{"25+", "25+", false},
		{"150", "", true},
		{"18-101", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAge(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidAge, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAgeBounds(t *testing.T) {
	got, err := AgeFromBounds(0, 100)
	require.NoError(t, err)
	assert.Equal(t, "All", got)

	got, err = AgeFromBounds(18, 150)
	require.NoError(t, err)
	assert.Equal(t, "18-100", got)

	_, err = AgeFromBounds(65, 18)
	assert.ErrorIs(t, err, ErrInvalidAge)

	b := &Brief{TargetAge: "18-24"}
	assert.Error(t, b.SetTargetAgeBounds(40, 20))
	assert.Equal(t, "18-24", b.TargetAge)
	assert.Error(t, b.SetTargetAge("65-18"))
	assert.Equal(t, "18-24", b.TargetAge)
	require.NoError(t, b.SetTargetAge("25+"))
	min, max := b.AgeBounds()
	assert.Equal(t, 25, min)
	assert.Equal(t, 100, max)
}

func TestAgeBoundsRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		want     string
	}{
		{"open top", 18, 100, "18-100"},
		{"clamped top", 25, 150, "25-100"},
		{"narrow", 99, 100, "99-100"},
		{"clamped bottom", -5, 40, "0-40"},
		{"full", 0, 100, "All"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustParse(t)
			require.NoError(t, b.SetTargetAgeBounds(tt.min, tt.max))
			assert.Equal(t, tt.want, b.TargetAge)
			require.NoError(t, b.ValidateAge())

			r, err := ParseAgeRange(b.TargetAge)
			require.NoError(t, err)
			min, max := b.AgeBounds()
			assert.Equal(t, r.Min, min)
			assert.Equal(t, r.Max, max)

			req, err := b.ForecastRequest()
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.TargetAge)
		})
	}

	min, max := (&Brief{TargetAge: "18-100"}).AgeBounds()
	assert.Equal(t, 18, min)
	assert.Equal(t, 100, max)

	for _, bad := range []string{"18-101", "100+", "120-130"} {
		_, err := ParseAgeRange(bad)
		assert.ErrorIs(t, err, ErrInvalidAge, bad)
	}
}

func TestSpanAges(t *testing.T) {
	got, err := SpanAges([]string{"18-24", "55+"})
	require.NoError(t, err)
	assert.Equal(t, "18+", got)
}

func TestSettings(t *testing.T) {
	b := &Brief{}
	require.NoError(t, b.SetCreativeSize("top banner"))
	assert.Equal(t, "Top Banner", b.CreativeSize)
	require.NoError(t, b.SetDeviceCategory("All Devices"))
	assert.Equal(t, "All", b.DeviceCategory)
	assert.ErrorIs(t, b.SetTargetGender("robot"), ErrInvalidSetting)
	assert.ErrorIs(t, b.SetDuration(0), ErrInvalidSetting)
	require.NoError(t, b.SetDuration(7))
	assert.Equal(t, 7, b.Duration)
}

func TestMergeAudiences(t *testing.T) {
	b := &Brief{
		ABVRs:     []Audience{{ABVR: "a", Checked: false}},
		LeftABVRs: []Audience{{ABVR: "b", Checked: false}},
	}
	res := b.MergeAudiences([]Audience{{ABVR: "a"}, {ABVR: "c", Name: "C"}, {ABVR: "b"}, {ABVR: "c"}})
	assert.Equal(t, []string{"c"}, res.Added)
	assert.Equal(t, []string{"a", "b"}, res.AlreadyPresent)
	assert.True(t, b.ABVRs[0].Checked)
	assert.True(t, b.LeftABVRs[0].Checked)
	assert.Equal(t, Audience{ABVR: "c", Name: "C", Checked: true}, b.LeftABVRs[1])
}

func TestForecastRequestBlocksEmptySelections(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(b *Brief)
		title string
	}{
		{"no locations", func(b *Brief) { b.SelectAll(Locations, false) }, "Missing Locations"},
		{"no presets", func(b *Brief) { b.SelectAll(Presets, false) }, "Missing Presets"},
		{"no keywords", func(b *Brief) { b.Keywords = nil }, "Missing Keywords"},
		{"bad age", func(b *Brief) { b.TargetAge = "65-18" }, "Invalid Age Range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustParse(t)
			tt.edit(b)
			_, err := b.ForecastRequest()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.title, ve.Title)
		})
	}
}

func TestForecastRequest(t *testing.T) {
	b := mustParse(t)
	b.AttributeCohortAudiences(testCatalog())
	_, err := b.Toggle(Locations, "0", StyleCheckbox)
	require.NoError(t, err)

	req, err := b.ForecastRequest()
	require.NoError(t, err)
	want := &ForecastRequest{
		Cohorts: []string{"Small and Medium Industries"},
		Locations: []ForecastLocation{{
			IncludedLocations: []catalog.LocationRef{{Name: "Haryana,IN,STATE"}},
			ExcludedLocations: []catalog.LocationRef{},
			NameAsID:          "Haryana",
		}},
		Preset:         []string{"TIL_All_Cluster_RNF"},
		Keywords:       []string{"Farmers", "Agri based businesses"},
		CreativeSize:   "Banners",
		DeviceCategory: "All",
		TargetGender:   "Male",
		TargetAge:      "18-24",
		Duration:       30,
		ABVRs:          []string{"sf5", "sf6"},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("ForecastRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestForecastRequestCapsCodes(t *testing.T) {
	b := mustParse(t)
	for i := 0; i < 250; i++ {
		b.LeftABVRs = append(b.LeftABVRs, Audience{ABVR: string(rune('A'+i%26)) + string(rune('0'+i/26)), Checked: true})
	}
	req, err := b.ForecastRequest()
	require.NoError(t, err)
	assert.Len(t, req.ABVRs, MaxForecastABVRs)
}

func TestParseForecastKeepsOrder(t *testing.T) {
	f, err := ParseForecast(`{"TIL_ET_Only_RNF": {"India": {"user": 22.861, "impr": 78.75}, "Overall": {"user": 1, "impr": 2}}, "TIL_All_Cluster_RNF": {"India": {"user": 223.86, "impr": 785.75}}}`)
	require.NoError(t, err)
	require.Len(t, f.Presets, 2)
	assert.Equal(t, "TIL_ET_Only_RNF", f.Presets[0].Preset)
	assert.Equal(t, "Overall", f.Presets[0].Rows[1].Geo)

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"TIL_ET_Only_RNF":{"India":{"user":22.861,"impr":78.75},"Overall":{"user":1,"impr":2}},"TIL_All_Cluster_RNF":{"India":{"user":223.86,"impr":785.75}}}`, string(out))

	_, err = ParseForecast(`[]`)
	assert.ErrorIs(t, err, ErrMalformedForecast)
}

func TestPresentationRequest(t *testing.T) {
	cat := testCatalog()
	f, err := ParseForecast(`{"TIL_ET_Only_RNF": {"India": {"user": 1, "impr": 2}}, "Custom": {}}`)
	require.NoError(t, err)

	b := mustParse(t)
	_, err = b.PresentationRequest(cat, nil, "s", "b")
	assert.ErrorIs(t, err, ErrNoForecast)

	req, err := b.PresentationRequest(cat, f, "Subject", "Body")
	require.NoError(t, err)
	assert.Equal(t, "sf5,sf6", req.ABVRs)
	assert.Equal(t, "ET", req.ForecastData.Presets[0].Preset)
	assert.Equal(t, "Custom", req.ForecastData.Presets[1].Preset)
	assert.Equal(t, "TIL_ET_Only_RNF", f.Presets[0].Preset)

	b.TargetAge = "65-18"
	_, err = b.PresentationRequest(cat, f, "s", "b")
	assert.ErrorIs(t, err, ErrInvalidAge)

	b.TargetAge = "All"
	b.SelectAll(ABVRs, false)
	_, err = b.PresentationRequest(cat, f, "s", "b")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "No ABVRs Selected", ve.Title)
}
