package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForecast() *brief.Forecast {
	return &brief.Forecast{Presets: []brief.PresetForecast{{
		Preset: "TIL",
		Rows:   []brief.GeoMetrics{{Geo: "GeoX", User: 1.234, Impr: 4.5}},
	}}}
}

func TestForecastRows(t *testing.T) {
	rows := ForecastRows(sampleForecast(), []brief.Audience{{ABVR: "n", Name: "N", Description: "D"}}, 15)
	want := [][]string{
		{"", "", "", "", "", ""},
		{"TIL (15 days)", "", "", "", "Name", "Description"},
		{"Geo", "User Reach (Mn)F-Cap-1/Lifetime", "Targettable Impression(Mn)F-Cap-3/Day", "", "N", "D"},
		{"GeoX", "1.23", "4.50", "", "", ""},
		{"", "", "", "", "", ""},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestForecastRowsAudiencesOutlastForecast(t *testing.T) {
	auds := []brief.Audience{{ABVR: "a"}, {ABVR: "b", Name: "B"}, {ABVR: "c"}, {ABVR: "d"}, {ABVR: "e"}}
	rows := ForecastRows(&brief.Forecast{}, auds, 0)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"", "", "", "", "a", ""}, rows[2])
	assert.Equal(t, []string{"", "", "", "", "B", ""}, rows[3])
}

func TestForecastCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ForecastCSV(&buf, sampleForecast(), []brief.Audience{{ABVR: "n", Name: "N", Description: "D"}}, 30))

	out := buf.String()
	assert.Contains(t, out, "GeoX,1.23,4.50,")
	assert.Contains(t, out, ",N,D\n")
	assert.True(t, strings.HasPrefix(out, ",,,,,\n"))

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, ForecastRows(sampleForecast(), []brief.Audience{{ABVR: "n", Name: "N", Description: "D"}}, 30), records)
}

func TestAudienceCSVQuotes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, AudienceCSV(&buf, []brief.Audience{{ABVR: "a1", Name: "Cars, new", Description: `says "hi"`}}))
	assert.Equal(t, "abvr,name,description\na1,\"Cars, new\",\"says \"\"hi\"\"\"\n", buf.String())
}

func TestForecastPDF(t *testing.T) {
	var buf bytes.Buffer
	err := ForecastPDF(&buf, PDFReport{
		Title:     "Plan for Café",
		Forecast:  sampleForecast(),
		Audiences: []brief.Audience{{ABVR: "n", Name: "N", Description: "D"}},
		Generated: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
