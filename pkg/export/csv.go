// Package export writes forecast results and audience selections as CSV and PDF.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/briefdesk/briefedit/pkg/brief"
)

// DefaultDuration is used in preset titles when the brief carries none.
const DefaultDuration = 30

var (
	ForecastHeader = []string{"Geo", "User Reach (Mn)F-Cap-1/Lifetime", "Targettable Impression(Mn)F-Cap-3/Day"}
	AudienceHeader = []string{"Name", "Description"}
)

const forecastColumns = 6

// ForecastRows lays out the forecast block and the audience block side by
// side: geo, user, impr, a blank column, then name and description.
func ForecastRows(f *brief.Forecast, audiences []brief.Audience, duration int) [][]string {
	if duration <= 0 {
		duration = DefaultDuration
	}

	var left [][3]string
	if f != nil {
		for _, p := range f.Presets {
			left = append(left, [3]string{fmt.Sprintf("%s (%d days)", p.Preset, duration)})
			left = append(left, [3]string{ForecastHeader[0], ForecastHeader[1], ForecastHeader[2]})
			for _, row := range p.Rows {
				left = append(left, [3]string{row.Geo, Number(row.User), Number(row.Impr)})
			}
			left = append(left, [3]string{})
		}
	}

	right := [][2]string{{AudienceHeader[0], AudienceHeader[1]}}
	for _, a := range audiences {
		name := a.Name
		if name == "" {
			name = a.ABVR
		}
		right = append(right, [2]string{name, a.Description})
	}

	rows := [][]string{make([]string, forecastColumns)}
	for i := 0; i < max(len(left), len(right)); i++ {
		var l [3]string
		var r [2]string
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		rows = append(rows, []string{l[0], l[1], l[2], "", r[0], r[1]})
	}
	return rows
}

// Number formats a forecast metric with two decimals.
func Number(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// ForecastCSV writes ForecastRows as CSV.
func ForecastCSV(w io.Writer, f *brief.Forecast, audiences []brief.Audience, duration int) error {
	return writeAll(w, ForecastRows(f, audiences, duration))
}

// AudienceCSV writes one abvr,name,description row per audience after a header.
func AudienceCSV(w io.Writer, audiences []brief.Audience) error {
	rows := [][]string{{"abvr", "name", "description"}}
	for _, a := range audiences {
		rows = append(rows, []string{a.ABVR, a.Name, a.Description})
	}
	return writeAll(w, rows)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}
