package session

import (
	"io"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/export"
)

type exportData struct {
	forecast  *brief.Forecast
	audiences []brief.Audience
	duration  int
	subject   string
}

func (m *Manager) exportData(id string, needForecast bool) (*Session, exportData, error) {
	s, err := m.Store.Get(id)
	if err != nil {
		return nil, exportData{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if needForecast && s.forecast == nil {
		err := invalid(brief.ErrNoForecast, "No Data", "No forecast data available for download.")
		s.fail("Download Error", err)
		return nil, exportData{}, err
	}
	d := exportData{
		audiences: s.brief.SelectedAudiences(),
		duration:  s.brief.Duration,
		subject:   s.subject,
	}
	if s.forecast != nil {
		d.forecast = s.forecast.WithDisplayNames(s.catalog)
	}
	return s, d, nil
}

func (m *Manager) downloaded(s *Session, what string) {
	s.mu.Lock()
	s.toast(ToastSuccess, "Download Complete", what+" file downloaded successfully!")
	s.mu.Unlock()
}

// ForecastCSV writes the forecast next to the selected audiences.
func (m *Manager) ForecastCSV(id string, w io.Writer) error {
	s, d, err := m.exportData(id, true)
	if err != nil {
		return err
	}
	if err := export.ForecastCSV(w, d.forecast, d.audiences, d.duration); err != nil {
		return err
	}
	m.downloaded(s, "CSV")
	return nil
}

// AudienceCSV writes the selected audiences.
func (m *Manager) AudienceCSV(id string, w io.Writer) error {
	s, d, err := m.exportData(id, false)
	if err != nil {
		return err
	}
	if err := export.AudienceCSV(w, d.audiences); err != nil {
		return err
	}
	m.downloaded(s, "CSV")
	return nil
}

// ForecastPDF writes the forecast report.
func (m *Manager) ForecastPDF(id string, w io.Writer) error {
	s, d, err := m.exportData(id, true)
	if err != nil {
		return err
	}
	if err := export.ForecastPDF(w, export.PDFReport{
		Title:     d.subject,
		Forecast:  d.forecast,
		Audiences: d.audiences,
		Duration:  d.duration,
	}); err != nil {
		return err
	}
	m.downloaded(s, "PDF")
	return nil
}
