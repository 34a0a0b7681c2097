package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/render"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// processCmd implements: briefedit process [attachments...]
var processCmd = &cobra.Command{
	Use:   "process [attachments...]",
	Short: "Extract a brief from an email and print it as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		bodyFile, _ := cmd.Flags().GetString("body")
		forecast, _ := cmd.Flags().GetBool("forecast")
		outDir, _ := cmd.Flags().GetString("out")

		email := brief.Email{Subject: subject}
		if bodyFile != "" {
			body, err := os.ReadFile(bodyFile)
			if err != nil {
				return fmt.Errorf("could not read email body: %w", err)
			}
			email.Body = string(body)
		}
		for _, name := range args {
			data, err := os.ReadFile(name)
			if err != nil {
				return fmt.Errorf("could not read attachment: %w", err)
			}
			email.Files = append(email.Files, brief.Attachment{Name: filepath.Base(name), Data: data})
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		sess, err := a.Manager.Process(ctx, email)
		if err != nil {
			return err
		}
		if forecast {
			if _, err := a.Manager.Forecast(ctx, sess.ID); err != nil {
				return err
			}
		}

		st, err := a.Manager.State(sess.ID)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(summarize(render.Render(st)))
		if err != nil {
			return err
		}
		fmt.Print(string(out))

		if forecast && outDir != "" {
			return writeExports(a, sess.ID, outDir)
		}
		return nil
	},
}

// briefSummary is the YAML shape printed by process.
type briefSummary struct {
	Subject   string              `yaml:"subject"`
	Cohorts   []string            `yaml:"cohorts"`
	Locations []string            `yaml:"locations"`
	Presets   []string            `yaml:"presets"`
	Keywords  []string            `yaml:"keywords"`
	ABVRs     []string            `yaml:"abvrs"`
	NotFound  []string            `yaml:"locations_not_found,omitempty"`
	Settings  map[string]string   `yaml:"settings"`
	Forecast  map[string][]string `yaml:"forecast,omitempty"`
}

func checkedLabels(p render.Panel) []string {
	var out []string
	for _, it := range p.Items {
		if !it.Checked {
			continue
		}
		if it.Detail != "" {
			out = append(out, fmt.Sprintf("%s (%s)", it.Label, it.Detail))
			continue
		}
		out = append(out, it.Label)
	}
	return out
}

func summarize(v render.View) briefSummary {
	s := briefSummary{
		Subject:   v.Subject,
		Cohorts:   checkedLabels(v.Cohorts),
		Locations: checkedLabels(v.Locations),
		Presets:   checkedLabels(v.Presets),
		Keywords:  checkedLabels(v.Keywords),
		ABVRs:     checkedLabels(v.ABVRs),
		NotFound:  v.NotFound,
		Settings:  map[string]string{"Target Age": v.Age.Text},
	}
	for _, st := range v.Settings {
		s.Settings[st.Label] = st.Value
	}
	if v.Forecast != nil {
		s.Forecast = make(map[string][]string)
		for _, t := range v.Forecast.Tables {
			for _, row := range t.Rows {
				s.Forecast[t.Title] = append(s.Forecast[t.Title], fmt.Sprintf("%s: users %s, impressions %s", row[0], row[1], row[2]))
			}
		}
	}
	return s
}

func writeExports(a *app, id, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := []struct {
		name  string
		write func(string, *os.File) error
	}{
		{"forecast.csv", func(id string, f *os.File) error { return a.Manager.ForecastCSV(id, f) }},
		{"audiences.csv", func(id string, f *os.File) error { return a.Manager.AudienceCSV(id, f) }},
		{"forecast.pdf", func(id string, f *os.File) error { return a.Manager.ForecastPDF(id, f) }},
	}
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		err = file.write(id, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}
		utils.Log.Infof("Wrote %s", path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringP("subject", "s", "", "Email subject")
	processCmd.Flags().StringP("body", "b", "", "File holding the email body (plain text or HTML)")
	processCmd.Flags().Bool("forecast", false, "Run a forecast on the extracted selections")
	processCmd.Flags().StringP("out", "o", "", "Directory for CSV and PDF exports (requires --forecast)")
}
