package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/services/audience"
	"github.com/briefdesk/briefedit/pkg/services/backend"
	"github.com/briefdesk/briefedit/pkg/services/cohorts"
	"github.com/briefdesk/briefedit/pkg/services/locations"
	"github.com/briefdesk/briefedit/pkg/services/presentation"
	"github.com/briefdesk/briefedit/pkg/session"
	"github.com/briefdesk/briefedit/pkg/storage"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/spf13/viper"
)

var envReplacer = strings.NewReplacer(".", "_")

func endpoints() services.Endpoints {
	return services.Endpoints{
		Backend:      viper.GetString("services.backend_url"),
		Cohorts:      viper.GetString("services.cohorts_url"),
		Locations:    viper.GetString("services.locations_url"),
		Audience:     viper.GetString("services.audience_url"),
		Presentation: viper.GetString("services.presentation_url"),
	}
}

func httpClient() (*whttp.Client, error) {
	return whttp.NewClient(whttp.Options{
		Retries:   viper.GetInt("http.retries"),
		Timeout:   viper.GetDuration("http.timeout"),
		RateLimit: viper.GetFloat64("http.rate_limit"),
		Proxy:     viper.GetString("http.proxy"),
		Logger:    utils.Log,
	})
}

// presets reads presets.table as a list of {key, display_name} entries.
// List values keep their case, unlike viper map keys.
func presets(v *viper.Viper) ([]catalog.PresetInfo, error) {
	var table []catalog.PresetInfo
	if err := v.UnmarshalKey("presets.table", &table); err != nil {
		return nil, fmt.Errorf("invalid presets.table: %w", err)
	}
	out := table[:0]
	for _, p := range table {
		if p.Key == "" {
			continue
		}
		if p.DisplayName == "" {
			p.DisplayName = p.Key
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return catalog.DefaultPresets, nil
	}
	return out, nil
}

// openDB opens the catalog cache, creating its directory when needed.
func openDB() (*storage.DB, string, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("storage.dbpath"))
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("could not create db directory: %w", err)
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open %s: %w", path, err)
	}
	return db, path, nil
}

// app is everything a command needs to run editor operations.
type app struct {
	DB      *storage.DB
	DBPath  string
	Loader  *catalog.Loader
	Manager *session.Manager
}

func (a *app) Close() {
	a.DB.Close()
}

func newApp() (*app, error) {
	client, err := httpClient()
	if err != nil {
		return nil, err
	}
	db, path, err := openDB()
	if err != nil {
		return nil, err
	}

	style, err := brief.ParseSelectionStyle(viper.GetString("editor.selection_style"))
	if err != nil {
		db.Close()
		return nil, err
	}
	ageMode, err := brief.ParseAgeMode(viper.GetString("editor.age_mode"))
	if err != nil {
		db.Close()
		return nil, err
	}

	table, err := presets(viper.GetViper())
	if err != nil {
		db.Close()
		return nil, err
	}

	ep := endpoints()
	locs := locations.New(client, ep.Locations)
	loader := &catalog.Loader{
		Cohorts:   cohorts.New(client, ep.Cohorts),
		Locations: locs,
		Store:     db,
		Presets:   table,
		TTL:       viper.GetDuration("catalog.ttl"),
		Log:       utils.Log,
	}
	m := &session.Manager{
		Store:     session.NewStore(session.DefaultTTL),
		Backend:   backend.New(client, ep.Backend, viper.GetBool("email.strip_html")),
		Audience:  audience.New(client, ep.Audience),
		Locations: locs,
		Presenter: presentation.New(client, ep.Presentation, viper.GetStringSlice("presentation.allowed_domains")),
		Catalog:   loader,
		History:   db,
		Style:     style,
		AgeMode:   ageMode,
		Log:       utils.Log,
	}
	return &app{DB: db, DBPath: path, Loader: loader, Manager: m}, nil
}
