package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/polling"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/session"
	"github.com/sirupsen/logrus"
)

// maxUpload bounds the multipart email form.
const maxUpload = 32 << 20

// Server serves the editor API and pages. Loader and Scheduler may be nil.
type Server struct {
	Manager   *session.Manager
	Loader    *catalog.Loader
	Scheduler *polling.Scheduler
	Username  string
	Password  string
	Log       *logrus.Logger
}

func New(m *session.Manager, loader *catalog.Loader, sched *polling.Scheduler, user, pass string) *Server {
	return &Server{
		Manager:   m,
		Loader:    loader,
		Scheduler: sched,
		Username:  user,
		Password:  pass,
		Log:       utils.Log,
	}
}

// Handler returns the routed, logged and authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", s.basicAuth(s.handleIndex))
	mux.HandleFunc("POST /sessions", s.basicAuth(s.handleSubmitEmail))
	mux.HandleFunc("GET /sessions/{id}", s.basicAuth(s.handleSessionPage))

	// Sessions
	mux.HandleFunc("POST /api/sessions", s.basicAuth(s.handleProcessEmail))
	mux.HandleFunc("GET /api/sessions/{id}", s.basicAuth(s.handleView))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.basicAuth(s.handleDeleteSession))
	mux.HandleFunc("GET /api/sessions/{id}/toasts", s.basicAuth(s.handleToasts))

	// Collections
	mux.HandleFunc("POST /api/sessions/{id}/collections/{collection}/items", s.basicAuth(s.handleAdd))
	mux.HandleFunc("DELETE /api/sessions/{id}/collections/{collection}/items/{key}", s.basicAuth(s.handleRemove))
	mux.HandleFunc("POST /api/sessions/{id}/collections/{collection}/items/{key}/toggle", s.basicAuth(s.handleToggle))
	mux.HandleFunc("PUT /api/sessions/{id}/collections/{collection}/items/{key}/checked", s.basicAuth(s.handleSetChecked))
	mux.HandleFunc("PUT /api/sessions/{id}/collections/{collection}/all", s.basicAuth(s.handleSelectAll))

	// Pending location entry
	mux.HandleFunc("POST /api/sessions/{id}/pending/included", s.basicAuth(s.handleAddIncluded))
	mux.HandleFunc("DELETE /api/sessions/{id}/pending/included/{index}", s.basicAuth(s.handleRemoveIncluded))
	mux.HandleFunc("POST /api/sessions/{id}/pending/excluded", s.basicAuth(s.handleAddExcluded))
	mux.HandleFunc("DELETE /api/sessions/{id}/pending/excluded/{index}", s.basicAuth(s.handleRemoveExcluded))
	mux.HandleFunc("PUT /api/sessions/{id}/pending/name", s.basicAuth(s.handleSetLocationName))
	mux.HandleFunc("POST /api/sessions/{id}/pending/commit", s.basicAuth(s.handleCommitLocation))
	mux.HandleFunc("DELETE /api/sessions/{id}/not-found/{name}", s.basicAuth(s.handleRemoveNotFound))

	// Locations service
	mux.HandleFunc("GET /api/sessions/{id}/locations/lookup", s.basicAuth(s.handleLookupLocations))
	mux.HandleFunc("POST /api/sessions/{id}/locations/save", s.basicAuth(s.handleSaveLocation))
	mux.HandleFunc("POST /api/sessions/{id}/location-groups", s.basicAuth(s.handleSaveLocationGroup))

	// Settings
	mux.HandleFunc("PUT /api/sessions/{id}/age", s.basicAuth(s.handleSetAge))
	mux.HandleFunc("PUT /api/sessions/{id}/settings/{name}", s.basicAuth(s.handleSetSetting))

	// Search
	mux.HandleFunc("GET /api/sessions/{id}/search/{box}", s.basicAuth(s.handleSearch))
	mux.HandleFunc("POST /api/sessions/{id}/search/{box}/keys", s.basicAuth(s.handlePress))

	// ABVRs
	mux.HandleFunc("POST /api/sessions/{id}/staged", s.basicAuth(s.handleStage))
	mux.HandleFunc("DELETE /api/sessions/{id}/staged/{code}", s.basicAuth(s.handleUnstage))
	mux.HandleFunc("POST /api/sessions/{id}/staged/commit", s.basicAuth(s.handleCommitStaged))
	mux.HandleFunc("POST /api/sessions/{id}/abvrs/refresh", s.basicAuth(s.handleRefreshABVRs))

	// Forecast, presentation, exports
	mux.HandleFunc("POST /api/sessions/{id}/forecast", s.basicAuth(s.handleForecast))
	mux.HandleFunc("GET /api/sessions/{id}/forecast/history", s.basicAuth(s.handleForecastHistory))
	mux.HandleFunc("POST /api/sessions/{id}/presentation", s.basicAuth(s.handlePresentation))
	mux.HandleFunc("GET /api/sessions/{id}/export/{file}", s.basicAuth(s.handleExport))

	// Catalog
	mux.HandleFunc("GET /api/catalog", s.basicAuth(s.handleCatalog))
	mux.HandleFunc("POST /api/catalog/refresh", s.basicAuth(s.handleCatalogRefresh))
	mux.HandleFunc("GET /api/catalog/tasks/{task}", s.basicAuth(s.handleCatalogTask))

	return s.logRequests(mux)
}

func (s *Server) Start(addr string) error {
	s.log().Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) log() *logrus.Logger {
	if s.Log == nil {
		return utils.Log
	}
	return s.Log
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log().WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debug("request")
	})
}

// errorBody is the JSON shape of every failed API call.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, errorBody) {
	var ve *brief.ValidationError
	var he *services.HTTPError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: ve.Title, Message: ve.Message}
	case errors.As(err, &he):
		return http.StatusBadGateway, errorBody{Error: "Upstream Error", Message: he.Message()}
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "Session Not Found", Message: err.Error()}
	case errors.Is(err, session.ErrActionInFlight), errors.Is(err, polling.ErrAlreadyRunning):
		return http.StatusConflict, errorBody{Error: "Busy", Message: err.Error()}
	case errors.Is(err, brief.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "Not Found", Message: err.Error()}
	case errors.Is(err, brief.ErrUnknownCollection), errors.Is(err, brief.ErrInvalidSetting),
		errors.Is(err, brief.ErrEmpty), errors.Is(err, brief.ErrInputLocked), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorBody{Error: "Bad Request", Message: err.Error()}
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway, errorBody{Error: "Upstream Error", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Error: "Internal Error", Message: err.Error()}
}
