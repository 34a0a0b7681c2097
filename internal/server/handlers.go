package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/polling"
	"github.com/briefdesk/briefedit/pkg/render"
	"github.com/briefdesk/briefedit/pkg/search"
	"github.com/briefdesk/briefedit/pkg/session"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log().Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// writeView answers a mutation with the re-rendered session.
func (s *Server) writeView(w http.ResponseWriter, id string, status int) {
	st, err := s.Manager.State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, render.Render(st))
}

// readEmail accepts a multipart form (subject, body, files), a urlencoded
// form or a JSON object.
func readEmail(r *http.Request) (brief.Email, error) {
	var email brief.Email
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		var req struct {
			Subject string `json:"subject"`
			Body    string `json:"body"`
		}
		if err := decode(r, &req); err != nil {
			return email, err
		}
		email.Subject, email.Body = req.Subject, req.Body
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return email, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		email.Subject = r.FormValue("subject")
		email.Body = r.FormValue("body")
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				return email, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return email, err
			}
			email.Files = append(email.Files, brief.Attachment{Name: fh.Filename, Data: data})
		}
	default:
		if err := r.ParseForm(); err != nil {
			return email, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		email.Subject = r.FormValue("subject")
		email.Body = r.FormValue("body")
	}
	return email, nil
}

func collection(r *http.Request) (brief.Collection, error) {
	c, err := brief.ParseCollection(r.PathValue("collection"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return c, nil
}

func index(r *http.Request) (int, error) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", errBadRequest, r.PathValue("index"))
	}
	return i, nil
}

// --- Sessions ---

func (s *Server) handleProcessEmail(w http.ResponseWriter, r *http.Request) {
	email, err := readEmail(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.Manager.Process(r.Context(), email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, sess.ID, http.StatusCreated)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r.PathValue("id"), http.StatusOK)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.Manager.Store.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request) {
	toasts, err := s.Manager.Toasts(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if toasts == nil {
		toasts = []session.Toast{}
	}
	writeJSON(w, http.StatusOK, toasts)
}

// --- Collections ---

type valueRequest struct {
	Value string `json:"value"`
}

type checkedRequest struct {
	Checked bool `json:"checked"`
}

type rerenderResponse struct {
	Rerender brief.Rerender `json:"rerender"`
	View     render.View    `json:"view"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := collection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req valueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.Manager.Add(r.Context(), id, c, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := collection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.Remove(id, c, r.PathValue("key")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) writeRerender(w http.ResponseWriter, id string, rr brief.Rerender) {
	st, err := s.Manager.State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rerenderResponse{Rerender: rr, View: render.Render(st)})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := collection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rr, err := s.Manager.Toggle(id, c, r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRerender(w, id, rr)
}

func (s *Server) handleSetChecked(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := collection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req checkedRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rr, err := s.Manager.SetChecked(id, c, r.PathValue("key"), req.Checked)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRerender(w, id, rr)
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := collection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req checkedRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rr, err := s.Manager.SelectAll(id, c, req.Checked)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRerender(w, id, rr)
}

// --- Pending location entry ---

type chipRequest struct {
	Name  string `json:"name"`
	Group bool   `json:"group"`
}

func (s *Server) handleAddIncluded(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req chipRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.AddIncludedLocation(id, req.Name, req.Group); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleAddExcluded(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req chipRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.AddExcludedLocation(id, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleRemoveIncluded(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	i, err := index(r)
	if err == nil {
		err = s.Manager.RemoveIncludedLocation(id, i)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleRemoveExcluded(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	i, err := index(r)
	if err == nil {
		err = s.Manager.RemoveExcludedLocation(id, i)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleSetLocationName(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req valueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.SetLocationName(id, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleCommitLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Manager.CommitLocation(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleRemoveNotFound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Manager.RemoveNotFound(id, r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

// --- Locations service ---

func (s *Server) handleLookupLocations(w http.ResponseWriter, r *http.Request) {
	refs, err := s.Manager.LookupLocations(r.Context(), r.PathValue("id"), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if refs == nil {
		refs = []catalog.LocationRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var ref catalog.LocationRef
	if err := decode(r, &ref); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.SaveLocation(r.Context(), id, ref); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleSaveLocationGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req catalog.LocationGroup
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.SaveLocationGroup(r.Context(), id, req.Name, req.IncludedLocations, req.ExcludedLocations); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

// --- Settings ---

type ageRequest struct {
	Value *string `json:"value"`
	Min   *int    `json:"min"`
	Max   *int    `json:"max"`
}

func (s *Server) handleSetAge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var err error
	switch {
	case req.Value != nil:
		err = s.Manager.SetTargetAge(id, *req.Value)
	case req.Min != nil && req.Max != nil:
		err = s.Manager.SetTargetAgeBounds(id, *req.Min, *req.Max)
	default:
		err = fmt.Errorf("%w: need value or min and max", errBadRequest)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req valueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.SetSetting(id, r.PathValue("name"), req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

// --- Search ---

func (s *Server) writeDropdown(w http.ResponseWriter, id string, box search.Box) {
	st, err := s.Manager.State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render.Render(st).Dropdowns[box])
}

// handleSearch answers 204 when a newer audience query overtook this one.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	box, err := search.ParseBox(r.PathValue("box"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	q := r.URL.Query().Get("q")
	if box == search.ABVRBox {
		_, err = s.Manager.SearchAudiences(r.Context(), id, q)
	} else {
		_, err = s.Manager.Search(id, box, q)
	}
	if errors.Is(err, search.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDropdown(w, id, box)
}

type pressResponse struct {
	Selection *search.Selection `json:"selection,omitempty"`
	View      render.View       `json:"view"`
}

func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	box, err := search.ParseBox(r.PathValue("box"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	var req struct {
		Key search.Key `json:"key"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sel, err := s.Manager.Press(r.Context(), id, box, req.Key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.Manager.State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pressResponse{Selection: sel, View: render.Render(st)})
}

// --- ABVRs ---

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Codes string `json:"codes"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Manager.Stage(id, req.Codes); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleUnstage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Manager.Unstage(id, r.PathValue("code")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

type batchResponse struct {
	Result brief.BatchResult `json:"result"`
	View   render.View       `json:"view"`
}

func (s *Server) handleCommitStaged(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Extra string `json:"extra"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := s.Manager.CommitStaged(r.Context(), id, req.Extra)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.Manager.State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Result: res, View: render.Render(st)})
}

func (s *Server) handleRefreshABVRs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Manager.RefreshABVRs(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

// --- Forecast, presentation, exports ---

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Manager.Forecast(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

func (s *Server) handleForecastHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.Manager.ForecastHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePresentation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Manager.Presentation(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, id, http.StatusOK)
}

// handleExport buffers the file so a failure still gets a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file := r.PathValue("file")
	var buf bytes.Buffer
	var err error
	var contentType string
	switch file {
	case "forecast.csv":
		contentType = "text/csv"
		err = s.Manager.ForecastCSV(id, &buf)
	case "audiences.csv":
		contentType = "text/csv"
		err = s.Manager.AudienceCSV(id, &buf)
	case "forecast.pdf":
		contentType = "application/pdf"
		err = s.Manager.ForecastPDF(id, &buf)
	default:
		err = fmt.Errorf("%w: unknown export %q", errBadRequest, file)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	ext := path.Ext(file)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s%s"`, strings.TrimSuffix(file, ext), time.Now().Format("2006-01-02"), ext))
	w.Write(buf.Bytes())
}

// --- Catalog ---

type catalogResponse struct {
	Cohorts   int             `json:"cohorts"`
	Locations int             `json:"locations"`
	Groups    int             `json:"groups"`
	Presets   int             `json:"presets"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Degraded  string          `json:"degraded,omitempty"`
	Refresher *polling.Status `json:"refresher,omitempty"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.Loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Catalog Unavailable", Message: "no catalog loader configured"})
		return
	}
	cat, err := s.Loader.Get(r.Context())
	if cat == nil {
		cat = &catalog.Catalog{}
	}
	resp := catalogResponse{
		Cohorts:   len(cat.Cohorts),
		Locations: len(cat.Locations),
		Groups:    len(cat.Groups),
		Presets:   len(cat.Presets),
		FetchedAt: s.Loader.FetchedAt(),
	}
	if err != nil {
		resp.Degraded = err.Error()
	}
	if s.Scheduler != nil {
		st := s.Scheduler.Status()
		resp.Refresher = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Scheduler == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Refresher Disabled", Message: "catalog refresher is not running"})
		return
	}
	task, err := s.Scheduler.Trigger("manual")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleCatalogTask(w http.ResponseWriter, r *http.Request) {
	if s.Scheduler == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Refresher Disabled", Message: "catalog refresher is not running"})
		return
	}
	task, ok := s.Scheduler.Task(r.PathValue("task"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not Found", Message: "unknown task"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}
