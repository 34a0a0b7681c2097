// Package session owns the editing sessions: one brief per session, its
// transient editor state, and the operations that mutate it, including the
// ones that call the external services.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/search"
	"github.com/briefdesk/briefedit/pkg/services"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrActionInFlight = errors.New("action already in progress")
)

// Action names a request-backed operation. The same action may not run twice
// at once within a session; different actions may overlap.
type Action string

const (
	ActionAddCohort    Action = "add_cohort"
	ActionAddABVRs     Action = "add_abvrs"
	ActionRefreshABVRs Action = "refresh_abvrs"
	ActionForecast     Action = "forecast"
	ActionPresentation Action = "presentation"
	ActionSaveLocation Action = "save_location"
	ActionSaveGroup    Action = "save_location_group"
)

var progressLabels = map[Action]string{
	ActionAddCohort:    "Adding Cohort...",
	ActionAddABVRs:     "Adding ABVRs...",
	ActionRefreshABVRs: "Getting ABVRs...",
	ActionForecast:     "Getting Forecast...",
	ActionPresentation: "Creating Presentation...",
	ActionSaveLocation: "Saving...",
	ActionSaveGroup:    "Saving...",
}

// ProgressLabel is the button text while the action runs.
func (a Action) ProgressLabel() string {
	if l, ok := progressLabels[a]; ok {
		return l
	}
	return "Working..."
}

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

type Toast struct {
	Kind    ToastKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const maxToasts = 20

// Session is one operator's editing session.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	brief        *brief.Brief
	catalog      *catalog.Catalog
	pending      brief.PendingLocation
	staged       []string
	dropdowns    map[search.Box]*search.Dropdown
	forecast     *brief.Forecast
	presentation *brief.Presentation
	subject      string
	body         string
	toasts       []Toast
	inFlight     map[Action]bool
	debounce     *search.Debouncer

	touched time.Time // guarded by the store
}

func newSession(id string, b *brief.Brief, cat *catalog.Catalog, debounce time.Duration, now time.Time) *Session {
	if cat == nil {
		cat = &catalog.Catalog{}
	}
	s := &Session{
		ID:        id,
		CreatedAt: now,
		brief:     b,
		catalog:   cat,
		dropdowns: make(map[search.Box]*search.Dropdown, len(search.Boxes)),
		inFlight:  make(map[Action]bool),
		debounce:  search.NewDebouncer(debounce),
		touched:   now,
	}
	for _, box := range search.Boxes {
		s.dropdowns[box] = search.NewDropdown()
	}
	return s
}

// begin marks an action in flight.
func (s *Session) begin(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[a] {
		return ErrActionInFlight
	}
	s.inFlight[a] = true
	return nil
}

func (s *Session) end(a Action) {
	s.mu.Lock()
	delete(s.inFlight, a)
	s.mu.Unlock()
}

// toast records a notification. Callers hold s.mu.
func (s *Session) toast(kind ToastKind, title, message string) {
	s.toasts = append(s.toasts, Toast{Kind: kind, Title: title, Message: message, At: time.Now()})
	if len(s.toasts) > maxToasts {
		s.toasts = s.toasts[len(s.toasts)-maxToasts:]
	}
}

// fail records err as an error toast. Callers hold s.mu.
func (s *Session) fail(title string, err error) {
	var ve *brief.ValidationError
	var he *services.HTTPError
	switch {
	case errors.As(err, &ve):
		s.toast(ToastError, ve.Title, ve.Message)
	case errors.As(err, &he):
		s.toast(ToastError, title, he.Message())
	default:
		s.toast(ToastError, title, err.Error())
	}
}

// State is a consistent copy of a session for rendering.
type State struct {
	SessionID    string
	Brief        *brief.Brief
	Catalog      *catalog.Catalog
	Pending      brief.PendingLocation
	Staged       []string
	Dropdowns    map[search.Box]search.Dropdown
	Forecast     *brief.Forecast
	Presentation *brief.Presentation
	Subject      string
	Toasts       []Toast
	InFlight     map[Action]string
	Style        brief.SelectionStyle
	AgeMode      brief.AgeMode
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot(style brief.SelectionStyle, mode brief.AgeMode) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		SessionID: s.ID,
		Brief:     s.brief.Clone(),
		Catalog:   s.catalog.Clone(),
		Pending:   s.pending.Clone(),
		Staged:    append([]string(nil), s.staged...),
		Dropdowns: make(map[search.Box]search.Dropdown, len(s.dropdowns)),
		Forecast:  s.forecast,
		Subject:   s.subject,
		Toasts:    append([]Toast(nil), s.toasts...),
		InFlight:  make(map[Action]string, len(s.inFlight)),
		Style:     style,
		AgeMode:   mode,
	}
	if s.presentation != nil {
		p := *s.presentation
		st.Presentation = &p
	}
	for box, d := range s.dropdowns {
		cp := *d
		cp.Results = append([]search.Option(nil), d.Results...)
		st.Dropdowns[box] = cp
	}
	for a := range s.inFlight {
		st.InFlight[a] = a.ProgressLabel()
	}
	return st
}
