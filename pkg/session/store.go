package session

import (
	"sync"
	"time"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/search"
	"github.com/google/uuid"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 12 * time.Hour

// Store keeps sessions in memory. Idle sessions expire after TTL.
type Store struct {
	TTL      time.Duration
	Debounce time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		TTL:      ttl,
		Debounce: search.DefaultDebounce,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new session for b.
func (st *Store) Create(b *brief.Brief, cat *catalog.Catalog) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := newSession(uuid.NewString(), b, cat, st.Debounce, st.now())
	st.sessions[s.ID] = s
	return s
}

// Get returns a live session and marks it used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := st.now()
	if now.Sub(s.touched) > st.TTL {
		delete(st.sessions, id)
		return nil, ErrNotFound
	}
	s.touched = now
	return s, nil
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Sweep drops expired sessions and returns how many it dropped.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	n := 0
	for id, s := range st.sessions {
		if now.Sub(s.touched) > st.TTL {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
