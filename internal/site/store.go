package site

import (
	"context"
	"sync"
	"time"

	"luxemap/estates/internal/logging"
)

// EvictFunc is called for every session removed for being idle.
type EvictFunc func(ctx context.Context, visitorID string)

// Store maps visitor ids to sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	props    PropertyIndex
	idleTTL  time.Duration
	onEvict  []EvictFunc
	now      func() time.Time
}

func NewStore(props PropertyIndex, idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		props:    props,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// OnEvict registers a teardown hook, e.g. dropping the visitor's chat.
func (st *Store) OnEvict(fn EvictFunc) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onEvict = append(st.onEvict, fn)
}

// Session returns the visitor's session, creating it on first use, and
// marks it as recently seen.
func (st *Store) Session(visitorID string) *Session {
	now := st.now()
	st.mu.Lock()
	s, ok := st.sessions[visitorID]
	if !ok {
		s = newSession(visitorID, st.props, now)
		st.sessions[visitorID] = s
	}
	st.mu.Unlock()
	s.touch(now)
	return s
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// EvictIdle removes sessions not seen for longer than the idle TTL and
// returns their ids.
func (st *Store) EvictIdle(ctx context.Context) []string {
	now := st.now()
	var evicted []string

	st.mu.Lock()
	for id, s := range st.sessions {
		if s.idleSince(now) > st.idleTTL {
			delete(st.sessions, id)
			evicted = append(evicted, id)
		}
	}
	hooks := append([]EvictFunc(nil), st.onEvict...)
	st.mu.Unlock()

	for _, id := range evicted {
		for _, fn := range hooks {
			fn(ctx, id)
		}
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (st *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := len(st.EvictIdle(ctx)); n > 0 {
				logging.Logger.Infof("Session cleanup removed %d idle visitors.", n)
			}
		}
	}
}
