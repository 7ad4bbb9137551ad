package feedback

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SaveFunc persists the session's document content.
type SaveFunc func(ctx context.Context, content string) error

// Closer is anything the session shuts down on Dispose.
type Closer interface {
	Close()
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionNotifier routes save failures to n.
func WithSessionNotifier(n Notifier) SessionOption {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithSessionClock overrides the save timestamp source.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithIslandOptions applies opts to every island the session opens.
func WithIslandOptions(opts ...IslandOption) SessionOption {
	return func(s *Session) { s.islandOpts = append(s.islandOpts, opts...) }
}

// Session is the state of one open document: its content buffer, dirty flag,
// save progress, the attached panels and the review island. It implements
// Editor for the panels and Saver for the island.
type Session struct {
	save       SaveFunc
	notifier   Notifier
	now        func() time.Time
	islandOpts []IslandOption

	mu       sync.Mutex
	content  string
	state    SaveState
	island   *Island
	closers  []Closer
	disposed bool
}

// NewSession opens a session over content; save is called on every Save.
func NewSession(content string, save SaveFunc, opts ...SessionOption) *Session {
	s := &Session{
		save:     save,
		notifier: discardNotifier{},
		now:      time.Now,
		content:  content,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// SetContent replaces the buffer with the user's edit.
func (s *Session) SetContent(content string) {
	s.mu.Lock()
	if s.disposed || content == s.content {
		s.mu.Unlock()
		return
	}
	s.content = content
	s.state.Dirty = true
	island := s.island
	s.mu.Unlock()
	if island != nil {
		island.Show()
	}
}

// ApplyTextSubstitution replaces the first occurrence of find. The buffer is
// left alone when find does not occur.
func (s *Session) ApplyTextSubstitution(find, replace string) {
	s.mu.Lock()
	if s.disposed || find == "" || !strings.Contains(s.content, find) {
		s.mu.Unlock()
		return
	}
	s.content = strings.Replace(s.content, find, replace, 1)
	s.state.Dirty = true
	island := s.island
	s.mu.Unlock()
	if island != nil {
		island.Show()
	}
}

func (s *Session) SaveState() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Save writes the current content. Edits made while the save is in flight keep
// the session dirty.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.state.Dirty {
		s.mu.Unlock()
		return &ValidationError{Reason: "nothing to save"}
	}
	if s.state.Saving {
		s.mu.Unlock()
		return &ValidationError{Reason: "save already in progress"}
	}
	s.state.Saving = true
	snapshot := s.content
	s.mu.Unlock()

	err := s.save(ctx, snapshot)

	s.mu.Lock()
	s.state.Saving = false
	if s.disposed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.mu.Unlock()
		err = &PersistenceError{Op: "save", Err: err}
		report(s.notifier, err)
		return err
	}
	s.state.SavedAt = s.now()
	s.state.Dirty = s.content != snapshot
	s.mu.Unlock()
	return nil
}

// OpenIsland attaches a review island driven by resolver over items. A previous
// island is disposed.
func (s *Session) OpenIsland(resolver Resolver, items []Item) *Island {
	island := NewIsland(resolver, s, items, s.islandOpts...)
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		island.Dispose()
		return island
	}
	prev := s.island
	s.island = island
	s.mu.Unlock()
	if prev != nil {
		prev.Dispose()
	}
	return island
}

func (s *Session) Island() *Island {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.island
}

// Track registers c to be closed when the session is disposed.
func (s *Session) Track(c Closer) {
	s.mu.Lock()
	if !s.disposed {
		s.closers = append(s.closers, c)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	c.Close()
}

// Dispose stops the island timers and closes tracked panels. In-flight results
// arriving afterwards are discarded.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	island := s.island
	closers := s.closers
	s.island = nil
	s.closers = nil
	s.mu.Unlock()

	if island != nil {
		island.Dispose()
	}
	for _, c := range closers {
		c.Close()
	}
}

func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
