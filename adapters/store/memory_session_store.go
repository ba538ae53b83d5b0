package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/renown/core"
	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = time.Minute

// MemorySessionStore is an in-process ports.SessionStore. A background
// sweeper purges expired sessions; it starts on first Create or an explicit
// Start and runs until Stop.
type MemorySessionStore struct {
	sessions map[string]*core.ConsoleSession
	mu       sync.Mutex

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// SessionOption configures a session store.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(o *sessionOptions) { o.ttl = ttl }
}

func WithSweepInterval(d time.Duration) SessionOption {
	return func(o *sessionOptions) { o.sweepInterval = d }
}

func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) { o.now = now }
}

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = logger }
}

func applySessionOptions(opts []SessionOption) sessionOptions {
	o := sessionOptions{
		ttl:           core.DefaultSessionTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMemorySessionStore creates an empty store. The sweeper is not running
// until Start or the first Create.
func NewMemorySessionStore(opts ...SessionOption) *MemorySessionStore {
	o := applySessionOptions(opts)
	return &MemorySessionStore{
		sessions:      make(map[string]*core.ConsoleSession),
		ttl:           o.ttl,
		sweepInterval: o.sweepInterval,
		now:           o.now,
		logger:        o.logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the sweeper. Calling it more than once is a no-op.
func (s *MemorySessionStore) Start() {
	s.startOnce.Do(func() {
		go s.sweepLoop()
	})
}

// Stop terminates the sweeper and waits for it to exit.
func (s *MemorySessionStore) Stop() {
	s.stopOnce.Do(func() {
		// Consume the start slot so a late Start does not spawn a loop.
		started := true
		s.startOnce.Do(func() { started = false })
		close(s.stop)
		if started {
			<-s.done
		}
	})
}

func (s *MemorySessionStore) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug().Int("purged", n).Msg("swept expired console sessions")
			}
		}
	}
}

// Sweep removes every expired session and returns how many were removed.
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for id, session := range s.sessions {
		if session.Expired(now, s.ttl) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged
}

// Len returns the number of sessions held, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) Create(ctx context.Context, sessionID string) (*core.ConsoleSession, bool, error) {
	s.Start()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.lookup(sessionID); existing != nil {
		cp := *existing
		return &cp, false, nil
	}

	session := s.newSession(sessionID)
	cp := *session
	return &cp, true, nil
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*core.ConsoleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.lookup(sessionID)
	if session == nil {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) Complete(ctx context.Context, sessionID string, data core.SessionCompletion) (*core.ConsoleSession, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	s.Start()

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.lookup(sessionID)
	if session == nil {
		session = s.newSession(sessionID)
	}
	session.Apply(data)

	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) Consume(ctx context.Context, sessionID string) (*core.ConsoleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.lookup(sessionID)
	if session == nil {
		return nil, nil
	}
	if session.Status == core.SessionReady {
		delete(s.sessions, sessionID)
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// lookup returns the live session for id, dropping it if expired. The
// caller holds mu.
func (s *MemorySessionStore) lookup(sessionID string) *core.ConsoleSession {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if session.Expired(s.now(), s.ttl) {
		delete(s.sessions, sessionID)
		return nil
	}
	return session
}

func (s *MemorySessionStore) newSession(sessionID string) *core.ConsoleSession {
	session := &core.ConsoleSession{
		SessionID: sessionID,
		Status:    core.SessionPending,
		CreatedAt: s.now(),
	}
	s.sessions[sessionID] = session
	return session
}
