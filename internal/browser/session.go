package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Session is one attached debugger session for a single target. It implements
// rod's proto client triple (Call/GetSessionID/GetContext), so both typed
// proto commands and raw Call(ctx, "", method, params) work against it.
//
// Sessions are owned by the Pool; callers must not hold one past the scope of
// a single dispatched operation.
type Session struct {
	ID       string
	TargetID string

	sessionID proto.TargetSessionID
	client    proto.Client
	ctx       context.Context

	mu        sync.Mutex
	lastUsed  time.Time
	idleTimer *time.Timer
	closed    bool

	closeOnce sync.Once
}

func newSession(ctx context.Context, client proto.Client, targetID string, sessionID proto.TargetSessionID) *Session {
	return &Session{
		ID:        uuid.NewString(),
		TargetID:  targetID,
		sessionID: sessionID,
		client:    client,
		ctx:       ctx,
		lastUsed:  time.Now(),
	}
}

// Call routes a protocol command through the session's attached channel.
// The sessionID argument is ignored; all commands go to this session's target.
func (s *Session) Call(ctx context.Context, _ string, method string, params interface{}) ([]byte, error) {
	return s.client.Call(ctx, string(s.sessionID), method, params)
}

// GetSessionID satisfies proto.Sessionable for typed commands.
func (s *Session) GetSessionID() proto.TargetSessionID { return s.sessionID }

// GetContext satisfies proto.Contextable for typed commands.
func (s *Session) GetContext() context.Context { return s.ctx }

// startIdleTimer arms the eviction timer. onIdle fires once after the idle
// window unless Touch keeps rescheduling it.
func (s *Session) startIdleTimer(idle time.Duration, onIdle func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.idleTimer = time.AfterFunc(idle, onIdle)
}

// Touch records a successful use and pushes the idle eviction out by the
// configured window.
func (s *Session) Touch(idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastUsed = time.Now()
	if s.idleTimer != nil {
		s.idleTimer.Reset(idle)
	}
}

// LastUsed returns when the session last completed an operation.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// close cancels the idle timer and detaches best-effort. Detach errors are
// swallowed; a dead target makes detach fail and that is fine.
func (s *Session) close(detach bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.idleTimer != nil {
			s.idleTimer.Stop()
			s.idleTimer = nil
		}
		s.mu.Unlock()

		if detach {
			_, _ = s.client.Call(s.ctx, "", "Target.detachFromTarget", map[string]interface{}{
				"sessionId": string(s.sessionID),
			})
		}
	})
}

// Info is the lightweight session metadata surfaced by list-sessions.
type Info struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id"`
	SessionID string    `json:"session_id"`
	LastUsed  time.Time `json:"last_used"`
}

// Info returns a metadata snapshot for tooling.
func (s *Session) Info() Info {
	return Info{
		ID:        s.ID,
		TargetID:  s.TargetID,
		SessionID: string(s.sessionID),
		LastUsed:  s.LastUsed(),
	}
}
