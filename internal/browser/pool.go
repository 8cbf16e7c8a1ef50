package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"tabgrip-mcp-server/internal/config"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/errgroup"
)

// Hook receives pool lifecycle notifications. Events: created, evicted,
// discarded, closed.
type Hook func(event, targetID, sessionID string)

// creation tracks an in-flight attach so concurrent GetOrCreate calls for the
// same new target join a single attempt instead of racing.
type creation struct {
	done chan struct{}
	sess *Session
	err  error
}

// Pool owns at most one live Session per target. All session timers and
// teardown paths go through here.
type Pool struct {
	cfg    config.SessionsConfig
	client proto.Client
	hook   Hook

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*creation
}

func NewPool(cfg config.SessionsConfig, client proto.Client, hook Hook) *Pool {
	return &Pool{
		cfg:      cfg,
		client:   client,
		hook:     hook,
		sessions: make(map[string]*Session),
		pending:  make(map[string]*creation),
	}
}

func (p *Pool) notify(event string, sess *Session) {
	if p.hook != nil && sess != nil {
		p.hook(event, sess.TargetID, sess.ID)
	}
}

// GetOrCreate returns the live session for a target, joins an in-flight
// creation, or attaches a fresh one. Exactly one attach happens no matter how
// many callers arrive for a new target at once.
func (p *Pool) GetOrCreate(ctx context.Context, targetID string) (*Session, error) {
	if targetID == "" {
		return nil, fmt.Errorf("target id is required")
	}

	p.mu.Lock()
	if sess, ok := p.sessions[targetID]; ok {
		p.mu.Unlock()
		sess.Touch(p.cfg.IdleTimeout())
		return sess, nil
	}
	if c, ok := p.pending[targetID]; ok {
		p.mu.Unlock()
		select {
		case <-c.done:
			return c.sess, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &creation{done: make(chan struct{})}
	p.pending[targetID] = c
	p.mu.Unlock()

	sess, err := p.attach(ctx, targetID)

	p.mu.Lock()
	delete(p.pending, targetID)
	if err == nil {
		p.sessions[targetID] = sess
	}
	p.mu.Unlock()

	c.sess, c.err = sess, err
	close(c.done)

	if err != nil {
		return nil, err
	}
	sess.startIdleTimer(p.cfg.IdleTimeout(), func() { p.evict(targetID, sess) })
	p.notify("created", sess)
	return sess, nil
}

// attach binds a flat debugger session to the target and enables the Page
// domain for navigation awareness.
func (p *Pool) attach(ctx context.Context, targetID string) (*Session, error) {
	attachCtx, cancel := context.WithTimeout(ctx, p.cfg.AttachTimeout())
	defer cancel()

	raw, err := p.client.Call(attachCtx, "", "Target.attachToTarget", map[string]interface{}{
		"targetId": targetID,
		"flatten":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}

	var res struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode attach result for %s: %w", targetID, err)
	}
	if res.SessionID == "" {
		return nil, fmt.Errorf("attach to target %s: empty session id", targetID)
	}

	sess := newSession(ctx, p.client, targetID, proto.TargetSessionID(res.SessionID))
	if err := (proto.PageEnable{}).Call(sess); err != nil {
		sess.close(true)
		return nil, fmt.Errorf("enable page domain for %s: %w", targetID, err)
	}
	return sess, nil
}

// Get returns the live session for a target without creating one.
func (p *Pool) Get(targetID string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[targetID]
	return sess, ok
}

// Sessions returns metadata snapshots for all pooled sessions.
func (p *Pool) Sessions() []Info {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Count reports how many sessions are currently pooled.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// evict fires on the idle timer: detach and remove, unless the slot was
// already replaced by a newer session.
func (p *Pool) evict(targetID string, sess *Session) {
	p.mu.Lock()
	if p.sessions[targetID] != sess {
		p.mu.Unlock()
		return
	}
	delete(p.sessions, targetID)
	p.mu.Unlock()

	sess.close(true)
	log.Printf("session %s for target %s evicted after idle timeout", sess.ID, targetID)
	p.notify("evicted", sess)
}

// Discard tears down a session implicated in a failed operation. The failed
// session is never reused; the next acquire attaches a fresh one.
func (p *Pool) Discard(targetID string, sess *Session) {
	p.mu.Lock()
	if p.sessions[targetID] == sess {
		delete(p.sessions, targetID)
	}
	p.mu.Unlock()

	sess.close(true)
	p.notify("discarded", sess)
}

// Close detaches and removes the session for one target, best-effort.
func (p *Pool) Close(targetID string) {
	p.mu.Lock()
	sess, ok := p.sessions[targetID]
	if ok {
		delete(p.sessions, targetID)
	}
	p.mu.Unlock()

	if ok {
		sess.close(true)
		p.notify("closed", sess)
	}
}

// CloseAll sweeps every pooled session. Detaches run concurrently since each
// is an independent protocol call.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	var g errgroup.Group
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			sess.close(true)
			p.notify("closed", sess)
			return nil
		})
	}
	_ = g.Wait()
}
