package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"tabgrip-mcp-server/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// ErrNotConnected is returned when a protocol call is issued before the
// browser connection is up.
var ErrNotConnected = errors.New("browser not connected")

// Target describes one debuggable page surface.
type Target struct {
	TargetID string `json:"target_id"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Attached bool   `json:"attached"`
}

// Manager owns the Chrome connection and the session pool bound to it. It
// implements proto.Client so the pool can issue commands through whatever
// browser is currently connected.
type Manager struct {
	cfg  config.BrowserConfig
	pool *Pool

	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
}

func NewManager(cfg config.BrowserConfig, sessCfg config.SessionsConfig, hook Hook) *Manager {
	m := &Manager{cfg: cfg}
	m.pool = NewPool(sessCfg, m, hook)
	return m
}

// Pool returns the session pool bound to this browser.
func (m *Manager) Pool() *Pool { return m.pool }

// Call routes a raw protocol command through the connected browser.
func (m *Manager) Call(ctx context.Context, sessionID, method string, params interface{}) ([]byte, error) {
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, ErrNotConnected
	}
	return browser.Call(ctx, sessionID, method, params)
}

// Start connects to an existing Chrome or launches one via Rod's launcher.
// A stale connection is detected with a Version ping and replaced; orphaned
// sessions are swept when that happens.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		log.Printf("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.pool.CloseAll()
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		url, err := m.launch()
		if err != nil {
			return err
		}
		controlURL = url
	}
	if controlURL == "" {
		return errors.New("no debugger_url or launch command provided")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	log.Printf("browser connected at %s", controlURL)
	return nil
}

func (m *Manager) launch() (string, error) {
	bin := m.cfg.Launch[0]
	launch := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
	for _, rawFlag := range m.cfg.Launch[1:] {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			launch = launch.Set(flags.Flag(name), val)
		} else {
			launch = launch.Set(flags.Flag(name))
		}
	}
	url, err := launch.Launch()
	if err != nil {
		// Fallback: let Rod pick the port and defaults.
		fallback := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
		alt, altErr := fallback.Launch()
		if altErr != nil {
			return "", fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
		}
		return alt, nil
	}
	return url, nil
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected reports whether a browser connection is up.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// ListTargets enumerates page-type targets known to the browser.
func (m *Manager) ListTargets(ctx context.Context) ([]Target, error) {
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, ErrNotConnected
	}

	res, err := proto.TargetGetTargets{}.Call(browser)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	targets := make([]Target, 0, len(res.TargetInfos))
	for _, info := range res.TargetInfos {
		if info.Type != "page" {
			continue
		}
		targets = append(targets, Target{
			TargetID: string(info.TargetID),
			Title:    info.Title,
			URL:      info.URL,
			Attached: info.Attached,
		})
	}
	return targets, nil
}

// OpenTarget creates a new page target and returns its id.
func (m *Manager) OpenTarget(ctx context.Context, url string) (string, error) {
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return "", ErrNotConnected
	}
	if url == "" {
		url = "about:blank"
	}

	res, err := proto.TargetCreateTarget{URL: url}.Call(browser)
	if err != nil {
		return "", fmt.Errorf("create target: %w", err)
	}
	return string(res.TargetID), nil
}

// CloseTarget closes a page target, tearing down its pooled session first.
func (m *Manager) CloseTarget(ctx context.Context, targetID string) error {
	m.pool.Close(targetID)

	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return ErrNotConnected
	}

	if _, err := (proto.TargetCloseTarget{TargetID: proto.TargetTargetID(targetID)}).Call(browser); err != nil {
		return fmt.Errorf("close target %s: %w", targetID, err)
	}
	return nil
}

// Shutdown sweeps all sessions and closes the underlying browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.pool.CloseAll()

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	log.Printf("browser shutdown complete")
	return err
}
