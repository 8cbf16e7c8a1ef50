package input

import (
	"context"
	"fmt"
	"time"

	"tabgrip-mcp-server/internal/browser"
	"tabgrip-mcp-server/internal/config"

	"github.com/go-rod/rod/lib/proto"
)

// Result is the uniform outcome shape for every input operation. Operations
// never return a Go error to the caller; internal failures are converted at
// the operation boundary.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{Success: true} }

func fail(err error) Result { return Result{Success: false, Error: err.Error()} }

// EventSink observes completed operations, for the fact engine and recorder.
type EventSink func(targetID, kind, detail, status string)

// Service translates high-level input intents into protocol calls, each as a
// single bounded-retry unit of work through the dispatcher.
type Service struct {
	dispatcher *browser.Dispatcher
	cfg        config.InputConfig
	sink       EventSink
}

func NewService(dispatcher *browser.Dispatcher, cfg config.InputConfig, sink EventSink) *Service {
	return &Service{dispatcher: dispatcher, cfg: cfg, sink: sink}
}

func (s *Service) emit(targetID, kind, detail string, res Result) Result {
	if s.sink != nil {
		status := "ok"
		if !res.Success {
			status = "error"
		}
		s.sink(targetID, kind, detail, status)
	}
	return res
}

// PressKey parses a "+"-joined combo and dispatches a synthetic key-down
// followed by key-up with the resolved modifier bitmask. Malformed combos
// fail immediately; retrying cannot help them.
func (s *Service) PressKey(ctx context.Context, targetID, combo string) Result {
	parsed, err := ParseCombo(combo)
	if err != nil {
		return s.emit(targetID, "press_key", combo, fail(err))
	}

	err = s.dispatcher.WithSession(ctx, targetID, func(sess *browser.Session) error {
		down := proto.InputDispatchKeyEvent{
			Type:                  proto.InputDispatchKeyEventTypeKeyDown,
			Modifiers:             parsed.Modifiers,
			Key:                   parsed.Key.Key,
			Code:                  parsed.Key.Code,
			WindowsVirtualKeyCode: parsed.Key.KeyCode,
		}
		// Printable single-rune keys carry text so the page sees a character.
		if len([]rune(parsed.Key.Key)) == 1 && parsed.Modifiers&^ModifierShift == 0 {
			down.Text = parsed.Key.Key
		}
		if err := down.Call(sess); err != nil {
			return fmt.Errorf("key down %q: %w", combo, err)
		}

		up := proto.InputDispatchKeyEvent{
			Type:                  proto.InputDispatchKeyEventTypeKeyUp,
			Modifiers:             parsed.Modifiers,
			Key:                   parsed.Key.Key,
			Code:                  parsed.Key.Code,
			WindowsVirtualKeyCode: parsed.Key.KeyCode,
		}
		if err := up.Call(sess); err != nil {
			return fmt.Errorf("key up %q: %w", combo, err)
		}
		return nil
	})
	if err != nil {
		return s.emit(targetID, "press_key", combo, fail(err))
	}
	return s.emit(targetID, "press_key", combo, ok())
}

// TypeText inserts the string one character at a time, pausing delay between
// characters to simulate human-paced typing. A negative delay uses the
// configured default; zero disables the pause.
func (s *Service) TypeText(ctx context.Context, targetID, text string, delay time.Duration) Result {
	if delay < 0 {
		delay = s.cfg.TypeDelay()
	}

	err := s.dispatcher.WithSession(ctx, targetID, func(sess *browser.Session) error {
		runes := []rune(text)
		for i, r := range runes {
			if err := (proto.InputInsertText{Text: string(r)}).Call(sess); err != nil {
				return fmt.Errorf("insert text at %d: %w", i, err)
			}
			if delay > 0 && i < len(runes)-1 {
				if err := sleep(ctx, delay); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return s.emit(targetID, "type_text", fmt.Sprintf("%d chars", len([]rune(text))), fail(err))
	}
	return s.emit(targetID, "type_text", fmt.Sprintf("%d chars", len([]rune(text))), ok())
}

// ClickOptions tunes a synthetic click.
type ClickOptions struct {
	Button     string `json:"button,omitempty"`
	ClickCount int    `json:"click_count,omitempty"`
}

// Click dispatches a mouse-press then mouse-release at viewport coordinates.
func (s *Service) Click(ctx context.Context, targetID string, x, y float64, opts ClickOptions) Result {
	button := proto.InputMouseButton(opts.Button)
	if button == "" {
		button = proto.InputMouseButtonLeft
	}
	clickCount := opts.ClickCount
	if clickCount <= 0 {
		clickCount = 1
	}

	detail := fmt.Sprintf("%s@%.0f,%.0f", button, x, y)
	err := s.dispatcher.WithSession(ctx, targetID, func(sess *browser.Session) error {
		press := proto.InputDispatchMouseEvent{
			Type:       proto.InputDispatchMouseEventTypeMousePressed,
			X:          x,
			Y:          y,
			Button:     button,
			ClickCount: clickCount,
		}
		if err := press.Call(sess); err != nil {
			return fmt.Errorf("mouse press: %w", err)
		}

		release := proto.InputDispatchMouseEvent{
			Type:       proto.InputDispatchMouseEventTypeMouseReleased,
			X:          x,
			Y:          y,
			Button:     button,
			ClickCount: clickCount,
		}
		if err := release.Call(sess); err != nil {
			return fmt.Errorf("mouse release: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.emit(targetID, "click", detail, fail(err))
	}
	return s.emit(targetID, "click", detail, ok())
}

// ScrollParams positions a wheel event and its deltas.
type ScrollParams struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
}

// Scroll dispatches a wheel event at the given point with the given deltas.
func (s *Service) Scroll(ctx context.Context, targetID string, params ScrollParams) Result {
	detail := fmt.Sprintf("d=%.0f,%.0f", params.DeltaX, params.DeltaY)
	err := s.dispatcher.WithSession(ctx, targetID, func(sess *browser.Session) error {
		wheel := proto.InputDispatchMouseEvent{
			Type:   proto.InputDispatchMouseEventTypeMouseWheel,
			X:      params.X,
			Y:      params.Y,
			DeltaX: params.DeltaX,
			DeltaY: params.DeltaY,
		}
		if err := wheel.Call(sess); err != nil {
			return fmt.Errorf("mouse wheel: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.emit(targetID, "scroll", detail, fail(err))
	}
	return s.emit(targetID, "scroll", detail, ok())
}

// The page-scroll wrappers are defined purely in terms of PressKey.

func (s *Service) ScrollPageDown(ctx context.Context, targetID string) Result {
	return s.PressKey(ctx, targetID, "PageDown")
}

func (s *Service) ScrollPageUp(ctx context.Context, targetID string) Result {
	return s.PressKey(ctx, targetID, "PageUp")
}

func (s *Service) ScrollToTop(ctx context.Context, targetID string) Result {
	return s.PressKey(ctx, targetID, "Ctrl+Home")
}

func (s *Service) ScrollToBottom(ctx context.Context, targetID string) Result {
	return s.PressKey(ctx, targetID, "Ctrl+End")
}

// CloseSession detaches and removes the pooled session for one target.
func (s *Service) CloseSession(targetID string) Result {
	s.dispatcher.Pool().Close(targetID)
	return s.emit(targetID, "close_session", "", ok())
}

// CloseAllSessions sweeps every pooled session.
func (s *Service) CloseAllSessions() Result {
	s.dispatcher.Pool().CloseAll()
	return s.emit("", "close_all_sessions", "", ok())
}

// sleep pauses without losing cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
