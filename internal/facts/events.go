package facts

import (
	"context"
	"log"
	"time"
)

// Domain emit helpers. All are nil-receiver safe so wiring stays optional,
// and they log rather than fail: fact emission is best-effort.

// SessionEvent records a pool lifecycle transition: created, evicted,
// discarded, or closed.
func (e *Engine) SessionEvent(targetID, sessionID, event string) {
	e.emit(Fact{
		Predicate: "session_event",
		Args:      []interface{}{targetID, sessionID, event},
		Timestamp: time.Now(),
	})
}

// InputEvent records a completed input operation and its outcome.
func (e *Engine) InputEvent(targetID, kind, detail, status string) {
	e.emit(Fact{
		Predicate: "input_event",
		Args:      []interface{}{targetID, kind, detail, status},
		Timestamp: time.Now(),
	})
}

// ScanEvent records a detection pass: how many elements matched the
// universe and how many were visible.
func (e *Engine) ScanEvent(targetID string, matched, visible int) {
	e.emit(Fact{
		Predicate: "scan_event",
		Args:      []interface{}{targetID, matched, visible},
		Timestamp: time.Now(),
	})
}

// RetryEvent records one failed attempt inside the retry dispatcher.
func (e *Engine) RetryEvent(targetID, class string, attempt int) {
	e.emit(Fact{
		Predicate: "retry_event",
		Args:      []interface{}{targetID, class, attempt},
		Timestamp: time.Now(),
	})
}

func (e *Engine) emit(f Fact) {
	if e == nil || !e.cfg.Enable {
		return
	}
	if err := e.AddFacts(context.Background(), []Fact{f}); err != nil {
		log.Printf("fact emit %s failed: %v", f.Predicate, err)
	}
}
