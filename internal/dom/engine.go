package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tabgrip-mcp-server/internal/browser"
	"tabgrip-mcp-server/internal/config"

	"golang.org/x/sync/errgroup"
)

// ElementRecord describes one visible interactive element. Records are
// transient: they are valid only for the document state at sampling time and
// must not be cached across DOM mutations.
type ElementRecord struct {
	MarkerID        int     `json:"marker_id"`
	BackendNodeID   int     `json:"backend_node_id"`
	Tag             string  `json:"tag"`
	VisibleText     string  `json:"visible_text,omitempty"`
	Description     string  `json:"description"`
	ClippedRect     Rect    `json:"clipped_rect"`
	VisibilityRatio float64 `json:"visibility_ratio"`

	nodeIndex int
}

// FindOptions scopes and tunes a detection pass.
type FindOptions struct {
	// Root restricts the search to the subtree below this backend node id;
	// zero means the whole document.
	Root int
	// Selectors overrides the default interactive universe with the mini
	// grammar: "tag", "[attr]", "[attr=value]", "tag[attr]", comma compound.
	Selectors []string
	// Filter drops records it returns false for.
	Filter func(*ElementRecord) bool
	// Threshold overrides the visibility ratio cutoff; zero uses the
	// configured default.
	Threshold float64
}

// ScanSink observes completed detection passes, for the fact engine.
type ScanSink func(targetID string, matched, visible int)

// Engine drives capture, analysis, and marking through pooled sessions.
type Engine struct {
	dispatcher *browser.Dispatcher
	cfg        config.DetectConfig
	sink       ScanSink
}

func NewEngine(dispatcher *browser.Dispatcher, cfg config.DetectConfig, sink ScanSink) *Engine {
	return &Engine{dispatcher: dispatcher, cfg: cfg, sink: sink}
}

// capture grabs a DOM snapshot and the layout viewport in parallel through
// one session and indexes them into a View.
func (e *Engine) capture(ctx context.Context, sess *browser.Session) (*View, error) {
	var snapRaw, metricsRaw []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := sess.Call(gctx, "", "DOMSnapshot.captureSnapshot", map[string]interface{}{
			"computedStyles":    computedStyleWhitelist,
			"includeDOMRects":   true,
			"includePaintOrder": true,
		})
		if err != nil {
			return fmt.Errorf("capture snapshot: %w", err)
		}
		snapRaw = raw
		return nil
	})
	g.Go(func() error {
		raw, err := sess.Call(gctx, "", "Page.getLayoutMetrics", nil)
		if err != nil {
			return fmt.Errorf("layout metrics: %w", err)
		}
		metricsRaw = raw
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(snapRaw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var metrics struct {
		CSSLayoutViewport struct {
			PageX        float64 `json:"pageX"`
			PageY        float64 `json:"pageY"`
			ClientWidth  float64 `json:"clientWidth"`
			ClientHeight float64 `json:"clientHeight"`
		} `json:"cssLayoutViewport"`
	}
	if err := json.Unmarshal(metricsRaw, &metrics); err != nil {
		return nil, fmt.Errorf("decode layout metrics: %w", err)
	}

	return NewView(&snap, Viewport{
		Width:   metrics.CSSLayoutViewport.ClientWidth,
		Height:  metrics.CSSLayoutViewport.ClientHeight,
		ScrollX: metrics.CSSLayoutViewport.PageX,
		ScrollY: metrics.CSSLayoutViewport.PageY,
	})
}

// analyze enumerates matching elements in document order, samples each, and
// assigns marker ids 1..n with no gaps. Re-analyzing an unchanged view
// reproduces identical assignments.
func (e *Engine) analyze(view *View, opts FindOptions, universe func(*View, int) bool) (records []*ElementRecord, matched int) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = e.cfg.GetVisibilityThreshold()
	}
	sels := parseSelectorList(opts.Selectors)

	rootIdx := -1
	if opts.Root > 0 {
		for idx := 0; idx < view.NodeCount(); idx++ {
			if view.BackendNodeID(idx) == opts.Root {
				rootIdx = idx
				break
			}
		}
		if rootIdx < 0 {
			return nil, 0
		}
	}

	for idx := 0; idx < view.NodeCount(); idx++ {
		if !view.IsElement(idx) {
			continue
		}
		if rootIdx >= 0 && idx != rootIdx && !view.containsNode(rootIdx, idx) {
			continue
		}
		if len(sels) > 0 {
			if !view.matchesAny(idx, sels) {
				continue
			}
		} else if !universe(view, idx) {
			continue
		}
		matched++

		ratio, clipped, ok := view.VisibilityRatio(idx)
		if !ok || ratio < threshold {
			continue
		}

		rec := &ElementRecord{
			BackendNodeID:   view.BackendNodeID(idx),
			Tag:             view.Tag(idx),
			VisibleText:     truncate(view.visibleText(idx), maxTextLen),
			Description:     view.describe(idx),
			ClippedRect:     clipped,
			VisibilityRatio: ratio,
			nodeIndex:       idx,
		}
		if opts.Filter != nil && !opts.Filter(rec) {
			continue
		}
		records = append(records, rec)
	}

	for i, rec := range records {
		rec.MarkerID = i + 1
	}
	return records, matched
}

func (e *Engine) emit(targetID string, matched, visible int) {
	if e.sink != nil {
		e.sink(targetID, matched, visible)
	}
}

func (e *Engine) find(ctx context.Context, targetID string, opts FindOptions, universe func(*View, int) bool) ([]ElementRecord, error) {
	var out []ElementRecord
	var matched int
	err := e.dispatcher.WithSession(ctx, targetID, func(sess *browser.Session) error {
		view, err := e.capture(ctx, sess)
		if err != nil {
			return err
		}
		records, m := e.analyze(view, opts, universe)
		matched = m
		out = make([]ElementRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(targetID, matched, len(out))
	return out, nil
}

// FindVisibleElements returns all visible elements of the default
// interactive universe (or the selector override in opts).
func (e *Engine) FindVisibleElements(ctx context.Context, targetID string, opts FindOptions) ([]ElementRecord, error) {
	return e.find(ctx, targetID, opts, (*View).isInteractive)
}

// FindByText narrows the visible set to records whose visible text or
// description contains the given text, case-insensitively.
func (e *Engine) FindByText(ctx context.Context, targetID, text string, opts FindOptions) ([]ElementRecord, error) {
	needle := strings.ToLower(text)
	base := opts.Filter
	opts.Filter = func(rec *ElementRecord) bool {
		if base != nil && !base(rec) {
			return false
		}
		return strings.Contains(strings.ToLower(rec.VisibleText), needle) ||
			strings.Contains(strings.ToLower(rec.Description), needle)
	}
	return e.find(ctx, targetID, opts, (*View).isInteractive)
}

// FindClickable returns the clickable subset of the universe.
func (e *Engine) FindClickable(ctx context.Context, targetID string, opts FindOptions) ([]ElementRecord, error) {
	return e.find(ctx, targetID, opts, (*View).isClickable)
}

// MarkInteractiveElements runs a full marking pass: prior markers in the
// search root are cleared, then every visible match is stamped with a
// strictly increasing id starting at 1 in document order. The marker
// attribute carries the id so external callers can reference "element 7"
// without re-deriving selectors.
func (e *Engine) MarkInteractiveElements(ctx context.Context, targetID string, opts FindOptions) ([]ElementRecord, error) {
	attr := e.cfg.GetMarkerAttribute()

	var out []ElementRecord
	var matched int
	err := e.dispatcher.WithSession(ctx, targetID, func(sess *browser.Session) error {
		view, err := e.capture(ctx, sess)
		if err != nil {
			return err
		}
		records, m := e.analyze(view, opts, (*View).isInteractive)
		matched = m

		// Stale markers from earlier passes, wherever they are in the tree.
		var stale []int
		for idx := 0; idx < view.NodeCount(); idx++ {
			if !view.IsElement(idx) {
				continue
			}
			if _, ok := view.Attr(idx, attr); ok {
				stale = append(stale, view.BackendNodeID(idx))
			}
		}

		if err := e.stamp(ctx, sess, attr, stale, records); err != nil {
			return err
		}

		out = make([]ElementRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(targetID, matched, len(out))
	return out, nil
}

// stamp translates backend node ids into frontend node ids and rewrites the
// marker attribute: removals first, then assignments.
func (e *Engine) stamp(ctx context.Context, sess *browser.Session, attr string, stale []int, records []*ElementRecord) error {
	backendIDs := make([]int, 0, len(stale)+len(records))
	backendIDs = append(backendIDs, stale...)
	for _, rec := range records {
		backendIDs = append(backendIDs, rec.BackendNodeID)
	}
	if len(backendIDs) == 0 {
		return nil
	}

	if _, err := sess.Call(ctx, "", "DOM.enable", nil); err != nil {
		return fmt.Errorf("enable dom domain: %w", err)
	}
	if _, err := sess.Call(ctx, "", "DOM.getDocument", map[string]interface{}{"depth": 0}); err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	raw, err := sess.Call(ctx, "", "DOM.pushNodesByBackendIdsToFrontend", map[string]interface{}{
		"backendNodeIds": backendIDs,
	})
	if err != nil {
		return fmt.Errorf("push nodes to frontend: %w", err)
	}
	var pushed struct {
		NodeIDs []int `json:"nodeIds"`
	}
	if err := json.Unmarshal(raw, &pushed); err != nil {
		return fmt.Errorf("decode pushed node ids: %w", err)
	}
	if len(pushed.NodeIDs) != len(backendIDs) {
		return fmt.Errorf("pushed %d nodes, expected %d", len(pushed.NodeIDs), len(backendIDs))
	}

	for i := range stale {
		nodeID := pushed.NodeIDs[i]
		if nodeID == 0 {
			continue
		}
		_, _ = sess.Call(ctx, "", "DOM.removeAttribute", map[string]interface{}{
			"nodeId": nodeID,
			"name":   attr,
		})
	}

	for i, rec := range records {
		nodeID := pushed.NodeIDs[len(stale)+i]
		if nodeID == 0 {
			continue
		}
		if _, err := sess.Call(ctx, "", "DOM.setAttributeValue", map[string]interface{}{
			"nodeId": nodeID,
			"name":   attr,
			"value":  strconv.Itoa(rec.MarkerID),
		}); err != nil {
			return fmt.Errorf("stamp marker %d: %w", rec.MarkerID, err)
		}
	}
	return nil
}
