package dom

import (
	"math"
	"strings"
	"testing"
)

// testDoc builds synthetic snapshot documents for the sampling tests. String
// interning and the parallel-array bookkeeping match the wire encoding.
type testDoc struct {
	strs   []string
	strIdx map[string]int
	doc    Document
}

func newTestDoc() *testDoc {
	return &testDoc{strIdx: map[string]int{}}
}

func (td *testDoc) s(val string) int {
	if i, ok := td.strIdx[val]; ok {
		return i
	}
	td.strs = append(td.strs, val)
	td.strIdx[val] = len(td.strs) - 1
	return len(td.strs) - 1
}

// element appends an element row and returns its node index. Attribute pairs
// alternate name, value.
func (td *testDoc) element(parent int, tag string, attrs ...string) int {
	idx := len(td.doc.Nodes.NodeType)
	td.doc.Nodes.ParentIndex = append(td.doc.Nodes.ParentIndex, parent)
	td.doc.Nodes.NodeType = append(td.doc.Nodes.NodeType, 1)
	td.doc.Nodes.NodeName = append(td.doc.Nodes.NodeName, td.s(strings.ToUpper(tag)))
	td.doc.Nodes.NodeValue = append(td.doc.Nodes.NodeValue, td.s(""))
	td.doc.Nodes.BackendNodeID = append(td.doc.Nodes.BackendNodeID, 100+idx)

	var pairs []int
	for i := 0; i+1 < len(attrs); i += 2 {
		pairs = append(pairs, td.s(attrs[i]), td.s(attrs[i+1]))
	}
	td.doc.Nodes.Attributes = append(td.doc.Nodes.Attributes, pairs)
	return idx
}

// text appends a text row under parent.
func (td *testDoc) text(parent int, value string) int {
	idx := len(td.doc.Nodes.NodeType)
	td.doc.Nodes.ParentIndex = append(td.doc.Nodes.ParentIndex, parent)
	td.doc.Nodes.NodeType = append(td.doc.Nodes.NodeType, 3)
	td.doc.Nodes.NodeName = append(td.doc.Nodes.NodeName, td.s("#text"))
	td.doc.Nodes.NodeValue = append(td.doc.Nodes.NodeValue, td.s(value))
	td.doc.Nodes.BackendNodeID = append(td.doc.Nodes.BackendNodeID, 100+idx)
	td.doc.Nodes.Attributes = append(td.doc.Nodes.Attributes, nil)
	return idx
}

func (td *testDoc) inputValue(idx int, value string) {
	td.doc.Nodes.InputValue.Index = append(td.doc.Nodes.InputValue.Index, idx)
	td.doc.Nodes.InputValue.Value = append(td.doc.Nodes.InputValue.Value, td.s(value))
}

func (td *testDoc) textValue(idx int, value string) {
	td.doc.Nodes.TextValue.Index = append(td.doc.Nodes.TextValue.Index, idx)
	td.doc.Nodes.TextValue.Value = append(td.doc.Nodes.TextValue.Value, td.s(value))
}

func (td *testDoc) optionSelected(idx int) {
	td.doc.Nodes.OptionSelected.Index = append(td.doc.Nodes.OptionSelected.Index, idx)
}

// layoutStyled adds a layout row with explicit whitelisted styles.
func (td *testDoc) layoutStyled(idx int, x, y, w, h float64, paintOrder int, display, visibility, opacity, pointerEvents string) {
	td.doc.Layout.NodeIndex = append(td.doc.Layout.NodeIndex, idx)
	td.doc.Layout.Styles = append(td.doc.Layout.Styles, []int{
		td.s(display), td.s(visibility), td.s(opacity), td.s(pointerEvents),
	})
	td.doc.Layout.Bounds = append(td.doc.Layout.Bounds, []float64{x, y, w, h})
	td.doc.Layout.PaintOrders = append(td.doc.Layout.PaintOrders, paintOrder)
}

// layout adds a layout row with unremarkable styles.
func (td *testDoc) layout(idx int, x, y, w, h float64, paintOrder int) {
	td.layoutStyled(idx, x, y, w, h, paintOrder, "block", "visible", "1", "auto")
}

func (td *testDoc) view(t *testing.T, vp Viewport) *View {
	t.Helper()
	snap := &Snapshot{Documents: []Document{td.doc}, Strings: td.strs}
	v, err := NewView(snap, vp)
	if err != nil {
		t.Fatalf("NewView failed: %v", err)
	}
	return v
}

func testViewport() Viewport {
	return Viewport{Width: 800, Height: 600}
}

// page builds the common html/body scaffold and returns the body index.
func (td *testDoc) page() int {
	html := td.element(-1, "html")
	td.layout(html, 0, 0, 800, 600, 0)
	body := td.element(html, "body")
	td.layout(body, 0, 0, 800, 600, 1)
	return body
}

func TestGridAxis(t *testing.T) {
	tests := []struct {
		dimension float64
		want      int
	}{
		{0, 1},
		{2, 1},
		{5, 1},
		{8, 2},
		{10, 2},
		{25, 5},
		{40, 8},
		{100, 8},
		{5000, 8},
	}
	for _, tt := range tests {
		if got := gridAxis(tt.dimension); got != tt.want {
			t.Errorf("gridAxis(%v) = %d, want %d", tt.dimension, got, tt.want)
		}
	}
}

func TestBuildSamplePoints(t *testing.T) {
	points := buildSamplePoints(Rect{X: 10, Y: 20, Width: 100, Height: 100})
	if len(points) != 64 {
		t.Fatalf("expected 8x8 grid for a large box, got %d points", len(points))
	}
	for _, p := range points {
		if p.X < 10 || p.X > 110 || p.Y < 20 || p.Y > 120 {
			t.Errorf("sample point %+v outside the box", p)
		}
	}

	small := buildSamplePoints(Rect{Width: 10, Height: 10})
	if len(small) != 4 {
		t.Errorf("expected 2x2 grid for a 10x10 box, got %d points", len(small))
	}
}

func TestClipToViewport(t *testing.T) {
	vp := testViewport()

	clipped, ok := clipToViewport(Rect{X: -50, Y: -50, Width: 100, Height: 100}, vp)
	if !ok {
		t.Fatal("expected partially off-screen box to clip")
	}
	if clipped.X != 0 || clipped.Y != 0 || clipped.Width != 50 || clipped.Height != 50 {
		t.Errorf("unexpected clip: %+v", clipped)
	}

	if _, ok := clipToViewport(Rect{X: 900, Y: 0, Width: 100, Height: 100}, vp); ok {
		t.Error("expected fully off-screen box to be rejected")
	}
	if _, ok := clipToViewport(Rect{X: 0, Y: 700, Width: 100, Height: 100}, vp); ok {
		t.Error("expected below-viewport box to be rejected")
	}
}

func TestVisibilityRatioUnoccluded(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	button := td.element(body, "button")
	td.layout(button, 10, 10, 100, 30, 5)

	view := td.view(t, testViewport())
	ratio, clipped, ok := view.VisibilityRatio(button)
	if !ok {
		t.Fatal("expected renderable element")
	}
	if ratio != 1 {
		t.Errorf("expected ratio 1 for unoccluded element, got %v", ratio)
	}
	if clipped.X != 10 || clipped.Y != 10 || clipped.Width != 100 || clipped.Height != 30 {
		t.Errorf("unexpected clipped rect: %+v", clipped)
	}
	if !view.IsVisible(button, 0) {
		t.Error("expected element to be visible at the default threshold")
	}
}

func TestVisibilityRatioFullyOccluded(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	button := td.element(body, "button")
	td.layout(button, 10, 10, 100, 30, 5)
	overlay := td.element(body, "div")
	td.layout(overlay, 0, 0, 800, 600, 10)

	view := td.view(t, testViewport())
	ratio, _, ok := view.VisibilityRatio(button)
	if !ok {
		t.Fatal("expected renderable element")
	}
	if ratio != 0 {
		t.Errorf("expected ratio 0 under a covering overlay, got %v", ratio)
	}
	if view.IsVisible(button, 0) {
		t.Error("covered element must not be visible")
	}
}

func TestVisibilityRatioPartialOcclusion(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	button := td.element(body, "button")
	td.layout(button, 0, 0, 80, 40, 5)
	// Overlay covers the right half of the button.
	overlay := td.element(body, "div")
	td.layout(overlay, 40, 0, 760, 600, 10)

	view := td.view(t, testViewport())
	ratio, _, ok := view.VisibilityRatio(button)
	if !ok {
		t.Fatal("expected renderable element")
	}
	if math.Abs(ratio-0.5) > 1e-9 {
		t.Errorf("expected ratio 0.5 for half-covered element, got %v", ratio)
	}
	if !view.IsVisible(button, 0.5) {
		t.Error("expected visibility at threshold 0.5")
	}
	if view.IsVisible(button, 0.6) {
		t.Error("expected invisibility at threshold 0.6")
	}
}

func TestVisibilityRatioRejectsTinyElements(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	pixel := td.element(body, "a", "href", "/track")
	td.layout(pixel, 10, 10, 1, 1, 5)
	thin := td.element(body, "div")
	td.layout(thin, 10, 50, 300, 0.5, 5)

	view := td.view(t, testViewport())
	if _, _, ok := view.VisibilityRatio(pixel); ok {
		t.Error("a 1x1 element must be rejected as non-renderable")
	}
	if _, _, ok := view.VisibilityRatio(thin); ok {
		t.Error("a sub-pixel-height element must be rejected")
	}
}

func TestVisibilityRatioRejectsOffViewport(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	below := td.element(body, "button")
	td.layout(below, 10, 700, 100, 30, 5)

	view := td.view(t, testViewport())
	if _, _, ok := view.VisibilityRatio(below); ok {
		t.Error("an element entirely below the viewport must be rejected")
	}
}

func TestVisibilityRatioClipsToViewport(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	// Straddles the right edge: only 40 of 200 px are on screen.
	wide := td.element(body, "button")
	td.layout(wide, 760, 10, 200, 30, 5)

	view := td.view(t, testViewport())
	ratio, clipped, ok := view.VisibilityRatio(wide)
	if !ok {
		t.Fatal("expected partially visible element to be renderable")
	}
	if clipped.X != 760 || clipped.Width != 40 {
		t.Errorf("expected clip to the on-screen strip, got %+v", clipped)
	}
	if ratio != 1 {
		t.Errorf("expected the visible strip to be unoccluded, got %v", ratio)
	}
}

func TestVisibilityDisplayNone(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	// display:none nodes never appear in the layout table.
	hidden := td.element(body, "button")

	view := td.view(t, testViewport())
	if _, _, ok := view.VisibilityRatio(hidden); ok {
		t.Error("an element without layout must be rejected")
	}
}

func TestVisibilityCSSGate(t *testing.T) {
	td := newTestDoc()
	body := td.page()

	hidden := td.element(body, "button")
	td.layoutStyled(hidden, 10, 10, 100, 30, 5, "block", "hidden", "1", "auto")
	collapsed := td.element(body, "button")
	td.layoutStyled(collapsed, 10, 50, 100, 30, 5, "block", "collapse", "1", "auto")
	transparent := td.element(body, "button")
	td.layoutStyled(transparent, 10, 90, 100, 30, 5, "block", "visible", "0", "auto")
	inert := td.element(body, "button")
	td.layoutStyled(inert, 10, 130, 100, 30, 5, "block", "visible", "1", "none")
	faint := td.element(body, "button")
	td.layoutStyled(faint, 10, 170, 100, 30, 5, "block", "visible", "0.01", "auto")

	view := td.view(t, testViewport())
	for name, idx := range map[string]int{
		"visibility:hidden":   hidden,
		"visibility:collapse": collapsed,
		"opacity:0":           transparent,
		"pointer-events:none": inert,
	} {
		if _, _, ok := view.VisibilityRatio(idx); ok {
			t.Errorf("%s element must fail the CSS gate", name)
		}
	}
	// Barely opaque still renders.
	if _, _, ok := view.VisibilityRatio(faint); !ok {
		t.Error("opacity 0.01 must pass the CSS gate")
	}
}

func TestVisibilityHiddenAncestor(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	wrapper := td.element(body, "div", "hidden", "")
	td.layout(wrapper, 0, 0, 400, 300, 2)
	button := td.element(wrapper, "button")
	td.layout(button, 10, 10, 100, 30, 5)

	view := td.view(t, testViewport())
	if _, _, ok := view.VisibilityRatio(button); ok {
		t.Error("an element under a hidden ancestor must be rejected")
	}
}

func TestVisibilityTemplateAncestor(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	tmpl := td.element(body, "template")
	td.layout(tmpl, 0, 0, 400, 300, 2)
	button := td.element(tmpl, "button")
	td.layout(button, 10, 10, 100, 30, 5)

	view := td.view(t, testViewport())
	if _, _, ok := view.VisibilityRatio(button); ok {
		t.Error("template content must be rejected")
	}
}

func TestVisibilityTextResolvesToParent(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	button := td.element(body, "button")
	td.layout(button, 10, 10, 100, 30, 5)
	// The text run paints above its own element but belongs to it.
	label := td.text(button, "Submit")
	td.layout(label, 10, 10, 100, 30, 6)

	view := td.view(t, testViewport())
	ratio, _, ok := view.VisibilityRatio(button)
	if !ok {
		t.Fatal("expected renderable element")
	}
	if ratio != 1 {
		t.Errorf("own text on top must count as a hit, got ratio %v", ratio)
	}
}

func TestVisibilityDescendantCountsAsHit(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	button := td.element(body, "button")
	td.layout(button, 10, 10, 100, 30, 5)
	icon := td.element(button, "span")
	td.layout(icon, 10, 10, 100, 30, 7)

	view := td.view(t, testViewport())
	ratio, _, ok := view.VisibilityRatio(button)
	if !ok {
		t.Fatal("expected renderable element")
	}
	if ratio != 1 {
		t.Errorf("a descendant painted on top must count as a hit, got ratio %v", ratio)
	}
}

func TestVisibilityScrolledViewport(t *testing.T) {
	td := newTestDoc()
	html := td.element(-1, "html")
	td.layout(html, 0, 0, 800, 2000, 0)
	body := td.element(html, "body")
	td.layout(body, 0, 0, 800, 2000, 1)
	// Document position 1100; with scroll 1000 it sits at viewport y=100.
	button := td.element(body, "button")
	td.layout(button, 10, 1100, 100, 30, 5)

	view := td.view(t, Viewport{Width: 800, Height: 600, ScrollY: 1000})
	ratio, clipped, ok := view.VisibilityRatio(button)
	if !ok {
		t.Fatal("expected scrolled-into-view element to be renderable")
	}
	if ratio != 1 {
		t.Errorf("expected ratio 1, got %v", ratio)
	}
	if clipped.Y != 100 {
		t.Errorf("expected viewport-relative y=100, got %v", clipped.Y)
	}
}

func TestContainsNode(t *testing.T) {
	td := newTestDoc()
	body := td.page()
	outer := td.element(body, "div")
	inner := td.element(outer, "span")
	leaf := td.text(inner, "x")
	sibling := td.element(body, "div")

	view := td.view(t, testViewport())
	if !view.containsNode(outer, inner) {
		t.Error("direct child must be contained")
	}
	if !view.containsNode(outer, leaf) {
		t.Error("deep descendant must be contained")
	}
	if !view.containsNode(outer, outer) {
		t.Error("a node contains itself")
	}
	if view.containsNode(outer, sibling) {
		t.Error("sibling must not be contained")
	}
	if view.containsNode(inner, outer) {
		t.Error("containment is not symmetric")
	}
}
