package dom

import (
	"math"
	"strconv"
	"strings"
)

// DefaultThreshold is the fraction of sample points that must resolve to the
// target for it to count as visible.
const DefaultThreshold = 0.5

// Grid sampling bounds: spacing of roughly 5px per axis, capped at 8x8 points
// so no element ever costs more than 64 hit-tests.
const (
	gridSpacing = 5.0
	gridMaxAxis = 8
)

// Point is a viewport coordinate used to probe paint order.
type Point struct {
	X float64
	Y float64
}

// clipToViewport intersects a viewport-relative box with the visible area.
// The second return is false when the clipped box has non-positive area.
func clipToViewport(r Rect, vp Viewport) (Rect, bool) {
	x1 := math.Max(r.X, 0)
	y1 := math.Max(r.Y, 0)
	x2 := math.Min(r.X+r.Width, vp.Width)
	y2 := math.Min(r.Y+r.Height, vp.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}, false
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

func gridAxis(dimension float64) int {
	n := int(math.Round(dimension / gridSpacing))
	if n < 1 {
		n = 1
	}
	if n > gridMaxAxis {
		n = gridMaxAxis
	}
	return n
}

// buildSamplePoints lays a cols x rows grid over the clipped box, one point
// at the center of each cell.
func buildSamplePoints(r Rect) []Point {
	cols := gridAxis(r.Width)
	rows := gridAxis(r.Height)

	points := make([]Point, 0, cols*rows)
	cellW := r.Width / float64(cols)
	cellH := r.Height / float64(rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			points = append(points, Point{
				X: r.X + (float64(col)+0.5)*cellW,
				Y: r.Y + (float64(row)+0.5)*cellH,
			})
		}
	}
	return points
}

func contains(r Rect, p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// cssVisible applies the CSS-level gate: the element's own display,
// visibility, opacity, and pointer-events, plus a parent-chain walk for
// hidden attributes and <template> ancestors. Nodes dropped from layout by
// display:none fail immediately since they have no layout row.
func (v *View) cssVisible(idx int) bool {
	if !v.HasLayout(idx) {
		return false
	}
	if v.Style(idx, styleDisplay) == "none" {
		return false
	}
	switch v.Style(idx, styleVisibility) {
	case "hidden", "collapse":
		return false
	}
	if opacity := v.Style(idx, styleOpacity); opacity != "" {
		if val, err := strconv.ParseFloat(opacity, 64); err == nil && val <= 0 {
			return false
		}
	}
	if v.Style(idx, stylePointerEvents) == "none" {
		return false
	}

	// Reachability walk up the parent chain; the visited set guards against
	// malformed parentIndex cycles.
	visited := make(map[int]bool)
	for cur := idx; cur >= 0 && !visited[cur]; cur = v.Parent(cur) {
		visited[cur] = true
		if _, hidden := v.Attr(cur, "hidden"); hidden {
			return false
		}
		if cur != idx && v.Tag(cur) == "template" {
			return false
		}
	}
	return true
}

// hitTestable reports whether a row participates in topmost hit-testing.
func (v *View) hitTestable(idx int) bool {
	switch v.Style(idx, styleVisibility) {
	case "hidden", "collapse":
		return false
	}
	return v.Style(idx, stylePointerEvents) != "none"
}

// topmostAt resolves the node painted on top at a viewport point: the laid
// out row with the highest paint order whose box contains the point. Text
// rows resolve to their parent element. Returns -1 when nothing is painted
// there.
func (v *View) topmostAt(p Point) int {
	best := -1
	bestOrder := -1
	for row, nodeIdx := range v.doc.Layout.NodeIndex {
		if row >= len(v.doc.Layout.Bounds) {
			break
		}
		b := v.doc.Layout.Bounds[row]
		if len(b) < 4 {
			continue
		}
		box := Rect{X: b[0] - v.viewport.ScrollX, Y: b[1] - v.viewport.ScrollY, Width: b[2], Height: b[3]}
		if !contains(box, p) {
			continue
		}

		resolved := nodeIdx
		if v.IsText(nodeIdx) {
			resolved = v.Parent(nodeIdx)
		}
		if resolved < 0 || !v.hitTestable(nodeIdx) {
			continue
		}

		order := 0
		if row < len(v.doc.Layout.PaintOrders) {
			order = v.doc.Layout.PaintOrders[row]
		}
		if order > bestOrder {
			bestOrder = order
			best = resolved
		}
	}
	return best
}

// containsNode answers the reachability query "is node inside ancestor": it
// walks node's parent chain, which in the flattened snapshot crosses
// shadow-root and host boundaries. A visited set bounds the traversal.
func (v *View) containsNode(ancestor, node int) bool {
	if ancestor < 0 || node < 0 {
		return false
	}
	visited := make(map[int]bool)
	for cur := node; cur >= 0 && !visited[cur]; cur = v.Parent(cur) {
		if cur == ancestor {
			return true
		}
		visited[cur] = true
	}
	return false
}

// VisibilityRatio samples the element's clipped box and returns the fraction
// of points at which the element (or a node contained by it) is the topmost
// paintable node. The second return is false when the element is not
// renderable or fails the CSS gate; such elements are excluded, never erred.
func (v *View) VisibilityRatio(idx int) (float64, Rect, bool) {
	box, ok := v.ViewportBounds(idx)
	if !ok || box.Width <= 1 || box.Height <= 1 {
		return 0, Rect{}, false
	}
	clipped, ok := clipToViewport(box, v.viewport)
	if !ok {
		return 0, Rect{}, false
	}
	if !v.cssVisible(idx) {
		return 0, Rect{}, false
	}

	points := buildSamplePoints(clipped)
	if len(points) == 0 {
		return 1, clipped, true
	}

	hits := 0
	for _, p := range points {
		top := v.topmostAt(p)
		if top < 0 {
			continue
		}
		if top == idx || v.containsNode(idx, top) {
			hits++
		}
	}
	return float64(hits) / float64(len(points)), clipped, true
}

// IsVisible decides whether an element counts as visible for interaction at
// the given threshold (<= 0 selects the default).
func (v *View) IsVisible(idx int, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	ratio, _, ok := v.VisibilityRatio(idx)
	return ok && ratio >= threshold
}

// normalizeSpace collapses whitespace runs, the way rendered text reads.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
