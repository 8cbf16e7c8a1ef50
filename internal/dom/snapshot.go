// Package dom implements the visibility detection engine: grid-based
// occlusion sampling over DOMSnapshot data, interactive-element marking, and
// human-readable element descriptions.
package dom

import (
	"fmt"
	"strings"
)

// Indices into the layout style arrays, matching the computed-style whitelist
// requested at capture time.
const (
	styleDisplay = iota
	styleVisibility
	styleOpacity
	stylePointerEvents
)

// computedStyleWhitelist is the exact style list sent with
// DOMSnapshot.captureSnapshot; styles come back per layout row in this order.
var computedStyleWhitelist = []string{"display", "visibility", "opacity", "pointer-events"}

// Rect is an axis-aligned box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the visible page area plus its scroll offset, from
// Page.getLayoutMetrics.
type Viewport struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScrollX float64 `json:"scroll_x"`
	ScrollY float64 `json:"scroll_y"`
}

// RareStringData mirrors the sparse string table encoding in snapshot
// responses: Index[i] names a node row, Value[i] an entry in the string table.
type RareStringData struct {
	Index []int `json:"index"`
	Value []int `json:"value"`
}

// RareBoolData lists the node rows for which a boolean flag is set.
type RareBoolData struct {
	Index []int `json:"index"`
}

// NodeTable holds the parallel node arrays of one snapshot document.
type NodeTable struct {
	ParentIndex    []int          `json:"parentIndex"`
	NodeType       []int          `json:"nodeType"`
	NodeName       []int          `json:"nodeName"`
	NodeValue      []int          `json:"nodeValue"`
	BackendNodeID  []int          `json:"backendNodeId"`
	Attributes     [][]int        `json:"attributes"`
	TextValue      RareStringData `json:"textValue"`
	InputValue     RareStringData `json:"inputValue"`
	InputChecked   RareBoolData   `json:"inputChecked"`
	OptionSelected RareBoolData   `json:"optionSelected"`
	IsClickable    RareBoolData   `json:"isClickable"`
}

// LayoutTable holds the parallel layout arrays: one row per laid-out node.
type LayoutTable struct {
	NodeIndex   []int       `json:"nodeIndex"`
	Styles      [][]int     `json:"styles"`
	Bounds      [][]float64 `json:"bounds"`
	PaintOrders []int       `json:"paintOrders"`
}

// Document is one document in the flattened snapshot. Shadow trees and
// iframes are folded into the node table, so parentIndex chains cross
// shadow-root and host boundaries.
type Document struct {
	Nodes         NodeTable   `json:"nodes"`
	Layout        LayoutTable `json:"layout"`
	ScrollOffsetX float64     `json:"scrollOffsetX"`
	ScrollOffsetY float64     `json:"scrollOffsetY"`
}

// Snapshot is the wire shape of DOMSnapshot.captureSnapshot, decoded
// leniently: absent arrays stay empty and lookups degrade to "".
type Snapshot struct {
	Documents []Document `json:"documents"`
	Strings   []string   `json:"strings"`
}

// View wraps a snapshot with the precomputed lookups the sampling and
// marking passes need. A View is valid only for the document state at
// capture time; callers must not cache it across DOM mutations.
type View struct {
	doc      *Document
	strings  []string
	viewport Viewport

	layoutOf   map[int]int // node index -> layout row
	children   [][]int
	textValue  map[int]string
	inputValue map[int]string
	selected   map[int]bool
}

// NewView indexes the first document of a snapshot against the viewport.
func NewView(snap *Snapshot, viewport Viewport) (*View, error) {
	if snap == nil || len(snap.Documents) == 0 {
		return nil, fmt.Errorf("snapshot has no documents")
	}
	doc := &snap.Documents[0]

	v := &View{
		doc:        doc,
		strings:    snap.Strings,
		viewport:   viewport,
		layoutOf:   make(map[int]int, len(doc.Layout.NodeIndex)),
		children:   make([][]int, len(doc.Nodes.NodeType)),
		textValue:  rareStrings(doc.Nodes.TextValue, snap.Strings),
		inputValue: rareStrings(doc.Nodes.InputValue, snap.Strings),
		selected:   rareBools(doc.Nodes.OptionSelected),
	}

	for row, nodeIdx := range doc.Layout.NodeIndex {
		v.layoutOf[nodeIdx] = row
	}
	for i, parent := range doc.Nodes.ParentIndex {
		if parent >= 0 && parent < len(v.children) {
			v.children[parent] = append(v.children[parent], i)
		}
	}
	return v, nil
}

func rareStrings(data RareStringData, table []string) map[int]string {
	out := make(map[int]string, len(data.Index))
	for i, nodeIdx := range data.Index {
		if i < len(data.Value) {
			out[nodeIdx] = stringAt(table, data.Value[i])
		}
	}
	return out
}

func rareBools(data RareBoolData) map[int]bool {
	out := make(map[int]bool, len(data.Index))
	for _, nodeIdx := range data.Index {
		out[nodeIdx] = true
	}
	return out
}

func stringAt(table []string, idx int) string {
	if idx >= 0 && idx < len(table) {
		return table[idx]
	}
	return ""
}

// Viewport returns the viewport the snapshot was captured against.
func (v *View) Viewport() Viewport { return v.viewport }

// NodeCount returns the number of rows in the node table.
func (v *View) NodeCount() int { return len(v.doc.Nodes.NodeType) }

func (v *View) str(idx int) string { return stringAt(v.strings, idx) }

// IsElement reports whether a node row is an element node.
func (v *View) IsElement(idx int) bool {
	return idx >= 0 && idx < len(v.doc.Nodes.NodeType) && v.doc.Nodes.NodeType[idx] == 1
}

// IsText reports whether a node row is a text node.
func (v *View) IsText(idx int) bool {
	return idx >= 0 && idx < len(v.doc.Nodes.NodeType) && v.doc.Nodes.NodeType[idx] == 3
}

// Tag returns the lower-cased node name for a row.
func (v *View) Tag(idx int) string {
	if idx < 0 || idx >= len(v.doc.Nodes.NodeName) {
		return ""
	}
	return strings.ToLower(v.str(v.doc.Nodes.NodeName[idx]))
}

// NodeValue returns the character data of a text node row.
func (v *View) NodeValue(idx int) string {
	if idx < 0 || idx >= len(v.doc.Nodes.NodeValue) {
		return ""
	}
	return v.str(v.doc.Nodes.NodeValue[idx])
}

// Parent returns the parent node row, or -1 at the root.
func (v *View) Parent(idx int) int {
	if idx < 0 || idx >= len(v.doc.Nodes.ParentIndex) {
		return -1
	}
	return v.doc.Nodes.ParentIndex[idx]
}

// Children returns the node rows whose parent is idx, in document order.
func (v *View) Children(idx int) []int {
	if idx < 0 || idx >= len(v.children) {
		return nil
	}
	return v.children[idx]
}

// BackendNodeID returns the stable element reference for a row.
func (v *View) BackendNodeID(idx int) int {
	if idx < 0 || idx >= len(v.doc.Nodes.BackendNodeID) {
		return 0
	}
	return v.doc.Nodes.BackendNodeID[idx]
}

// Attr looks up an attribute on an element row via the string table.
func (v *View) Attr(idx int, name string) (string, bool) {
	if idx < 0 || idx >= len(v.doc.Nodes.Attributes) {
		return "", false
	}
	attrs := v.doc.Nodes.Attributes[idx]
	for i := 0; i+1 < len(attrs); i += 2 {
		if v.str(attrs[i]) == name {
			return v.str(attrs[i+1]), true
		}
	}
	return "", false
}

// HasLayout reports whether the row has a layout entry at all. Nodes with
// display:none never do.
func (v *View) HasLayout(idx int) bool {
	_, ok := v.layoutOf[idx]
	return ok
}

// Bounds returns the document-relative box for a row.
func (v *View) Bounds(idx int) (Rect, bool) {
	row, ok := v.layoutOf[idx]
	if !ok || row >= len(v.doc.Layout.Bounds) {
		return Rect{}, false
	}
	b := v.doc.Layout.Bounds[row]
	if len(b) < 4 {
		return Rect{}, false
	}
	return Rect{X: b[0], Y: b[1], Width: b[2], Height: b[3]}, true
}

// ViewportBounds returns the box translated into viewport coordinates by
// subtracting the scroll offset.
func (v *View) ViewportBounds(idx int) (Rect, bool) {
	r, ok := v.Bounds(idx)
	if !ok {
		return Rect{}, false
	}
	r.X -= v.viewport.ScrollX
	r.Y -= v.viewport.ScrollY
	return r, true
}

// Style returns one whitelisted computed style for a row, or "" when the row
// has no layout entry.
func (v *View) Style(idx, style int) string {
	row, ok := v.layoutOf[idx]
	if !ok || row >= len(v.doc.Layout.Styles) {
		return ""
	}
	styles := v.doc.Layout.Styles[row]
	if style < 0 || style >= len(styles) {
		return ""
	}
	return v.str(styles[style])
}

// PaintOrder returns the global paint order for a row.
func (v *View) PaintOrder(idx int) (int, bool) {
	row, ok := v.layoutOf[idx]
	if !ok || row >= len(v.doc.Layout.PaintOrders) {
		return 0, false
	}
	return v.doc.Layout.PaintOrders[row], true
}

// TextValue returns the rare-data text value for a row (textarea contents).
func (v *View) TextValue(idx int) (string, bool) {
	s, ok := v.textValue[idx]
	return s, ok
}

// InputValue returns the rare-data input value for a row.
func (v *View) InputValue(idx int) (string, bool) {
	s, ok := v.inputValue[idx]
	return s, ok
}

// OptionSelected reports whether an option row is currently selected.
func (v *View) OptionSelected(idx int) bool { return v.selected[idx] }
