package mcp

import (
	"context"
	"time"

	"tabgrip-mcp-server/internal/input"
)

type PressKeyTool struct {
	inputs *input.Service
}

func (t *PressKeyTool) Name() string { return "press-key" }
func (t *PressKeyTool) Description() string {
	return `Press a key or key combination on a target.

COMBO SYNTAX: modifiers and a main key joined by "+", e.g.
"Enter", "Tab", "Ctrl+A", "Shift+Tab", "Cmd+Shift+P", "F5".

Modifier aliases: alt/option, ctrl/control, meta/cmd/command, shift.
Named keys include Enter, Tab, Escape, Backspace, Delete, Home, End,
PageUp, PageDown, the arrow keys and F1-F12; single letters and digits
work directly. See the keymap://table resource for the full table.

Unknown main keys fail immediately without touching the browser.

Returns: {success, error?}.`
}
func (t *PressKeyTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID from list-targets or open-target",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Key or combo, e.g. 'Enter' or 'Ctrl+Shift+T'",
			},
		},
		"required": []string{"target_id", "key"},
	}
}
func (t *PressKeyTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	combo, err := requireStringArg(args, "key")
	if err != nil {
		return nil, err
	}
	return t.inputs.PressKey(ctx, targetID, combo), nil
}

type TypeTextTool struct {
	inputs *input.Service
}

func (t *TypeTextTool) Name() string { return "type-text" }
func (t *TypeTextTool) Description() string {
	return `Type text into the focused element, one character at a time.

Characters are inserted through the protocol with a small delay between
them to mimic human typing; set delay_ms to 0 for instant insertion.

PREREQUISITE: the desired element must already have focus (click it first).

Returns: {success, error?}.`
}
func (t *TypeTextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID from list-targets or open-target",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type into the focused element",
			},
			"delay_ms": map[string]interface{}{
				"type":        "integer",
				"description": "Milliseconds between characters (default from config, 0 for none)",
			},
		},
		"required": []string{"target_id", "text"},
	}
}
func (t *TypeTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	text := getStringArg(args, "text", "")
	delay := time.Duration(getIntArg(args, "delay_ms", -1))
	if delay > 0 {
		delay *= time.Millisecond
	}
	return t.inputs.TypeText(ctx, targetID, text, delay), nil
}

type ClickTool struct {
	inputs *input.Service
}

func (t *ClickTool) Name() string { return "click" }
func (t *ClickTool) Description() string {
	return `Click at viewport coordinates on a target.

Dispatches a mouse press followed by a release at (x, y). Use the
detection tools (find-visible-elements, mark-elements) to discover
element rectangles, then click their centers.

Set click_count to 2 for a double click and button to "right" for a
context click.

Returns: {success, error?}.`
}
func (t *ClickTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID from list-targets or open-target",
			},
			"x": map[string]interface{}{
				"type":        "number",
				"description": "Viewport X coordinate",
			},
			"y": map[string]interface{}{
				"type":        "number",
				"description": "Viewport Y coordinate",
			},
			"button": map[string]interface{}{
				"type":        "string",
				"description": "Mouse button: left (default), right, middle",
			},
			"click_count": map[string]interface{}{
				"type":        "integer",
				"description": "Number of clicks, 2 for double click (default 1)",
			},
		},
		"required": []string{"target_id", "x", "y"},
	}
}
func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	x := getFloatArg(args, "x", 0)
	y := getFloatArg(args, "y", 0)
	opts := input.ClickOptions{
		Button:     getStringArg(args, "button", ""),
		ClickCount: getIntArg(args, "click_count", 0),
	}
	return t.inputs.Click(ctx, targetID, x, y, opts), nil
}

type ScrollTool struct {
	inputs *input.Service
}

func (t *ScrollTool) Name() string { return "scroll" }
func (t *ScrollTool) Description() string {
	return `Scroll by wheel deltas at a point on the target.

Positive delta_y scrolls down, negative scrolls up; delta_x scrolls
horizontally. The (x, y) point determines which scrollable container
receives the wheel event and defaults to near the top-left of the
viewport.

For whole-page jumps prefer scroll-page.

Returns: {success, error?}.`
}
func (t *ScrollTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID from list-targets or open-target",
			},
			"delta_x": map[string]interface{}{
				"type":        "number",
				"description": "Horizontal scroll amount in pixels",
			},
			"delta_y": map[string]interface{}{
				"type":        "number",
				"description": "Vertical scroll amount in pixels (positive is down)",
			},
			"x": map[string]interface{}{
				"type":        "number",
				"description": "Viewport X for the wheel event (default 100)",
			},
			"y": map[string]interface{}{
				"type":        "number",
				"description": "Viewport Y for the wheel event (default 100)",
			},
		},
		"required": []string{"target_id"},
	}
}
func (t *ScrollTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	params := input.ScrollParams{
		X:      getFloatArg(args, "x", 100),
		Y:      getFloatArg(args, "y", 100),
		DeltaX: getFloatArg(args, "delta_x", 0),
		DeltaY: getFloatArg(args, "delta_y", 0),
	}
	return t.inputs.Scroll(ctx, targetID, params), nil
}

type ScrollPageTool struct {
	inputs *input.Service
}

func (t *ScrollPageTool) Name() string { return "scroll-page" }
func (t *ScrollPageTool) Description() string {
	return `Scroll the page by a full viewport or jump to an edge.

DIRECTIONS:
- "down" / "up": one page via PageDown / PageUp
- "top" / "bottom": jump to the document edge via Ctrl+Home / Ctrl+End

Uses key presses rather than wheel events, so it tracks whatever element
owns keyboard focus.

Returns: {success, error?}.`
}
func (t *ScrollPageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID from list-targets or open-target",
			},
			"direction": map[string]interface{}{
				"type":        "string",
				"description": "One of: down, up, top, bottom (default down)",
			},
		},
		"required": []string{"target_id"},
	}
}
func (t *ScrollPageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	switch getStringArg(args, "direction", "down") {
	case "up":
		return t.inputs.ScrollPageUp(ctx, targetID), nil
	case "top":
		return t.inputs.ScrollToTop(ctx, targetID), nil
	case "bottom":
		return t.inputs.ScrollToBottom(ctx, targetID), nil
	default:
		return t.inputs.ScrollPageDown(ctx, targetID), nil
	}
}
