package mcp

import (
	"context"

	"tabgrip-mcp-server/internal/dom"
)

func findOptionsFromArgs(args map[string]interface{}) dom.FindOptions {
	return dom.FindOptions{
		Root:      getIntArg(args, "root", 0),
		Selectors: getStringSliceArg(args, "selectors"),
		Threshold: getFloatArg(args, "threshold", 0),
	}
}

func findOptionsSchema() map[string]interface{} {
	return map[string]interface{}{
		"target_id": map[string]interface{}{
			"type":        "string",
			"description": "Target ID from list-targets or open-target",
		},
		"root": map[string]interface{}{
			"type":        "integer",
			"description": "Backend node ID to scope the search to its subtree (0 for whole document)",
		},
		"selectors": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Simple selectors replacing the interactive-element default: 'tag', '[attr]', '[attr=value]', 'tag[attr=value]', comma compounds",
		},
		"threshold": map[string]interface{}{
			"type":        "number",
			"description": "Minimum visible grid-point ratio in (0,1] (default from config, 0.5)",
		},
	}
}

type FindVisibleElementsTool struct {
	detector *dom.Engine
}

func (t *FindVisibleElementsTool) Name() string { return "find-visible-elements" }
func (t *FindVisibleElementsTool) Description() string {
	return `Find interactive elements that are actually visible to a user.

Takes a DOM snapshot and runs grid-sampled hit-testing over it: each
candidate is sampled at up to 8x8 points and kept only when enough points
resolve to the element itself (not an overlay covering it). Elements that
are display:none, zero-sized, fully off-viewport or buried under other
content are filtered out.

By default the candidate set is interactive elements (links, buttons,
inputs, ARIA roles and so on); pass selectors to search other elements.

Returns: Array of {marker_id, backend_node_id, tag, visible_text,
description, clipped_rect, visibility_ratio} in document order.`
}
func (t *FindVisibleElementsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": findOptionsSchema(),
		"required":   []string{"target_id"},
	}
}
func (t *FindVisibleElementsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	elements, err := t.detector.FindVisibleElements(ctx, targetID, findOptionsFromArgs(args))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"elements": elements, "count": len(elements)}, nil
}

type FindByTextTool struct {
	detector *dom.Engine
}

func (t *FindByTextTool) Name() string { return "find-by-text" }
func (t *FindByTextTool) Description() string {
	return `Find visible elements whose text contains a substring.

Matches case-insensitively against the text a user would see: rendered
text content, input values, placeholder and aria labels. Visibility
filtering is the same grid-sampled pass as find-visible-elements.

WHEN TO USE:
- Locating a button or link by its label ("Sign in", "Next")
- Checking that a message actually rendered on screen

Returns: Array of element records, same shape as find-visible-elements.`
}
func (t *FindByTextTool) InputSchema() map[string]interface{} {
	props := findOptionsSchema()
	props["text"] = map[string]interface{}{
		"type":        "string",
		"description": "Substring to match, case-insensitive",
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"target_id", "text"},
	}
}
func (t *FindByTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	text, err := requireStringArg(args, "text")
	if err != nil {
		return nil, err
	}
	elements, err := t.detector.FindByText(ctx, targetID, text, findOptionsFromArgs(args))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"elements": elements, "count": len(elements)}, nil
}

type FindClickableTool struct {
	detector *dom.Engine
}

func (t *FindClickableTool) Name() string { return "find-clickable" }
func (t *FindClickableTool) Description() string {
	return `Find visible elements that respond to clicks.

A stricter cut of find-visible-elements: links with an href, buttons,
clickable input types (submit, checkbox, radio...), elements with click
handlers or button-like ARIA roles. Click their clipped_rect centers.

Returns: Array of element records, same shape as find-visible-elements.`
}
func (t *FindClickableTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": findOptionsSchema(),
		"required":   []string{"target_id"},
	}
}
func (t *FindClickableTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	elements, err := t.detector.FindClickable(ctx, targetID, findOptionsFromArgs(args))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"elements": elements, "count": len(elements)}, nil
}

type MarkElementsTool struct {
	detector *dom.Engine
}

func (t *MarkElementsTool) Name() string { return "mark-elements" }
func (t *MarkElementsTool) Description() string {
	return `Stamp visible interactive elements with sequential marker attributes.

Runs the visibility pass, then writes a marker attribute (data-marker-id
by default) with values 1..N onto the live DOM in document order. Markers
from a previous pass are removed first, so IDs stay dense and current.

WHEN TO USE:
- Before asking a model to pick an element by number
- To correlate screenshots with the element records

Returns: Array of element records whose marker_id matches the stamped
attribute value.`
}
func (t *MarkElementsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": findOptionsSchema(),
		"required":   []string{"target_id"},
	}
}
func (t *MarkElementsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	elements, err := t.detector.MarkInteractiveElements(ctx, targetID, findOptionsFromArgs(args))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"elements": elements, "count": len(elements)}, nil
}
