package mcp

import (
	"context"

	"tabgrip-mcp-server/internal/browser"
	"tabgrip-mcp-server/internal/input"
)

type LaunchBrowserTool struct {
	manager *browser.Manager
}

func (t *LaunchBrowserTool) Name() string { return "launch-browser" }
func (t *LaunchBrowserTool) Description() string {
	return `Launch (or reconnect to) the managed Chrome instance.

USE THIS FIRST: every other tool needs a running browser.

Safe to call repeatedly. If the browser is already running and healthy the
existing connection is kept; if it crashed, the session pool is flushed and
a fresh browser is launched.

Returns: {success, control_url} - the DevTools websocket URL of the running browser.`
}
func (t *LaunchBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *LaunchBrowserTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	if err := t.manager.Start(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":     true,
		"control_url": t.manager.ControlURL(),
	}, nil
}

type ShutdownBrowserTool struct {
	manager *browser.Manager
}

func (t *ShutdownBrowserTool) Name() string { return "shutdown-browser" }
func (t *ShutdownBrowserTool) Description() string {
	return `Shut down the managed browser and detach every pooled session.

WHEN TO USE:
- At the end of an automation run
- To force a clean slate before relaunching

All pooled sessions are closed concurrently before the browser process exits.

Returns: {success: true} once the browser is gone.`
}
func (t *ShutdownBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ShutdownBrowserTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	if err := t.manager.Shutdown(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}

type ListTargetsTool struct {
	manager *browser.Manager
}

func (t *ListTargetsTool) Name() string { return "list-targets" }
func (t *ListTargetsTool) Description() string {
	return `List all open page targets (tabs) in the browser.

USE THIS to discover target IDs before interacting with a tab. Every input
and detection tool is keyed by target_id, not by session: sessions are
created on demand from the pool when a target is first used.

Returns: Array of {target_id, title, url, attached} for each page target.`
}
func (t *ListTargetsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListTargetsTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	targets, err := t.manager.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"targets": targets}, nil
}

type OpenTargetTool struct {
	manager *browser.Manager
}

func (t *OpenTargetTool) Name() string { return "open-target" }
func (t *OpenTargetTool) Description() string {
	return `Open a new page target (tab), optionally navigating to a URL.

PREREQUISITE: Browser must be running (use launch-browser first if needed).

WORKFLOW:
1. launch-browser (if not running)
2. open-target (with optional starting URL)
3. Use the returned target_id for all interaction tools

Returns: {target_id} - use it for subsequent tool calls.`
}
func (t *OpenTargetTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Optional URL to open the tab at (defaults to about:blank)",
			},
		},
	}
}
func (t *OpenTargetTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url", "")
	targetID, err := t.manager.OpenTarget(ctx, url)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"target_id": targetID}, nil
}

type CloseTargetTool struct {
	manager *browser.Manager
}

func (t *CloseTargetTool) Name() string { return "close-target" }
func (t *CloseTargetTool) Description() string {
	return `Close a page target (tab) and drop its pooled session.

The pooled session for the target is detached before the tab itself is
closed, so no stale session lingers in the pool.

Returns: {success: true} once the tab is closed.`
}
func (t *CloseTargetTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID from list-targets or open-target",
			},
		},
		"required": []string{"target_id"},
	}
}
func (t *CloseTargetTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	if err := t.manager.CloseTarget(ctx, targetID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}

type ListSessionsTool struct {
	manager *browser.Manager
}

func (t *ListSessionsTool) Name() string { return "list-sessions" }
func (t *ListSessionsTool) Description() string {
	return `List the debugging sessions currently held in the pool.

Sessions are created lazily when a tool first touches a target and evicted
after sitting idle, so this list is a point-in-time view of the pool, not
of the browser's tabs (use list-targets for those).

Returns: Array of {id, target_id, session_id, last_used}.`
}
func (t *ListSessionsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListSessionsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"sessions": t.manager.Pool().Sessions()}, nil
}

type CloseSessionTool struct {
	inputs *input.Service
}

func (t *CloseSessionTool) Name() string { return "close-session" }
func (t *CloseSessionTool) Description() string {
	return `Detach the pooled session for one target without closing the tab.

WHEN TO USE:
- The target's debugger seems wedged and you want a fresh attach
- Freeing pool capacity for a target you are done with

The tab stays open; the next tool call against the target transparently
creates a new session.

Returns: {success: true} whether or not a session existed.`
}
func (t *CloseSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "Target ID whose session should be detached",
			},
		},
		"required": []string{"target_id"},
	}
}
func (t *CloseSessionTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	targetID, err := requireStringArg(args, "target_id")
	if err != nil {
		return nil, err
	}
	return t.inputs.CloseSession(targetID), nil
}

type CloseAllSessionsTool struct {
	inputs *input.Service
}

func (t *CloseAllSessionsTool) Name() string { return "close-all-sessions" }
func (t *CloseAllSessionsTool) Description() string {
	return `Detach every pooled session, leaving all tabs open.

Useful as a reset between automation phases: the pool is emptied and
sessions are re-created on demand from then on.

Returns: {success: true}.`
}
func (t *CloseAllSessionsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *CloseAllSessionsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.inputs.CloseAllSessions(), nil
}
