package mcp

import (
	"encoding/json"
	"strings"
	"testing"

	"tabgrip-mcp-server/internal/browser"
	"tabgrip-mcp-server/internal/config"
	"tabgrip-mcp-server/internal/dom"
	"tabgrip-mcp-server/internal/facts"
	"tabgrip-mcp-server/internal/input"
)

func setupTestServer(t *testing.T) (*Server, *facts.Engine) {
	t.Helper()

	cfg := config.Config{
		Server: config.ServerConfig{
			Name:    "test-server",
			Version: "1.0.0",
		},
		Sessions: config.SessionsConfig{
			DefaultIdleTimeout:   "60s",
			DefaultAttachTimeout: "2s",
			RetryDelayMs:         1,
			DebugRetryDelayMs:    1,
		},
		Facts: config.FactsConfig{
			Enable:          true,
			SchemaPath:      "../../schemas/tabgrip.mg",
			FactBufferLimit: 1000,
		},
	}

	engine, err := facts.NewEngine(cfg.Facts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	manager := browser.NewManager(cfg.Browser, cfg.Sessions, nil)
	dispatcher := browser.NewDispatcher(manager.Pool(), cfg.Sessions, nil)
	inputs := input.NewService(dispatcher, cfg.Input, engine.InputEvent)
	detector := dom.NewEngine(dispatcher, cfg.Detect, engine.ScanEvent)

	server, err := NewServer(cfg, manager, inputs, detector, engine)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, engine
}

func TestNewServerRegistersTools(t *testing.T) {
	server, _ := setupTestServer(t)

	expected := []string{
		"launch-browser", "shutdown-browser",
		"list-targets", "open-target", "close-target",
		"list-sessions", "close-session", "close-all-sessions",
		"press-key", "type-text", "click", "scroll", "scroll-page",
		"find-visible-elements", "find-by-text", "find-clickable", "mark-elements",
		"query-facts", "read-facts", "add-rule",
	}
	for _, name := range expected {
		if _, ok := server.tools[name]; !ok {
			t.Errorf("expected tool %q registered", name)
		}
	}
	if len(server.tools) != len(expected) {
		t.Errorf("expected %d tools, got %d", len(expected), len(server.tools))
	}
}

func TestToolSchemasWellFormed(t *testing.T) {
	server, _ := setupTestServer(t)

	for name, tool := range server.tools {
		if tool.Description() == "" {
			t.Errorf("tool %q has empty description", name)
		}
		schema := tool.InputSchema()
		payload, err := json.Marshal(schema)
		if err != nil {
			t.Errorf("tool %q schema does not marshal: %v", name, err)
			continue
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Errorf("tool %q schema round-trip failed: %v", name, err)
			continue
		}
		if decoded["type"] != "object" {
			t.Errorf("tool %q schema type = %v, want object", name, decoded["type"])
		}
	}
}

func TestExecuteToolUnknown(t *testing.T) {
	server, _ := setupTestServer(t)

	if _, err := server.ExecuteTool("no-such-tool", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestExecuteToolMissingArgs(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name    string
		tool    string
		args    map[string]interface{}
		wantErr string
	}{
		{"press-key no target", "press-key", map[string]interface{}{"key": "Enter"}, "target_id is required"},
		{"press-key no key", "press-key", map[string]interface{}{"target_id": "t1"}, "key is required"},
		{"type-text no target", "type-text", map[string]interface{}{"text": "hi"}, "target_id is required"},
		{"click no target", "click", map[string]interface{}{"x": 1.0, "y": 2.0}, "target_id is required"},
		{"close-target no target", "close-target", map[string]interface{}{}, "target_id is required"},
		{"close-session no target", "close-session", map[string]interface{}{}, "target_id is required"},
		{"find-by-text no text", "find-by-text", map[string]interface{}{"target_id": "t1"}, "text is required"},
		{"query-facts no query", "query-facts", map[string]interface{}{}, "query is required"},
		{"add-rule no rule", "add-rule", map[string]interface{}{}, "rule is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.ExecuteTool(tt.tool, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExecuteToolOfflineBrowser(t *testing.T) {
	server, _ := setupTestServer(t)

	// Target enumeration needs a live connection.
	if _, err := server.ExecuteTool("list-targets", nil); err == nil {
		t.Error("expected error when browser not connected")
	}

	// The session pool works without one.
	result, err := server.ExecuteTool("list-sessions", nil)
	if err != nil {
		t.Fatalf("list-sessions failed: %v", err)
	}
	payload, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	sessions, ok := payload["sessions"].([]browser.Info)
	if !ok {
		t.Fatalf("unexpected sessions type %T", payload["sessions"])
	}
	if len(sessions) != 0 {
		t.Errorf("expected empty pool, got %d sessions", len(sessions))
	}
}

func TestFactToolsRoundTrip(t *testing.T) {
	server, engine := setupTestServer(t)

	engine.InputEvent("target-1", "press_key", "Enter", "ok")
	engine.InputEvent("target-2", "click", "(5,5) button=left count=1", "error")

	result, err := server.ExecuteTool("read-facts", map[string]interface{}{"predicate": "input_event"})
	if err != nil {
		t.Fatalf("read-facts failed: %v", err)
	}
	payload := result.(map[string]interface{})
	if payload["count"] != 2 {
		t.Errorf("expected count 2, got %v", payload["count"])
	}

	result, err = server.ExecuteTool("query-facts", map[string]interface{}{
		"query": `input_event(T, K, D, S).`,
	})
	if err != nil {
		t.Fatalf("query-facts failed: %v", err)
	}
	payload = result.(map[string]interface{})
	if payload["count"] != 2 {
		t.Errorf("expected 2 query bindings, got %v", payload["count"])
	}

	result, err = server.ExecuteTool("add-rule", map[string]interface{}{
		"rule": "Decl busy_target(TargetId).\n\nbusy_target(T) :- input_event(T, _, _, _).",
	})
	if err != nil {
		t.Fatalf("add-rule failed: %v", err)
	}
	payload = result.(map[string]interface{})
	if payload["success"] != true {
		t.Errorf("expected success true, got %v", payload["success"])
	}

	if _, err := server.ExecuteTool("add-rule", map[string]interface{}{"rule": "not mangle at all"}); err == nil {
		t.Error("expected error for malformed rule")
	}
}

func TestMarshalToolPayload(t *testing.T) {
	payload := marshalToolPayload("some-tool", map[string]interface{}{"success": true})
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["success"] != true {
		t.Errorf("unexpected payload: %v", decoded)
	}

	// Channels cannot be serialized; the fallback envelope still must be JSON.
	payload = marshalToolPayload("some-tool", map[string]interface{}{"ch": make(chan int)})
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("fallback payload is not valid JSON: %v", err)
	}
	if decoded["success"] != false {
		t.Errorf("expected fallback success false, got %v", decoded["success"])
	}
	if !strings.Contains(decoded["error"].(string), "non-serializable") {
		t.Errorf("unexpected fallback error: %v", decoded["error"])
	}
}
