package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"tabgrip-mcp-server/internal/facts"
	"tabgrip-mcp-server/internal/input"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	resourceMIMEJSON = "application/json"
)

func (s *Server) registerAllResources() {
	if s == nil || s.mcpServer == nil {
		return
	}

	s.mcpServer.AddResource(
		mcp.NewResource(
			"keymap://table",
			"Key Table",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("Every named key press-key accepts, plus the modifier aliases."),
		),
		s.handleKeymapResource,
	)

	s.mcpServer.AddResource(
		mcp.NewResource(
			"config://current",
			"Effective Configuration",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("The configuration the server is running with, after defaults and workspace overrides."),
		),
		s.handleConfigResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"tabgrip://target/{targetId}/facts{?predicate,limit}",
			"Target Facts",
			mcp.WithTemplateMIMEType(resourceMIMEJSON),
			mcp.WithTemplateDescription("Read a token-efficient slice of recorded facts for one target (optionally filtered by predicate)."),
		),
		s.handleTargetFactsResource,
	)
}

func (s *Server) handleKeymapResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	payload := map[string]interface{}{
		"keys":      input.KeyNames(),
		"modifiers": []string{"alt", "option", "ctrl", "control", "meta", "cmd", "command", "shift"},
		"notes": []string{
			"Single letters and digits work directly and need no table entry.",
			"Combos join modifiers and one main key with '+', e.g. Ctrl+Shift+T.",
		},
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}

func (s *Server) handleConfigResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := json.Marshal(s.cfg)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}

func (s *Server) handleTargetFactsResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("fact engine unavailable")
	}

	targetID := argString(request.Params.Arguments["targetId"])
	if targetID == "" {
		return nil, fmt.Errorf("missing targetId")
	}
	predicate := argString(request.Params.Arguments["predicate"])
	limit := asInt(request.Params.Arguments["limit"])
	if limit <= 0 {
		limit = 25
	}
	if limit > 500 {
		limit = 500
	}

	selected := selectRecentTargetFacts(s.engine, targetID, predicate, limit)

	payload := map[string]interface{}{
		"target_id": targetID,
		"predicate": predicate,
		"limit":     limit,
		"count":     len(selected),
		"facts":     selected,
	}
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}

// selectRecentTargetFacts walks the buffer newest-first so the limit keeps
// the most recent facts, then flips back to chronological order. Every
// event predicate carries the target id as its first argument.
func selectRecentTargetFacts(engine *facts.Engine, targetID, predicate string, limit int) []facts.Fact {
	if engine == nil || targetID == "" || limit <= 0 {
		return []facts.Fact{}
	}

	var source []facts.Fact
	if predicate != "" {
		source = engine.FactsByPredicate(predicate)
	} else {
		source = engine.Facts()
	}

	out := make([]facts.Fact, 0, min(limit, len(source)))
	for i := len(source) - 1; i >= 0 && len(out) < limit; i-- {
		f := source[i]
		if len(f.Args) == 0 {
			continue
		}
		if fmt.Sprintf("%v", f.Args[0]) != targetID {
			continue
		}
		out = append(out, f)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func argString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []string:
		if len(value) == 0 {
			return ""
		}
		return value[0]
	default:
		return fmt.Sprintf("%v", value)
	}
}

func asInt(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case float64:
		return int(value)
	case string:
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	case []string:
		if len(value) > 0 {
			return asInt(value[0])
		}
	}
	return 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
