package mcp

import (
	"context"
	"time"

	"tabgrip-mcp-server/internal/facts"
)

type QueryFactsTool struct {
	engine *facts.Engine
}

func (t *QueryFactsTool) Name() string { return "query-facts" }
func (t *QueryFactsTool) Description() string {
	return `Query the recorded event facts with a Datalog atom.

Every session, input, scan and retry event the server performs is recorded
as a fact. Query with a single atom; uppercase identifiers are variables
that get bound in the results:

  input_event(T, "press-key", Detail, Status)
  session_event(T, S, "created")
  retry_event(T, Class, Attempt)

Derived predicates added via add-rule can be queried the same way.

Returns: {results: [...], count} where each result maps variable names to
the values bound for one matching fact.`
}
func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Datalog atom, e.g. 'input_event(T, K, D, S)'",
			},
		},
		"required": []string{"query"},
	}
}
func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, err := requireStringArg(args, "query")
	if err != nil {
		return nil, err
	}
	results, err := t.engine.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"results": results, "count": len(results)}, nil
}

type ReadFactsTool struct {
	engine *facts.Engine
}

func (t *ReadFactsTool) Name() string { return "read-facts" }
func (t *ReadFactsTool) Description() string {
	return `Read raw facts for a predicate, optionally bounded by time.

Simpler than query-facts: no Datalog, just the buffered facts for one
predicate in arrival order, each with predicate, args and timestamp.
Pass since_seconds to restrict the window, or omit the predicate to dump
the whole buffer.

Returns: {facts: [...], count}.`
}
func (t *ReadFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate": map[string]interface{}{
				"type":        "string",
				"description": "Predicate name, e.g. 'input_event' (omit for all facts)",
			},
			"since_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Only facts recorded in the last N seconds",
			},
		},
	}
}
func (t *ReadFactsTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	predicate := getStringArg(args, "predicate", "")
	since := getIntArg(args, "since_seconds", 0)

	var list []facts.Fact
	switch {
	case predicate != "" && since > 0:
		after := time.Now().Add(-time.Duration(since) * time.Second)
		list = t.engine.QueryTemporal(predicate, after, time.Now())
	case predicate != "":
		list = t.engine.FactsByPredicate(predicate)
	default:
		list = t.engine.Facts()
	}
	return map[string]interface{}{"facts": list, "count": len(list)}, nil
}

type AddRuleTool struct {
	engine *facts.Engine
}

func (t *AddRuleTool) Name() string { return "add-rule" }
func (t *AddRuleTool) Description() string {
	return `Add a Datalog rule deriving new predicates from recorded facts.

Rules let you define higher-level predicates over the raw event stream,
which query-facts can then evaluate:

  failed_input(T, K) :- input_event(T, K, _, "error").
  flaky_target(T) :- retry_event(T, _, A), A >= 2.

The rule is validated against the schema before it is accepted; malformed
or unsafe rules are rejected with the analysis error.

Returns: {success: true} once the rule is installed.`
}
func (t *AddRuleTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rule": map[string]interface{}{
				"type":        "string",
				"description": "Datalog rule source, e.g. 'p(X) :- q(X, _).'",
			},
		},
		"required": []string{"rule"},
	}
}
func (t *AddRuleTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	rule, err := requireStringArg(args, "rule")
	if err != nil {
		return nil, err
	}
	if err := t.engine.AddRule(rule); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}
