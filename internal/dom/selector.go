package dom

import (
	"strconv"
	"strings"
)

// selector is one term of the mini selector grammar: tag, [attr],
// [attr=value], or tag[attr]. Compound lists are comma-separated.
type selector struct {
	tag      string
	attr     string
	value    string
	hasAttr  bool
	hasValue bool
}

func parseSelector(s string) selector {
	s = strings.TrimSpace(s)
	sel := selector{}

	if open := strings.IndexByte(s, '['); open >= 0 {
		sel.tag = strings.ToLower(s[:open])
		inner := s[open+1:]
		if close := strings.IndexByte(inner, ']'); close >= 0 {
			inner = inner[:close]
		}
		if eq := strings.IndexByte(inner, '='); eq >= 0 {
			sel.attr = inner[:eq]
			sel.value = strings.Trim(inner[eq+1:], `"'`)
			sel.hasValue = true
		} else {
			sel.attr = inner
		}
		sel.hasAttr = sel.attr != ""
	} else {
		sel.tag = strings.ToLower(s)
	}
	return sel
}

func parseSelectorList(list []string) []selector {
	var sels []selector
	for _, raw := range list {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			sels = append(sels, parseSelector(part))
		}
	}
	return sels
}

func (v *View) matchesSelector(idx int, sel selector) bool {
	if sel.tag != "" && v.Tag(idx) != sel.tag {
		return false
	}
	if sel.hasAttr {
		val, ok := v.Attr(idx, sel.attr)
		if !ok {
			return false
		}
		if sel.hasValue && val != sel.value {
			return false
		}
	}
	return true
}

func (v *View) matchesAny(idx int, sels []selector) bool {
	for _, sel := range sels {
		if v.matchesSelector(idx, sel) {
			return true
		}
	}
	return false
}

// interactiveRoles is the constrained ARIA role set of the default universe.
var interactiveRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"tab":      true,
	"menuitem": true,
}

// isInteractive implements the default selector universe: anchors with href,
// buttons, non-hidden inputs, textareas, selects, the constrained ARIA roles,
// click-handler attributes, non-negative tabindex, and test-id carriers.
func (v *View) isInteractive(idx int) bool {
	switch v.Tag(idx) {
	case "a":
		if _, ok := v.Attr(idx, "href"); ok {
			return true
		}
	case "button", "textarea", "select":
		return true
	case "input":
		if typ, _ := v.Attr(idx, "type"); typ != "hidden" {
			return true
		}
	}

	if role, ok := v.Attr(idx, "role"); ok && interactiveRoles[role] {
		return true
	}
	if _, ok := v.Attr(idx, "onclick"); ok {
		return true
	}
	if tabindex, ok := v.Attr(idx, "tabindex"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(tabindex)); err == nil && n >= 0 {
			return true
		}
	}
	if _, ok := v.Attr(idx, "data-testid"); ok {
		return true
	}
	return false
}

// clickableInputTypes are the input types that act as buttons or toggles.
var clickableInputTypes = map[string]bool{
	"button": true, "submit": true, "reset": true, "image": true,
	"checkbox": true, "radio": true, "file": true,
}

// isClickable restricts the universe to elements a click meaningfully lands
// on: anchors, buttons, clickable input types, click handlers, the role set,
// and focusable tabindex carriers.
func (v *View) isClickable(idx int) bool {
	switch v.Tag(idx) {
	case "a":
		if _, ok := v.Attr(idx, "href"); ok {
			return true
		}
	case "button":
		return true
	case "input":
		typ, _ := v.Attr(idx, "type")
		if clickableInputTypes[typ] {
			return true
		}
	}

	if role, ok := v.Attr(idx, "role"); ok && interactiveRoles[role] {
		return true
	}
	if _, ok := v.Attr(idx, "onclick"); ok {
		return true
	}
	if tabindex, ok := v.Attr(idx, "tabindex"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(tabindex)); err == nil && n >= 0 {
			return true
		}
	}
	return false
}
