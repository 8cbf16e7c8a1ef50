package dom

import (
	"fmt"
	"strings"
)

// Truncation lengths for description parts.
const (
	maxAttrLen = 40
	maxHrefLen = 50
	maxTextLen = 50
)

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// visibleText derives the text a user sees for an element: the live value
// for inputs and textareas, the selected option's label for selects, else
// the normalized subtree text content.
func (v *View) visibleText(idx int) string {
	switch v.Tag(idx) {
	case "input":
		if val, ok := v.InputValue(idx); ok {
			return normalizeSpace(val)
		}
		return ""
	case "textarea":
		if val, ok := v.TextValue(idx); ok {
			return normalizeSpace(val)
		}
		if val, ok := v.InputValue(idx); ok {
			return normalizeSpace(val)
		}
		return ""
	case "select":
		for _, opt := range v.subtree(idx) {
			if v.Tag(opt) == "option" && v.OptionSelected(opt) {
				return normalizeSpace(v.textContent(opt))
			}
		}
		return ""
	}
	return normalizeSpace(v.textContent(idx))
}

// subtree returns all descendant rows of idx in document order.
func (v *View) subtree(idx int) []int {
	var out []int
	var walk func(int)
	walk = func(cur int) {
		for _, child := range v.Children(cur) {
			out = append(out, child)
			walk(child)
		}
	}
	walk(idx)
	return out
}

// textContent concatenates the text-node descendants of an element.
func (v *View) textContent(idx int) string {
	var sb strings.Builder
	var walk func(int)
	walk = func(cur int) {
		for _, child := range v.Children(cur) {
			if v.IsText(child) {
				sb.WriteString(v.NodeValue(child))
				sb.WriteByte(' ')
				continue
			}
			walk(child)
		}
	}
	walk(idx)
	return sb.String()
}

// describe builds the "<tag> {<key:value>,...} <text>" description for an
// element row. The attribute segment lists whichever identifying keys are
// present; the text segment is omitted when empty.
func (v *View) describe(idx int) string {
	tag := v.Tag(idx)

	var parts []string
	if id, ok := v.Attr(idx, "id"); ok && id != "" {
		parts = append(parts, "id:"+truncate(id, maxAttrLen))
	}
	if label, ok := v.Attr(idx, "aria-label"); ok && label != "" {
		parts = append(parts, "aria:"+truncate(label, maxAttrLen))
	} else if title, ok := v.Attr(idx, "title"); ok && title != "" {
		parts = append(parts, "aria:"+truncate(title, maxAttrLen))
	}
	if placeholder, ok := v.Attr(idx, "placeholder"); ok && placeholder != "" {
		parts = append(parts, "placeholder:"+truncate(placeholder, maxAttrLen))
	}
	if role, ok := v.Attr(idx, "role"); ok && interactiveRoles[role] {
		parts = append(parts, "role:"+role)
	}
	if tag == "input" {
		if typ, ok := v.Attr(idx, "type"); ok && typ != "" {
			parts = append(parts, "type:"+typ)
		}
	}
	if tag == "a" {
		if href, ok := v.Attr(idx, "href"); ok && href != "" {
			parts = append(parts, "href:"+truncate(href, maxHrefLen))
		}
	}

	desc := tag
	if len(parts) > 0 {
		desc = fmt.Sprintf("%s {%s}", tag, strings.Join(parts, ","))
	}
	if text := truncate(v.visibleText(idx), maxTextLen); text != "" {
		desc += " " + text
	}
	return desc
}
