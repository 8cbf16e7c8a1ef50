package input

import (
	"errors"
	"fmt"
	"strings"
)

// KeyDescriptor carries the three values a synthetic key event needs: the
// logical key, the physical code, and the legacy Windows virtual key code.
type KeyDescriptor struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"key_code"`
}

// Modifier bitmask values match the DevTools Input domain.
const (
	ModifierAlt     = 1
	ModifierControl = 2
	ModifierMeta    = 4
	ModifierShift   = 8
)

var (
	// ErrNoMainKey is returned when a combo contains only modifier tokens.
	ErrNoMainKey = errors.New("no main key in combo")
	// ErrMultipleMainKeys is returned when a combo contains more than one
	// non-modifier token.
	ErrMultipleMainKeys = errors.New("multiple main keys in combo")
	// ErrUnsupportedKey is returned when the main key has no mapping.
	ErrUnsupportedKey = errors.New("unsupported key")
)

// keyTable maps canonical key names (lower-cased) to their descriptors.
// Alphanumerics and shifted punctuation not present here are derived in
// lookupKey.
var keyTable = map[string]KeyDescriptor{
	"enter":      {Key: "Enter", Code: "Enter", KeyCode: 13},
	"return":     {Key: "Enter", Code: "Enter", KeyCode: 13},
	"tab":        {Key: "Tab", Code: "Tab", KeyCode: 9},
	"space":      {Key: " ", Code: "Space", KeyCode: 32},
	"escape":     {Key: "Escape", Code: "Escape", KeyCode: 27},
	"esc":        {Key: "Escape", Code: "Escape", KeyCode: 27},
	"backspace":  {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"delete":     {Key: "Delete", Code: "Delete", KeyCode: 46},
	"del":        {Key: "Delete", Code: "Delete", KeyCode: 46},
	"insert":     {Key: "Insert", Code: "Insert", KeyCode: 45},
	"home":       {Key: "Home", Code: "Home", KeyCode: 36},
	"end":        {Key: "End", Code: "End", KeyCode: 35},
	"pageup":     {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"pagedown":   {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"arrowup":    {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"up":         {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"arrowdown":  {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"down":       {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"arrowleft":  {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"left":       {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"arrowright": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"right":      {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"f1":         {Key: "F1", Code: "F1", KeyCode: 112},
	"f2":         {Key: "F2", Code: "F2", KeyCode: 113},
	"f3":         {Key: "F3", Code: "F3", KeyCode: 114},
	"f4":         {Key: "F4", Code: "F4", KeyCode: 115},
	"f5":         {Key: "F5", Code: "F5", KeyCode: 116},
	"f6":         {Key: "F6", Code: "F6", KeyCode: 117},
	"f7":         {Key: "F7", Code: "F7", KeyCode: 118},
	"f8":         {Key: "F8", Code: "F8", KeyCode: 119},
	"f9":         {Key: "F9", Code: "F9", KeyCode: 120},
	"f10":        {Key: "F10", Code: "F10", KeyCode: 121},
	"f11":        {Key: "F11", Code: "F11", KeyCode: 122},
	"f12":        {Key: "F12", Code: "F12", KeyCode: 123},
	"-":          {Key: "-", Code: "Minus", KeyCode: 189},
	"=":          {Key: "=", Code: "Equal", KeyCode: 187},
	"[":          {Key: "[", Code: "BracketLeft", KeyCode: 219},
	"]":          {Key: "]", Code: "BracketRight", KeyCode: 221},
	"\\":         {Key: "\\", Code: "Backslash", KeyCode: 220},
	";":          {Key: ";", Code: "Semicolon", KeyCode: 186},
	"'":          {Key: "'", Code: "Quote", KeyCode: 222},
	",":          {Key: ",", Code: "Comma", KeyCode: 188},
	".":          {Key: ".", Code: "Period", KeyCode: 190},
	"/":          {Key: "/", Code: "Slash", KeyCode: 191},
	"`":          {Key: "`", Code: "Backquote", KeyCode: 192},
}

// modifierNames maps token aliases (lower-cased) to bitmask values.
var modifierNames = map[string]int{
	"alt":     ModifierAlt,
	"option":  ModifierAlt,
	"ctrl":    ModifierControl,
	"control": ModifierControl,
	"meta":    ModifierMeta,
	"cmd":     ModifierMeta,
	"command": ModifierMeta,
	"shift":   ModifierShift,
}

// CalculateModifiers folds a list of modifier names into the Input-domain
// bitmask. Names are case-insensitive; unknown names are ignored.
func CalculateModifiers(names []string) int {
	mask := 0
	for _, name := range names {
		mask |= modifierNames[strings.ToLower(name)]
	}
	return mask
}

// isModifier reports whether a combo token names a modifier.
func isModifier(token string) bool {
	_, ok := modifierNames[strings.ToLower(token)]
	return ok
}

// LookupKey resolves a key name to its descriptor. Single letters and digits
// are derived algorithmically when not in the static table.
func LookupKey(name string) (KeyDescriptor, error) {
	if desc, ok := keyTable[strings.ToLower(name)]; ok {
		return desc, nil
	}

	runes := []rune(name)
	if len(runes) == 1 {
		r := runes[0]
		switch {
		case r >= 'a' && r <= 'z':
			upper := r - 'a' + 'A'
			return KeyDescriptor{Key: string(r), Code: "Key" + string(upper), KeyCode: int(upper)}, nil
		case r >= 'A' && r <= 'Z':
			return KeyDescriptor{Key: string(r), Code: "Key" + string(r), KeyCode: int(r)}, nil
		case r >= '0' && r <= '9':
			return KeyDescriptor{Key: string(r), Code: "Digit" + string(r), KeyCode: int(r)}, nil
		}
	}

	return KeyDescriptor{}, fmt.Errorf("%w: %q", ErrUnsupportedKey, name)
}

// Combo is a parsed key combination: one main key plus a modifier bitmask.
type Combo struct {
	Key       KeyDescriptor
	Modifiers int
}

// ParseCombo splits a "+"-joined combo such as "Ctrl+Shift+End" into its
// modifier bitmask and exactly one main key. A combo of only modifiers fails
// with ErrNoMainKey, one with several non-modifier tokens with
// ErrMultipleMainKeys, and an unmapped main key with ErrUnsupportedKey.
func ParseCombo(combo string) (Combo, error) {
	tokens := strings.Split(combo, "+")

	var modifiers []string
	mainKey := ""
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if isModifier(token) {
			modifiers = append(modifiers, token)
			continue
		}
		if mainKey != "" {
			return Combo{}, fmt.Errorf("%w: %q", ErrMultipleMainKeys, combo)
		}
		mainKey = token
	}

	if mainKey == "" {
		return Combo{}, fmt.Errorf("%w: %q", ErrNoMainKey, combo)
	}

	desc, err := LookupKey(mainKey)
	if err != nil {
		return Combo{}, err
	}
	return Combo{Key: desc, Modifiers: CalculateModifiers(modifiers)}, nil
}

// KeyNames returns the canonical names in the static table, for the keymap
// resource.
func KeyNames() []string {
	names := make([]string, 0, len(keyTable))
	for name := range keyTable {
		names = append(names, name)
	}
	return names
}
