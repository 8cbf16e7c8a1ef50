package browser

import "strings"

// Class buckets a failed protocol operation for retry-delay selection.
type Class int

const (
	// ClassGeneric covers every failure that does not match a known
	// debugging-transport pattern.
	ClassGeneric Class = iota
	// ClassDebugging marks transient debugger/transport failures; these get
	// the longer backoff before the session is recreated.
	ClassDebugging
)

func (c Class) String() string {
	if c == ClassDebugging {
		return "debugging"
	}
	return "generic"
}

// debuggingPatterns are matched case-insensitively against error text.
// Substring matching is brittle, so the table lives here and nowhere else.
var debuggingPatterns = []string{
	"debugger is not attached",
	"target closed",
	"target crashed",
	"inspector protocol error",
	"session with given id not found",
	"cannot find context",
	"websocket",
	"connection",
}

// Classify decides whether an error is a debugging-transport failure.
func Classify(err error) Class {
	if err == nil {
		return ClassGeneric
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range debuggingPatterns {
		if strings.Contains(msg, pattern) {
			return ClassDebugging
		}
	}
	return ClassGeneric
}
