// Package safety classifies content-safety flag codes for display.
package safety

import "strings"

// Status is the tri-state classification of a message's safety flags.
type Status string

const (
	StatusSafe    Status = "safe"
	StatusInfo    Status = "info"
	StatusWarning Status = "warning"
)

// highSeverity is the fixed set of flag codes that escalate to a warning.
var highSeverity = map[string]bool{
	"profanity":            true,
	"pii_detected":         true,
	"inappropriate_topic":  true,
	"manipulation_attempt": true,
}

// labels maps known flag codes to human-readable descriptions. Codes come
// from an open vocabulary; unknown codes fall back to the humanized raw code.
var labels = map[string]string{
	"profanity":            "Strong language detected",
	"pii_detected":         "Personal information detected",
	"inappropriate_topic":  "Topic not suitable for learning time",
	"manipulation_attempt": "Attempt to work around the rules",
	"message_too_long":     "Message is very long",
	"off_topic":            "Off topic for this lesson",
	"repeated_message":     "Repeated message",
}

// Flag is a classified safety flag with its display label.
type Flag struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Severe bool   `json:"severe"`
}

// Result is the classification of a set of flag codes.
type Result struct {
	Status Status `json:"status"`
	Flags  []Flag `json:"flags,omitempty"`
}

// Resolve classifies a set of flag codes. No flags is safe; any
// high-severity flag is a warning; anything else is informational.
// Display order follows input order. Pure function.
func Resolve(codes []string) Result {
	if len(codes) == 0 {
		return Result{Status: StatusSafe}
	}

	result := Result{Status: StatusInfo, Flags: make([]Flag, 0, len(codes))}
	for _, code := range codes {
		severe := highSeverity[code]
		if severe {
			result.Status = StatusWarning
		}
		result.Flags = append(result.Flags, Flag{
			Code:   code,
			Label:  Label(code),
			Severe: severe,
		})
	}
	return result
}

// Label returns the human-readable label for a flag code. Unknown codes
// are rendered by replacing underscores with spaces.
func Label(code string) string {
	if label, ok := labels[code]; ok {
		return label
	}
	return strings.ReplaceAll(code, "_", " ")
}
