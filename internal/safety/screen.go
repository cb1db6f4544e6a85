package safety

import (
	"regexp"
	"strings"
)

// maxMessageRunes is the soft length limit before a message_too_long flag.
const maxMessageRunes = 2000

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d[\s.-]?){9,14}\d\b`)
)

// profanityTerms is intentionally small; the heavy lifting happens in the
// backend moderation pass. This screen only catches the obvious cases
// before a message leaves the device.
var profanityTerms = []string{
	"damn", "hell no", "stupid idiot", "shut up", "hate you",
}

// manipulationPhrases are common prompt patterns that try to steer the
// tutor out of its role.
var manipulationPhrases = []string{
	"ignore your instructions",
	"ignore previous instructions",
	"pretend you are not",
	"you are no longer",
	"jailbreak",
}

// Screen runs the local pre-send checks over a user message and returns
// the triggered flag codes in a fixed order. An empty result means the
// message passed every check.
func Screen(message string) []string {
	lower := strings.ToLower(message)

	var flags []string
	for _, term := range profanityTerms {
		if strings.Contains(lower, term) {
			flags = append(flags, "profanity")
			break
		}
	}
	if emailPattern.MatchString(message) || phonePattern.MatchString(message) {
		flags = append(flags, "pii_detected")
	}
	for _, phrase := range manipulationPhrases {
		if strings.Contains(lower, phrase) {
			flags = append(flags, "manipulation_attempt")
			break
		}
	}
	if len([]rune(message)) > maxMessageRunes {
		flags = append(flags, "message_too_long")
	}
	return flags
}
