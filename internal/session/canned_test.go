package session

import (
	"strings"
	"testing"
)

func TestCannedReplyTopicRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string // substring the reply must contain
	}{
		{"What are black holes?", "black hole"},
		{"hi", "Ollie"},
		{"Why do volcanoes erupt?", "volcano"},
		{"how do plants grow", "sunlight"},
		{"tell me about dinosaurs", "dinosaur"},
		{"what is half of a pizza", "fraction"},
		{"xyzzy quux", "curious"}, // fallback
	}
	for _, tc := range tests {
		got := cannedReply(tc.input)
		if !strings.Contains(strings.ToLower(got), strings.ToLower(tc.want)) {
			t.Errorf("cannedReply(%q) = %q, want it to mention %q", tc.input, got, tc.want)
		}
	}
}

func TestCannedShortKeywordsMatchWholeWords(t *testing.T) {
	t.Parallel()

	// "hi" embedded in another word must not route to greetings.
	got := cannedReply("tell me about hippos please")
	if strings.Contains(got, "Ollie, your learning buddy") {
		t.Errorf("substring keyword matched inside a word: %q", got)
	}
}

func TestTypingDelayClamped(t *testing.T) {
	t.Parallel()

	if d := typingDelay("ok"); d < minTypingDelay {
		t.Errorf("short reply delay %v below floor %v", d, minTypingDelay)
	}
	long := strings.Repeat("a very long canned answer ", 40)
	if d := typingDelay(long); d > maxTypingDelay {
		t.Errorf("long reply delay %v above ceiling %v", d, maxTypingDelay)
	}
	if d := typingDelay(long); d != maxTypingDelay {
		t.Errorf("long reply delay %v, want clamped to %v", d, maxTypingDelay)
	}
}
