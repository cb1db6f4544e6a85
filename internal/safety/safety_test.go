package safety

import "testing"

func TestResolveEmptyIsSafe(t *testing.T) {
	t.Parallel()

	result := Resolve(nil)
	if result.Status != StatusSafe {
		t.Errorf("Expected safe status, got %q", result.Status)
	}
	if len(result.Flags) != 0 {
		t.Errorf("Expected no flags, got %d", len(result.Flags))
	}
}

func TestResolveHighSeverityIsWarning(t *testing.T) {
	t.Parallel()

	result := Resolve([]string{"profanity"})
	if result.Status != StatusWarning {
		t.Errorf("Expected warning status, got %q", result.Status)
	}
	if len(result.Flags) != 1 || !result.Flags[0].Severe {
		t.Errorf("Expected one severe flag, got %+v", result.Flags)
	}
}

func TestResolveLowSeverityIsInfo(t *testing.T) {
	t.Parallel()

	result := Resolve([]string{"message_too_long"})
	if result.Status != StatusInfo {
		t.Errorf("Expected info status, got %q", result.Status)
	}
}

func TestResolveMixedFlagsEscalate(t *testing.T) {
	t.Parallel()

	result := Resolve([]string{"message_too_long", "pii_detected"})
	if result.Status != StatusWarning {
		t.Errorf("Expected warning status with mixed flags, got %q", result.Status)
	}
	// Display order follows input order.
	if result.Flags[0].Code != "message_too_long" || result.Flags[1].Code != "pii_detected" {
		t.Errorf("Expected input order preserved, got %+v", result.Flags)
	}
}

func TestLabelUnknownCodeHumanized(t *testing.T) {
	t.Parallel()

	if got := Label("weird_new_flag"); got != "weird new flag" {
		t.Errorf("Expected humanized label, got %q", got)
	}
}

func TestScreenDetectsPII(t *testing.T) {
	t.Parallel()

	flags := Screen("my email is kid@example.com")
	found := false
	for _, f := range flags {
		if f == "pii_detected" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected pii_detected flag, got %v", flags)
	}
}

func TestScreenCleanMessage(t *testing.T) {
	t.Parallel()

	if flags := Screen("What are black holes?"); len(flags) != 0 {
		t.Errorf("Expected no flags for clean message, got %v", flags)
	}
}
