package domain

import "testing"

func TestStatusFromString_KnownValues(t *testing.T) {
	cases := map[string]Status{
		"created":              StatusCreated,
		"success":              StatusSuccess,
		"failed":               StatusFailed,
		"pending":              StatusWaiting,
		"waiting_for_resource": StatusWaiting,
		"preparing":            StatusWaiting,
		"running":              StatusInProgress,
		"canceling":            StatusInProgress,
		"bypassed":             StatusBypassed,
		"skipped":              StatusBypassed,
		"canceled":             StatusCanceled,
	}

	for raw, want := range cases {
		if got := StatusFromString(raw); got != want {
			t.Errorf("StatusFromString(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestStatusFromString_CaseInsensitive(t *testing.T) {
	if got := StatusFromString("SUCCESS"); got != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", got)
	}
	if got := StatusFromString("Waiting_For_Resource"); got != StatusWaiting {
		t.Errorf("expected WAITING, got %s", got)
	}
}

func TestStatusFromString_UnknownAndEmpty(t *testing.T) {
	for _, raw := range []string{"", "manual", "scheduled", "  success  "} {
		if got := StatusFromString(raw); got != StatusUnknown {
			t.Errorf("StatusFromString(%q) = %s, want UNKNOWN", raw, got)
		}
	}
}
