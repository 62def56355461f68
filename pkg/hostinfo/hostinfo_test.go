package hostinfo

import "testing"

func TestString_DoesNotPanic(t *testing.T) {
	// KernelVersion detection varies by CI host; this just exercises the
	// cached-probe path without asserting a specific version.
	if s := String(); s == "" {
		t.Error("String() returned empty string")
	}
}

func TestPreferShell_DoesNotPanic(t *testing.T) {
	_ = PreferShell()
}
