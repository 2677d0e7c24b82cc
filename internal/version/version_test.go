package version

import (
	"strings"
	"testing"
)

func TestString_Dirty(t *testing.T) {
	oldV, oldD := Version, Dirty
	defer func() { Version, Dirty = oldV, oldD }()

	Version, Dirty = "1.2.0", "true"
	if got := String(); got != "1.2.0-dirty" {
		t.Errorf("String() = %q, want %q", got, "1.2.0-dirty")
	}
	if !Get().Dirty {
		t.Error("Get().Dirty = false, want true")
	}
}

func TestFull(t *testing.T) {
	oldV, oldC := Version, Commit
	defer func() { Version, Commit = oldV, oldC }()

	Version, Commit = "0.3.1", "abc123"
	out := Full()
	if !strings.HasPrefix(out, "jobsweep 0.3.1\n") {
		t.Errorf("Full() first line = %q", strings.SplitN(out, "\n", 2)[0])
	}
	if !strings.Contains(out, "Commit:     abc123") {
		t.Errorf("Full() missing commit:\n%s", out)
	}
}
