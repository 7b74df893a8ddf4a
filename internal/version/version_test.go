package version

import (
	"strings"
	"testing"
)

func TestVersionStringNonEmpty(t *testing.T) {
	if s := String(); s == "" {
		t.Fatalf("version string is empty")
	}
}

func TestVersionStringIncludesShortCommit(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })
	Version = "v1.2.3"
	Commit = "0123456789abcdef"
	s := String()
	if !strings.HasPrefix(s, "v1.2.3") || !strings.Contains(s, "(0123456)") {
		t.Fatalf("unexpected version string %q", s)
	}
}
