package version

import (
	"strings"
	"testing"
)

func TestString_Dirty(t *testing.T) {
	oldVersion, oldDirty := Version, Dirty
	defer func() { Version, Dirty = oldVersion, oldDirty }()

	Version, Dirty = "1.2.0", "true"
	if got := String(); got != "1.2.0-dirty" {
		t.Errorf("expected 1.2.0-dirty, got %s", got)
	}

	Dirty = "false"
	if got := String(); got != "1.2.0" {
		t.Errorf("expected 1.2.0, got %s", got)
	}
}

func TestGet(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "0.3.1", "abc123"
	info := Get()
	if info.Version != "0.3.1" || info.Commit != "abc123" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
		t.Errorf("expected runtime details, got %+v", info)
	}
}

func TestFull(t *testing.T) {
	out := Full()
	if !strings.HasPrefix(out, "billscout ") {
		t.Errorf("expected billscout header, got %q", out)
	}
	if !strings.Contains(out, "Go version:") {
		t.Errorf("expected Go version line, got %q", out)
	}
}
