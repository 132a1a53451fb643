package version

import "testing"

func TestLineForDevBuild(t *testing.T) {
	if got := Line("watchme"); got != "watchme dev" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestLineForRelease(t *testing.T) {
	original, originalCommit := Version, GitCommit
	Version, GitCommit = "1.2.3", "abc123"
	t.Cleanup(func() {
		Version, GitCommit = original, originalCommit
	})

	if got := Line("watchme"); got != "watchme version 1.2.3 (abc123)" {
		t.Fatalf("unexpected line %q", got)
	}
	if info := GetVersionInfo(); info.Version != "1.2.3" || info.GitCommit != "abc123" {
		t.Fatalf("unexpected info %+v", info)
	}
}
