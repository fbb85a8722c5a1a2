package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "channels.yaml")
	empty := filepath.Join(dir, "empty.yaml")
	broken := filepath.Join(dir, "broken.yaml")

	if err := os.WriteFile(good, []byte("channels:\n  - tikvahpharma\n  - \"@lobelia4cosmetics\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, []byte("channels: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(broken, []byte("channels: [\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if code := run([]string{good}); code != 0 {
		t.Errorf("valid file: exit code = %d, want 0", code)
	}
	if code := run([]string{good, empty}); code != 1 {
		t.Errorf("empty list: exit code = %d, want 1", code)
	}
	if code := run([]string{broken}); code != 1 {
		t.Errorf("broken yaml: exit code = %d, want 1", code)
	}
	if code := run([]string{filepath.Join(dir, "missing.yaml")}); code != 1 {
		t.Errorf("missing file: exit code = %d, want 1", code)
	}
}
