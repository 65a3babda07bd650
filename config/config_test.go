package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
echo:
  log:
    level: info
  "1":
    service:
      register: true
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skynet.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStringFallsBackToUnversionedSection(t *testing.T) {
	l, err := New(writeTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	v, err := l.String("echo", "2", "log.level")
	if err != nil {
		t.Fatal(err)
	}
	if v != "info" {
		t.Fatalf("expected info, got %q", v)
	}
}

func TestBoolReadsVersionedSection(t *testing.T) {
	l, err := New(writeTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	v, err := l.Bool("echo", "1", "service.register")
	if err != nil {
		t.Fatal(err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestStringMissingKeyErrors(t *testing.T) {
	l, err := New(writeTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.String("echo", "1", "nope"); err == nil {
		t.Fatal("expected error for unset key")
	}
}

func TestNewWithMissingExplicitFileErrors(t *testing.T) {
	l, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error reading an explicitly named missing file")
	}
	_ = l
}
