package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, ".env")
	if err := os.WriteFile(path, []byte("CSP_TEST_LOAD_DOT_ENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("CSP_TEST_LOAD_DOT_ENV") })

	loadedPath, err := LoadDotEnv(filepath.Join(directory, "missing.env"), path)
	if err != nil {
		t.Fatalf("load dot env: %v", err)
	}
	if loadedPath != path {
		t.Errorf("expected loaded path %q, got %q", path, loadedPath)
	}
	if got := os.Getenv("CSP_TEST_LOAD_DOT_ENV"); got != "from-file" {
		t.Errorf("expected variable from file, got %q", got)
	}
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	loadedPath, err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load dot env: %v", err)
	}
	if loadedPath != "" {
		t.Errorf("expected no loaded path, got %q", loadedPath)
	}
}

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("CSP_TEST_SET_STRING", "set")

	if value := GetEnvWithDefault("CSP_TEST_UNSET_STRING", "default"); value != "default" {
		t.Errorf("expected default, got %q", value)
	}
	if value := GetEnvWithDefault("CSP_TEST_SET_STRING", "default"); value != "set" {
		t.Errorf("expected set, got %q", value)
	}
}
