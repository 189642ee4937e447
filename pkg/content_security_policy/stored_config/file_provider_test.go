package stored_config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/policy_builder"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
)

func TestFileProvider(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "csp.yaml")
	if err := os.WriteFile(path, []byte("defaultSrc: \"'self'\"\ndeploy: true\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	provider := NewFileProvider(path)

	first, err := provider.PolicyConfig(t.Context(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy := policy_builder.Build(first); policy != "default-src 'self'" {
		t.Errorf("unexpected policy %q", policy)
	}

	second, err := provider.PolicyConfig(t.Context(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Error("expected the unchanged file to yield the cached snapshot")
	}

	if err := os.WriteFile(path, []byte("defaultSrc: \"'none'\"\nimgSrc: data:\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	third, err := provider.PolicyConfig(t.Context(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy := policy_builder.Build(third); policy != "default-src 'none'; img-src data:" {
		t.Errorf("unexpected policy after the change %q", policy)
	}
	if first.Deploy != true {
		t.Error("expected the earlier snapshot to be unchanged")
	}
}

func TestFileProviderErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewFileProvider("").PolicyConfig(t.Context(), nil); !errors.Is(err, motmedelErrors.ErrZeroValue) {
		t.Errorf("expected ErrZeroValue, got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewFileProvider(missing).PolicyConfig(t.Context(), nil); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("defaultSrc: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewFileProvider(invalid).PolicyConfig(t.Context(), nil); err == nil {
		t.Error("expected a parse error")
	}
}
