package files

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveInsideRoot(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	got, err := r.Resolve("tools/extra.yaml")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "tools", "extra.yaml")
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	for _, path := range []string{
		"../outside.yaml",
		"tools/../../outside.yaml",
		"/etc/passwd",
	} {
		if _, err := r.Resolve(path); err == nil {
			t.Errorf("Resolve(%q) should fail containment", path)
		}
	}
}

func TestResolveAcceptsAbsoluteInsideRoot(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	abs := filepath.Join(root, "tools", "a.yaml")
	got, err := r.Resolve(abs)
	if err != nil {
		t.Fatal(err)
	}
	if got != abs {
		t.Errorf("Resolve = %q, want %q", got, abs)
	}
}

func TestResolveRejectsEmpty(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	for _, path := range []string{"", "   "} {
		if _, err := r.Resolve(path); err == nil || !strings.Contains(err.Error(), "required") {
			t.Errorf("Resolve(%q) should require a path", path)
		}
	}
}
