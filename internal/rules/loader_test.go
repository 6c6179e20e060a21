package rules

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `name: web
aliases:
  user: "%{notSpace:usr.name}"
patterns:
  - "%{ipOrHost:client} %{user} %{integer:status}"
  - "%{data:msg}"
---
name: syslog
patterns:
  - "%{notSpace:host} %{data:msg}"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadFileMultiDocument(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sets.yaml")
	writeFile(t, p, sampleYAML)

	sets, err := LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("want 2 sets, got %d", len(sets))
	}
	if sets[0].Name != "web" || len(sets[0].Patterns) != 2 {
		t.Fatalf("first set: %+v", sets[0])
	}
	if sets[0].Aliases["user"] != "%{notSpace:usr.name}" {
		t.Fatalf("aliases: %+v", sets[0].Aliases)
	}
	if sets[1].Name != "syslog" || sets[1].Aliases != nil {
		t.Fatalf("second set: %+v", sets[1])
	}
}

func TestLoadFileRejectsUnnamedSet(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.yml")
	writeFile(t, p, "patterns:\n  - \"%{data:msg}\"\n")

	if _, err := LoadFile(p); err == nil {
		t.Fatalf("a set without a name should fail")
	}
}

func TestLoadDirRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "web.yaml"), "name: web\npatterns: [\"%{data:a}\"]\n")
	writeFile(t, filepath.Join(dir, "b", "sys.yml"), "name: sys\npatterns: [\"%{data:b}\"]\n")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "not yaml")

	sets, err := LoadDirRecursive(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("want 2 sets, got %d", len(sets))
	}
	names := map[string]bool{}
	for _, s := range sets {
		names[s.Name] = true
	}
	if !names["web"] || !names["sys"] {
		t.Fatalf("names: %v", names)
	}
}
