package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, id, body string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestListSortedByName(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "obsidian-tasks", `{"id":"obsidian-tasks","name":"Tasks"}`)
	writeManifest(t, root, "dataview", `{"id":"dataview","name":"Dataview","version":"0.5.66"}`)
	writeManifest(t, root, "calendar", `{"id":"calendar","name":"calendar"}`)
	writeManifest(t, root, "no-name", `{"id":"no-name"}`)
	// Folder without manifest is ignored.
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	// Broken manifest is ignored.
	writeManifest(t, root, "broken", `{`)

	plugins, err := New(root).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var ids []string
	for _, p := range plugins {
		ids = append(ids, p.ID)
	}
	want := []string{"calendar", "dataview", "no-name", "obsidian-tasks"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if plugins[2].Name != "no-name" {
		t.Errorf("missing name should fall back to id, got %q", plugins[2].Name)
	}
	if plugins[1].Version != "0.5.66" {
		t.Errorf("version = %q", plugins[1].Version)
	}
}

func TestListMissingRoot(t *testing.T) {
	plugins, err := New(filepath.Join(t.TempDir(), "missing")).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(plugins) != 0 {
		t.Fatalf("got %d plugins, want 0", len(plugins))
	}
}

func TestGet(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "dataview", `{"name":"Dataview"}`)
	reg := New(root)

	p, err := reg.Get("dataview")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name != "Dataview" || p.Dir != filepath.Join(root, "dataview") {
		t.Fatalf("Get = %+v", p)
	}

	for _, id := range []string{"", "missing", "..", "../dataview", "a/b"} {
		if _, err := reg.Get(id); !errors.Is(err, ErrNotInstalled) {
			t.Errorf("Get(%q) err = %v, want ErrNotInstalled", id, err)
		}
	}
	if !reg.IsInstalled("dataview") || reg.IsInstalled("missing") {
		t.Error("IsInstalled mismatch")
	}
}
