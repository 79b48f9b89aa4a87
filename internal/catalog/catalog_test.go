package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleCatalog = `
- id: breathing_478
  title: "4-7-8 Breathing"
  category: relaxation
  icon: wind
- id: gratitude_3
  title: "Three Good Things"
  category: positive
  icon: sun
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool_items.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLookup(t *testing.T) {
	repo := NewRepository(writeCatalog(t, sampleCatalog))

	e := repo.Lookup("breathing_478")
	if e.Title != "4-7-8 Breathing" || e.Category != "relaxation" || e.Icon != "wind" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if repo.Len() != 2 {
		t.Fatalf("len = %d, want 2", repo.Len())
	}
}

func TestLookupMissingDegradesToID(t *testing.T) {
	repo := NewRepository(writeCatalog(t, sampleCatalog))

	e := repo.Lookup("unknown_tool")
	if e.ID != "unknown_tool" || e.Title != "unknown_tool" {
		t.Fatalf("missing entry should degrade to id, got %+v", e)
	}
	if e.Category != "" || e.Icon != "" {
		t.Fatalf("display fields should be empty for missing entry, got %+v", e)
	}
}

func TestMissingFileDegrades(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "absent.yaml"))
	e := repo.Lookup("breathing_478")
	if e.Title != "breathing_478" {
		t.Fatalf("lookup against missing catalog should degrade, got %+v", e)
	}
}

func TestHotReload(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, base, base); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	repo := NewRepository(path)
	if repo.Len() != 2 {
		t.Fatalf("initial len = %d, want 2", repo.Len())
	}

	updated := sampleCatalog + `
- id: body_scan
  title: "Body Scan"
  category: relaxation
  icon: waves
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := os.Chtimes(path, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if repo.Len() != 3 {
		t.Fatalf("reloaded len = %d, want 3", repo.Len())
	}
	if repo.Lookup("body_scan").Title != "Body Scan" {
		t.Fatal("new entry not served after reload")
	}
}
