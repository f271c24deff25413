package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWrite_OverwritesPerKey(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := s.Write("adzuna", "New York", "Data Analyst", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write("adzuna", "New York", "Data Analyst", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 snapshot file, got %d", len(entries))
	}
	if entries[0].Name() != "adzuna_New_York_Data_Analyst.json" {
		t.Errorf("name = %q", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(s.dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("content = %s, want the overwritten payload", data)
	}
}

func TestCleanup_DeletesOldKeepsFresh(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := s.Write("adzuna", "Texas", "Analytics", []byte(`{}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Backdate one file past the retention window.
	old := filepath.Join(dir, "adzuna_Texas_old.json")
	if err := os.WriteFile(old, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	deleted, kept, err := s.Cleanup(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 || kept != 1 {
		t.Errorf("deleted=%d kept=%d, want 1/1", deleted, kept)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old snapshot still present")
	}
}
