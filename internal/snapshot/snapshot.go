// Package snapshot keeps the raw API payloads on disk, one file per
// (state, keyword) query, overwritten on each fetch. Files older than the
// retention window are deleted by Cleanup.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store writes and prunes raw payload snapshots under one directory.
type Store struct {
	dir string
}

// NewStore creates the snapshot directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Write saves the payload for a (source, state, keyword) query, replacing any
// previous snapshot for the same key.
func (s *Store) Write(source, state, keyword string, payload []byte) error {
	name := fmt.Sprintf("%s_%s_%s.json", source, safe(state), safe(keyword))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", name, err)
	}
	return nil
}

// Cleanup deletes snapshots older than the retention window. Returns
// (deleted, kept).
func (s *Store) Cleanup(retention time.Duration) (int, int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading snapshot dir: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted, kept := 0, 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return deleted, kept, fmt.Errorf("stat snapshot %s: %w", e.Name(), err)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				return deleted, kept, fmt.Errorf("deleting snapshot %s: %w", e.Name(), err)
			}
			deleted++
		} else {
			kept++
		}
	}
	return deleted, kept, nil
}

func safe(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}
