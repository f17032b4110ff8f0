package replay

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"hovercar/core/internal/logging"
)

func TestCleanerEnforcesMaxSessions(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	//1.- Seed three synthetic sessions so the cleaner has bundles to prune.
	writeSession(t, tmp, "alpha-20240715T090000Z", now.Add(-3*time.Hour), 64)
	writeSession(t, tmp, "bravo-20240715T100000Z", now.Add(-2*time.Hour), 32)
	writeSession(t, tmp, "charlie-20240715T110000Z", now.Add(-time.Hour), 48)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxSessions: 2}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listDirs(t, tmp)
	if len(remaining) != 2 || remaining[0] != "bravo-20240715T100000Z" || remaining[1] != "charlie-20240715T110000Z" {
		t.Fatalf("unexpected retained sessions: %v", remaining)
	}
	stats := cleaner.Stats()
	if stats.Sessions != 2 || stats.Removed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Bytes != int64(48+32+2*len(`{}`)) {
		t.Fatalf("unexpected byte total %d", stats.Bytes)
	}
	if !stats.LastSweep.Equal(now) {
		t.Fatalf("expected last sweep timestamp to be recorded")
	}
}

func TestCleanerPrunesByAgeAndIgnoresForeignEntries(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	writeSession(t, tmp, "echo-20240713T080000Z", now.Add(-72*time.Hour), 3)
	writeSession(t, tmp, "foxtrot-20240716T070000Z", now.Add(-time.Hour), 5)
	//1.- Directories without a manifest and loose files are not sessions.
	if err := os.MkdirAll(filepath.Join(tmp, "notes"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "README"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := now.Add(-100 * time.Hour)
	if err := os.Chtimes(filepath.Join(tmp, "notes"), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxAge: 36 * time.Hour}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listDirs(t, tmp)
	if len(remaining) != 2 || remaining[0] != "foxtrot-20240716T070000Z" || remaining[1] != "notes" {
		t.Fatalf("unexpected retained directories: %v", remaining)
	}
	if _, err := os.Stat(filepath.Join(tmp, "README")); err != nil {
		t.Fatalf("expected loose file to survive: %v", err)
	}
}

func writeSession(t *testing.T, root, name string, modTime time.Time, frameBytes int) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string][]byte{
		ManifestFile: []byte(`{}`),
		FramesFile:   make([]byte, frameBytes),
	}
	for file, content := range files {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	if err := os.Chtimes(dir, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func listDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}
