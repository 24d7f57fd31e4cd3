package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RawEntry is a read-only snapshot of one file taken at scan time. Size and
// mtime are captured for change detection; nothing in the run mutates an
// entry.
type RawEntry struct {
	Path    string
	Name    string
	Ext     string
	Size    int64
	ModTime time.Time
}

// Directory lists the media files directly inside dir. Dotfiles and
// subdirectories are skipped; entries come back sorted by name so runs are
// deterministic.
func Directory(dir string) ([]RawEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	entries := make([]RawEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		info, err := de.Info()
		if err != nil {
			// The file vanished between ReadDir and stat; a snapshot of a
			// missing file is useless, skip it.
			continue
		}

		entries = append(entries, RawEntry{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Ext:     Extension(name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Extension returns the lowercased extension of name without the dot, or ""
// when there is none.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
