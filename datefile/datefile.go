// Package datefile persists the time of the last backup of a directory in a
// sidecar file at the directory root.
package datefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrian-griffin/rsbackup/logger"
	"github.com/adrian-griffin/rsbackup/util"
)

const (
	FileName = ".backup_time.txt"

	// local time with offset, fractional seconds trimmed when zero
	Layout = "2006-01-02 15:04:05.999999999 -07:00"
)

func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Format renders t the way it is stored on disk, minus the newline
func Format(t time.Time) string {
	return t.Local().Format(Layout)
}

// Parse accepts the stored layout & RFC 3339 stamps
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid backup date %q: %w", s, err)
	}
	return t, nil
}

// Read returns the last backup time of dir; a missing or unreadable stamp
// reports false
func Read(dir string) (time.Time, bool) {
	path := Path(dir)
	fields := map[string]interface{}{
		"package":   "datefile",
		"directory": dir,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.LogxWithFields("debug", fmt.Sprintf("No date file at %s", path), fields)
		} else {
			logger.LogxWithFields("warn", fmt.Sprintf("Failed to read date file %s: %v", path, err), fields)
		}
		return time.Time{}, false
	}

	logger.LogxWithFields("debug", fmt.Sprintf("Found date file %s", path), fields)

	t, err := Parse(string(data))
	if err != nil {
		logger.LogxWithFields("warn", fmt.Sprintf("Failed to parse date: %v", err), fields)
		return time.Time{}, false
	}
	return t, true
}

// Write overwrites the stamp of dir with now
func Write(dir string, now time.Time) error {
	stamp := Format(now)
	if err := util.WriteFileAtomic(Path(dir), []byte(stamp+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write date file in %s: %w", dir, err)
	}

	logger.LogxWithFields("debug", fmt.Sprintf("Updated date file: %s", stamp), map[string]interface{}{
		"package":   "datefile",
		"directory": dir,
	})
	return nil
}
