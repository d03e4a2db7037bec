package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget specifies a directory and filename pattern to prune.
// Active names the file of the current run, which is never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Active  string
}

// CleanupOldLogs removes files matching target that were last modified more
// than retentionDays ago and returns how many were removed. A retentionDays
// value of 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, target RetentionTarget) int {
	if retentionDays <= 0 || target.Dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	active := ""
	if target.Active != "" {
		active = filepath.Base(target.Active)
	}

	entries, err := os.ReadDir(target.Dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == active {
			continue
		}
		if target.Pattern != "" {
			if matched, err := filepath.Match(target.Pattern, name); err != nil || !matched {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(target.Dir, name)
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
