package overrides

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// backupTimeLayout is the timestamp layout used in backup file names.
const backupTimeLayout = "20060102-150405"

// backupPattern matches backup file names, with an optional sequence number
// for backups taken within the same second. Anything else in the backup
// directory is never listed or pruned.
var backupPattern = regexp.MustCompile(`^overrides-(\d{8}-\d{6})(?:-(\d{1,4}))?\.yaml$`)

// maxBackupSequence bounds the suffixes tried for one second.
const maxBackupSequence = 9999

// Backup describes one retained backup file.
type Backup struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`

	seq int
}

// BackupName returns the backup file name for a snapshot taken at t (UTC).
func BackupName(t time.Time) string {
	return backupName(t, 0)
}

// backupName returns the name for the seq'th backup taken in t's second.
// The first one carries no suffix.
func backupName(t time.Time, seq int) string {
	stamp := t.UTC().Format(backupTimeLayout)
	if seq == 0 {
		return "overrides-" + stamp + ".yaml"
	}
	return "overrides-" + stamp + "-" + strconv.Itoa(seq) + ".yaml"
}

// reserveBackup claims a free backup path in dir for a snapshot taken at t by
// creating an empty placeholder exclusively. Concurrent exports within the
// same second get distinct names. Failures wrap ErrWriteFailed.
func reserveBackup(dir string, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrWriteFailed, dir, err)
	}
	for seq := 0; seq <= maxBackupSequence; seq++ {
		path := filepath.Join(dir, backupName(t, seq))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: reserving %s: %w", ErrWriteFailed, path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("%w: reserving %s: %w", ErrWriteFailed, path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: no free backup name for %s", ErrWriteFailed, t.UTC().Format(backupTimeLayout))
}

// ListBackups returns the backups in dir, newest first. A missing directory
// yields an empty list.
func ListBackups(dir string) ([]Backup, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Backup
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := backupPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		created, err := time.ParseInLocation(backupTimeLayout, m[1], time.UTC)
		if err != nil {
			continue
		}
		b := Backup{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			CreatedAt: created,
		}
		if m[2] != "" {
			b.seq, _ = strconv.Atoi(m[2]) //nolint:errcheck // Pattern guarantees digits
		}
		if info, err := entry.Info(); err == nil {
			b.Size = info.Size()
		}
		backups = append(backups, b)
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].seq > backups[j].seq
	})
	return backups, nil
}

// PruneBackups deletes the oldest backups so that at most keep remain.
// keep <= 0 disables pruning. Files that cannot be removed are logged and
// skipped. It returns the names that were removed, oldest last.
func PruneBackups(dir string, keep int, logger Logger) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	logger = loggerOrNoop(logger)

	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove old backup", "path", b.Path, "error", err)
			continue
		}
		removed = append(removed, b.Name)
	}
	return removed, nil
}
