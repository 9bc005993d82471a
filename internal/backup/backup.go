// Package backup copies the SQLite database aside before a migration and
// removes the temporary files afterwards.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scolaris/scolarisctl/internal/database/sqlite"
	"github.com/sirupsen/logrus"
)

const (
	filePrefix = "db_backup_"
	fileSuffix = ".sqlite3"
	timeLayout = "20060102_150405"
)

// FileName returns the backup name for a copy taken at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(timeLayout) + fileSuffix
}

// Manager writes backups into a single directory.
type Manager struct {
	backupPath string
	now        func() time.Time
	chtimes    func(name string, atime, mtime time.Time) error
}

func NewManager(backupPath string) *Manager {
	return &Manager{backupPath: backupPath, now: time.Now, chtimes: os.Chtimes}
}

// CreateBackup copies src into the backup directory, creating it if needed,
// and keeps the modification time of the source.
func (m *Manager) CreateBackup(src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", sqlite.ErrSourceMissing, src)
		}
		return "", err
	}

	if err := os.MkdirAll(m.backupPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dst := filepath.Join(m.backupPath, FileName(m.now()))
	if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
		return "", err
	}
	if err := m.chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to preserve modification time: %w", err)
	}

	logrus.WithField("file", dst).Debug("backup created")
	return dst, nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	return nil
}

// Entry is one backup file on disk.
type Entry struct {
	Path    string
	Size    int64
	TakenAt time.Time
}

// List returns the backups of the directory, newest first. A missing
// directory has no backups.
func (m *Manager) List() ([]Entry, error) {
	files, err := os.ReadDir(m.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		takenAt, err := time.ParseInLocation(timeLayout, stamp, time.Local)
		if err != nil {
			continue
		}
		info, err := f.Info()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: filepath.Join(m.backupPath, name), Size: info.Size(), TakenAt: takenAt})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].TakenAt.After(entries[j].TakenAt) })
	return entries, nil
}

// RemoveFiles deletes the files that exist among paths and returns the ones
// it removed. Absent files are ignored.
func RemoveFiles(paths []string) ([]string, error) {
	var (
		removed []string
		errs    []error
	)
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = append(removed, p)
		case os.IsNotExist(err):
		default:
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}
