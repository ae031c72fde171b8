// Package profile maps profile handles to their on-disk files and manages
// profile existence. Each profile owns two files in the data directory:
// <handle>_expenses.db and <handle>_budget_limits.json.
package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

const (
	ledgerSuffix = "_expenses.db"
	limitsSuffix = "_budget_limits.json"

	// DefaultHandle is what ListProfiles falls back to when the data
	// directory holds no profile files at all.
	DefaultHandle = "default"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// NormalizeHandle lowercases and trims a raw handle and validates it
// against the allowed pattern.
func NormalizeHandle(raw string) (string, error) {
	handle := strings.ToLower(strings.TrimSpace(raw))
	if !handlePattern.MatchString(handle) {
		return "", fmt.Errorf("handle %q: %w", raw, core.ErrInvalidHandle)
	}
	return handle, nil
}

type Store struct {
	dataDir    string
	archiveDir string
}

func NewStore(dataDir, archiveDir string) *Store {
	return &Store{dataDir: dataDir, archiveDir: archiveDir}
}

// ResolvePaths returns the ledger and limits paths for a handle. Pure;
// the files need not exist.
func (s *Store) ResolvePaths(handle string) (ledgerPath, limitsPath string) {
	return filepath.Join(s.dataDir, handle+ledgerSuffix),
		filepath.Join(s.dataDir, handle+limitsSuffix)
}

// List scans the data directory for profile files and returns the union
// of handles seen in either naming convention, sorted. An empty directory
// lists as just the default handle.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{DefaultHandle}, nil
		}
		return nil, fmt.Errorf("scan data dir: %w", err)
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if handle, ok := strings.CutSuffix(name, ledgerSuffix); ok && handle != "" {
			seen[handle] = struct{}{}
			continue
		}
		if handle, ok := strings.CutSuffix(name, limitsSuffix); ok && handle != "" {
			seen[handle] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return []string{DefaultHandle}, nil
	}
	handles := make([]string, 0, len(seen))
	for handle := range seen {
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	return handles, nil
}

// Exists reports whether either backing file for the handle is present.
func (s *Store) Exists(handle string) bool {
	ledgerPath, limitsPath := s.ResolvePaths(handle)
	return fileExists(ledgerPath) || fileExists(limitsPath)
}

// Create materializes the profile: an empty limits document and a ledger
// file with its schema. Idempotent; existing files are left alone. The
// normalized handle is returned.
func (s *Store) Create(ctx context.Context, raw string) (string, error) {
	handle, err := NormalizeHandle(raw)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	ledgerPath, limitsPath := s.ResolvePaths(handle)

	if !fileExists(limitsPath) {
		if err := os.WriteFile(limitsPath, []byte("{}"), 0644); err != nil {
			return "", fmt.Errorf("write limits file: %w", err)
		}
	}

	if !fileExists(ledgerPath) {
		store, err := ledger.Open(ledgerPath, false)
		if err != nil {
			return "", fmt.Errorf("materialize ledger: %w", err)
		}
		if err := store.Close(); err != nil {
			return "", fmt.Errorf("close ledger: %w", err)
		}
	}

	return handle, nil
}

// Rename moves both backing files to the new handle. It refuses with
// ErrAlreadyExists if any file for the new handle is present, checking
// both before touching anything. The two renames run in sequence; a
// failure between them leaves the profile split across names.
func (s *Store) Rename(oldRaw, newRaw string) error {
	oldHandle, err := NormalizeHandle(oldRaw)
	if err != nil {
		return err
	}
	newHandle, err := NormalizeHandle(newRaw)
	if err != nil {
		return err
	}
	if oldHandle == newHandle {
		return nil
	}

	oldLedger, oldLimits := s.ResolvePaths(oldHandle)
	newLedger, newLimits := s.ResolvePaths(newHandle)

	if !fileExists(oldLedger) && !fileExists(oldLimits) {
		return fmt.Errorf("profile %q: %w", oldHandle, core.ErrNotFound)
	}
	if fileExists(newLedger) || fileExists(newLimits) {
		return fmt.Errorf("profile %q: %w", newHandle, core.ErrAlreadyExists)
	}

	for _, pair := range [][2]string{{oldLedger, newLedger}, {oldLimits, newLimits}} {
		if !fileExists(pair[0]) {
			continue
		}
		if err := os.Rename(pair[0], pair[1]); err != nil {
			return fmt.Errorf("rename profile file: %w", err)
		}
	}
	return nil
}

// Archive moves both backing files into a fresh timestamped directory
// under the archive root and returns that directory. Nothing is deleted.
func (s *Store) Archive(raw string) (string, error) {
	handle, err := NormalizeHandle(raw)
	if err != nil {
		return "", err
	}

	ledgerPath, limitsPath := s.ResolvePaths(handle)
	if !fileExists(ledgerPath) && !fileExists(limitsPath) {
		return "", fmt.Errorf("profile %q: %w", handle, core.ErrNotFound)
	}

	dir := filepath.Join(s.archiveDir, handle+"-"+time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	for _, path := range []string{ledgerPath, limitsPath} {
		if !fileExists(path) {
			continue
		}
		if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
			return "", fmt.Errorf("archive profile file: %w", err)
		}
	}
	return dir, nil
}

// Delete removes the profile, optionally archiving it first. Deleting the
// only remaining profile fails with ErrLastProfile before anything is
// touched.
func (s *Store) Delete(raw string, archiveFirst bool) error {
	handle, err := NormalizeHandle(raw)
	if err != nil {
		return err
	}

	handles, err := s.List()
	if err != nil {
		return err
	}
	if !slices.Contains(handles, handle) {
		return fmt.Errorf("profile %q: %w", handle, core.ErrNotFound)
	}
	if len(handles) == 1 {
		return fmt.Errorf("profile %q: %w", handle, core.ErrLastProfile)
	}

	if archiveFirst {
		if _, err := s.Archive(handle); err != nil {
			return err
		}
	}

	ledgerPath, limitsPath := s.ResolvePaths(handle)
	for _, path := range []string{ledgerPath, limitsPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete profile file: %w", err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
