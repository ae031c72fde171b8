package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tally/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	return NewStore(filepath.Join(base, "data"), filepath.Join(base, "archive"))
}

func touchProfile(t *testing.T, s *Store, handle string, ledgerFile, limitsFile bool) {
	t.Helper()
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	ledgerPath, limitsPath := s.ResolvePaths(handle)
	if ledgerFile {
		if err := os.WriteFile(ledgerPath, []byte("x"), 0644); err != nil {
			t.Fatalf("touch ledger file: %v", err)
		}
	}
	if limitsFile {
		if err := os.WriteFile(limitsPath, []byte("{}"), 0644); err != nil {
			t.Fatalf("touch limits file: %v", err)
		}
	}
}

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"alice", "alice", false},
		{"  Alice ", "alice", false},
		{"BOB_2", "bob_2", false},
		{"a-b-c", "a-b-c", false},
		{"", "", true},
		{"   ", "", true},
		{"has space", "", true},
		{"über", "", true},
		{"a.b", "", true},
		{strings.Repeat("a", 32), strings.Repeat("a", 32), false},
		{strings.Repeat("a", 33), "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeHandle(tt.in)
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidHandle) {
				t.Errorf("NormalizeHandle(%q) error = %v, want ErrInvalidHandle", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHandle(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolvePaths(t *testing.T) {
	s := NewStore("data", "archive")
	ledgerPath, limitsPath := s.ResolvePaths("alice")
	if ledgerPath != filepath.Join("data", "alice_expenses.db") {
		t.Errorf("ledger path = %q", ledgerPath)
	}
	if limitsPath != filepath.Join("data", "alice_budget_limits.json") {
		t.Errorf("limits path = %q", limitsPath)
	}
}

func TestListProfiles(t *testing.T) {
	t.Run("missing data dir", func(t *testing.T) {
		s := newTestStore(t)
		got, err := s.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 || got[0] != "default" {
			t.Errorf("List() = %v, want [default]", got)
		}
	})

	t.Run("union of both conventions, sorted", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "carol", true, false)
		touchProfile(t, s, "alice", false, true)
		touchProfile(t, s, "bob", true, true)
		// Unrelated files and directories are ignored.
		if err := os.WriteFile(filepath.Join(s.dataDir, "notes.txt"), []byte("x"), 0644); err != nil {
			t.Fatalf("write unrelated file: %v", err)
		}
		if err := os.MkdirAll(filepath.Join(s.dataDir, "sub_expenses.db"), 0755); err != nil {
			t.Fatalf("mkdir decoy dir: %v", err)
		}

		got, err := s.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []string{"alice", "bob", "carol"}
		if len(got) != len(want) {
			t.Fatalf("List() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestCreateProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	handle, err := s.Create(ctx, "  Alice ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if handle != "alice" {
		t.Errorf("Create() handle = %q, want alice", handle)
	}

	ledgerPath, limitsPath := s.ResolvePaths("alice")
	if _, err := os.Stat(ledgerPath); err != nil {
		t.Errorf("ledger file missing: %v", err)
	}
	limits, err := os.ReadFile(limitsPath)
	if err != nil {
		t.Fatalf("limits file missing: %v", err)
	}
	if string(limits) != "{}" {
		t.Errorf("limits file = %q, want {}", limits)
	}

	t.Run("idempotent", func(t *testing.T) {
		if err := os.WriteFile(limitsPath, []byte(`{"2025-01": {"food": 100}}`), 0644); err != nil {
			t.Fatalf("seed limits: %v", err)
		}
		if _, err := s.Create(ctx, "ALICE"); err != nil {
			t.Fatalf("Create() second call error = %v", err)
		}
		after, err := os.ReadFile(limitsPath)
		if err != nil {
			t.Fatalf("read limits: %v", err)
		}
		if string(after) != `{"2025-01": {"food": 100}}` {
			t.Errorf("second Create() rewrote the limits file: %q", after)
		}
	})

	t.Run("invalid handle", func(t *testing.T) {
		if _, err := s.Create(ctx, "no way"); !errors.Is(err, core.ErrInvalidHandle) {
			t.Errorf("Create() error = %v, want ErrInvalidHandle", err)
		}
	})
}

func TestRenameProfile(t *testing.T) {
	t.Run("moves both files", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)

		if err := s.Rename("alice", "alicia"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		if s.Exists("alice") {
			t.Error("old handle still has files")
		}
		if !s.Exists("alicia") {
			t.Error("new handle has no files")
		}
	})

	t.Run("collision leaves originals untouched", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)
		// Only the limits file exists for bob, but that is enough to
		// refuse the rename.
		touchProfile(t, s, "bob", false, true)

		err := s.Rename("alice", "bob")
		if !errors.Is(err, core.ErrAlreadyExists) {
			t.Fatalf("Rename() error = %v, want ErrAlreadyExists", err)
		}

		ledgerPath, limitsPath := s.ResolvePaths("alice")
		for _, path := range []string{ledgerPath, limitsPath} {
			if _, err := os.Stat(path); err != nil {
				t.Errorf("original file %s gone after refused rename", path)
			}
		}
	})

	t.Run("missing source", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Rename("ghost", "someone"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Rename() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("same handle after normalization", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)
		if err := s.Rename("alice", " ALICE "); err != nil {
			t.Errorf("Rename() to same normalized handle error = %v", err)
		}
		if !s.Exists("alice") {
			t.Error("profile vanished")
		}
	})
}

func TestArchiveProfile(t *testing.T) {
	s := newTestStore(t)
	touchProfile(t, s, "alice", true, true)

	dir, err := s.Archive("alice")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	if !strings.HasPrefix(filepath.Base(dir), "alice-") {
		t.Errorf("archive dir = %q, want alice-<timestamp>", dir)
	}
	if s.Exists("alice") {
		t.Error("profile files still in data dir after archive")
	}
	for _, name := range []string{"alice_expenses.db", "alice_budget_limits.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("archived file %s missing: %v", name, err)
		}
	}

	t.Run("missing profile", func(t *testing.T) {
		if _, err := s.Archive("ghost"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Archive() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteProfile(t *testing.T) {
	t.Run("sole profile is protected", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)

		err := s.Delete("alice", false)
		if !errors.Is(err, core.ErrLastProfile) {
			t.Fatalf("Delete() error = %v, want ErrLastProfile", err)
		}
		if !s.Exists("alice") {
			t.Error("files were touched despite the last-profile guard")
		}
	})

	t.Run("fallback default is protected too", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Delete("default", false); !errors.Is(err, core.ErrLastProfile) {
			t.Errorf("Delete(default) error = %v, want ErrLastProfile", err)
		}
	})

	t.Run("direct delete", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)
		touchProfile(t, s, "bob", true, true)

		if err := s.Delete("alice", false); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if s.Exists("alice") {
			t.Error("alice files survive direct delete")
		}
		if !s.Exists("bob") {
			t.Error("bob files affected by alice delete")
		}
	})

	t.Run("archive first", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)
		touchProfile(t, s, "bob", true, true)

		if err := s.Delete("alice", true); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if s.Exists("alice") {
			t.Error("alice files survive archive-first delete")
		}

		archives, err := filepath.Glob(filepath.Join(s.archiveDir, "alice-*"))
		if err != nil {
			t.Fatalf("glob archive dir: %v", err)
		}
		if len(archives) != 1 {
			t.Fatalf("found %d archive dirs, want 1", len(archives))
		}
		if _, err := os.Stat(filepath.Join(archives[0], "alice_expenses.db")); err != nil {
			t.Errorf("archived ledger missing: %v", err)
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		s := newTestStore(t)
		touchProfile(t, s, "alice", true, true)
		touchProfile(t, s, "bob", true, true)
		if err := s.Delete("ghost", false); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Delete(ghost) error = %v, want ErrNotFound", err)
		}
	})
}
