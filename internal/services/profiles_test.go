package services

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"tally/internal/core"
)

func TestCreateProfile(t *testing.T) {
	svc := newTestServices(t, nil)

	h, err := svc.Profiles.Create(context.Background(), "  Alice ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if h != "alice" {
		t.Errorf("handle = %q, want %q", h, "alice")
	}
	if !svc.Profiles.Exists("alice") {
		t.Error("Exists(alice) = false after create")
	}

	ledgerPath, limitsPath, err := svc.Profiles.Paths("alice")
	if err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	for _, p := range []string{ledgerPath, limitsPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("backing file %s: %v", p, err)
		}
	}
	if !strings.HasSuffix(ledgerPath, "alice_expenses.db") {
		t.Errorf("ledger path = %q, want alice_expenses.db suffix", ledgerPath)
	}
	if !strings.HasSuffix(limitsPath, "alice_budget_limits.json") {
		t.Errorf("limits path = %q, want alice_budget_limits.json suffix", limitsPath)
	}

	if _, err := svc.Profiles.Create(context.Background(), "no spaces"); !errors.Is(err, core.ErrInvalidHandle) {
		t.Errorf("Create(bad) error = %v, want ErrInvalidHandle", err)
	}
}

func TestListProfiles(t *testing.T) {
	svc := newTestServices(t, nil)
	mustProfile(t, svc, "bob")
	mustProfile(t, svc, "alice")

	got, err := svc.Profiles.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !slices.Equal(got, []string{"alice", "bob"}) {
		t.Errorf("List() = %v, want [alice bob]", got)
	}
}

func TestRenameProfileMovesData(t *testing.T) {
	svc := newTestServices(t, nil)
	ctx := context.Background()
	h := mustProfile(t, svc, "alice")
	e := mustAdd(t, svc, h, core.NewDate(2025, 7, 15), "food", 12.50)

	if err := svc.Profiles.Rename("alice", "carol"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if svc.Profiles.Exists("alice") {
		t.Error("alice still exists after rename")
	}

	rows, err := svc.Ledger.Query(ctx, "carol", core.Filter{})
	if err != nil {
		t.Fatalf("Query(carol) error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != e.ID {
		t.Errorf("Query(carol) = %v, want the moved expense", rows)
	}

	t.Run("target exists", func(t *testing.T) {
		mustProfile(t, svc, "dave")
		if err := svc.Profiles.Rename("carol", "dave"); !errors.Is(err, core.ErrAlreadyExists) {
			t.Errorf("Rename onto dave error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("source missing", func(t *testing.T) {
		if err := svc.Profiles.Rename("ghost", "anyone"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Rename(ghost) error = %v, want ErrNotFound", err)
		}
	})
}

func TestArchiveProfile(t *testing.T) {
	svc := newTestServices(t, nil)
	h := mustProfile(t, svc, "alice")
	mustProfile(t, svc, "bob")
	mustAdd(t, svc, h, core.NewDate(2025, 7, 15), "food", 12.50)

	dest, err := svc.Profiles.Archive("alice")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("archive destination %s: %v", dest, err)
	}
	if svc.Profiles.Exists("alice") {
		t.Error("alice still exists after archive")
	}

	got, err := svc.Profiles.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if slices.Contains(got, "alice") {
		t.Errorf("List() = %v, alice should be gone", got)
	}
}

func TestDeleteProfile(t *testing.T) {
	svc := newTestServices(t, nil)
	h := mustProfile(t, svc, "alice")
	mustProfile(t, svc, "bob")
	mustAdd(t, svc, h, core.NewDate(2025, 7, 15), "food", 12.50)

	if err := svc.Profiles.Delete("alice", false); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if svc.Profiles.Exists("alice") {
		t.Error("alice still exists after delete")
	}

	if err := svc.Profiles.Delete("bob", false); !errors.Is(err, core.ErrLastProfile) {
		t.Errorf("Delete(last) error = %v, want ErrLastProfile", err)
	}
}
