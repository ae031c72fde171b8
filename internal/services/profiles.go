package services

import (
	"context"

	"tally/internal/profile"
)

// ProfilesService manages profile lifecycle. Mutations close the pooled
// ledger handle before files move on disk.
type ProfilesService struct {
	st *state
}

// List returns the known profile handles, sorted.
func (s *ProfilesService) List() ([]string, error) {
	return s.st.profiles.List()
}

// Exists reports whether the handle has backing files.
func (s *ProfilesService) Exists(handle string) bool {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return false
	}
	return s.st.profiles.Exists(h)
}

// Create materializes a profile and returns the normalized handle.
// Idempotent for an existing profile.
func (s *ProfilesService) Create(ctx context.Context, raw string) (string, error) {
	h, err := s.st.profiles.Create(ctx, raw)
	if err != nil {
		return "", err
	}
	s.st.bump(h)
	return h, nil
}

// Rename moves a profile to a new handle.
func (s *ProfilesService) Rename(oldRaw, newRaw string) error {
	oldH, err := profile.NormalizeHandle(oldRaw)
	if err != nil {
		return err
	}
	newH, err := profile.NormalizeHandle(newRaw)
	if err != nil {
		return err
	}

	mu := s.st.lock(oldH)
	mu.Lock()
	defer mu.Unlock()

	if err := s.st.closeLedger(oldH); err != nil {
		return err
	}
	if err := s.st.profiles.Rename(oldH, newH); err != nil {
		return err
	}
	s.st.bump(oldH)
	s.st.bump(newH)
	return nil
}

// Archive moves the profile's files into the archive directory and
// returns the destination directory.
func (s *ProfilesService) Archive(raw string) (string, error) {
	h, err := profile.NormalizeHandle(raw)
	if err != nil {
		return "", err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	if err := s.st.closeLedger(h); err != nil {
		return "", err
	}
	dest, err := s.st.profiles.Archive(h)
	if err != nil {
		return "", err
	}
	s.st.bump(h)
	return dest, nil
}

// Delete removes the profile's files, optionally archiving them first.
// Deleting the last profile is refused.
func (s *ProfilesService) Delete(raw string, archiveFirst bool) error {
	h, err := profile.NormalizeHandle(raw)
	if err != nil {
		return err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	if err := s.st.closeLedger(h); err != nil {
		return err
	}
	if err := s.st.profiles.Delete(h, archiveFirst); err != nil {
		return err
	}
	s.st.bump(h)
	return nil
}

// Paths returns where the profile's ledger and limits files live.
func (s *ProfilesService) Paths(raw string) (ledgerPath, limitsPath string, err error) {
	h, err := profile.NormalizeHandle(raw)
	if err != nil {
		return "", "", err
	}
	ledgerPath, limitsPath = s.st.profiles.ResolvePaths(h)
	return ledgerPath, limitsPath, nil
}
