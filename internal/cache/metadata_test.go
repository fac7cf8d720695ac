package cache

import (
	"path/filepath"
	"testing"

	"github.com/chebizarro/nostr-git-sub004/internal/database"
)

func newTestMetadataStore(t *testing.T) *MetadataStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "metadata.db")
	if err := database.InitWithPath(dbPath); err != nil {
		t.Fatalf("InitWithPath: %v", err)
	}
	t.Cleanup(database.ResetForTesting)
	return NewMetadataStore()
}

func TestURLPreferenceRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	if got, err := s.GetURLPreference("30617:abc:widgets"); err != nil || got != nil {
		t.Fatalf("expected no preference yet, got %+v err=%v", got, err)
	}
	if err := s.RecordURLSuccess("30617:abc:widgets", "https://github.com/acme/widgets.git"); err != nil {
		t.Fatalf("RecordURLSuccess: %v", err)
	}
	got, err := s.GetURLPreference("30617:abc:widgets")
	if err != nil {
		t.Fatalf("GetURLPreference: %v", err)
	}
	if got == nil || got.PreferredURL != "https://github.com/acme/widgets.git" {
		t.Fatalf("unexpected preference: %+v", got)
	}
	if got.FailureCount != 0 {
		t.Errorf("expected fresh success to reset failure count, got %d", got.FailureCount)
	}
}

func TestRecordURLFailureIncrements(t *testing.T) {
	s := newTestMetadataStore(t)
	_ = s.RecordURLSuccess("30617:abc:widgets", "https://gitlab.com/acme/widgets.git")
	_ = s.RecordURLFailure("30617:abc:widgets")
	_ = s.RecordURLFailure("30617:abc:widgets")
	got, err := s.GetURLPreference("30617:abc:widgets")
	if err != nil {
		t.Fatalf("GetURLPreference: %v", err)
	}
	if got.FailureCount != 2 {
		t.Errorf("expected failure count 2, got %d", got.FailureCount)
	}
}

func TestCredentialRefRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	c := &CredentialRef{
		Host:            "github.com",
		Username:        "octocat",
		KeyringService:  "nostrgit",
		KeyringAccount:  "github.com:octocat",
		PreferredMethod: "token",
	}
	if err := s.SetCredentialRef(c); err != nil {
		t.Fatalf("SetCredentialRef: %v", err)
	}
	got, err := s.GetCredentialRef("github.com", "octocat")
	if err != nil {
		t.Fatalf("GetCredentialRef: %v", err)
	}
	if got == nil || got.KeyringAccount != "github.com:octocat" {
		t.Fatalf("unexpected credential ref: %+v", got)
	}
	if err := s.DeleteCredentialRef("github.com", "octocat"); err != nil {
		t.Fatalf("DeleteCredentialRef: %v", err)
	}
	got, err = s.GetCredentialRef("github.com", "octocat")
	if err != nil {
		t.Fatalf("GetCredentialRef after delete: %v", err)
	}
	if got != nil {
		t.Error("expected credential ref to be gone after delete")
	}
}
