package cache

import (
	"time"

	"gorm.io/gorm"

	"github.com/chebizarro/nostr-git-sub004/internal/database"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// URLPreference records which of a repo's announced clone/remote URLs
// resolved fastest or most reliably last time, so future syncs try it
// first instead of re-running the full fallback ladder.
type URLPreference struct {
	RepoAddr      string `gorm:"primaryKey"`
	PreferredURL  string
	LastSucceeded time.Time
	FailureCount  int
	UpdatedAt     time.Time
}

// CredentialRef points at a secret held in the OS keyring rather than
// storing it in the database directly; Host/Username identify which entry
// a given remote's push/fetch should use.
type CredentialRef struct {
	Host            string `gorm:"primaryKey"`
	Username        string `gorm:"primaryKey"`
	KeyringService  string
	KeyringAccount  string
	PreferredMethod string // "token", "ssh-agent", "oauth"
	UpdatedAt       time.Time
}

func init() {
	database.RegisterModels(&URLPreference{}, &CredentialRef{})
}

// MetadataStore wraps the structured (GORM) side of the cache: URL
// preferences and credential references, as opposed to the bbolt KV store's
// repos/commits/mergeAnalysis tables.
type MetadataStore struct {
	db *gorm.DB
}

// NewMetadataStore wraps the process-wide database connection. Call
// database.Init (or InitWithPath) before this so the tables it owns have
// been migrated.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{db: database.Get()}
}

// GetURLPreference returns the stored preference for a repo address, or
// (nil, nil) if none has been recorded yet.
func (s *MetadataStore) GetURLPreference(repoAddr string) (*URLPreference, error) {
	var p URLPreference
	err := s.db.Where("repo_addr = ?", repoAddr).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "get url preference", err)
	}
	return &p, nil
}

// RecordURLSuccess upserts the preferred URL for a repo after a successful
// sync or push, resetting its failure count.
func (s *MetadataStore) RecordURLSuccess(repoAddr, url string) error {
	p := URLPreference{
		RepoAddr:      repoAddr,
		PreferredURL:  url,
		LastSucceeded: time.Now(),
		FailureCount:  0,
		UpdatedAt:     time.Now(),
	}
	err := s.db.Save(&p).Error
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "record url success", err)
	}
	return nil
}

// RecordURLFailure increments the failure count for a repo's current
// preferred URL, so repeated failures eventually demote it in caller logic.
func (s *MetadataStore) RecordURLFailure(repoAddr string) error {
	err := s.db.Model(&URLPreference{}).
		Where("repo_addr = ?", repoAddr).
		Updates(map[string]interface{}{
			"failure_count": gorm.Expr("failure_count + 1"),
			"updated_at":    time.Now(),
		}).Error
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "record url failure", err)
	}
	return nil
}

// GetCredentialRef looks up which keyring entry should back auth for host+user.
func (s *MetadataStore) GetCredentialRef(host, username string) (*CredentialRef, error) {
	var c CredentialRef
	err := s.db.Where("host = ? AND username = ?", host, username).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "get credential ref", err)
	}
	return &c, nil
}

// SetCredentialRef upserts the keyring pointer for host+username.
func (s *MetadataStore) SetCredentialRef(c *CredentialRef) error {
	c.UpdatedAt = time.Now()
	if err := s.db.Save(c).Error; err != nil {
		return nerrors.Wrap(nerrors.Network, "set credential ref", err)
	}
	return nil
}

// DeleteCredentialRef removes the stored pointer (not the keyring secret
// itself — callers should also call keyring.Delete through the auth layer).
func (s *MetadataStore) DeleteCredentialRef(host, username string) error {
	err := s.db.Where("host = ? AND username = ?", host, username).Delete(&CredentialRef{}).Error
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "delete credential ref", err)
	}
	return nil
}
