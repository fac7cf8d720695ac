// Package webhook receives vendor push/pull-request webhooks and turns
// them into workspace resyncs, so a commit landing on GitHub/GitLab/Gitea
// is reflected in the synced workspace without waiting for the next
// scheduled freshness sweep.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/internal/vendor"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

// RepoResolver maps a vendor's "owner/repo" full name to the canonical
// repo address and workspace directory the sync engine tracks it under.
// Returns ok=false for webhooks about repos nobody has announced.
type RepoResolver func(ctx context.Context, vendorName, ownerRepo string) (repoAddr, dir string, ok bool)

// Resyncer is the minimal surface needed from gitsync.Manager to act on
// a webhook; satisfied by *gitsync.Manager.
type Resyncer interface {
	SyncWithRemote(ctx context.Context, repoAddr, dir, branch string) ([]gitbackend.RefUpdate, error)
}

// Handler wires incoming vendor webhooks to a workspace resync.
type Handler struct {
	vendors map[string]vendor.VendorApi
	secrets map[string]string
	sync    Resyncer
	resolve RepoResolver
	status  *StatusTracker
}

// NewHandler builds a webhook handler over the given vendor instances
// (keyed by vendor name, e.g. "github"/"gitlab"/"gitea"), their configured
// webhook secrets, and a resync manager. status may be nil, in which case
// webhook-triggered resyncs aren't recorded for the status endpoint.
func NewHandler(vendors map[string]vendor.VendorApi, secrets map[string]string, sync Resyncer, resolve RepoResolver, status *StatusTracker) *Handler {
	return &Handler{vendors: vendors, secrets: secrets, sync: sync, resolve: resolve, status: status}
}

// HandleWebhook handles POST /webhooks/:vendor.
func (h *Handler) HandleWebhook(c *gin.Context) {
	vendorName := c.Param("vendor")

	v, ok := h.vendors[vendorName]
	if !ok {
		logger.Warn("unknown webhook vendor", zap.String("vendor", vendorName))
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown vendor: " + vendorName})
		return
	}

	secret := h.secrets[vendorName]
	if secret == "" {
		logger.Warn("webhook secret not configured, signature validation skipped",
			zap.String("vendor", vendorName))
	}

	event, err := v.ParseWebhook(c.Request, secret)
	if err != nil {
		logger.Warn("failed to parse webhook", zap.String("vendor", vendorName), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse webhook: " + err.Error()})
		return
	}

	logger.Info("webhook received",
		zap.String("vendor", vendorName),
		zap.String("type", event.Type),
		zap.String("repo", event.Repo),
		zap.String("branch", event.Branch),
		zap.String("action", event.Action),
		zap.Int("pr_number", event.PRNumber))

	switch event.Type {
	case "push":
		h.handlePush(c, vendorName, event)
	case "pull_request", "merge_request":
		h.handlePR(c, vendorName, event)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "event received but not processed", "type": event.Type})
	}
}

func (h *Handler) handlePush(c *gin.Context, vendorName string, event *vendor.WebhookEvent) {
	repoAddr, dir, ok := h.resolve(c.Request.Context(), vendorName, event.Repo)
	if !ok {
		logger.Info("push webhook for unannounced repo, skipping",
			zap.String("vendor", vendorName), zap.String("repo", event.Repo))
		c.JSON(http.StatusOK, gin.H{"message": "no tracked repo for this webhook"})
		return
	}

	branch := event.Branch
	if branch == "" {
		branch = "main"
	}

	updates, err := h.sync.SyncWithRemote(c.Request.Context(), repoAddr, dir, branch)
	if err != nil {
		logger.Error("webhook-triggered resync failed",
			zap.String("repo_addr", repoAddr), zap.String("branch", branch), zap.Error(err))
		h.recordStatus(SyncStatus{RepoAddr: repoAddr, Branch: branch, Error: resyncFailedMessage(err), At: time.Now()})
		c.JSON(http.StatusInternalServerError, gin.H{"message": resyncFailedMessage(err)})
		return
	}

	h.recordStatus(SyncStatus{RepoAddr: repoAddr, Branch: branch, RefsSynced: len(updates), At: time.Now()})
	c.JSON(http.StatusAccepted, gin.H{
		"message":     "resync triggered",
		"repo_addr":   repoAddr,
		"branch":      branch,
		"refs_synced": len(updates),
	})
}

func (h *Handler) recordStatus(s SyncStatus) {
	if h.status != nil {
		h.status.Record(s)
	}
}

// handlePR acknowledges pull-request/merge-request webhooks. Resyncing a
// PR's head ref happens through the patch pipeline when a patch event
// arrives, not here — this just confirms receipt so the vendor's webhook
// delivery isn't marked as failed.
func (h *Handler) handlePR(c *gin.Context, vendorName string, event *vendor.WebhookEvent) {
	logger.Info("pull request webhook acknowledged",
		zap.String("vendor", vendorName),
		zap.String("repo", event.Repo),
		zap.Int("pr_number", event.PRNumber),
		zap.String("action", event.Action))
	c.JSON(http.StatusOK, gin.H{
		"message":   "pull request event received",
		"pr_number": event.PRNumber,
		"action":    event.Action,
	})
}

func resyncFailedMessage(err error) string {
	if ngErr, ok := nerrors.AsNostrGitError(err); ok {
		return ngErr.Message
	}
	return err.Error()
}
