package webhook

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

// TriggerClaims identifies the caller allowed to force a resync or read
// sync status, a narrow claim set carrying just a subject and expiry.
type TriggerClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// JWTAuth returns gin middleware that requires a bearer token signed with
// secret and stores its subject in the request context under "subject".
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authorization header required"})
			return
		}

		const bearerPrefix = "Bearer "
		if len(authHeader) <= len(bearerPrefix) || !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid authorization format"})
			return
		}
		tokenString := authHeader[len(bearerPrefix):]

		claims := &TriggerClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.Debug("webhook trigger token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// SyncStatus records the outcome of the most recent resync attempt for a
// tracked repo, surfaced by the status endpoint.
type SyncStatus struct {
	RepoAddr   string    `json:"repo_addr"`
	Branch     string    `json:"branch"`
	RefsSynced int       `json:"refs_synced"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// StatusTracker records sync outcomes keyed by repo address, guarded by a
// mutex since webhook requests and scheduled sweeps both write to it.
type StatusTracker struct {
	mu     sync.RWMutex
	latest map[string]SyncStatus
}

// NewStatusTracker returns an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{latest: make(map[string]SyncStatus)}
}

// Record stores the outcome of a sync attempt.
func (t *StatusTracker) Record(status SyncStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[status.RepoAddr] = status
}

// Get returns the most recent status for repoAddr, if any.
func (t *StatusTracker) Get(repoAddr string) (SyncStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.latest[repoAddr]
	return s, ok
}

// All returns every tracked status.
func (t *StatusTracker) All() []SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]SyncStatus, 0, len(t.latest))
	for _, s := range t.latest {
		out = append(out, s)
	}
	return out
}

// TriggerHandler exposes a bearer-token-guarded manual resync trigger and a
// status endpoint, for operators and dashboards outside the webhook path.
type TriggerHandler struct {
	sync    Resyncer
	resolve RepoResolver
	status  *StatusTracker
}

// NewTriggerHandler builds a handler sharing the same resync/resolve
// collaborators as the vendor webhook Handler.
func NewTriggerHandler(sync Resyncer, resolve RepoResolver, status *StatusTracker) *TriggerHandler {
	return &TriggerHandler{sync: sync, resolve: resolve, status: status}
}

// HandleTrigger handles POST /webhooks/trigger/:vendor/*owner_repo.
func (h *TriggerHandler) HandleTrigger(c *gin.Context) {
	vendorName := c.Param("vendor")
	ownerRepo := strings.TrimPrefix(c.Param("owner_repo"), "/")
	branch := c.DefaultQuery("branch", "main")

	repoAddr, dir, ok := h.resolve(c.Request.Context(), vendorName, ownerRepo)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no tracked repo for " + vendorName + "/" + ownerRepo})
		return
	}

	updates, err := h.sync.SyncWithRemote(c.Request.Context(), repoAddr, dir, branch)
	status := SyncStatus{RepoAddr: repoAddr, Branch: branch, At: time.Now()}
	if err != nil {
		status.Error = resyncFailedMessage(err)
		h.status.Record(status)
		logger.Error("manual resync trigger failed",
			zap.String("subject", subjectFromContext(c)),
			zap.String("repo_addr", repoAddr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": status.Error})
		return
	}

	status.RefsSynced = len(updates)
	h.status.Record(status)
	logger.Info("manual resync triggered",
		zap.String("subject", subjectFromContext(c)),
		zap.String("repo_addr", repoAddr), zap.Int("refs_synced", len(updates)))
	c.JSON(http.StatusAccepted, status)
}

// HandleStatus handles GET /webhooks/status/:vendor/*owner_repo, or every
// tracked status when owner_repo is empty.
func (h *TriggerHandler) HandleStatus(c *gin.Context) {
	vendorName := c.Param("vendor")
	ownerRepo := strings.TrimPrefix(c.Param("owner_repo"), "/")
	if ownerRepo == "" {
		c.JSON(http.StatusOK, gin.H{"statuses": h.status.All()})
		return
	}

	repoAddr, _, ok := h.resolve(c.Request.Context(), vendorName, ownerRepo)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no tracked repo for " + vendorName + "/" + ownerRepo})
		return
	}

	s, ok := h.status.Get(repoAddr)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no sync recorded for " + repoAddr})
		return
	}
	c.JSON(http.StatusOK, s)
}

func subjectFromContext(c *gin.Context) string {
	if v, ok := c.Get("subject"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
