package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chebizarro/nostr-git-sub004/consts"
	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/config"
	"github.com/chebizarro/nostr-git-sub004/internal/database"
	"github.com/chebizarro/nostr-git-sub004/internal/execgit"
	"github.com/chebizarro/nostr-git-sub004/internal/gitsync"
	"github.com/chebizarro/nostr-git-sub004/internal/osfs"
	"github.com/chebizarro/nostr-git-sub004/internal/scheduler"
	"github.com/chebizarro/nostr-git-sub004/internal/vendor"
	"github.com/chebizarro/nostr-git-sub004/internal/webhook"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

var (
	serveHost string
	servePort int
	reposPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the webhook receiver, manual trigger API, and freshness scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "listen host, used together with --port to override config webhook.listen_addr")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port, overrides config webhook.listen_addr")
	serveCmd.Flags().StringVar(&reposPath, "repos", "./repos.yaml", "YAML file mapping vendor/owner/repo to tracked repo addresses")
}

// trackedRepo is one entry of the repos.yaml tracking file: which vendor
// host and owner/repo a repoAddr's clone URLs resolve to on disk.
type trackedRepo struct {
	RepoAddr  string `yaml:"repo_addr"`
	Vendor    string `yaml:"vendor"`
	OwnerRepo string `yaml:"owner_repo"`
	Branch    string `yaml:"branch"`
}

type repoRegistry struct {
	repos []trackedRepo
}

func loadRepoRegistry(path string) (*repoRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &repoRegistry{}, nil
		}
		return nil, err
	}
	var repos []trackedRepo
	if err := yaml.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &repoRegistry{repos: repos}, nil
}

func (r *repoRegistry) resolve(workspace string) webhook.RepoResolver {
	return func(ctx context.Context, vendorName, ownerRepo string) (repoAddr, dir string, ok bool) {
		for _, tr := range r.repos {
			if tr.Vendor == vendorName && strings.EqualFold(tr.OwnerRepo, ownerRepo) {
				return tr.RepoAddr, filepath.Join(workspace, safeWorkspaceName(tr.RepoAddr)), true
			}
		}
		return "", "", false
	}
}

func (r *repoRegistry) trackedRepos(gitsyncMgr *gitsync.Manager) []scheduler.TrackedRepo {
	out := make([]scheduler.TrackedRepo, 0, len(r.repos))
	for _, tr := range r.repos {
		branch := tr.Branch
		if branch == "" {
			branch = "main"
		}
		out = append(out, scheduler.TrackedRepo{
			RepoAddr: tr.RepoAddr,
			Dir:      gitsyncMgr.WorkspacePath(tr.RepoAddr),
			Branch:   branch,
		})
	}
	return out
}

func safeWorkspaceName(repoAddr string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(repoAddr)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	consts.SetStartedAt(time.Now())

	listenAddr := cfg.Webhook.ListenAddr
	if servePort != 0 {
		listenAddr = fmt.Sprintf("%s:%d", serveHost, servePort)
	}

	if err := database.InitWithPath(filepath.Join(cfg.Workspace, "metadata.db")); err != nil {
		return fmt.Errorf("init metadata database: %w", err)
	}
	defer database.Close()

	cacheStore, err := cache.Open(filepath.Join(cfg.Workspace, "cache.bolt"))
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer cacheStore.Close()

	backend := execgit.New()
	fs := osfs.New()
	syncMgr := gitsync.NewManager(backend, fs, cfg.Workspace, cacheStore)

	registry, err := loadRepoRegistry(reposPath)
	if err != nil {
		return fmt.Errorf("load repo registry: %w", err)
	}
	resolve := registry.resolve(cfg.Workspace)

	vendors, err := buildVendors(cfg)
	if err != nil {
		return fmt.Errorf("build vendor clients: %w", err)
	}

	statusTracker := webhook.NewStatusTracker()
	webhookHandler := webhook.NewHandler(vendors, cfg.Webhook.Secrets, syncMgr, resolve, statusTracker)
	triggerHandler := webhook.NewTriggerHandler(syncMgr, resolve, statusTracker)

	sched := scheduler.NewService(cacheStore, 24*time.Hour)
	if err := sched.RegisterFreshnessSweep(syncMgr, func() []scheduler.TrackedRepo {
		return registry.trackedRepos(syncMgr)
	}); err != nil {
		return fmt.Errorf("register freshness sweep: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/webhooks/:vendor", webhookHandler.HandleWebhook)

	if cfg.Webhook.JWTSecret != "" {
		trigger := engine.Group("/webhooks", webhook.JWTAuth(cfg.Webhook.JWTSecret))
		trigger.POST("/trigger/:vendor/*owner_repo", triggerHandler.HandleTrigger)
		trigger.GET("/status/:vendor/*owner_repo", triggerHandler.HandleStatus)
		trigger.GET("/status", triggerHandler.HandleStatus)
	} else {
		logger.Warn("webhook.jwt_secret unset: manual trigger/status endpoints are disabled")
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"version":     consts.Version,
			"uptime_secs": consts.GetUptime().Seconds(),
		})
	})

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: engine,
	}

	logger.Info("nostrgit serve listening", zap.String("addr", listenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// buildVendors instantiates every registered vendor client the config's
// webhook secrets reference, sharing the registry wired in internal/vendor's
// init functions (github/gitlab/gitea/grasp).
func buildVendors(cfg *config.Config) (map[string]vendor.VendorApi, error) {
	out := make(map[string]vendor.VendorApi, len(cfg.Webhook.Secrets))
	for name := range cfg.Webhook.Secrets {
		v, err := vendor.Create(name, &vendor.Options{})
		if err != nil {
			return nil, fmt.Errorf("vendor %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
