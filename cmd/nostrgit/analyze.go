package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/execgit"
	"github.com/chebizarro/nostr-git-sub004/internal/facade"
	"github.com/chebizarro/nostr-git-sub004/internal/patch"
)

var (
	analyzeDir          string
	analyzeRootID       string
	analyzeTargetBranch string
	analyzeBaseBranch   string
	analyzeCommits      []string
	analyzePatchFile    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo-address>",
	Short: "classify a patch's merge outcome against a target branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDir, "dir", "", "local workspace directory to analyze against (required)")
	analyzeCmd.Flags().StringVar(&analyzeRootID, "root-id", "", "the patch/PR event id merge metadata attaches to")
	analyzeCmd.Flags().StringVar(&analyzeTargetBranch, "target-branch", "main", "branch to classify the patch against")
	analyzeCmd.Flags().StringVar(&analyzeBaseBranch, "base-branch", "", "branch the patch was generated against (default: target-branch)")
	analyzeCmd.Flags().StringSliceVar(&analyzeCommits, "commit", nil, "commit oid the patch introduces (repeatable, ordered)")
	analyzeCmd.Flags().StringVar(&analyzePatchFile, "patch-file", "", "path to the raw unified diff (required)")
	_ = analyzeCmd.MarkFlagRequired("dir")
	_ = analyzeCmd.MarkFlagRequired("patch-file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	raw, err := os.ReadFile(analyzePatchFile)
	if err != nil {
		return fmt.Errorf("read patch file: %w", err)
	}

	baseBranch := analyzeBaseBranch
	if baseBranch == "" {
		baseBranch = analyzeTargetBranch
	}

	cacheStore, err := cache.Open(filepath.Join(cfg.Workspace, "cache.bolt"))
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer cacheStore.Close()

	backend := execgit.New()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	result, err := facade.AnalyzePatchAndPublish(ctx, backend, cacheStore, nil, nil, nil, facade.AnalyzePatchOptions{
		RepoAddr:     args[0],
		RootID:       analyzeRootID,
		TargetBranch: analyzeTargetBranch,
		BaseBranch:   baseBranch,
		Dir:          analyzeDir,
		Patch:        patch.Input{Commits: analyzeCommits, BaseBranch: baseBranch, Raw: string(raw)},
	})
	if err != nil {
		return fmt.Errorf("analyze patch: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
