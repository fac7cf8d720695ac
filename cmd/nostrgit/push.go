package main

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/database"
	"github.com/chebizarro/nostr-git-sub004/internal/eventio"
	"github.com/chebizarro/nostr-git-sub004/internal/execgit"
	"github.com/chebizarro/nostr-git-sub004/internal/facade"
	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/internal/transport/relaypool"
)

var (
	pushDir            string
	pushRefspec        string
	pushForceWithLease bool
	pushURLs           []string
	pushUsername       string
	pushToken          string
	pushNsec           string
	pushYes            bool
	pushPRMode         bool
	pushBaseBranch     string
	pushPatchSubject   string
	pushRootID         string
)

var pushCmd = &cobra.Command{
	Use:   "push <repo-address>",
	Short: "push local commits to every candidate clone URL a repo announces",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func init() {
	pushCmd.Flags().StringVar(&pushDir, "dir", ".", "local git working directory to push from")
	pushCmd.Flags().StringVar(&pushRefspec, "refspec", "HEAD:refs/heads/main", "refspec to push")
	pushCmd.Flags().BoolVar(&pushForceWithLease, "force-with-lease", false, "force push with lease, requires confirmation unless --yes is set")
	pushCmd.Flags().StringSliceVar(&pushURLs, "url", nil, "candidate clone URL, repeatable; overrides the repo's announced URLs")
	pushCmd.Flags().StringVar(&pushUsername, "username", "", "HTTPS username for token auth")
	pushCmd.Flags().StringVar(&pushToken, "token", "", "HTTPS token for token auth")
	pushCmd.Flags().StringVar(&pushNsec, "nsec", "", "nsec or hex private key used to sign published repo-state, patch/PR and status events")
	pushCmd.Flags().BoolVar(&pushYes, "yes", false, "skip the force-push confirmation prompt")
	pushCmd.Flags().BoolVar(&pushPRMode, "pr", false, "publish a Patch/PullRequest event for this push, even if the refspec isn't under refs/heads/pr/")
	pushCmd.Flags().StringVar(&pushBaseBranch, "base-branch", "refs/heads/main", "base branch the published patch/PR targets")
	pushCmd.Flags().StringVar(&pushPatchSubject, "subject", "", "subject line for the published patch/PR; defaults to the pushed branch name")
	pushCmd.Flags().StringVar(&pushRootID, "update-id", "", "event id of an existing patch/PR this push updates, instead of opening a new one")
}

func runPush(cmd *cobra.Command, args []string) error {
	repoAddr := args[0]

	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	if pushForceWithLease && !pushYes {
		confirmed, err := confirmDestructive(repoAddr)
		if err != nil {
			return fmt.Errorf("confirmation prompt: %w", err)
		}
		if !confirmed {
			return fmt.Errorf("force push to %s cancelled", repoAddr)
		}
	}

	backend := execgit.New()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	dirty, err := workingTreeDirty(pushDir)
	if err != nil {
		return fmt.Errorf("check working tree: %w", err)
	}
	depth, err := backend.CurrentDepth(ctx, pushDir)
	if err != nil {
		return fmt.Errorf("check clone depth: %w", err)
	}

	var auth *gitbackend.AuthCredential
	if pushToken != "" {
		auth = &gitbackend.AuthCredential{Username: pushUsername, Password: pushToken}
	}

	pool := relaypool.New()
	defer pool.Close()

	var signer eventio.Signer
	if pushNsec != "" {
		s, err := relaypool.NewKeySigner(pushNsec)
		if err != nil {
			return fmt.Errorf("load signing key: %w", err)
		}
		signer = s
	}

	if err := database.InitWithPath(filepath.Join(cfg.Workspace, "metadata.db")); err != nil {
		return fmt.Errorf("init metadata database: %w", err)
	}
	defer database.Close()
	metadataStore := cache.NewMetadataStore()
	prefs := cache.NewPreferenceAdapter(metadataStore)

	opts := facade.PushOptions{
		RepoAddr:         repoAddr,
		Dir:              pushDir,
		Refspec:          pushRefspec,
		ForceWithLease:   pushForceWithLease,
		Auth:             auth,
		Preflight:        facade.DefaultPreflightOptions(),
		WorkingTreeDirty: dirty,
		CurrentDepth:     depth,
		NeedsUpdate:      false,
		CandidateURLs:    pushURLs,
		PublishRepoState: cfg.Publish.RepoState,
		PublishAnnounce:  cfg.Publish.RepoAnnouncements,
		PRMode:           pushPRMode,
		RootID:           pushRootID,
		PatchSubject:     pushPatchSubject,
		BaseBranch:       pushBaseBranch,
	}
	opts.Preflight.ConfirmDestructive = pushForceWithLease

	result, err := facade.Push(ctx, backend, pool, signer, cfg.Relays.Default, prefs, opts)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	fmt.Printf("pushed via %s (%d attempt(s), %d event(s) published)\n", result.UsedURL, len(result.Attempts), len(result.Published))
	for _, a := range result.Attempts {
		fmt.Printf("  %s: %v\n", a.URL, a.Error)
	}
	return nil
}

// confirmDestructive gates a force-with-lease push behind an interactive
// confirmation, the same pattern the setup wizard uses before overwriting
// an existing file.
func confirmDestructive(repoAddr string) (bool, error) {
	var confirm bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Force-push with lease to %s?", repoAddr)).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm).
		Run()
	if err != nil {
		return false, err
	}
	return confirm, nil
}

func workingTreeDirty(dir string) (bool, error) {
	cmd := exec.Command("git", "-C", dir, "status", "--porcelain")
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}
