// Package execgit implements gitbackend.GitBackend by shelling out to the
// system git binary, the reference deployment the interface's doc comment
// describes — this never reimplements Git's wire protocol, it just drives
// the real client the way a human operator would.
package execgit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

// Backend drives the system git binary.
type Backend struct {
	// GitPath overrides the binary looked up on PATH, mainly for tests.
	GitPath string
}

// New returns a Backend that invokes "git" from PATH.
func New() *Backend {
	return &Backend{GitPath: "git"}
}

func (b *Backend) bin() string {
	if b.GitPath != "" {
		return b.GitPath
	}
	return "git"
}

func (b *Backend) run(ctx context.Context, dir string, auth *gitbackend.AuthCredential, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.bin(), args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if auth != nil && len(auth.SSHKeyPEM) > 0 {
		keyFile, cleanup, err := writeTempKey(auth.SSHKeyPEM)
		if err != nil {
			return "", nerrors.Wrap(nerrors.Unknown, "write ssh key", err)
		}
		defer cleanup()
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND=ssh -i "+keyFile+" -o StrictHostKeyChecking=accept-new")
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("running git", zap.String("dir", dir), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return "", nerrors.Wrap(nerrors.Network, fmt.Sprintf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String())), err)
	}
	return stdout.String(), nil
}

func authenticatedURL(rawURL string, auth *gitbackend.AuthCredential) string {
	if auth == nil || auth.Username == "" {
		return rawURL
	}
	if !strings.HasPrefix(rawURL, "https://") && !strings.HasPrefix(rawURL, "http://") {
		return rawURL
	}
	scheme, rest, found := strings.Cut(rawURL, "://")
	if !found {
		return rawURL
	}
	return scheme + "://" + auth.Username + ":" + auth.Password + "@" + rest
}

func writeTempKey(pem []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "nostrgit-deploy-key-*")
	if err != nil {
		return "", nil, err
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if _, err := f.Write(pem); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func (b *Backend) Clone(ctx context.Context, opts gitbackend.CloneOptions) ([]gitbackend.RefUpdate, error) {
	args := []string{"clone"}
	if opts.Shallow {
		depth := opts.Depth
		if depth <= 0 {
			depth = 1
		}
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	if opts.RefsOnly {
		args = append(args, "--filter=blob:none", "--no-checkout")
	}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch, "--single-branch")
	}
	args = append(args, authenticatedURL(opts.URL, nil), opts.Dir)

	if _, err := b.run(ctx, "", nil, args...); err != nil {
		return nil, err
	}
	return b.ListRefs(ctx, opts.Dir)
}

func (b *Backend) Fetch(ctx context.Context, opts gitbackend.FetchOptions) ([]gitbackend.RefUpdate, error) {
	args := []string{"fetch", opts.Remote}
	if opts.Deepen > 0 {
		args = append(args, "--deepen", strconv.Itoa(opts.Deepen))
	}
	args = append(args, opts.Refs...)

	if _, err := b.run(ctx, opts.Dir, nil, args...); err != nil {
		return nil, err
	}
	return b.ListRefs(ctx, opts.Dir)
}

func (b *Backend) Push(ctx context.Context, opts gitbackend.PushOptions) error {
	args := []string{"push"}
	if opts.ForceWithLease {
		args = append(args, "--force-with-lease")
	}
	args = append(args, authenticatedURL(opts.URL, opts.Auth), opts.Refspec)

	_, err := b.run(ctx, opts.Dir, opts.Auth, args...)
	return err
}

func (b *Backend) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	out, err := b.run(ctx, dir, nil, "rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *Backend) ListRefs(ctx context.Context, dir string) ([]gitbackend.RefUpdate, error) {
	out, err := b.run(ctx, dir, nil, "show-ref")
	if err != nil {
		// A fresh repo with no refs yet exits non-zero; treat as empty.
		if strings.TrimSpace(out) == "" {
			return nil, nil
		}
		return nil, err
	}
	var refs []gitbackend.RefUpdate
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		refs = append(refs, gitbackend.RefUpdate{OID: parts[0], Name: parts[1]})
	}
	return refs, nil
}

func (b *Backend) AnalyzeMerge(ctx context.Context, q gitbackend.MergeAnalysisQuery) (*gitbackend.MergeAnalysisResult, error) {
	base, err := b.run(ctx, q.Dir, nil, "merge-base", q.Base, q.Target)
	if err != nil {
		return nil, err
	}
	mergeBase := strings.TrimSpace(base)

	aheadBehind, err := b.run(ctx, q.Dir, nil, "rev-list", "--left-right", "--count", q.Base+"..."+q.Target)
	if err != nil {
		return nil, err
	}
	behind, ahead := parseLeftRightCount(aheadBehind)

	result := &gitbackend.MergeAnalysisResult{
		MergeBase:     mergeBase,
		AheadCount:    ahead,
		BehindCount:   behind,
		IsFastForward: mergeBase == strings.TrimSpace(base) && behind == 0,
	}

	mergeTree, err := b.run(ctx, q.Dir, nil, "merge-tree", "--write-tree", q.Base, q.Target)
	if err == nil {
		result.ConflictPaths = parseConflictPaths(mergeTree)
	}
	return result, nil
}

func parseLeftRightCount(out string) (left, right int) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return 0, 0
	}
	left, _ = strconv.Atoi(fields[0])
	right, _ = strconv.Atoi(fields[1])
	return left, right
}

func parseConflictPaths(mergeTreeOutput string) []string {
	var paths []string
	inConflicts := false
	for _, line := range strings.Split(mergeTreeOutput, "\n") {
		if strings.HasPrefix(line, "Conflicted files:") {
			inConflicts = true
			continue
		}
		if inConflicts {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				break
			}
			paths = append(paths, trimmed)
		}
	}
	return paths
}

func (b *Backend) ApplyPatch(ctx context.Context, dir, diff, baseCommit string) (string, error) {
	if baseCommit != "" {
		if _, err := b.run(ctx, dir, nil, "checkout", baseCommit); err != nil {
			return "", err
		}
	}

	cmd := exec.CommandContext(ctx, b.bin(), "-C", dir, "am", "--3way")
	cmd.Stdin = strings.NewReader(diff)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_, _ = b.run(ctx, dir, nil, "am", "--abort")
		return "", nerrors.Wrap(nerrors.Network, "git am --3way: "+strings.TrimSpace(stderr.String()), err)
	}

	return b.ResolveRef(ctx, dir, "HEAD")
}

func (b *Backend) TreeDiff(ctx context.Context, dir, oldOID, newOID string) ([]gitbackend.TreeDiffEntry, error) {
	out, err := b.run(ctx, dir, nil, "diff", "--name-only", oldOID, newOID)
	if err != nil {
		return nil, err
	}
	var entries []gitbackend.TreeDiffEntry
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		entries = append(entries, gitbackend.TreeDiffEntry{Path: line})
	}
	return entries, nil
}

// Diff returns the unified diff between base and head, in the same format
// patch.ParseUnifiedDiff accepts — the text a generated Patch event's content
// or a cover-letter's appended diff body carries.
func (b *Backend) Diff(ctx context.Context, dir, base, head string) (string, error) {
	return b.run(ctx, dir, nil, "diff", base, head)
}

func (b *Backend) CreateBranch(ctx context.Context, dir, name, fromOID string) error {
	_, err := b.run(ctx, dir, nil, "branch", name, fromOID)
	return err
}

func (b *Backend) CurrentDepth(ctx context.Context, dir string) (int, error) {
	out, err := b.run(ctx, dir, nil, "rev-list", "--count", "HEAD")
	if err != nil {
		return 0, err
	}
	depth, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, nerrors.Wrap(nerrors.Unknown, "parse rev-list count", convErr)
	}

	shallowOut, err := b.run(ctx, dir, nil, "rev-parse", "--is-shallow-repository")
	if err == nil && strings.TrimSpace(shallowOut) == "true" {
		return depth, nil
	}
	return 0, nil
}
