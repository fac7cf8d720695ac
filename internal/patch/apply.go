package patch

import (
	"context"
	"strings"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/internal/pushcoord"
	"github.com/chebizarro/nostr-git-sub004/pkg/idgen"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"

	"go.uber.org/zap"
)

// PushErrorDetail records one remote's push failure for the caller to
// surface verbatim.
type PushErrorDetail struct {
	Remote  string
	Code    string
	Message string
}

// ApplyOptions configures applyPatchAndPush.
type ApplyOptions struct {
	Dir        string
	Raw        string
	BaseCommit string
	Remotes    []string // candidate push URLs; empty means local-only
	Refspec    string
	Auth       *gitbackend.AuthCredential
}

// ApplyResult is applyPatchAndPush's structured outcome.
type ApplyResult struct {
	Success        bool
	CommitOID      string
	Error          string
	Warning        string
	PushedRemotes  []string
	SkippedRemotes []string
	PushErrors     []PushErrorDetail
}

func isProtectedBranchError(err error, url string) bool {
	if err == nil {
		return false
	}
	if !strings.HasPrefix(url, "grasp") && !strings.Contains(url, "grasp") {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "protected") || strings.Contains(msg, "branch is protected")
}

// ApplyPatchAndPush applies raw to dir via GitBackend, then pushes the
// resulting commit to every configured remote, falling back to an
// auto-named topic branch when a relay-backed remote rejects a push to a
// protected branch.
func ApplyPatchAndPush(ctx context.Context, backend gitbackend.GitBackend, opts ApplyOptions) *ApplyResult {
	if HasRenameOrBinaryMarkers(opts.Raw) {
		return &ApplyResult{Success: false, Error: "Unsupported patch features"}
	}
	if _, err := ParseUnifiedDiff(opts.Raw); err != nil {
		return &ApplyResult{Success: false, Error: err.Error()}
	}

	commitOID, err := backend.ApplyPatch(ctx, opts.Dir, opts.Raw, opts.BaseCommit)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no changes") {
			return &ApplyResult{Success: false, Error: "No changes to apply"}
		}
		return &ApplyResult{Success: false, Error: err.Error()}
	}

	result := &ApplyResult{Success: true, CommitOID: commitOID}
	if len(opts.Remotes) == 0 {
		result.Warning = "No remotes configured - changes only applied locally"
		return result
	}

	for _, remote := range opts.Remotes {
		if strings.HasPrefix(remote, "nostr:") {
			result.SkippedRemotes = append(result.SkippedRemotes, remote)
			continue
		}
		pushErr := backend.Push(ctx, gitbackend.PushOptions{
			Dir: opts.Dir, URL: remote, Refspec: opts.Refspec, Auth: opts.Auth,
		})
		if pushErr == nil {
			result.PushedRemotes = append(result.PushedRemotes, remote)
			continue
		}
		if isProtectedBranchError(pushErr, remote) {
			topic := "refs/heads/grasp/patch-" + idgen.NewShortID()
			fallbackErr := backend.Push(ctx, gitbackend.PushOptions{
				Dir: opts.Dir, URL: remote, Refspec: topic, Auth: opts.Auth,
			})
			if fallbackErr == nil {
				logger.Info("push fell back to topic branch",
					zap.String("remote", remote), zap.String("topic", topic))
				result.PushedRemotes = append(result.PushedRemotes, remote)
				continue
			}
			logger.Warn("topic branch fallback push also failed",
				zap.String("remote", remote), zap.String("topic", topic), zap.Error(fallbackErr))
			result.PushErrors = append(result.PushErrors, PushErrorDetail{
				Remote: remote, Code: "FALLBACK_FAILED", Message: fallbackErr.Error(),
			})
			continue
		}
		result.PushErrors = append(result.PushErrors, PushErrorDetail{
			Remote: remote, Code: "PUSH_FAILED", Message: pushErr.Error(),
		})
	}
	return result
}

// ApplyPatchAndPushMirrored is the concurrent variant: it pushes to every
// remote at once via pushcoord.WithMultiWrite instead of sequentially,
// for callers that don't need the grasp-specific topic-branch retry.
func ApplyPatchAndPushMirrored(ctx context.Context, backend gitbackend.GitBackend, opts ApplyOptions) (*ApplyResult, *pushcoord.MultiWriteResult) {
	if HasRenameOrBinaryMarkers(opts.Raw) {
		return &ApplyResult{Success: false, Error: "Unsupported patch features"}, nil
	}
	commitOID, err := backend.ApplyPatch(ctx, opts.Dir, opts.Raw, opts.BaseCommit)
	if err != nil {
		return &ApplyResult{Success: false, Error: err.Error()}, nil
	}
	if len(opts.Remotes) == 0 {
		return &ApplyResult{Success: true, CommitOID: commitOID, Warning: "No remotes configured - changes only applied locally"}, nil
	}
	mw := pushcoord.WithMultiWrite(ctx, opts.Remotes, pushcoord.PushViaBackend(backend, opts.Dir, opts.Refspec, opts.Auth))
	return &ApplyResult{Success: mw.Success || mw.PartialSuccess, CommitOID: commitOID}, mw
}
