package patch

import (
	"context"

	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
	"go.uber.org/zap"
)

// AnalyzeOptions carries everything AnalyzeMerge needs to classify a patch
// against a target branch: the git-level collaborator and working tree to
// query, the patch itself, and the cache-key components that scope the
// result to one repo/patch/branch triple.
type AnalyzeOptions struct {
	RepoID       string
	PatchID      string
	TargetBranch string
	Dir          string
	Patch        Input
}

func mergeAnalysisCacheKey(repoID, patchID, targetBranch string) string {
	return repoID + "::" + patchID + "::" + targetBranch
}

// AnalyzeMerge runs the merge-analysis pipeline end to end: it validates the
// raw diff, asks backend for the target branch's actual relationship to the
// patch's commits, classifies the outcome via ClassifyMergeOutcome, and
// caches the result under store's mergeAnalysis table so a repeated request
// for the same repo/patch/branch triple skips the git-level work entirely.
func AnalyzeMerge(ctx context.Context, backend gitbackend.GitBackend, store *cache.Store, opts AnalyzeOptions) (*AnalysisResult, error) {
	key := mergeAnalysisCacheKey(opts.RepoID, opts.PatchID, opts.TargetBranch)
	if store != nil {
		var cached AnalysisResult
		if found, err := store.Get(cache.TableMergeAnalysis, key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	result := classifyAgainstBackend(ctx, backend, opts)

	if store != nil {
		if err := store.Put(cache.TableMergeAnalysis, key, result); err != nil {
			logger.Warn("failed to cache merge analysis", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

func classifyAgainstBackend(ctx context.Context, backend gitbackend.GitBackend, opts AnalyzeOptions) *AnalysisResult {
	in := ClassifyInput{}

	if _, err := ParseUnifiedDiff(opts.Patch.Raw); err != nil {
		in.DiffParseError = err.Error()
		return ClassifyMergeOutcome(in)
	}
	in.DiffValid = true

	targetCommit, err := backend.ResolveRef(ctx, opts.Dir, "refs/heads/"+opts.TargetBranch)
	if err != nil {
		in.DiffValid = false
		in.DiffParseError = "resolve target branch: " + err.Error()
		return ClassifyMergeOutcome(in)
	}

	for _, c := range opts.Patch.Commits {
		if c == targetCommit {
			in.CommitInTargetHistory = true
			return ClassifyMergeOutcome(in)
		}
	}

	if remoteCommit, err := backend.ResolveRef(ctx, opts.Dir, "refs/remotes/origin/"+opts.TargetBranch); err == nil && remoteCommit != "" && remoteCommit != targetCommit {
		if rel, err := backend.AnalyzeMerge(ctx, gitbackend.MergeAnalysisQuery{Dir: opts.Dir, Base: remoteCommit, Target: targetCommit}); err == nil && !rel.IsFastForward {
			in.OriginDiverged = true
			return ClassifyMergeOutcome(in)
		}
	}

	if len(opts.Patch.Commits) == 0 {
		return ClassifyMergeOutcome(in)
	}
	headCommit := opts.Patch.Commits[len(opts.Patch.Commits)-1]
	analysis, err := backend.AnalyzeMerge(ctx, gitbackend.MergeAnalysisQuery{Dir: opts.Dir, Base: targetCommit, Target: headCommit})
	if err != nil {
		in.DiffValid = false
		in.DiffParseError = "analyze merge: " + err.Error()
		return ClassifyMergeOutcome(in)
	}
	in.IsFastForward = analysis.IsFastForward
	in.ConflictFiles = analysis.ConflictPaths
	return ClassifyMergeOutcome(in)
}
