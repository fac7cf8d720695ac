package patch

import (
	"encoding/json"

	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
)

// resultToOutcomeTag maps an analyzer Outcome to the short wire value the
// kind-30411 "result" tag carries.
func resultToOutcomeTag(r *AnalysisResult) string {
	switch r.Analysis {
	case OutcomeClean:
		if r.FastForward {
			return "ff"
		}
		return "clean"
	case OutcomeConflicts:
		return "conflicts"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeDiverged:
		return "diverged"
	default:
		return "error"
	}
}

// BuildMergeMetadataEventFromAnalysis produces the unsigned kind-30411
// event mirroring result's fields as JSON content.
func BuildMergeMetadataEventFromAnalysis(repoAddr, rootID, targetBranch, baseBranch string, result *AnalysisResult, createdAt int64) *nostrevent.Event {
	content, _ := json.Marshal(result)
	return nostrevent.CreateMergeMetadata(nostrevent.CreateMergeMetadataParams{
		RepoAddr:     repoAddr,
		RootID:       rootID,
		TargetBranch: targetBranch,
		BaseBranch:   baseBranch,
		Result:       resultToOutcomeTag(result),
		Content:      string(content),
		CreatedAt:    createdAt,
	})
}

// BuildConflictMetadataEventFromAnalysis produces the unsigned kind-30412
// event, or nil when result has no conflicts — callers must check for a
// nil return before publishing.
func BuildConflictMetadataEventFromAnalysis(repoAddr, rootID, targetBranch, baseBranch string, result *AnalysisResult, createdAt int64) *nostrevent.Event {
	if result == nil || !result.HasConflicts || len(result.ConflictFiles) == 0 {
		return nil
	}
	content, _ := json.Marshal(result)
	return nostrevent.CreateConflictMetadata(nostrevent.CreateConflictMetadataParams{
		RepoAddr:      repoAddr,
		RootID:        rootID,
		TargetBranch:  targetBranch,
		BaseBranch:    baseBranch,
		ConflictFiles: result.ConflictFiles,
		Content:       string(content),
		CreatedAt:     createdAt,
	})
}
