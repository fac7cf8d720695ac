package patch

import "strconv"

// Outcome is the merge analyzer's classification of a patch against a
// target branch.
type Outcome string

const (
	OutcomeError      Outcome = "error"
	OutcomeUpToDate   Outcome = "up-to-date"
	OutcomeDiverged   Outcome = "diverged"
	OutcomeConflicts  Outcome = "conflicts"
	OutcomeClean      Outcome = "clean"
)

// AnalysisResult mirrors the patch analyzer's result shape; JSON tags
// match the field names buildMergeMetadataEventFromAnalysis/
// buildConflictMetadataEventFromAnalysis mirror into event content.
type AnalysisResult struct {
	Analysis      Outcome  `json:"analysis"`
	CanMerge      bool     `json:"canMerge"`
	FastForward   bool     `json:"fastForward,omitempty"`
	UpToDate      bool     `json:"upToDate,omitempty"`
	Diverged      bool     `json:"diverged,omitempty"`
	HasConflicts  bool     `json:"hasConflicts,omitempty"`
	ConflictFiles []string `json:"conflictFiles,omitempty"`
	ErrorMessage  string   `json:"errorMessage,omitempty"`
}

// ClassifyInput carries exactly the facts the decision order in §4.H needs;
// gathering them (reading history, replaying hunks) is gitsync/gitbackend's
// job, leaving this function pure and independently testable.
type ClassifyInput struct {
	DiffValid             bool
	DiffParseError        string
	CommitInTargetHistory bool // step 2: any patch commit already in target's history
	OriginDiverged        bool // step 3: tracking ref exists, differs, not a descendant
	IsFastForward         bool // step 4: last patch commit descends from targetCommit
	ConflictFiles         []string
}

// ClassifyMergeOutcome applies the fixed decision order: invalid,
// up-to-date, diverged, fast-forward, conflict analysis, else clean.
func ClassifyMergeOutcome(in ClassifyInput) *AnalysisResult {
	if !in.DiffValid {
		msg := in.DiffParseError
		if msg == "" {
			msg = "invalid patch content"
		}
		return &AnalysisResult{Analysis: OutcomeError, CanMerge: false, ErrorMessage: msg}
	}
	if in.CommitInTargetHistory {
		return &AnalysisResult{Analysis: OutcomeUpToDate, UpToDate: true, CanMerge: true}
	}
	if in.OriginDiverged {
		return &AnalysisResult{Analysis: OutcomeDiverged, Diverged: true, CanMerge: false}
	}
	if in.IsFastForward {
		return &AnalysisResult{Analysis: OutcomeClean, FastForward: true, CanMerge: true}
	}
	if len(in.ConflictFiles) > 0 {
		return &AnalysisResult{
			Analysis:      OutcomeConflicts,
			HasConflicts:  true,
			CanMerge:      false,
			ConflictFiles: append([]string(nil), in.ConflictFiles...),
		}
	}
	return &AnalysisResult{Analysis: OutcomeClean, FastForward: false, CanMerge: true}
}

// GetMergeStatusMessage yields a fixed short phrase per analysis outcome.
func GetMergeStatusMessage(r *AnalysisResult) string {
	if r == nil {
		return "Unable to analyze merge: no result"
	}
	switch r.Analysis {
	case OutcomeClean:
		if r.FastForward {
			return "fast-forward…"
		}
		return "merged cleanly"
	case OutcomeConflicts:
		n := len(r.ConflictFiles)
		if n == 1 {
			return "1 file conflict"
		}
		return pluralConflicts(n)
	case OutcomeUpToDate:
		return "already been applied"
	case OutcomeDiverged:
		return "diverged"
	case OutcomeError:
		return "Unable to analyze merge: " + r.ErrorMessage
	default:
		return "Unable to analyze merge: unknown outcome"
	}
}

func pluralConflicts(n int) string {
	return strconv.Itoa(n) + " file conflict(s)"
}
