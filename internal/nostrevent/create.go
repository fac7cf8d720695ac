package nostrevent

import (
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Every Create* function returns an unsigned Event (no ID, no Sig, no
// PubKey): signing is an external collaborator's job (the caller's signer),
// keeping this package free of key material and side effects.

// CreateRepoAnnouncementParams is the input to CreateRepoAnnouncement.
type CreateRepoAnnouncementParams struct {
	RepoID      string
	Name        string
	Description string
	CloneURLs   []string
	WebURLs     []string
	Relays      []string
	Maintainers []string
	EUC         string
	CreatedAt   int64
}

func CreateRepoAnnouncement(p CreateRepoAnnouncementParams) *Event {
	tags := Tags{{"d", p.RepoID}}
	if p.Name != "" {
		tags = append(tags, Tag{"name", p.Name})
	}
	if p.Description != "" {
		tags = append(tags, Tag{"description", p.Description})
	}
	if len(p.CloneURLs) > 0 {
		tags = append(tags, append(Tag{"clone"}, p.CloneURLs...))
	}
	if len(p.WebURLs) > 0 {
		tags = append(tags, append(Tag{"web"}, p.WebURLs...))
	}
	if len(p.Relays) > 0 {
		tags = append(tags, append(Tag{"relays"}, p.Relays...))
	}
	if len(p.Maintainers) > 0 {
		tags = append(tags, append(Tag{"maintainers"}, p.Maintainers...))
	}
	if p.EUC != "" {
		tags = append(tags, Tag{"euc", p.EUC})
	}
	return &Event{Kind: int(KindRepoAnnouncement), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags}
}

// CreateRepoStateParams is the input to CreateRepoState.
type CreateRepoStateParams struct {
	RepoID    string
	Refs      map[string]string
	CreatedAt int64
}

func CreateRepoState(p CreateRepoStateParams) *Event {
	tags := Tags{{"d", p.RepoID}}
	for ref, oid := range p.Refs {
		tags = append(tags, Tag{ref, oid})
	}
	return &Event{Kind: int(KindRepoState), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags}
}

// CreatePatchParams is the input to CreatePatch.
type CreatePatchParams struct {
	RepoAddr     string
	CommitID     string
	ParentCommit string
	EUC          string
	RootID       string
	Diff         string
	CreatedAt    int64
}

func CreatePatch(p CreatePatchParams) *Event {
	tags := Tags{{"a", p.RepoAddr}}
	if p.CommitID != "" {
		tags = append(tags, Tag{"commit", p.CommitID})
	}
	if p.ParentCommit != "" {
		tags = append(tags, Tag{"parent-commit", p.ParentCommit})
	}
	if p.EUC != "" {
		tags = append(tags, Tag{"euc", p.EUC})
	}
	if p.RootID != "" {
		tags = append(tags, Tag{"e", p.RootID, "", "root"})
	}
	return &Event{Kind: int(KindPatch), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Diff}
}

// CreateIssueParams is the input to CreateIssue.
type CreateIssueParams struct {
	RepoAddr  string
	Subject   string
	Content   string
	CreatedAt int64
}

func CreateIssue(p CreateIssueParams) *Event {
	tags := Tags{{"a", p.RepoAddr}}
	if p.Subject != "" {
		tags = append(tags, Tag{"subject", p.Subject})
	}
	return &Event{Kind: int(KindIssue), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Content}
}

// CreatePullRequestParams is the input to CreatePullRequest.
type CreatePullRequestParams struct {
	RepoAddr   string
	Subject    string
	Content    string
	HeadBranch string
	BaseBranch string
	HeadCommit string
	Update     bool // true selects kind 1619 (update) instead of 1618 (open)
	CreatedAt  int64
}

func CreatePullRequest(p CreatePullRequestParams) *Event {
	tags := Tags{{"a", p.RepoAddr}}
	if p.Subject != "" {
		tags = append(tags, Tag{"subject", p.Subject})
	}
	if p.HeadBranch != "" {
		tags = append(tags, Tag{"branch-name", p.HeadBranch})
	}
	if p.BaseBranch != "" {
		tags = append(tags, Tag{"base-branch", p.BaseBranch})
	}
	if p.HeadCommit != "" {
		tags = append(tags, Tag{"commit", p.HeadCommit})
	}
	k := KindPullRequest
	if p.Update {
		k = KindPullRequestUpdate
	}
	return &Event{Kind: int(k), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Content}
}

// CreateCommentParams is the input to CreateComment.
type CreateCommentParams struct {
	RootID    string
	RootKind  Kind
	ReplyID   string
	ReplyKind Kind
	Content   string
	CreatedAt int64
}

func CreateComment(p CreateCommentParams) *Event {
	tags := Tags{
		{"E", p.RootID},
		{"K", kindString(p.RootKind)},
	}
	if p.ReplyID != "" {
		tags = append(tags, Tag{"e", p.ReplyID, "", "reply"}, Tag{"k", kindString(p.ReplyKind)})
	} else {
		tags = append(tags, Tag{"e", p.RootID, "", "root"}, Tag{"k", kindString(p.RootKind)})
	}
	return &Event{Kind: int(KindComment), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Content}
}

func kindString(k Kind) string {
	if k == 0 {
		return ""
	}
	return strconv.Itoa(int(k))
}

// CreateLabelParams is the input to CreateLabel.
type CreateLabelParams struct {
	TargetID  string
	TargetKind Kind
	Namespace string
	Values    []string
	CreatedAt int64
}

func CreateLabel(p CreateLabelParams) *Event {
	tags := Tags{{"e", p.TargetID}}
	if p.TargetKind != 0 {
		tags = append(tags, Tag{"k", kindString(p.TargetKind)})
	}
	for _, v := range p.Values {
		if p.Namespace != "" {
			tags = append(tags, Tag{"l", v, p.Namespace})
		} else {
			tags = append(tags, Tag{"t", v})
		}
	}
	return &Event{Kind: int(KindLabel), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags}
}

// CreateStatusParams is the input to CreateStatus.
type CreateStatusParams struct {
	Kind      Kind
	TargetID  string
	RepoAddr  string
	Content   string
	CreatedAt int64
}

func CreateStatus(p CreateStatusParams) *Event {
	tags := Tags{{"e", p.TargetID}, {"a", p.RepoAddr}}
	return &Event{Kind: int(p.Kind), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Content}
}

// CreateMergeMetadataParams is the input to CreateMergeMetadata. Result is
// one of ff/clean/conflicts/up-to-date/diverged/error, matching the patch
// analyzer's outcome classification. Content is pre-marshaled JSON
// mirroring the analysis result fields — this package stays agnostic of
// the analyzer's concrete result struct.
type CreateMergeMetadataParams struct {
	RepoAddr     string
	RootID       string
	TargetBranch string
	BaseBranch   string
	Result       string
	Content      string
	CreatedAt    int64
}

func CreateMergeMetadata(p CreateMergeMetadataParams) *Event {
	tags := Tags{
		{"a", p.RepoAddr},
		{"e", p.RootID},
		{"target-branch", p.TargetBranch},
		{"base-branch", p.BaseBranch},
		{"result", p.Result},
	}
	return &Event{Kind: int(KindMergeMetadata), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Content}
}

// CreateConflictMetadataParams is the input to CreateConflictMetadata.
type CreateConflictMetadataParams struct {
	RepoAddr      string
	RootID        string
	TargetBranch  string
	BaseBranch    string
	ConflictFiles []string
	Content       string
	CreatedAt     int64
}

func CreateConflictMetadata(p CreateConflictMetadataParams) *Event {
	tags := Tags{
		{"a", p.RepoAddr},
		{"e", p.RootID},
		{"target-branch", p.TargetBranch},
		{"base-branch", p.BaseBranch},
	}
	for _, f := range p.ConflictFiles {
		tags = append(tags, Tag{"file", f})
	}
	return &Event{Kind: int(KindConflictMetadata), CreatedAt: nostr.Timestamp(p.CreatedAt), Tags: tags, Content: p.Content}
}
