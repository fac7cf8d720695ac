// Package facade is the top-level entry point tying identity resolution,
// event discovery, workspace sync, patch analysis, and multi-URL push
// coordination into the operations external callers need: discovering a
// repo's current state, assembling an issue thread, analyzing and publishing
// a patch, and pushing.
package facade

import (
	"context"
	"strings"

	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/eventio"
	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
	"github.com/chebizarro/nostr-git-sub004/internal/patch"
	"github.com/chebizarro/nostr-git-sub004/internal/pushcoord"
	"github.com/chebizarro/nostr-git-sub004/internal/resolve"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// DiscoveredRepo is discoverRepo's result: everything known about a repo
// address from all of its announcements and its most recent state event.
type DiscoveredRepo struct {
	RepoID      string
	RepoAddr    string
	CloneURLs   []string
	Maintainers []string
	Relays      []string
	State       *nostrevent.RepoState // nil if no 30618 seen
}

// DiscoverRepo queries the announcement and state kinds for repoID, unions the announcements'
// clone URLs and maintainers, and returns the most recent state event if
// any. Malformed or tag-sparse announcements never cause an error — they
// just contribute empty slices.
func DiscoverRepo(ctx context.Context, io eventio.EventIO, relays []string, ownerPubkey, repoID string) (*DiscoveredRepo, error) {
	announcementFilter := eventio.Filter{Kinds: []int{int(nostrevent.KindRepoAnnouncement)}, Tags: map[string][]string{"d": {repoID}}}
	stateFilter := eventio.Filter{Kinds: []int{int(nostrevent.KindRepoState)}, Tags: map[string][]string{"d": {repoID}}}

	announcements, err := io.Query(ctx, relays, announcementFilter)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "query repo announcements", err)
	}
	states, err := io.Query(ctx, relays, stateFilter)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "query repo state", err)
	}

	result := &DiscoveredRepo{RepoID: repoID}
	seenURL := map[string]bool{}
	seenMaintainer := map[string]bool{}
	seenRelay := map[string]bool{}

	for _, e := range announcements {
		ra := nostrevent.ParseRepoAnnouncement(e)
		if ra.Pubkey == ownerPubkey || ownerPubkey == "" {
			result.RepoAddr = nostrevent.RepoAddrPrefix + ":" + ra.Pubkey + ":" + ra.RepoID
		}
		for _, u := range ra.CloneURLs {
			if !seenURL[u] {
				seenURL[u] = true
				result.CloneURLs = append(result.CloneURLs, u)
			}
		}
		for _, m := range ra.Maintainers {
			if !seenMaintainer[m] {
				seenMaintainer[m] = true
				result.Maintainers = append(result.Maintainers, m)
			}
		}
		for _, r := range ra.Relays {
			if !seenRelay[r] {
				seenRelay[r] = true
				result.Relays = append(result.Relays, r)
			}
		}
	}

	var latestState *nostrevent.RepoState
	for _, e := range states {
		rs := nostrevent.ParseRepoState(e)
		if latestState == nil || rs.CreatedAt > latestState.CreatedAt {
			latestState = rs
		}
	}
	result.State = latestState
	return result, nil
}

// IssueView is GetIssueThread's result: a root event's assembled
// comment/status thread alongside its resolved status and effective
// labels — the read-side counterpart to what Push writes when it
// publishes a patch/PR/status event.
type IssueView struct {
	Thread *resolve.Thread
	Status *resolve.StatusResolution
	Labels *resolve.EffectiveLabels
}

// GetIssueThread queries comments (kind 1111), status events (kinds
// 1630-1633), and labels (kind 1985) tagged against rootEvent, then
// assembles and resolves them via internal/resolve. rootEvent supplies
// both the root's own kind, needed for the NIP-22 kind-scoped comment
// filter, and its self-tags, merged into the effective label view.
func GetIssueThread(ctx context.Context, io eventio.EventIO, relays []string, rootEvent *nostrevent.Event, rootAuthor string, maintainers map[string]bool) (*IssueView, error) {
	rootID := rootEvent.ID
	rootKind := nostrevent.Kind(rootEvent.Kind)

	commentEvents, err := io.Query(ctx, relays, eventio.Filter{Kinds: []int{int(nostrevent.KindComment)}, Tags: map[string][]string{"e": {rootID}}})
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "query comments", err)
	}
	statusKindInts := make([]int, len(nostrevent.StatusKinds))
	for i, k := range nostrevent.StatusKinds {
		statusKindInts[i] = int(k)
	}
	statusEvents, err := io.Query(ctx, relays, eventio.Filter{Kinds: statusKindInts, Tags: map[string][]string{"e": {rootID}}})
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "query statuses", err)
	}
	labelEvents, err := io.Query(ctx, relays, eventio.Filter{Kinds: []int{int(nostrevent.KindLabel)}, Tags: map[string][]string{"e": {rootID}}})
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "query labels", err)
	}

	comments := make([]*nostrevent.Comment, 0, len(commentEvents))
	for _, e := range commentEvents {
		comments = append(comments, nostrevent.ParseComment(e))
	}
	statuses := make([]*nostrevent.Status, 0, len(statusEvents))
	for _, e := range statusEvents {
		statuses = append(statuses, nostrevent.ParseStatus(e))
	}
	labels := make([]*nostrevent.Label, 0, len(labelEvents))
	for _, e := range labelEvents {
		labels = append(labels, nostrevent.ParseLabel(e))
	}

	return &IssueView{
		Thread: resolve.AssembleIssueThread(rootID, rootKind, comments, statuses),
		Status: resolve.ResolveStatus(statuses, rootAuthor, maintainers),
		Labels: resolve.GetEffectiveLabelsFor(rootEvent, rootID, labels),
	}, nil
}

// AnalyzePatchOptions is AnalyzePatchAndPublish's input.
type AnalyzePatchOptions struct {
	RepoAddr     string
	RootID       string // the patch/PR event id merge/conflict metadata attaches to
	TargetBranch string
	BaseBranch   string
	Dir          string
	Patch        patch.Input
	Publish      bool // when true, sign and publish the resulting metadata events
}

// AnalyzePatchAndPublish runs the merge-analysis pipeline (parse the diff,
// query backend for the target branch's actual relationship to the patch's
// commits, classify the outcome, cache the result) and, when requested,
// composes and publishes the kind-30411 merge-metadata event plus a
// kind-30412 conflict-metadata event if the result has conflicts.
func AnalyzePatchAndPublish(ctx context.Context, backend gitbackend.GitBackend, store *cache.Store, io eventio.EventIO, signer eventio.Signer, relays []string, opts AnalyzePatchOptions) (*patch.AnalysisResult, error) {
	result, err := patch.AnalyzeMerge(ctx, backend, store, patch.AnalyzeOptions{
		RepoID:       opts.RepoAddr,
		PatchID:      opts.RootID,
		TargetBranch: opts.TargetBranch,
		Dir:          opts.Dir,
		Patch:        opts.Patch,
	})
	if err != nil {
		return nil, err
	}
	if !opts.Publish || signer == nil || io == nil {
		return result, nil
	}

	pubkey, err := signer.PublicKey(ctx)
	if err != nil {
		return result, nil
	}

	events := []*nostrevent.Event{
		patch.BuildMergeMetadataEventFromAnalysis(opts.RepoAddr, opts.RootID, opts.TargetBranch, opts.BaseBranch, result, 0),
	}
	if conflictEvent := patch.BuildConflictMetadataEventFromAnalysis(opts.RepoAddr, opts.RootID, opts.TargetBranch, opts.BaseBranch, result, 0); conflictEvent != nil {
		events = append(events, conflictEvent)
	}
	for _, unsigned := range events {
		unsigned.PubKey = pubkey
		signed, err := signer.Sign(ctx, unsigned)
		if err != nil {
			continue
		}
		_, _ = io.Publish(ctx, relays, signed)
	}
	return result, nil
}

// PreflightOptions gates a push before any network activity happens.
type PreflightOptions struct {
	BlockIfUncommitted bool // default true
	RequireUpToDate    bool // default true; false for new-repo creation or grasp remotes
	BlockIfShallow     bool // default true
	ConfirmDestructive bool // required for force pushes
}

// DefaultPreflightOptions matches the documented defaults.
func DefaultPreflightOptions() PreflightOptions {
	return PreflightOptions{BlockIfUncommitted: true, RequireUpToDate: true, BlockIfShallow: true}
}

// PushOptions is facade.Push's input.
type PushOptions struct {
	RepoAddr         string
	Dir              string
	Refspec          string
	ForceWithLease   bool
	Auth             *gitbackend.AuthCredential
	Preflight        PreflightOptions
	WorkingTreeDirty bool // caller-supplied statusMatrix result
	CurrentDepth     int  // 0 means full clone
	NeedsUpdate      bool // caller-supplied freshness check result
	CandidateURLs    []string
	PublishRepoState bool
	PublishAnnounce  bool

	// PR/patch publish fields, used when Refspec targets refs/heads/pr/* or
	// PRMode is set. RootID, when non-empty, names the existing patch/PR
	// event this push updates; left empty, a new PR is opened instead.
	PRMode       bool
	RootID       string
	PatchSubject string
	BaseBranch   string // e.g. "refs/heads/main"
	ParentCommit string // base oid the diff is taken from
	CommitID     string // head oid the diff is taken to
	EUC          string
}

// PushResult is facade.Push's output.
type PushResult struct {
	UsedURL    string
	Attempts   []pushcoord.Attempt
	Published  []string // event ids successfully published
}

// isGraspURL reports whether url targets a relay-backed GRASP host, which
// is exempt from the requireUpToDate gate since its state is the signed
// event stream itself, not a conventional git remote's ahead/behind count.
func isGraspURL(url string) bool {
	return strings.HasPrefix(url, "grasp") || strings.Contains(url, "grasp")
}

// Push runs the preflight gates, then pushes via withUrlFallback and
// publishes the signed events publishConfiguredEvents builds.
// PushOptions.PublishAnnounce is not read, so no repo announcement is
// published.
func Push(ctx context.Context, backend gitbackend.GitBackend, io eventio.EventIO, signer eventio.Signer, relays []string, prefs pushcoord.PreferenceSource, opts PushOptions) (*PushResult, error) {
	if err := preflight(opts); err != nil {
		return nil, err
	}

	fb := pushcoord.WithUrlFallback(ctx, opts.RepoAddr, opts.CandidateURLs, prefs,
		pushcoord.PushViaBackend(backend, opts.Dir, buildRefspec(opts), opts.Auth))

	result := &PushResult{UsedURL: fb.UsedURL, Attempts: fb.Attempts}
	if !fb.Success {
		return result, nerrors.ErrPushFailed(opts.RepoAddr, "ALL_URLS_FAILED", "every candidate URL failed")
	}

	if signer == nil || io == nil {
		return result, nil
	}
	result.Published = publishConfiguredEvents(ctx, backend, io, signer, relays, opts)
	return result, nil
}

func buildRefspec(opts PushOptions) string {
	if opts.ForceWithLease {
		return "+" + opts.Refspec
	}
	return opts.Refspec
}

// isPRRefspec reports whether a refspec targets a PR topic branch.
func isPRRefspec(refspec string) bool {
	return strings.HasPrefix(strings.TrimPrefix(refspec, "+"), "refs/heads/pr/")
}

// branchNameFromRefspec strips the force-push marker and refs/heads/ prefix,
// leaving the bare branch name a patch's cover letter names (e.g.
// "pr/feature-x").
func branchNameFromRefspec(refspec string) string {
	return strings.TrimPrefix(strings.TrimPrefix(refspec, "+"), "refs/heads/")
}

// generatePatchContent builds the cover-letter-plus-diff text a Patch or
// PullRequest event's content carries: a subject line naming the branch, the
// base branch it targets, and — when the base/head oids resolve — a unified
// diff appended under a "---" separator.
func generatePatchContent(ctx context.Context, backend gitbackend.GitBackend, opts PushOptions) string {
	var b strings.Builder
	b.WriteString("# Patch: " + branchNameFromRefspec(opts.Refspec) + "\n")
	base := opts.BaseBranch
	if base == "" {
		base = "refs/heads/main"
	}
	b.WriteString("base: " + base + "\n")

	headOID := opts.CommitID
	if headOID == "" {
		if oid, err := backend.ResolveRef(ctx, opts.Dir, branchNameFromRefspec(opts.Refspec)); err == nil {
			headOID = oid
		}
	}
	baseOID := opts.ParentCommit
	if baseOID == "" {
		if oid, err := backend.ResolveRef(ctx, opts.Dir, base); err == nil {
			baseOID = oid
		}
	}
	if baseOID != "" && headOID != "" {
		if diff, err := backend.Diff(ctx, opts.Dir, baseOID, headOID); err == nil && diff != "" {
			b.WriteString("---\n")
			b.WriteString(diff)
		}
	}
	return b.String()
}

func preflight(opts PushOptions) error {
	p := opts.Preflight
	if p.BlockIfUncommitted && opts.WorkingTreeDirty {
		return nerrors.ErrPreflightBlocked(nerrors.ReasonUncommittedChanges)
	}
	if p.BlockIfShallow && opts.CurrentDepth > 0 {
		return nerrors.ErrPreflightBlocked(nerrors.ReasonShallowClone)
	}
	allGrasp := len(opts.CandidateURLs) > 0
	for _, u := range opts.CandidateURLs {
		if !isGraspURL(u) {
			allGrasp = false
			break
		}
	}
	if p.RequireUpToDate && !allGrasp && opts.NeedsUpdate {
		return nerrors.ErrPreflightBlocked(nerrors.ReasonRemoteAhead)
	}
	if opts.ForceWithLease && !p.ConfirmDestructive {
		return nerrors.ErrPreflightBlocked(nerrors.ReasonForcePushRequiresConfirm)
	}
	return nil
}

// signAndPublish signs unsigned with pubkey already set by the caller and
// publishes it, reporting the event id only on at least one relay ack.
func signAndPublish(ctx context.Context, io eventio.EventIO, signer eventio.Signer, relays []string, pubkey string, unsigned *nostrevent.Event) (string, bool) {
	unsigned.PubKey = pubkey
	signed, err := signer.Sign(ctx, unsigned)
	if err != nil {
		return "", false
	}
	results, err := io.Publish(ctx, relays, signed)
	if err != nil {
		return "", false
	}
	for _, r := range results {
		if r.OK {
			return signed.ID, true
		}
	}
	return "", false
}

// publishConfiguredEvents composes and publishes the events a successful
// push calls for: the repo-state event when PublishRepoState is set, a
// kind-1631 status event unconditionally (S2), and — when the refspec
// targets a PR topic branch or PRMode is requested — a generated
// Patch/PullRequest event carrying the cover-letter-plus-diff content (S3).
// Failures are best-effort: a publish failure doesn't unwind an
// already-successful push.
func publishConfiguredEvents(ctx context.Context, backend gitbackend.GitBackend, io eventio.EventIO, signer eventio.Signer, relays []string, opts PushOptions) []string {
	var published []string
	pubkey, err := signer.PublicKey(ctx)
	if err != nil {
		return published
	}

	if opts.PublishRepoState {
		unsigned := nostrevent.CreateRepoState(nostrevent.CreateRepoStateParams{
			RepoID: opts.RepoAddr,
			Refs:   map[string]string{"HEAD": opts.Refspec},
		})
		if id, ok := signAndPublish(ctx, io, signer, relays, pubkey, unsigned); ok {
			published = append(published, id)
		}
	}

	statusTarget := opts.RootID
	if opts.PRMode || isPRRefspec(opts.Refspec) {
		content := generatePatchContent(ctx, backend, opts)
		subject := opts.PatchSubject
		if subject == "" {
			subject = branchNameFromRefspec(opts.Refspec)
		}

		patchUnsigned := nostrevent.CreatePatch(nostrevent.CreatePatchParams{
			RepoAddr:     opts.RepoAddr,
			CommitID:     opts.CommitID,
			ParentCommit: opts.ParentCommit,
			EUC:          opts.EUC,
			RootID:       opts.RootID,
			Diff:         content,
		})
		if id, ok := signAndPublish(ctx, io, signer, relays, pubkey, patchUnsigned); ok {
			published = append(published, id)
			statusTarget = id
		}

		prUnsigned := nostrevent.CreatePullRequest(nostrevent.CreatePullRequestParams{
			RepoAddr:   opts.RepoAddr,
			Subject:    subject,
			Content:    content,
			HeadBranch: branchNameFromRefspec(opts.Refspec),
			BaseBranch: opts.BaseBranch,
			HeadCommit: opts.CommitID,
			Update:     opts.RootID != "",
		})
		if id, ok := signAndPublish(ctx, io, signer, relays, pubkey, prUnsigned); ok {
			published = append(published, id)
			statusTarget = id
		}
	}

	statusUnsigned := nostrevent.CreateStatus(nostrevent.CreateStatusParams{
		Kind:     nostrevent.KindStatusApplied,
		TargetID: statusTarget,
		RepoAddr: opts.RepoAddr,
	})
	if id, ok := signAndPublish(ctx, io, signer, relays, pubkey, statusUnsigned); ok {
		published = append(published, id)
	}

	return published
}
