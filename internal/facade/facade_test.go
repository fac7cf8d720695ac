package facade

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/chebizarro/nostr-git-sub004/internal/eventio"
	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

type fakeIO struct {
	announcements []*nostr.Event
	states        []*nostr.Event
}

func (f *fakeIO) Query(ctx context.Context, relays []string, filter eventio.Filter) ([]*nostr.Event, error) {
	for _, k := range filter.Kinds {
		if k == int(nostrevent.KindRepoAnnouncement) {
			return f.announcements, nil
		}
		if k == int(nostrevent.KindRepoState) {
			return f.states, nil
		}
	}
	return nil, nil
}

func (f *fakeIO) Subscribe(ctx context.Context, relays []string, filter eventio.Filter) (<-chan *nostr.Event, error) {
	return nil, nil
}

func (f *fakeIO) Publish(ctx context.Context, relays []string, event *nostr.Event) ([]eventio.PublishResult, error) {
	return []eventio.PublishResult{{RelayURL: relays[0], OK: true}}, nil
}

func TestDiscoverRepoUnionsCloneURLsAndMaintainers(t *testing.T) {
	a1 := nostrevent.CreateRepoAnnouncement(nostrevent.CreateRepoAnnouncementParams{
		RepoID: "widgets", CloneURLs: []string{"https://github.com/acme/widgets.git"}, Maintainers: []string{"pk1"},
	})
	a1.PubKey = "pk1"
	a2 := nostrevent.CreateRepoAnnouncement(nostrevent.CreateRepoAnnouncementParams{
		RepoID: "widgets", CloneURLs: []string{"https://gitlab.com/acme/widgets.git"}, Maintainers: []string{"pk2"},
	})
	a2.PubKey = "pk2"

	io := &fakeIO{announcements: []*nostr.Event{a1, a2}}
	repo, err := DiscoverRepo(context.Background(), io, []string{"wss://relay.example.com"}, "", "widgets")
	if err != nil {
		t.Fatalf("DiscoverRepo: %v", err)
	}
	if len(repo.CloneURLs) != 2 {
		t.Errorf("expected 2 clone urls, got %v", repo.CloneURLs)
	}
	if len(repo.Maintainers) != 2 {
		t.Errorf("expected 2 maintainers, got %v", repo.Maintainers)
	}
}

func TestDiscoverRepoNeverErrorsOnMalformedAnnouncement(t *testing.T) {
	sparse := &nostr.Event{Kind: int(nostrevent.KindRepoAnnouncement), Tags: nostr.Tags{{"d", "widgets"}}}
	io := &fakeIO{announcements: []*nostr.Event{sparse}}
	repo, err := DiscoverRepo(context.Background(), io, nil, "", "widgets")
	if err != nil {
		t.Fatalf("expected no error for sparse announcement, got %v", err)
	}
	if repo.CloneURLs != nil {
		t.Errorf("expected empty clone urls, got %v", repo.CloneURLs)
	}
}

func TestPreflightBlocksOnUncommittedChanges(t *testing.T) {
	opts := PushOptions{Preflight: DefaultPreflightOptions(), WorkingTreeDirty: true}
	err := preflight(opts)
	e, ok := nerrors.AsNostrGitError(err)
	if !ok || e.Reason != nerrors.ReasonUncommittedChanges {
		t.Fatalf("expected uncommitted-changes block, got %v", err)
	}
}

func TestPreflightBlocksOnShallowClone(t *testing.T) {
	opts := PushOptions{Preflight: DefaultPreflightOptions(), CurrentDepth: 50}
	err := preflight(opts)
	e, ok := nerrors.AsNostrGitError(err)
	if !ok || e.Reason != nerrors.ReasonShallowClone {
		t.Fatalf("expected shallow-clone block, got %v", err)
	}
}

func TestPreflightAllowsGraspWithoutUpToDate(t *testing.T) {
	opts := PushOptions{
		Preflight:     DefaultPreflightOptions(),
		NeedsUpdate:   true,
		CandidateURLs: []string{"grasp://relay.example.com/acme/widgets"},
	}
	if err := preflight(opts); err != nil {
		t.Errorf("expected grasp-only push to bypass up-to-date gate, got %v", err)
	}
}

func TestPreflightBlocksForcePushWithoutConfirmation(t *testing.T) {
	opts := PushOptions{Preflight: DefaultPreflightOptions(), ForceWithLease: true}
	err := preflight(opts)
	e, ok := nerrors.AsNostrGitError(err)
	if !ok || e.Reason != nerrors.ReasonForcePushRequiresConfirm {
		t.Fatalf("expected force-push confirmation block, got %v", err)
	}
}

func TestPushReturnsPushFailedWhenAllURLsFail(t *testing.T) {
	backend := failingBackend{}
	_, err := Push(context.Background(), backend, nil, nil, nil, nil, PushOptions{
		Preflight:     DefaultPreflightOptions(),
		CandidateURLs: []string{"https://github.com/acme/widgets.git"},
	})
	if err == nil {
		t.Fatal("expected push failure")
	}
}

type failingBackend struct{ gitbackend.GitBackend }

func (failingBackend) Push(ctx context.Context, opts gitbackend.PushOptions) error {
	return nerrors.ErrNetwork("push failed", nil)
}

// sshThenHTTPSBackend fails any push to an ssh:// URL and succeeds
// otherwise, exercising the SSH to HTTPS fallback scenario.
type sshThenHTTPSBackend struct{ gitbackend.GitBackend }

func (sshThenHTTPSBackend) Push(ctx context.Context, opts gitbackend.PushOptions) error {
	if strings.HasPrefix(opts.URL, "ssh://") {
		return nerrors.ErrNetwork("connection refused", nil)
	}
	return nil
}

func (sshThenHTTPSBackend) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	return "", nerrors.ErrNotFound("no such ref")
}

func (sshThenHTTPSBackend) Diff(ctx context.Context, dir, base, head string) (string, error) {
	return "", nil
}

// fakeSigner stamps every unsigned event with a fixed id, for tests that
// need publishConfiguredEvents to actually reach Publish.
type fakeSigner struct {
	pubkey string
	signed []*nostr.Event
}

func (s *fakeSigner) PublicKey(ctx context.Context) (string, error) { return s.pubkey, nil }

func (s *fakeSigner) Sign(ctx context.Context, unsigned *nostr.Event) (*nostr.Event, error) {
	signed := *unsigned
	signed.ID = "evt-" + strconv.Itoa(len(s.signed))
	s.signed = append(s.signed, &signed)
	return &signed, nil
}

// recordingIO records every published event's kind, alongside fakeIO's
// canned query responses.
type recordingIO struct {
	fakeIO
	published []*nostr.Event
}

func (r *recordingIO) Publish(ctx context.Context, relays []string, event *nostr.Event) ([]eventio.PublishResult, error) {
	r.published = append(r.published, event)
	return []eventio.PublishResult{{RelayURL: relays[0], OK: true}}, nil
}

func TestPushPublishesStatusEventOnSSHToHTTPSFallback(t *testing.T) {
	backend := sshThenHTTPSBackend{}
	io := &recordingIO{}
	signer := &fakeSigner{pubkey: "pk"}

	result, err := Push(context.Background(), backend, io, signer, []string{"wss://relay.example.com"}, nil, PushOptions{
		RepoAddr:      "30617:pk:widgets",
		Preflight:     DefaultPreflightOptions(),
		CandidateURLs: []string{"ssh://git@h/r", "https://h/r"},
	})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if result.UsedURL != "https://h/r" {
		t.Fatalf("expected https fallback to succeed, got usedUrl=%q", result.UsedURL)
	}
	var sawStatus bool
	for _, e := range io.published {
		if e.Kind == int(nostrevent.KindStatusApplied) {
			sawStatus = true
			if nostrevent.GetTagValue(e.Tags, "a") != "30617:pk:widgets" {
				t.Errorf("expected status event's a tag to be the repo address, got %+v", e.Tags)
			}
		}
	}
	if !sawStatus {
		t.Errorf("expected a kind-1631 status event to be published, got %v", io.published)
	}
}

func TestPushPublishesPatchAndPullRequestForPRRefspec(t *testing.T) {
	backend := sshThenHTTPSBackend{}
	io := &recordingIO{}
	signer := &fakeSigner{pubkey: "pk"}

	result, err := Push(context.Background(), backend, io, signer, []string{"wss://relay.example.com"}, nil, PushOptions{
		RepoAddr:      "30617:pk:widgets",
		Refspec:       "refs/heads/pr/feature-x",
		BaseBranch:    "refs/heads/main",
		Preflight:     DefaultPreflightOptions(),
		CandidateURLs: []string{"https://h/r"},
	})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	var sawPatch, sawPR, sawStatus bool
	for _, e := range io.published {
		switch nostrevent.Kind(e.Kind) {
		case nostrevent.KindPatch:
			sawPatch = true
			if !strings.HasPrefix(e.Content, "# Patch: pr/feature-x") {
				t.Errorf("unexpected patch content: %q", e.Content)
			}
		case nostrevent.KindPullRequest:
			sawPR = true
		case nostrevent.KindStatusApplied:
			sawStatus = true
		}
	}
	if !sawPatch || !sawPR || !sawStatus {
		t.Errorf("expected patch, pull-request and status events, got %v", result.Published)
	}
}
