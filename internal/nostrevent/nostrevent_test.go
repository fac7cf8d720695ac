package nostrevent

import "testing"

func TestTagHelpersRoundTrip(t *testing.T) {
	tags := Tags{{"d", "repo"}, {"euc", "abc123"}}
	if GetTagValue(tags, "d") != "repo" {
		t.Fatal("GetTagValue(d) mismatch")
	}
	euc, ok := ParseEucTag(tags)
	if !ok || euc != "abc123" {
		t.Fatalf("ParseEucTag = (%q, %v), want (abc123, true)", euc, ok)
	}

	tags = SetTag(tags, Tag{"d", "repo2"})
	if GetTagValue(tags, "d") != "repo2" {
		t.Fatal("SetTag did not replace existing tag")
	}
	if len(GetTags(tags, "d")) != 1 {
		t.Fatal("SetTag should not duplicate the tag name")
	}

	tags = RemoveTag(tags, "euc")
	if _, ok := ParseEucTag(tags); ok {
		t.Fatal("RemoveTag did not remove euc tag")
	}
}

func TestAddTagDoesNotMutateInput(t *testing.T) {
	original := Tags{{"d", "repo"}}
	extended := AddTag(original, Tag{"name", "demo"})
	if len(original) != 1 {
		t.Fatalf("AddTag mutated input slice, len=%d", len(original))
	}
	if len(extended) != 2 {
		t.Fatalf("expected extended len 2, got %d", len(extended))
	}
}

func TestCreateParseRepoAnnouncementRoundTrip(t *testing.T) {
	e := CreateRepoAnnouncement(CreateRepoAnnouncementParams{
		RepoID:      "my-repo",
		Name:        "My Repo",
		CloneURLs:   []string{"https://example.com/my-repo.git"},
		Maintainers: []string{"abc", "def"},
		EUC:         "commit0",
		CreatedAt:   1700000000,
	})
	if err := ValidateRepoAnnouncement(e); err != nil {
		t.Fatalf("ValidateRepoAnnouncement: %v", err)
	}
	ra := ParseRepoAnnouncement(e)
	if ra.RepoID != "my-repo" || ra.Name != "My Repo" {
		t.Fatalf("unexpected parse: %+v", ra)
	}
	if len(ra.CloneURLs) != 1 || ra.CloneURLs[0] != "https://example.com/my-repo.git" {
		t.Fatalf("unexpected clone urls: %+v", ra.CloneURLs)
	}
	if len(ra.Maintainers) != 2 {
		t.Fatalf("unexpected maintainers: %+v", ra.Maintainers)
	}
	if !ra.HasEUC || ra.EUC != "commit0" {
		t.Fatalf("unexpected euc: %+v", ra)
	}
}

func TestValidateRepoAnnouncementRequiresD(t *testing.T) {
	e := &Event{Kind: int(KindRepoAnnouncement)}
	if err := ValidateRepoAnnouncement(e); err == nil {
		t.Fatal("expected error for missing d tag")
	}
}

func TestCreateParsePatchRoundTrip(t *testing.T) {
	e := CreatePatch(CreatePatchParams{
		RepoAddr:  MakeRepoAddrForTest(),
		CommitID:  "deadbeef",
		EUC:       "commit0",
		RootID:    "root-event-id",
		Diff:      "Subject: fix bug\n\ndiff --git a/x b/x\n",
		CreatedAt: 1700000001,
	})
	if err := ValidatePatch(e); err != nil {
		t.Fatalf("ValidatePatch: %v", err)
	}
	p := ParsePatch(e)
	if p.CommitID != "deadbeef" || p.Subject != "fix bug" {
		t.Fatalf("unexpected parse: %+v", p)
	}
	if !p.HasRoot || p.RootID != "root-event-id" {
		t.Fatalf("expected root id propagated: %+v", p)
	}
}

func TestCreateParseCommentThreading(t *testing.T) {
	e := CreateComment(CreateCommentParams{
		RootID:    "issue-1",
		RootKind:  KindIssue,
		Content:   "looks good",
		CreatedAt: 1700000002,
	})
	if err := ValidateComment(e); err != nil {
		t.Fatalf("ValidateComment: %v", err)
	}
	c := ParseComment(e)
	if !c.HasRoot || c.RootID != "issue-1" {
		t.Fatalf("unexpected root: %+v", c)
	}
	if c.RootKind != KindIssue {
		t.Fatalf("unexpected root kind: %v", c.RootKind)
	}
}

func TestStatusKindRankOrder(t *testing.T) {
	if StatusKindRank(KindStatusDraft) >= StatusKindRank(KindStatusOpen) {
		t.Error("draft should rank below open")
	}
	if StatusKindRank(KindStatusOpen) >= StatusKindRank(KindStatusApplied) {
		t.Error("open should rank below applied")
	}
	if StatusKindRank(KindStatusApplied) >= StatusKindRank(KindStatusClosed) {
		t.Error("applied should rank below closed")
	}
}

func TestCreateParseLabelNamespaced(t *testing.T) {
	e := CreateLabel(CreateLabelParams{
		TargetID:  "issue-1",
		Namespace: "priority",
		Values:    []string{"high"},
		CreatedAt: 1700000003,
	})
	if err := ValidateLabel(e); err != nil {
		t.Fatalf("ValidateLabel: %v", err)
	}
	l := ParseLabel(e)
	if l.Namespace != "priority" || len(l.Values) != 1 || l.Values[0] != "high" {
		t.Fatalf("unexpected parse: %+v", l)
	}
}

// MakeRepoAddrForTest avoids importing net/url-heavy identity package from
// this test; a fixed, validly-shaped address is all ValidatePatch checks for.
func MakeRepoAddrForTest() string {
	return RepoAddrPrefix + ":3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d:my-repo"
}
