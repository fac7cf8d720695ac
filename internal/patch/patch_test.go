package patch

import (
	"context"
	"strings"
	"testing"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
)

const sampleDiff = `diff --git a/file.txt b/file.txt
index e69de29..4b825dc 100644
--- a/file.txt
+++ b/file.txt
@@ -0,0 +1 @@
+hello
`

func TestParseUnifiedDiffRejectsEmpty(t *testing.T) {
	if _, err := ParseUnifiedDiff(""); err == nil {
		t.Error("expected error for empty diff")
	}
}

func TestParseUnifiedDiffAccepts(t *testing.T) {
	files, err := ParseUnifiedDiff(sampleDiff)
	if err != nil {
		t.Fatalf("ParseUnifiedDiff: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file diff, got %d", len(files))
	}
	if TargetPath(files[0]) != "file.txt" {
		t.Errorf("unexpected target path: %q", TargetPath(files[0]))
	}
}

func TestHasRenameOrBinaryMarkers(t *testing.T) {
	if !HasRenameOrBinaryMarkers("diff --git a/x b/y\nrename from x\nrename to y\n") {
		t.Error("expected rename marker detected")
	}
	if !HasRenameOrBinaryMarkers("diff --git a/x b/x\nGIT binary patch\n") {
		t.Error("expected binary marker detected")
	}
	if HasRenameOrBinaryMarkers(sampleDiff) {
		t.Error("plain text diff should not be flagged")
	}
}

func TestClassifyMergeOutcomeInvalid(t *testing.T) {
	r := ClassifyMergeOutcome(ClassifyInput{DiffValid: false, DiffParseError: "boom"})
	if r.Analysis != OutcomeError || r.CanMerge {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestClassifyMergeOutcomeUpToDate(t *testing.T) {
	r := ClassifyMergeOutcome(ClassifyInput{DiffValid: true, CommitInTargetHistory: true})
	if r.Analysis != OutcomeUpToDate || !r.UpToDate || !r.CanMerge {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestClassifyMergeOutcomeDiverged(t *testing.T) {
	r := ClassifyMergeOutcome(ClassifyInput{DiffValid: true, OriginDiverged: true})
	if r.Analysis != OutcomeDiverged || r.CanMerge {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestClassifyMergeOutcomeFastForward(t *testing.T) {
	r := ClassifyMergeOutcome(ClassifyInput{DiffValid: true, IsFastForward: true})
	if r.Analysis != OutcomeClean || !r.FastForward || !r.CanMerge {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestClassifyMergeOutcomeConflicts(t *testing.T) {
	r := ClassifyMergeOutcome(ClassifyInput{DiffValid: true, ConflictFiles: []string{"file.txt"}})
	if r.Analysis != OutcomeConflicts || !r.HasConflicts || r.CanMerge {
		t.Errorf("unexpected result: %+v", r)
	}
	if len(r.ConflictFiles) != 1 || r.ConflictFiles[0] != "file.txt" {
		t.Errorf("unexpected conflict files: %+v", r.ConflictFiles)
	}
}

func TestClassifyMergeOutcomeCleanNonFastForward(t *testing.T) {
	r := ClassifyMergeOutcome(ClassifyInput{DiffValid: true})
	if r.Analysis != OutcomeClean || r.FastForward || !r.CanMerge {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestGetMergeStatusMessage(t *testing.T) {
	cases := []struct {
		r    *AnalysisResult
		want string
	}{
		{&AnalysisResult{Analysis: OutcomeClean, FastForward: true}, "fast-forward…"},
		{&AnalysisResult{Analysis: OutcomeClean}, "merged cleanly"},
		{&AnalysisResult{Analysis: OutcomeConflicts, ConflictFiles: []string{"a.txt", "b.txt"}}, "2 file conflict(s)"},
		{&AnalysisResult{Analysis: OutcomeUpToDate}, "already been applied"},
		{&AnalysisResult{Analysis: OutcomeDiverged}, "diverged"},
	}
	for _, c := range cases {
		if got := GetMergeStatusMessage(c.r); got != c.want {
			t.Errorf("GetMergeStatusMessage(%+v) = %q, want %q", c.r, got, c.want)
		}
	}
}

func TestBuildMergeMetadataEventFromAnalysis(t *testing.T) {
	result := &AnalysisResult{Analysis: OutcomeClean, FastForward: true, CanMerge: true}
	e := BuildMergeMetadataEventFromAnalysis("30617:abc:widgets", "root-id", "main", "main", result, 1700000000)
	if e.Kind != 30411 {
		t.Fatalf("unexpected kind: %d", e.Kind)
	}
	var gotResult string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == "result" {
			gotResult = tag[1]
		}
	}
	if gotResult != "ff" {
		t.Errorf("expected result tag 'ff', got %q", gotResult)
	}
	if !strings.Contains(e.Content, "fastForward") {
		t.Errorf("expected content to mirror result fields, got %q", e.Content)
	}
}

func TestBuildConflictMetadataEventFromAnalysisNilWhenClean(t *testing.T) {
	result := &AnalysisResult{Analysis: OutcomeClean, CanMerge: true}
	if e := BuildConflictMetadataEventFromAnalysis("addr", "root", "main", "main", result, 0); e != nil {
		t.Errorf("expected nil event for non-conflicting result, got %+v", e)
	}
}

func TestBuildConflictMetadataEventFromAnalysisIncludesFileTags(t *testing.T) {
	result := &AnalysisResult{Analysis: OutcomeConflicts, HasConflicts: true, ConflictFiles: []string{"a.txt", "b.txt"}}
	e := BuildConflictMetadataEventFromAnalysis("addr", "root", "main", "main", result, 0)
	if e == nil {
		t.Fatal("expected non-nil event")
	}
	var files []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == "file" {
			files = append(files, tag[1])
		}
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 file tags, got %v", files)
	}
}

type fakeBackend struct {
	applyErr  error
	applyOID  string
	pushErr   map[string]error
	pushCalls []string
}

func (f *fakeBackend) Clone(ctx context.Context, opts gitbackend.CloneOptions) ([]gitbackend.RefUpdate, error) {
	return nil, nil
}
func (f *fakeBackend) Fetch(ctx context.Context, opts gitbackend.FetchOptions) ([]gitbackend.RefUpdate, error) {
	return nil, nil
}
func (f *fakeBackend) Push(ctx context.Context, opts gitbackend.PushOptions) error {
	f.pushCalls = append(f.pushCalls, opts.URL+"|"+opts.Refspec)
	if f.pushErr != nil {
		if err, ok := f.pushErr[opts.URL]; ok && !strings.Contains(opts.Refspec, "grasp/patch-") {
			return err
		}
	}
	return nil
}
func (f *fakeBackend) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	return "oid", nil
}
func (f *fakeBackend) ListRefs(ctx context.Context, dir string) ([]gitbackend.RefUpdate, error) {
	return nil, nil
}
func (f *fakeBackend) AnalyzeMerge(ctx context.Context, q gitbackend.MergeAnalysisQuery) (*gitbackend.MergeAnalysisResult, error) {
	return nil, nil
}
func (f *fakeBackend) ApplyPatch(ctx context.Context, dir, diff, baseCommit string) (string, error) {
	return f.applyOID, f.applyErr
}
func (f *fakeBackend) TreeDiff(ctx context.Context, dir, oldOID, newOID string) ([]gitbackend.TreeDiffEntry, error) {
	return nil, nil
}
func (f *fakeBackend) Diff(ctx context.Context, dir, base, head string) (string, error) {
	return "", nil
}
func (f *fakeBackend) CreateBranch(ctx context.Context, dir, name, fromOID string) error { return nil }
func (f *fakeBackend) CurrentDepth(ctx context.Context, dir string) (int, error)         { return 0, nil }

func TestApplyPatchAndPushRejectsRename(t *testing.T) {
	backend := &fakeBackend{}
	r := ApplyPatchAndPush(context.Background(), backend, ApplyOptions{
		Raw: "diff --git a/x b/y\nrename from x\nrename to y\n",
	})
	if r.Success || r.Error != "Unsupported patch features" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestApplyPatchAndPushLocalOnlyWarnsNoRemotes(t *testing.T) {
	backend := &fakeBackend{applyOID: "newoid"}
	r := ApplyPatchAndPush(context.Background(), backend, ApplyOptions{Raw: sampleDiff})
	if !r.Success || r.Warning == "" {
		t.Errorf("expected success with warning, got %+v", r)
	}
}

func TestApplyPatchAndPushFallsBackToTopicBranchOnProtectedError(t *testing.T) {
	backend := &fakeBackend{
		applyOID: "newoid",
		pushErr:  map[string]error{"grasp://relay.example.com/acme/widgets": errNotNil("branch is protected")},
	}
	r := ApplyPatchAndPush(context.Background(), backend, ApplyOptions{
		Raw:     sampleDiff,
		Remotes: []string{"grasp://relay.example.com/acme/widgets"},
		Refspec: "refs/heads/main",
	})
	if !r.Success {
		t.Fatalf("expected overall success, got %+v", r)
	}
	if len(r.PushedRemotes) != 1 {
		t.Errorf("expected fallback push to count as pushed, got %+v", r)
	}
	foundTopic := false
	for _, call := range backend.pushCalls {
		if strings.Contains(call, "grasp/patch-") {
			foundTopic = true
		}
	}
	if !foundTopic {
		t.Errorf("expected a topic-branch fallback push, calls=%v", backend.pushCalls)
	}
}

type errNotNil string

func (e errNotNil) Error() string { return string(e) }
