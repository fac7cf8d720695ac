// Package gitbackend declares the Git execution surface that the sync,
// patch and push-coordination engines depend on, without committing to a
// concrete implementation. In the reference deployment it's backed by the
// system git binary; in an embedded or WASM host it might be backed by a
// pure-Go git implementation instead — either way, this interface is the
// seam.
package gitbackend

import "context"

// RefUpdate describes a single observed ref after a fetch/clone.
type RefUpdate struct {
	Name string
	OID  string
}

// CloneOptions configures a tiered clone (refs-only, shallow, or full).
type CloneOptions struct {
	URL      string
	Dir      string
	Shallow  bool
	Depth    int
	RefsOnly bool
	Branch   string
}

// FetchOptions configures a fetch against an already-initialized repo.
type FetchOptions struct {
	Dir    string
	Remote string
	Refs   []string
	Deepen int
}

// PushOptions configures a push attempt against one candidate URL.
type PushOptions struct {
	Dir        string
	URL        string
	Refspec    string
	ForceWithLease bool
	Auth       *AuthCredential
}

// AuthCredential is the minimal shape GitBackend needs to authenticate a
// push/fetch; concrete token/SSH-key material is supplied by pushcoord.
type AuthCredential struct {
	Username string
	Password string // token or password
	SSHKeyPEM []byte
}

// MergeBase and diff-related queries used by the patch/merge-analysis engine.
type MergeAnalysisQuery struct {
	Dir    string
	Base   string
	Target string
}

// MergeAnalysisResult reports what GitBackend observed about two commits'
// relationship, leaving outcome classification to internal/patch.
type MergeAnalysisResult struct {
	MergeBase      string
	AheadCount     int
	BehindCount    int
	ConflictPaths  []string
	IsFastForward  bool
}

// TreeDiffEntry mirrors identity.TreeDiffEntry so GitBackend implementations
// don't need to import the identity package just to satisfy this interface.
type TreeDiffEntry struct {
	Path string
}

// GitBackend is every Git execution capability the engine needs, as an
// interface so it can be swapped for a CLI-exec implementation, a pure-Go
// implementation, or a test double.
type GitBackend interface {
	Clone(ctx context.Context, opts CloneOptions) ([]RefUpdate, error)
	Fetch(ctx context.Context, opts FetchOptions) ([]RefUpdate, error)
	Push(ctx context.Context, opts PushOptions) error
	ResolveRef(ctx context.Context, dir, ref string) (string, error)
	ListRefs(ctx context.Context, dir string) ([]RefUpdate, error)
	AnalyzeMerge(ctx context.Context, q MergeAnalysisQuery) (*MergeAnalysisResult, error)
	ApplyPatch(ctx context.Context, dir, diff, baseCommit string) (commitOID string, err error)
	TreeDiff(ctx context.Context, dir, oldOID, newOID string) ([]TreeDiffEntry, error)
	Diff(ctx context.Context, dir, base, head string) (string, error)
	CreateBranch(ctx context.Context, dir, name, fromOID string) error
	CurrentDepth(ctx context.Context, dir string) (int, error)
}
