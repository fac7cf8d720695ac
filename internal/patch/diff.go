// Package patch parses unified diffs, classifies merge outcomes against a
// target branch, and applies a patch to a working tree with structured
// failure reporting.
package patch

import (
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// Input is the patch analyzer's input shape: the commits a patch claims to
// introduce, the branch it was generated against, and its raw diff text.
type Input struct {
	Commits    []string
	BaseBranch string
	Raw        string
}

// ParseUnifiedDiff parses raw into per-file diffs. An empty or
// non-unified-diff payload is reported as an error, which callers fold
// into the analyzer's "invalid" outcome rather than propagating directly.
func ParseUnifiedDiff(raw string) ([]*godiff.FileDiff, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nerrors.ErrInvalidInput("empty patch content")
	}
	files, err := godiff.ParseMultiFileDiff([]byte(raw))
	if err != nil {
		return nil, nerrors.Wrap(nerrors.InvalidInput, "parse unified diff", err)
	}
	if len(files) == 0 {
		return nil, nerrors.ErrInvalidInput("diff content is not a unified diff")
	}
	return files, nil
}

// HasRenameOrBinaryMarkers reports whether raw contains rename or binary
// patch markers, which applyPatchAndPush must reject outright rather than
// attempt to apply.
func HasRenameOrBinaryMarkers(raw string) bool {
	return strings.Contains(raw, "rename from") ||
		strings.Contains(raw, "rename to") ||
		strings.Contains(raw, "GIT binary patch")
}

// FileOp classifies what a single file's diff does to the working tree.
type FileOp int

const (
	FileModify FileOp = iota
	FileAdd
	FileDelete
)

// ClassifyFileOp inspects a parsed file diff's orig/new names to decide
// whether it represents an add, delete, or in-place modification.
func ClassifyFileOp(f *godiff.FileDiff) FileOp {
	orig := stripDiffPrefix(f.OrigName)
	newName := stripDiffPrefix(f.NewName)
	switch {
	case orig == "/dev/null":
		return FileAdd
	case newName == "/dev/null":
		return FileDelete
	default:
		return FileModify
	}
}

func stripDiffPrefix(name string) string {
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}

// TargetPath returns the file path a diff applies to, preferring the new
// name (adds/modifies) and falling back to the old name (deletes).
func TargetPath(f *godiff.FileDiff) string {
	newName := stripDiffPrefix(f.NewName)
	if newName != "" && newName != "/dev/null" {
		return newName
	}
	return stripDiffPrefix(f.OrigName)
}
