package nostrevent

import (
	"fmt"

	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// StrictValidation gates the extra structural checks (clone-URL presence,
// ref-tag presence; the form of a ref is not checked) that are useful in development but too strict for
// arbitrary relay input in production. Off by default; flip for test
// harnesses or a linting CLI subcommand.
var StrictValidation = false

func missingTag(kind Kind, tag string) error {
	return nerrors.ErrInvalidInput(fmt.Sprintf("kind %d event missing required %q tag", kind, tag))
}

// ValidateRepoAnnouncement checks the tags required to parse a repo
// announcement: "d" (repo id) is mandatory; everything else is optional.
func ValidateRepoAnnouncement(e *Event) error {
	if !IsRepoAnnouncement(e) {
		return nerrors.ErrInvalidInput("not a repo announcement event")
	}
	if GetTagValue(e.Tags, "d") == "" {
		return missingTag(KindRepoAnnouncement, "d")
	}
	if StrictValidation && len(GetTags(e.Tags, "clone")) == 0 {
		return nerrors.ErrInvalidInput("repo announcement has no clone URLs")
	}
	return nil
}

// ValidateRepoState checks a repo-state event carries a "d" tag and, under
// StrictValidation only, at least one other tag (a ref).
func ValidateRepoState(e *Event) error {
	if !IsRepoState(e) {
		return nerrors.ErrInvalidInput("not a repo state event")
	}
	if GetTagValue(e.Tags, "d") == "" {
		return missingTag(KindRepoState, "d")
	}
	if StrictValidation {
		hasRef := false
		for _, t := range e.Tags {
			if len(t) >= 2 && t[0] != "d" {
				hasRef = true
				break
			}
		}
		if !hasRef {
			return nerrors.ErrInvalidInput("repo state has no ref tags")
		}
	}
	return nil
}

// ValidatePatch checks a patch event carries an "a" repo-address tag and
// non-empty diff content.
func ValidatePatch(e *Event) error {
	if !IsPatch(e) {
		return nerrors.ErrInvalidInput("not a patch event")
	}
	if _, ok := ParseAddrTag(e.Tags, RepoAddrPrefix+":"); !ok {
		return missingTag(KindPatch, "a")
	}
	if e.Content == "" {
		return nerrors.ErrInvalidInput("patch event has empty diff content")
	}
	return nil
}

// ValidateIssue checks an issue event carries a repo-address tag.
func ValidateIssue(e *Event) error {
	if !IsIssue(e) {
		return nerrors.ErrInvalidInput("not an issue event")
	}
	if _, ok := ParseAddrTag(e.Tags, RepoAddrPrefix+":"); !ok {
		return missingTag(KindIssue, "a")
	}
	return nil
}

// ValidatePullRequest checks a PR event carries a repo-address tag.
func ValidatePullRequest(e *Event) error {
	if !IsPullRequest(e) {
		return nerrors.ErrInvalidInput("not a pull request event")
	}
	if _, ok := ParseAddrTag(e.Tags, RepoAddrPrefix+":"); !ok {
		return missingTag(Kind(e.Kind), "a")
	}
	return nil
}

// ValidateComment checks a comment event carries a scoping anchor (either
// uppercase root markers or at minimum a lowercase "e" tag).
func ValidateComment(e *Event) error {
	if !IsComment(e) {
		return nerrors.ErrInvalidInput("not a comment event")
	}
	if _, ok := ParseRootTag(e.Tags); !ok {
		return nerrors.ErrInvalidInput("comment event has no root anchor (E/e tag)")
	}
	return nil
}

// ValidateLabel checks a label event targets something.
func ValidateLabel(e *Event) error {
	if !IsLabel(e) {
		return nerrors.ErrInvalidInput("not a label event")
	}
	if _, ok := ParseRootTag(e.Tags); !ok {
		return nerrors.ErrInvalidInput("label event has no target (e) tag")
	}
	return nil
}

// ValidateStatus checks a status event targets a root object and a repo.
func ValidateStatus(e *Event) error {
	if !IsStatus(e) {
		return nerrors.ErrInvalidInput("not a status event")
	}
	if _, ok := ParseRootTag(e.Tags); !ok {
		return missingTag(Kind(e.Kind), "e")
	}
	if _, ok := ParseAddrTag(e.Tags, RepoAddrPrefix+":"); !ok {
		return missingTag(Kind(e.Kind), "a")
	}
	return nil
}
