package nostrevent

// IsRepoAnnouncement reports whether e is a kind-30617 event.
func IsRepoAnnouncement(e *Event) bool { return e != nil && Kind(e.Kind) == KindRepoAnnouncement }

// IsRepoState reports whether e is a kind-30618 event.
func IsRepoState(e *Event) bool { return e != nil && Kind(e.Kind) == KindRepoState }

// IsPatch reports whether e is a kind-1617 event.
func IsPatch(e *Event) bool { return e != nil && Kind(e.Kind) == KindPatch }

// IsIssue reports whether e is a kind-1621 event.
func IsIssue(e *Event) bool { return e != nil && Kind(e.Kind) == KindIssue }

// IsPullRequest reports whether e is a kind-1618 or kind-1619 event.
func IsPullRequest(e *Event) bool {
	if e == nil {
		return false
	}
	k := Kind(e.Kind)
	return k == KindPullRequest || k == KindPullRequestUpdate
}

// IsComment reports whether e is a kind-1111 event.
func IsComment(e *Event) bool { return e != nil && Kind(e.Kind) == KindComment }

// IsLabel reports whether e is a kind-1985 event.
func IsLabel(e *Event) bool { return e != nil && Kind(e.Kind) == KindLabel }

// IsStatus reports whether e is one of the four status kinds.
func IsStatus(e *Event) bool { return e != nil && IsStatusKind(Kind(e.Kind)) }

// IsMergeMetadata reports whether e is a kind-30411 event.
func IsMergeMetadata(e *Event) bool { return e != nil && Kind(e.Kind) == KindMergeMetadata }

// IsConflictMetadata reports whether e is a kind-30412 event.
func IsConflictMetadata(e *Event) bool { return e != nil && Kind(e.Kind) == KindConflictMetadata }
