// Package nostrevent defines the signed-event schema for the git bridge:
// kind constants, tag accessor/builder helpers, and per-kind parse/validate/
// create functions. Every function here is pure — no network, no clock
// except via an injected `now` or the caller-supplied CreatedAt — so the
// whole package is unit-testable without a relay.
package nostrevent

// Kind is a Nostr event kind number.
type Kind int

const (
	KindRepoAnnouncement Kind = 30617
	KindRepoState        Kind = 30618
	KindIssue            Kind = 1621
	KindPatch            Kind = 1617
	KindPullRequest      Kind = 1618
	KindPullRequestUpdate Kind = 1619
	KindStatusOpen       Kind = 1630
	KindStatusApplied    Kind = 1631
	KindStatusClosed     Kind = 1632
	KindStatusDraft      Kind = 1633
	KindComment          Kind = 1111
	KindLabel            Kind = 1985
	KindUserGraspList    Kind = 10317
	KindPermalink        Kind = 1623
	KindCodeSnippet      Kind = 1337
	KindMergeMetadata    Kind = 30411
	KindConflictMetadata Kind = 30412
)

// StatusKinds lists the four mutually-exclusive status kinds, in kind_rank
// order (draft < open < applied < closed) as used by resolveStatus.
var StatusKinds = []Kind{KindStatusDraft, KindStatusOpen, KindStatusApplied, KindStatusClosed}

func statusKindRank(k Kind) int {
	switch k {
	case KindStatusDraft:
		return 0
	case KindStatusOpen:
		return 1
	case KindStatusApplied:
		return 2
	case KindStatusClosed:
		return 3
	default:
		return -1
	}
}

// StatusKindRank returns the kind_rank used in resolveStatus's precedence
// tuple (role_rank, kind_rank, created_at). Unknown kinds rank -1 (lowest).
func StatusKindRank(k Kind) int { return statusKindRank(k) }

// IsStatusKind reports whether k is one of the four status kinds.
func IsStatusKind(k Kind) bool { return statusKindRank(k) >= 0 }
