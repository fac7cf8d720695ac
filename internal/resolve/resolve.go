// Package resolve computes derived views over a repo's issue/PR threads:
// comment-thread assembly, status precedence resolution, issue-status
// summaries, and effective label merging. Every function is pure — given
// the same event set, the same answer comes back regardless of arrival
// order, which is what makes relay-sourced, out-of-order delivery safe.
package resolve

import (
	"sort"

	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
)

// Thread is AssembleIssueThread's flat result: the comments and statuses
// that actually belong to a root event's thread, sorted ascending by
// created_at so a caller can render them in arrival order regardless of
// the order relays returned them in.
type Thread struct {
	RootID   string
	RootKind nostrevent.Kind
	Comments []*nostrevent.Comment
	Statuses []*nostrevent.Status
}

// AssembleIssueThread filters a raw comment/status pool down to the ones
// belonging to rootID, applying the NIP-22 kind-scoped rule: a comment's
// uppercase K tag (nostrevent.Comment.RootKind) must match the root's own
// kind, or the comment is excluded even though its e/E tag points at
// rootID — a stale or forged root-kind tag never attaches a comment to the
// wrong thread.
func AssembleIssueThread(rootID string, rootKind nostrevent.Kind, comments []*nostrevent.Comment, statuses []*nostrevent.Status) *Thread {
	t := &Thread{RootID: rootID, RootKind: rootKind}
	for _, c := range comments {
		if c.RootID != rootID || c.RootKind != rootKind {
			continue
		}
		t.Comments = append(t.Comments, c)
	}
	for _, s := range statuses {
		if s.TargetID != rootID {
			continue
		}
		t.Statuses = append(t.Statuses, s)
	}
	sort.SliceStable(t.Comments, func(i, j int) bool { return t.Comments[i].CreatedAt < t.Comments[j].CreatedAt })
	sort.SliceStable(t.Statuses, func(i, j int) bool { return t.Statuses[i].CreatedAt < t.Statuses[j].CreatedAt })
	return t
}

// Role is a participant's relationship to the thread being resolved, used
// to break ties between competing status events.
type Role int

const (
	RoleOther Role = iota
	RoleRootAuthor
	RoleMaintainer
)

func roleRank(r Role) int { return int(r) }

func roleLabel(r Role) string {
	switch r {
	case RoleMaintainer:
		return "maintainer"
	case RoleRootAuthor:
		return "root-author"
	default:
		return "other"
	}
}

// RoleOf looks up pubkey's role: maintainer beats root-author beats other.
func RoleOf(pubkey, rootAuthor string, maintainers map[string]bool) Role {
	if maintainers[pubkey] {
		return RoleMaintainer
	}
	if pubkey == rootAuthor {
		return RoleRootAuthor
	}
	return RoleOther
}

// StatusResolution is ResolveStatus's result: the winning status plus a
// human-readable justification naming the dominant criterion that decided it.
type StatusResolution struct {
	Final  *nostrevent.Status
	Reason string
}

// ResolveStatus picks the winning status among candidates using the
// precedence tuple (role_rank, kind_rank, created_at), each descending:
// a maintainer's status always beats a non-maintainer's regardless of
// timestamp; among equal roles the higher-progress kind wins; among ties
// on both, the most recent event wins.
func ResolveStatus(candidates []*nostrevent.Status, rootAuthor string, maintainers map[string]bool) *StatusResolution {
	var best *nostrevent.Status
	var bestRole Role
	var reason string
	for _, s := range candidates {
		role := RoleOf(s.Pubkey, rootAuthor, maintainers)
		if best == nil {
			best, bestRole, reason = s, role, "only candidate"
			continue
		}
		if why, ok := beats(role, s, bestRole, best); ok {
			best, bestRole, reason = s, role, why
		}
	}
	if best == nil {
		return nil
	}
	return &StatusResolution{Final: best, Reason: reason}
}

// beats reports whether (role, s) outranks (bestRole, best), and if so, why.
func beats(role Role, s *nostrevent.Status, bestRole Role, best *nostrevent.Status) (string, bool) {
	if roleRank(role) != roleRank(bestRole) {
		if roleRank(role) < roleRank(bestRole) {
			return "", false
		}
		return roleLabel(role) + " outranks " + roleLabel(bestRole), true
	}
	rs, rb := nostrevent.StatusKindRank(s.Kind), nostrevent.StatusKindRank(best.Kind)
	if rs != rb {
		if rs < rb {
			return "", false
		}
		return "higher-progress status kind on equal role", true
	}
	if s.CreatedAt <= best.CreatedAt {
		return "", false
	}
	return "most recent event on a full tie", true
}

// IssueStatusSummary is the human-facing rollup of an issue's resolved state.
type IssueStatusSummary struct {
	Kind       nostrevent.Kind
	ResolvedBy string // pubkey of the winning status's author
	At         int64
	Reason     string
}

// SummarizeIssueStatus resolves the winning status and packages it for display.
func SummarizeIssueStatus(candidates []*nostrevent.Status, rootAuthor string, maintainers map[string]bool) *IssueStatusSummary {
	resolved := ResolveStatus(candidates, rootAuthor, maintainers)
	if resolved == nil {
		return nil
	}
	winner := resolved.Final
	return &IssueStatusSummary{Kind: winner.Kind, ResolvedBy: winner.Pubkey, At: winner.CreatedAt, Reason: resolved.Reason}
}

// defaultLabelNamespace is where a label lands when its event carries no
// explicit namespace — legacy flat "t" labels on a kind-1985 event, as
// opposed to the root's own self-tags, which land in LegacyT instead.
const defaultLabelNamespace = "ugc"

// EffectiveLabels is GetEffectiveLabelsFor's merged result.
type EffectiveLabels struct {
	ByNamespace map[string][]string // namespace -> values, "ugc" catching unrecognized/absent namespaces
	Flat        []string            // "namespace/value", sorted
	LegacyT     []string            // the root event's own "t" self-tags, pre-NIP-32
}

// GetEffectiveLabelsFor merges the root event's own self-tags with every
// external kind-1985 label event targeting targetID into a single
// structured view. Label-event namespaces are last-write-wins by
// CreatedAt — a namespace isn't additive across competing label events,
// matching how a maintainer "relabeling" an issue is expected to replace
// prior labels — while the root's self-tags are carried through verbatim
// since no single event owns them.
func GetEffectiveLabelsFor(root *nostrevent.Event, targetID string, labels []*nostrevent.Label) *EffectiveLabels {
	type entry struct {
		createdAt int64
		values    []string
	}
	latest := map[string]entry{}
	for _, l := range labels {
		if l.TargetID != targetID {
			continue
		}
		ns := l.Namespace
		if ns == "" {
			ns = defaultLabelNamespace
		}
		if cur, ok := latest[ns]; !ok || l.CreatedAt > cur.createdAt {
			latest[ns] = entry{createdAt: l.CreatedAt, values: l.Values}
		}
	}

	out := &EffectiveLabels{ByNamespace: make(map[string][]string, len(latest))}
	for ns, e := range latest {
		out.ByNamespace[ns] = e.values
		for _, v := range e.values {
			out.Flat = append(out.Flat, ns+"/"+v)
		}
	}
	sort.Strings(out.Flat)

	if root != nil {
		for _, t := range nostrevent.GetTags(root.Tags, "t") {
			if len(t) >= 2 {
				out.LegacyT = append(out.LegacyT, t[1])
			}
		}
	}
	return out
}
