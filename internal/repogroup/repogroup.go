// Package repogroup clusters repo announcements that share an Earliest
// Unique Commit into a single logical project, and derives a maintainer
// set for that cluster.
package repogroup

import (
	"sort"

	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
)

// Group is a cluster of repo announcements believed to be forks/mirrors of
// the same underlying project, identified by a shared EUC.
type Group struct {
	EUC           string
	Announcements []*nostrevent.RepoAnnouncement
}

// GroupByEuc partitions announcements by their "euc" tag. Announcements
// without an EUC each form their own singleton group keyed by their own
// repo address, since there's nothing to cluster them against.
func GroupByEuc(announcements []*nostrevent.RepoAnnouncement) []*Group {
	byEuc := map[string]*Group{}
	var order []string

	for _, a := range announcements {
		key := a.EUC
		solo := !a.HasEUC
		if solo {
			key = "solo:" + a.Pubkey + ":" + a.RepoID
		}
		g, ok := byEuc[key]
		if !ok {
			g = &Group{EUC: a.EUC}
			byEuc[key] = g
			order = append(order, key)
		}
		g.Announcements = append(g.Announcements, a)
	}

	groups := make([]*Group, 0, len(order))
	for _, k := range order {
		groups = append(groups, byEuc[k])
	}
	return groups
}

// DeriveMaintainers computes a group's maintainer set as the union of every
// member announcement's declared maintainers, plus each announcement's own
// author (an announcing pubkey is implicitly a maintainer of its own repo).
// Deterministic ordering: sorted lexicographically.
func DeriveMaintainers(g *Group) []string {
	set := map[string]bool{}
	for _, a := range g.Announcements {
		set[a.Pubkey] = true
		for _, m := range a.Maintainers {
			set[m] = true
		}
	}
	out := make([]string, 0, len(set))
	for pk := range set {
		out = append(out, pk)
	}
	sort.Strings(out)
	return out
}
