package repogroup

import (
	"testing"

	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
)

func TestGroupByEucClustersSharedCommit(t *testing.T) {
	announcements := []*nostrevent.RepoAnnouncement{
		{Pubkey: "a", RepoID: "r1", EUC: "commit0", HasEUC: true},
		{Pubkey: "b", RepoID: "r1-fork", EUC: "commit0", HasEUC: true},
		{Pubkey: "c", RepoID: "unrelated"},
	}
	groups := GroupByEuc(announcements)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups (1 clustered + 1 solo), got %d", len(groups))
	}
	var clustered *Group
	for _, g := range groups {
		if len(g.Announcements) == 2 {
			clustered = g
		}
	}
	if clustered == nil {
		t.Fatal("expected a 2-member cluster for shared EUC")
	}
}

func TestDeriveMaintainersUnionsAuthorsAndDeclared(t *testing.T) {
	g := &Group{
		Announcements: []*nostrevent.RepoAnnouncement{
			{Pubkey: "a", Maintainers: []string{"m1"}},
			{Pubkey: "b", Maintainers: []string{"m1", "m2"}},
		},
	}
	got := DeriveMaintainers(g)
	want := []string{"a", "b", "m1", "m2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
