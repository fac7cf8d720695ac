package nostrevent

// RepoAnnouncement is the parsed form of a kind-30617 event.
type RepoAnnouncement struct {
	ID          string
	Pubkey      string
	CreatedAt   int64
	RepoID      string // "d" tag
	Name        string
	Description string
	CloneURLs   []string
	WebURLs     []string
	Relays      []string
	Maintainers []string
	EUC         string
	HasEUC      bool
}

// RepoState is the parsed form of a kind-30618 event.
type RepoState struct {
	ID        string
	Pubkey    string
	CreatedAt int64
	RepoID    string
	HEAD      string
	Refs      map[string]string // refname -> commit id
}

// Patch is the parsed form of a kind-1617 event.
type Patch struct {
	ID           string
	Pubkey       string
	CreatedAt    int64
	RepoAddr     string
	CommitID     string
	ParentCommit string
	Subject      string
	Diff         string
	EUC          string
	HasEUC       bool
	RootID       string
	HasRoot      bool
}

// Issue is the parsed form of a kind-1621 event.
type Issue struct {
	ID        string
	Pubkey    string
	CreatedAt int64
	RepoAddr  string
	Subject   string
	Content   string
}

// PullRequest is the parsed form of kind-1618/1619 events.
type PullRequest struct {
	ID         string
	Pubkey     string
	CreatedAt  int64
	Kind       Kind
	RepoAddr   string
	Subject    string
	Content    string
	HeadBranch string
	BaseBranch string
	HeadCommit string
}

// Comment is the parsed form of a kind-1111 event.
type Comment struct {
	ID        string
	Pubkey    string
	CreatedAt int64
	RootID    string
	HasRoot   bool
	ReplyID   string
	HasReply  bool
	RootKind  Kind
	Content   string
}

// Label is the parsed form of a kind-1985 event.
type Label struct {
	ID        string
	Pubkey    string
	CreatedAt int64
	TargetID  string
	Namespace string // "" for flat/legacy "t" labels
	Values    []string
}

// Status is the parsed form of a kind-1630..1633 event.
type Status struct {
	ID        string
	Pubkey    string
	CreatedAt int64
	Kind      Kind
	TargetID  string
	RepoAddr  string
	Content   string
}

// MergeMetadata is the parsed form of a kind-30411 event.
type MergeMetadata struct {
	ID           string
	Pubkey       string
	CreatedAt    int64
	RepoAddr     string
	RootID       string
	TargetBranch string
	BaseBranch   string
	Result       string
	Content      string
}

// ConflictMetadata is the parsed form of a kind-30412 event.
type ConflictMetadata struct {
	ID            string
	Pubkey        string
	CreatedAt     int64
	RepoAddr      string
	RootID        string
	TargetBranch  string
	BaseBranch    string
	ConflictFiles []string
	Content       string
}
