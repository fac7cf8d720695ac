package nostrevent

import "strings"

// ParseRepoAnnouncement converts a validated kind-30617 event into a
// RepoAnnouncement. Callers should run ValidateRepoAnnouncement first;
// this function does not re-validate.
func ParseRepoAnnouncement(e *Event) *RepoAnnouncement {
	ra := &RepoAnnouncement{
		ID:          e.ID,
		Pubkey:      e.PubKey,
		CreatedAt:   int64(e.CreatedAt),
		RepoID:      GetTagValue(e.Tags, "d"),
		Name:        GetTagValue(e.Tags, "name"),
		Description: GetTagValue(e.Tags, "description"),
	}
	for _, t := range GetTags(e.Tags, "clone") {
		if len(t) >= 2 {
			ra.CloneURLs = append(ra.CloneURLs, t[1:]...)
		}
	}
	for _, t := range GetTags(e.Tags, "web") {
		if len(t) >= 2 {
			ra.WebURLs = append(ra.WebURLs, t[1:]...)
		}
	}
	for _, t := range GetTags(e.Tags, "relays") {
		if len(t) >= 2 {
			ra.Relays = append(ra.Relays, t[1:]...)
		}
	}
	for _, t := range GetTags(e.Tags, "maintainers") {
		if len(t) >= 2 {
			ra.Maintainers = append(ra.Maintainers, t[1:]...)
		}
	}
	if euc, ok := ParseEucTag(e.Tags); ok {
		ra.EUC, ra.HasEUC = euc, true
	}
	return ra
}

// ParseRepoState converts a validated kind-30618 event into a RepoState.
// Ref tags take the shape ["<refname>", "<oid>"], e.g. ["refs/heads/main", "<sha>"].
func ParseRepoState(e *Event) *RepoState {
	rs := &RepoState{
		ID:        e.ID,
		Pubkey:    e.PubKey,
		CreatedAt: int64(e.CreatedAt),
		RepoID:    GetTagValue(e.Tags, "d"),
		Refs:      map[string]string{},
	}
	for _, t := range e.Tags {
		if len(t) < 2 || t[0] == "d" {
			continue
		}
		rs.Refs[t[0]] = t[1]
		if t[0] == "HEAD" || t[0] == "refs/heads/HEAD" {
			rs.HEAD = t[1]
		}
	}
	return rs
}

// ParsePatch converts a validated kind-1617 event into a Patch.
func ParsePatch(e *Event) *Patch {
	addr, _ := ParseAddrTag(e.Tags, RepoAddrPrefix+":")
	p := &Patch{
		ID:           e.ID,
		Pubkey:       e.PubKey,
		CreatedAt:    int64(e.CreatedAt),
		RepoAddr:     addr,
		CommitID:     GetTagValue(e.Tags, "commit"),
		ParentCommit: GetTagValue(e.Tags, "parent-commit"),
		Subject:      commitSubject(e.Content),
		Diff:         e.Content,
	}
	if euc, ok := ParseEucTag(e.Tags); ok {
		p.EUC, p.HasEUC = euc, true
	}
	if root, ok := ParseRootTag(e.Tags); ok {
		p.RootID, p.HasRoot = root, true
	}
	return p
}

func commitSubject(diff string) string {
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "Subject: ") {
			return strings.TrimPrefix(line, "Subject: ")
		}
	}
	if idx := strings.Index(diff, "\n"); idx >= 0 {
		return diff[:idx]
	}
	return diff
}

// ParseIssue converts a validated kind-1621 event into an Issue.
func ParseIssue(e *Event) *Issue {
	addr, _ := ParseAddrTag(e.Tags, RepoAddrPrefix+":")
	return &Issue{
		ID:        e.ID,
		Pubkey:    e.PubKey,
		CreatedAt: int64(e.CreatedAt),
		RepoAddr:  addr,
		Subject:   GetTagValue(e.Tags, "subject"),
		Content:   e.Content,
	}
}

// ParsePullRequest converts a validated kind-1618/1619 event into a PullRequest.
func ParsePullRequest(e *Event) *PullRequest {
	addr, _ := ParseAddrTag(e.Tags, RepoAddrPrefix+":")
	return &PullRequest{
		ID:         e.ID,
		Pubkey:     e.PubKey,
		CreatedAt:  int64(e.CreatedAt),
		Kind:       Kind(e.Kind),
		RepoAddr:   addr,
		Subject:    GetTagValue(e.Tags, "subject"),
		Content:    e.Content,
		HeadBranch: GetTagValue(e.Tags, "branch-name"),
		BaseBranch: GetTagValue(e.Tags, "base-branch"),
		HeadCommit: GetTagValue(e.Tags, "commit"),
	}
}

// ParseComment converts a validated kind-1111 event into a Comment.
func ParseComment(e *Event) *Comment {
	c := &Comment{
		ID:        e.ID,
		Pubkey:    e.PubKey,
		CreatedAt: int64(e.CreatedAt),
		Content:   e.Content,
	}
	if root, ok := ParseRootTag(e.Tags); ok {
		c.RootID, c.HasRoot = root, true
	}
	if reply, ok := ParseReplyTag(e.Tags); ok {
		c.ReplyID, c.HasReply = reply, true
	}
	if kv := GetTagValue(e.Tags, "K"); kv != "" {
		var kn int
		for _, ch := range kv {
			if ch < '0' || ch > '9' {
				kn = -1
				break
			}
			kn = kn*10 + int(ch-'0')
		}
		c.RootKind = Kind(kn)
	}
	return c
}

// ParseLabel converts a validated kind-1985 event into a Label. "l" tags
// carry an explicit namespace as tag[2]; "t" tags are legacy flat labels.
func ParseLabel(e *Event) *Label {
	l := &Label{ID: e.ID, Pubkey: e.PubKey, CreatedAt: int64(e.CreatedAt)}
	if root, ok := ParseRootTag(e.Tags); ok {
		l.TargetID = root
	}
	for _, t := range GetTags(e.Tags, "l") {
		if len(t) >= 2 {
			l.Values = append(l.Values, t[1])
		}
		if len(t) >= 3 && l.Namespace == "" {
			l.Namespace = t[2]
		}
	}
	for _, t := range GetTags(e.Tags, "t") {
		if len(t) >= 2 {
			l.Values = append(l.Values, t[1])
		}
	}
	return l
}

// ParseStatus converts a validated status event into a Status.
func ParseStatus(e *Event) *Status {
	addr, _ := ParseAddrTag(e.Tags, RepoAddrPrefix+":")
	s := &Status{
		ID:        e.ID,
		Pubkey:    e.PubKey,
		CreatedAt: int64(e.CreatedAt),
		Kind:      Kind(e.Kind),
		RepoAddr:  addr,
		Content:   e.Content,
	}
	if root, ok := ParseRootTag(e.Tags); ok {
		s.TargetID = root
	}
	return s
}

// ParseMergeMetadata converts a validated kind-30411 event into MergeMetadata.
func ParseMergeMetadata(e *Event) *MergeMetadata {
	addr, _ := ParseAddrTag(e.Tags, RepoAddrPrefix+":")
	return &MergeMetadata{
		ID:           e.ID,
		Pubkey:       e.PubKey,
		CreatedAt:    int64(e.CreatedAt),
		RepoAddr:     addr,
		RootID:       GetTagValue(e.Tags, "e"),
		TargetBranch: GetTagValue(e.Tags, "target-branch"),
		BaseBranch:   GetTagValue(e.Tags, "base-branch"),
		Result:       GetTagValue(e.Tags, "result"),
		Content:      e.Content,
	}
}

// ParseConflictMetadata converts a validated kind-30412 event into ConflictMetadata.
func ParseConflictMetadata(e *Event) *ConflictMetadata {
	addr, _ := ParseAddrTag(e.Tags, RepoAddrPrefix+":")
	cm := &ConflictMetadata{
		ID:           e.ID,
		Pubkey:       e.PubKey,
		CreatedAt:    int64(e.CreatedAt),
		RepoAddr:     addr,
		RootID:       GetTagValue(e.Tags, "e"),
		TargetBranch: GetTagValue(e.Tags, "target-branch"),
		BaseBranch:   GetTagValue(e.Tags, "base-branch"),
		Content:      e.Content,
	}
	for _, t := range GetTags(e.Tags, "file") {
		if len(t) >= 2 {
			cm.ConflictFiles = append(cm.ConflictFiles, t[1])
		}
	}
	return cm
}
