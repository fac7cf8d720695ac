// Package identity implements canonical naming for repositories announced on
// the signed-event network: stable repo keys, repo-address encoding, and
// permalink parsing for GitHub/GitLab/Gitea blob and diff URLs.
//
// Direct regex path-matching here mirrors the provider-detection style of
// the PR URL parser this package generalizes, extended from "PR link" to
// "any permalink, plus repo identity resolution".
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
	"golang.org/x/text/unicode/norm"

	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// RepoAddrPrefix is the kind-30617 address scheme prefix.
const RepoAddrPrefix = "30617"

var hex64Re = regexp.MustCompile(`^[0-9a-f]{64}$`)
var repoAddrRe = regexp.MustCompile(`^30617:[0-9a-f]{64}:.+`)

// Resolvers is the optional collaborator set canonicalRepoKey may use to
// verify/resolve NIP-05 identifiers. naddr coordinates are encoded and
// decoded with nip19 directly, without a resolver. ResolveNIP05 may be nil;
// canonicalRepoKey degrades to best-effort when so.
type Resolvers struct {
	// ResolveNIP05 resolves a "name@domain" identifier to a hex pubkey via the
	// NIP-05 well-known JSON document. Returns ("", false) on any failure.
	ResolveNIP05 func(ctx context.Context, nip05 string) (pubkeyHex string, ok bool)
}

// KeyForm selects the output encoding for canonicalRepoKey.
type KeyForm string

const (
	FormNpub  KeyForm = "npub"
	FormNIP05 KeyForm = "nip05"
	FormNaddr KeyForm = "naddr"
)

// UnresolvedIdentity describes an input that looked like an identifier but
// did not resolve. canonicalRepoKey does not produce it: when NIP-05
// resolution fails it returns the input unchanged and reports nothing.
type UnresolvedIdentity struct {
	Input  string
	Reason string
}

func (u *UnresolvedIdentity) Error() string {
	return fmt.Sprintf("unresolved identity %q: %s", u.Input, u.Reason)
}

// LegacyKeyWarning is pushed to the warning sink when canonicalRepoKey
// recognizes an input matching a legacy key form (bare 64-hex pubkey or a
// repo address string) rather than npub/nip05/naddr.
type LegacyKeyWarning struct {
	Input  string
	Detail string
}

// canonicalRepoKey input shapes, in the order they're attempted.
//
//	legacy 64-hex:    <64 hex chars>
//	legacy repo addr: 30617:<pk>:<d>
//	naddr:            naddr1...
//	bare npub:        npub1...
//	npub + name:      npub1.../reponame
//	nip05:            name@domain.tld[/reponame]
func CanonicalRepoKey(ctx context.Context, input string, resolvers *Resolvers, warn func(LegacyKeyWarning)) string {
	return canonicalRepoKeyForm(ctx, input, resolvers, warn, FormNpub)
}

// CanonicalRepoKeyForm is CanonicalRepoKey with an explicit output form.
func CanonicalRepoKeyForm(ctx context.Context, input string, resolvers *Resolvers, warn func(LegacyKeyWarning), form KeyForm) string {
	return canonicalRepoKeyForm(ctx, input, resolvers, warn, form)
}

func canonicalRepoKeyForm(ctx context.Context, input string, resolvers *Resolvers, warn func(LegacyKeyWarning), form KeyForm) string {
	trimmed := strings.TrimSpace(norm.NFC.String(input))
	if trimmed == "" {
		return input
	}

	// Legacy forms: flagged via warning sink but still usable as-is.
	if hex64Re.MatchString(trimmed) {
		if warn != nil {
			warn(LegacyKeyWarning{Input: input, Detail: "bare 64-hex pubkey; prefer npub encoding"})
		}
		return encodeForm(trimmed, "", form, input)
	}
	if repoAddrRe.MatchString(trimmed) {
		if warn != nil {
			warn(LegacyKeyWarning{Input: input, Detail: "legacy repo-address form used as a key"})
		}
		return input
	}

	if strings.HasPrefix(trimmed, "naddr1") {
		pk, d, ok := decodeNaddr(trimmed)
		if !ok {
			return input
		}
		if form == FormNaddr {
			return trimmed
		}
		return encodeForm(pk, d, form, input)
	}

	if strings.HasPrefix(trimmed, "npub1") {
		name := ""
		pkPart := trimmed
		if idx := strings.Index(trimmed, "/"); idx >= 0 {
			pkPart = trimmed[:idx]
			name = trimmed[idx+1:]
		}
		pk, err := decodeNpub(pkPart)
		if err != nil {
			return input
		}
		return encodeForm(pk, name, form, input)
	}

	// nip05[/name]
	if strings.Contains(trimmed, "@") {
		nip05Part := trimmed
		name := ""
		if idx := strings.Index(trimmed, "/"); idx >= 0 {
			nip05Part = trimmed[:idx]
			name = trimmed[idx+1:]
		}
		if resolvers != nil && resolvers.ResolveNIP05 != nil {
			pk, ok := resolvers.ResolveNIP05(ctx, nip05Part)
			if ok {
				if form == FormNIP05 {
					if name != "" {
						return nip05Part + "/" + name
					}
					return nip05Part
				}
				return encodeForm(pk, name, form, input)
			}
		}
		// Resolution impossible or failed: fail silently to input, per spec.
		return input
	}

	// Unrecognized shape: return input unchanged (never throw on valid-shaped input).
	return input
}

func encodeForm(pubkeyHex, name string, form KeyForm, fallback string) string {
	switch form {
	case FormNaddr:
		addr, err := nip19.EncodeEntity(pubkeyHex, 30617, name, nil)
		if err != nil {
			return fallback
		}
		return addr
	case FormNIP05:
		// No reverse NIP-05 lookup available in this package; degrade to npub.
		fallthrough
	default:
		npub, err := nip19.EncodePublicKey(pubkeyHex)
		if err != nil {
			return fallback
		}
		if name != "" {
			return npub + "/" + name
		}
		return npub
	}
}

func decodeNpub(npub string) (string, error) {
	prefix, data, err := nip19.Decode(npub)
	if err != nil {
		return "", err
	}
	if prefix != "npub" {
		return "", fmt.Errorf("not an npub: %s", prefix)
	}
	pk, ok := data.(string)
	if !ok {
		return "", fmt.Errorf("unexpected npub payload type")
	}
	return pk, nil
}

func decodeNaddr(naddr string) (pubkey, identifier string, ok bool) {
	prefix, data, err := nip19.Decode(naddr)
	if err != nil || prefix != "naddr" {
		return "", "", false
	}
	pointer, ok := data.(nip19.EntityPointer)
	if !ok || pointer.Kind != 30617 {
		return "", "", false
	}
	return pointer.PublicKey, pointer.Identifier, true
}

// MakeRepoAddr builds the "30617:<pubkey>:<d>" address string.
func MakeRepoAddr(pubkeyHex, repoID string) string {
	return RepoAddrPrefix + ":" + pubkeyHex + ":" + repoID
}

// IsRepoAddr reports whether s matches the repo-address wire format.
func IsRepoAddr(s string) bool {
	return repoAddrRe.MatchString(s)
}

// ParseRepoAddress splits a repo address into (pubkey, d). It is the exact
// inverse of MakeRepoAddr for any 64-hex pubkey and non-empty d (§8 property 5).
func ParseRepoAddress(addr string) (pubkeyHex, repoID string, err error) {
	parts := strings.SplitN(addr, ":", 3)
	if len(parts) != 3 || parts[0] != RepoAddrPrefix {
		return "", "", nerrors.ErrInvalidInput(fmt.Sprintf("not a repo address: %s", addr))
	}
	if !hex64Re.MatchString(parts[1]) {
		return "", "", nerrors.ErrInvalidInput(fmt.Sprintf("invalid pubkey in repo address: %s", addr))
	}
	if parts[2] == "" {
		return "", "", nerrors.ErrInvalidInput("empty repo identifier in repo address")
	}
	return parts[1], parts[2], nil
}

// NormalizeRelayUrl lower-cases the host, strips a trailing slash, drops the
// default port (80 for ws, 443 for wss), and chooses the "ws" scheme for
// .onion hosts. Idempotent: NormalizeRelayUrl(NormalizeRelayUrl(u)) == NormalizeRelayUrl(u).
func NormalizeRelayUrl(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if strings.HasSuffix(host, ".onion") {
		scheme = "ws"
	}

	if (scheme == "ws" && port == "80") || (scheme == "wss" && port == "443") {
		port = ""
	}

	hostport := host
	if port != "" {
		hostport = host + ":" + port
	}

	path := strings.TrimSuffix(u.Path, "/")

	result := scheme + "://" + hostport + path
	if u.RawQuery != "" {
		result += "?" + u.RawQuery
	}
	return result
}

// Permalink is the parsed result of ParsePermalink.
type Permalink struct {
	Host         string
	Platform     string // github, gitlab, gitea
	Owner        string
	Repo         string
	Branch       string
	FilePath     string
	StartLine    int
	EndLine      int
	IsDiff       bool
	DiffFileHash string
	DiffSide     string // "old" or "new", when recoverable from the anchor
}

var (
	githubBlobRe = regexp.MustCompile(`^/([^/]+)/([^/]+)/blob/([^/]+)/(.+)$`)
	githubDiffRe = regexp.MustCompile(`^/([^/]+)/([^/]+)/(?:pull/\d+/files|commit/[0-9a-f]+)$`)
	gitlabBlobRe = regexp.MustCompile(`^/(.+?)/-/blob/([^/]+)/(.+)$`)
	gitlabDiffRe = regexp.MustCompile(`^/(.+?)/-/(?:merge_requests/\d+/diffs|commit/[0-9a-f]+)$`)
	giteaBlobRe  = regexp.MustCompile(`^/([^/]+)/([^/]+)/src/branch/([^/]+)/(.+)$`)
	giteaDiffRe  = regexp.MustCompile(`^/([^/]+)/([^/]+)/(?:pulls/\d+/files|commit/[0-9a-f]+)$`)

	lineFragmentRe = regexp.MustCompile(`^L(\d+)(?:-L?(\d+))?$`)
	diffHashRe     = regexp.MustCompile(`^diff-([0-9a-f]{40,64})(R|L)?(\d+)?$`)
)

// ParsePermalink recognizes GitHub/GitLab/Gitea blob and diff permalink URLs.
func ParsePermalink(raw string) (*Permalink, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, nerrors.ErrInvalidInput("not a valid permalink URL")
	}
	host := strings.ToLower(u.Host)
	platform := detectPlatform(host, u.Path)
	if platform == "" {
		return nil, nerrors.ErrInvalidInput(fmt.Sprintf("unrecognized permalink host: %s", host))
	}

	pl := &Permalink{Host: host, Platform: platform}

	switch platform {
	case "github":
		if m := githubBlobRe.FindStringSubmatch(u.Path); m != nil {
			pl.Owner, pl.Repo, pl.Branch, pl.FilePath = m[1], m[2], m[3], m[4]
			applyLineFragment(pl, u.Fragment)
			return pl, nil
		}
		if m := githubDiffRe.FindStringSubmatch(u.Path); m != nil {
			pl.Owner, pl.Repo, pl.IsDiff = m[1], m[2], true
			applyDiffFragment(pl, u.Fragment)
			return pl, nil
		}
	case "gitlab":
		if m := gitlabBlobRe.FindStringSubmatch(u.Path); m != nil {
			pl.Owner, pl.Branch, pl.FilePath = m[1], m[2], m[3]
			applyLineFragment(pl, u.Fragment)
			return pl, nil
		}
		if m := gitlabDiffRe.FindStringSubmatch(u.Path); m != nil {
			pl.Owner, pl.IsDiff = m[1], true
			applyDiffFragment(pl, u.Fragment)
			return pl, nil
		}
	case "gitea":
		if m := giteaBlobRe.FindStringSubmatch(u.Path); m != nil {
			pl.Owner, pl.Repo, pl.Branch, pl.FilePath = m[1], m[2], m[3], m[4]
			applyLineFragment(pl, u.Fragment)
			return pl, nil
		}
		if m := giteaDiffRe.FindStringSubmatch(u.Path); m != nil {
			pl.Owner, pl.Repo, pl.IsDiff = m[1], m[2], true
			applyDiffFragment(pl, u.Fragment)
			return pl, nil
		}
	}

	return nil, nerrors.ErrInvalidInput(fmt.Sprintf("unrecognized %s permalink path: %s", platform, u.Path))
}

func detectPlatform(host, path string) string {
	switch {
	case strings.Contains(host, "github"):
		return "github"
	case strings.Contains(host, "gitlab"):
		return "gitlab"
	case strings.Contains(host, "gitea") || strings.Contains(path, "/src/branch/"):
		return "gitea"
	}
	return ""
}

func applyLineFragment(pl *Permalink, fragment string) {
	m := lineFragmentRe.FindStringSubmatch(fragment)
	if m == nil {
		return
	}
	pl.StartLine, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		pl.EndLine, _ = strconv.Atoi(m[2])
	} else {
		pl.EndLine = pl.StartLine
	}
}

func applyDiffFragment(pl *Permalink, fragment string) {
	m := diffHashRe.FindStringSubmatch(fragment)
	if m == nil {
		return
	}
	pl.DiffFileHash = m[1]
	switch m[2] {
	case "R":
		pl.DiffSide = "new"
	case "L":
		pl.DiffSide = "old"
	}
}

// TreeDiffEntry is one changed path between two commits, as GitBackend would
// report it. mapDiffHashToFile is pure given this slice; callers obtain it
// from GitBackend's tree diff capability.
type TreeDiffEntry struct {
	Path string
}

// MapDiffHashToFile walks a tree diff between oldOid and newOid and returns
// the unique file whose SHA-256(path) matches hash, the way GitHub anchors
// diff comments to a file-path hash rather than the literal path.
func MapDiffHashToFile(entries []TreeDiffEntry, hash string) (string, bool) {
	target := strings.ToLower(hash)
	for _, e := range entries {
		sum := sha256.Sum256([]byte(e.Path))
		if hex.EncodeToString(sum[:]) == target {
			return e.Path, true
		}
	}
	return "", false
}
