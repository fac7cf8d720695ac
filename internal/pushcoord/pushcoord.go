// Package pushcoord coordinates pushing a ref across multiple candidate
// remote URLs for the same logical repository: trying them in
// preference order until one accepts the push, or mirroring a push to
// every configured remote at once and reporting a per-remote summary.
package pushcoord

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/telemetry"
)

// PreferenceSource supplies the previously-recorded preferred/failed URL
// ordering for a repo; internal/cache.MetadataStore is the production
// implementation.
type PreferenceSource interface {
	PreferredURL(repoAddr string) (string, bool)
	RecentlyFailed(repoAddr, url string) bool
}

// Attempt records the outcome of trying a single URL.
type Attempt struct {
	URL     string
	Success bool
	Error   string
}

// FallbackResult is withUrlFallback's return shape.
type FallbackResult struct {
	Success  bool
	UsedURL  string
	Attempts []Attempt
}

func isPseudoURL(url string) bool {
	return strings.HasPrefix(url, "nostr:")
}

// orderURLs puts the preferred URL first, recently-failed URLs last, and
// leaves the rest in their original relative order.
func orderURLs(repoAddr string, urls []string, prefs PreferenceSource) []string {
	var preferred []string
	var middle []string
	var failed []string
	preferredURL, hasPref := "", false
	if prefs != nil {
		preferredURL, hasPref = prefs.PreferredURL(repoAddr)
	}
	for _, u := range urls {
		switch {
		case hasPref && u == preferredURL:
			preferred = append(preferred, u)
		case prefs != nil && prefs.RecentlyFailed(repoAddr, u):
			failed = append(failed, u)
		default:
			middle = append(middle, u)
		}
	}
	out := make([]string, 0, len(urls))
	out = append(out, preferred...)
	out = append(out, middle...)
	out = append(out, failed...)
	return out
}

// isAuthClassError reports whether err should stop the fallback ladder
// rather than advance to the next URL — a bad credential won't succeed
// against a different URL for the same host family either.
func isAuthClassError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := nerrors.AsNostrGitError(err); ok {
		return e.Kind == nerrors.AuthRequired
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") || strings.Contains(msg, "403")
}

// PushOp is the unit of work withUrlFallback/withMultiWrite drive against
// each candidate URL.
type PushOp func(ctx context.Context, url string) error

// WithUrlFallback tries urls in preference order, stopping at the first
// success or the first auth-class failure (additional URLs wouldn't help).
// The outcome is returned in the FallbackResult only: neither the URL that
// worked nor the URLs that failed are recorded, as PreferenceSource only
// reads preferences.
func WithUrlFallback(ctx context.Context, repoAddr string, urls []string, prefs PreferenceSource, op PushOp) *FallbackResult {
	ordered := orderURLs(repoAddr, filterPseudo(urls), prefs)
	result := &FallbackResult{}
	for _, u := range ordered {
		start := time.Now()
		err := op(ctx, u)
		success := err == nil
		telemetry.GetMetrics().RecordURLFallbackAttempt(ctx, hostOf(u), success)
		telemetry.GetMetrics().RecordPush(ctx, u, success, time.Since(start).Seconds())
		if success {
			result.Success = true
			result.UsedURL = u
			result.Attempts = append(result.Attempts, Attempt{URL: u, Success: true})
			return result
		}
		result.Attempts = append(result.Attempts, Attempt{URL: u, Success: false, Error: err.Error()})
		if isAuthClassError(err) {
			break
		}
	}
	return result
}

func filterPseudo(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !isPseudoURL(u) {
			out = append(out, u)
		}
	}
	return out
}

func hostOf(url string) string {
	u := url
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.IndexAny(u, "/:"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "@"); i >= 0 {
		u = u[i+1:]
	}
	return u
}

// MultiWriteResult is withMultiWrite's return shape.
type MultiWriteResult struct {
	Success        bool
	PartialSuccess bool
	SuccessCount   int
	FailureCount   int
	Results        []Attempt // sorted by URL for a stable summary
}

// WithMultiWrite runs op against every non-pseudo URL concurrently and
// reports a stable, URL-sorted per-remote summary. The overall operation
// succeeds (no error returned to the caller) even on partial failure —
// interpreting PartialSuccess is left to the caller.
func WithMultiWrite(ctx context.Context, urls []string, op PushOp) *MultiWriteResult {
	targets := filterPseudo(urls)
	results := make([]Attempt, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range targets {
		i, u := i, u
		g.Go(func() error {
			err := op(gctx, u)
			if err != nil {
				results[i] = Attempt{URL: u, Success: false, Error: err.Error()}
			} else {
				results[i] = Attempt{URL: u, Success: true}
			}
			return nil // never abort siblings; each URL's outcome is independent
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].URL < results[b].URL })

	out := &MultiWriteResult{Results: results}
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	out.Success = out.FailureCount == 0 && out.SuccessCount > 0
	out.PartialSuccess = out.SuccessCount > 0 && out.FailureCount > 0
	return out
}

// PushViaBackend adapts a gitbackend.GitBackend into a PushOp bound to a
// fixed dir/refspec/auth, for the common case of pushing the same local
// ref to several candidate remote URLs.
func PushViaBackend(backend gitbackend.GitBackend, dir, refspec string, auth *gitbackend.AuthCredential) PushOp {
	return func(ctx context.Context, url string) error {
		return backend.Push(ctx, gitbackend.PushOptions{
			Dir:     dir,
			URL:     url,
			Refspec: refspec,
			Auth:    auth,
		})
	}
}
