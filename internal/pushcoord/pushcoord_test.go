package pushcoord

import (
	"context"
	"errors"
	"testing"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

type fakePrefs struct {
	preferred map[string]string
	failed    map[string]bool
}

func (f *fakePrefs) PreferredURL(repoAddr string) (string, bool) {
	u, ok := f.preferred[repoAddr]
	return u, ok
}

func (f *fakePrefs) RecentlyFailed(repoAddr, url string) bool {
	return f.failed[repoAddr+"|"+url]
}

func TestWithUrlFallbackSkipsPseudoURLs(t *testing.T) {
	var tried []string
	result := WithUrlFallback(context.Background(), "addr", []string{"nostr:abcd", "https://github.com/acme/widgets.git"}, nil, func(ctx context.Context, url string) error {
		tried = append(tried, url)
		return nil
	})
	if len(tried) != 1 || tried[0] != "https://github.com/acme/widgets.git" {
		t.Errorf("expected only the real URL to be tried, got %v", tried)
	}
	if !result.Success || result.UsedURL != "https://github.com/acme/widgets.git" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestWithUrlFallbackStopsOnAuthError(t *testing.T) {
	var tried []string
	result := WithUrlFallback(context.Background(), "addr", []string{"https://a.example.com/r.git", "https://b.example.com/r.git"}, nil, func(ctx context.Context, url string) error {
		tried = append(tried, url)
		return nerrors.ErrAuthRequired("bad token")
	})
	if len(tried) != 1 {
		t.Errorf("expected fallback to stop after first auth-class failure, tried %v", tried)
	}
	if result.Success {
		t.Error("expected overall failure")
	}
}

func TestWithUrlFallbackContinuesOnNetworkError(t *testing.T) {
	var tried []string
	result := WithUrlFallback(context.Background(), "addr", []string{"https://a.example.com/r.git", "https://b.example.com/r.git"}, nil, func(ctx context.Context, url string) error {
		tried = append(tried, url)
		if url == "https://a.example.com/r.git" {
			return errors.New("connection reset")
		}
		return nil
	})
	if len(tried) != 2 {
		t.Errorf("expected fallback to continue past network error, tried %v", tried)
	}
	if !result.Success || result.UsedURL != "https://b.example.com/r.git" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestWithUrlFallbackOrdersByPreference(t *testing.T) {
	prefs := &fakePrefs{preferred: map[string]string{"addr": "https://b.example.com/r.git"}}
	var tried []string
	WithUrlFallback(context.Background(), "addr", []string{"https://a.example.com/r.git", "https://b.example.com/r.git"}, prefs, func(ctx context.Context, url string) error {
		tried = append(tried, url)
		return nil
	})
	if tried[0] != "https://b.example.com/r.git" {
		t.Errorf("expected preferred URL tried first, got %v", tried)
	}
}

func TestWithMultiWritePartialSuccess(t *testing.T) {
	result := WithMultiWrite(context.Background(), []string{
		"https://a.example.com/r.git", "https://b.example.com/r.git",
	}, func(ctx context.Context, url string) error {
		if url == "https://a.example.com/r.git" {
			return errors.New("boom")
		}
		return nil
	})
	if !result.PartialSuccess {
		t.Error("expected partial success")
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if result.Results[0].URL != "https://a.example.com/r.git" {
		t.Errorf("expected stable sort by URL, got %+v", result.Results)
	}
}

func TestWithMultiWriteAllSucceed(t *testing.T) {
	result := WithMultiWrite(context.Background(), []string{"https://a.example.com/r.git"}, func(ctx context.Context, url string) error {
		return nil
	})
	if !result.Success || result.PartialSuccess {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSelectTokenMatchesSubdomain(t *testing.T) {
	a := &AuthConfig{Tokens: []TokenCredential{{Host: "github.com", Username: "bot", Token: "t"}}}
	cred, ok := a.SelectToken("https://ghe.github.com/acme/widgets.git")
	if !ok || cred.Token != "t" {
		t.Errorf("expected subdomain match, got %+v ok=%v", cred, ok)
	}
}

func TestTryPushWithTokensFailsClosedWithNoCredentials(t *testing.T) {
	a := &AuthConfig{}
	err := TryPushWithTokens(context.Background(), a, "https://github.com/acme/widgets.git", func(ctx context.Context, cred *gitbackend.AuthCredential) error {
		return nil
	})
	if err == nil {
		t.Error("expected error when no credentials are configured")
	}
}

func TestTryPushWithTokensSucceedsOnMatchingToken(t *testing.T) {
	a := &AuthConfig{Tokens: []TokenCredential{{Host: "github.com", Username: "bot", Token: "tok"}}}
	var gotUsername string
	err := TryPushWithTokens(context.Background(), a, "https://github.com/acme/widgets.git", func(ctx context.Context, cred *gitbackend.AuthCredential) error {
		gotUsername = cred.Username
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUsername != "bot" {
		t.Errorf("expected bot credential to be used, got %q", gotUsername)
	}
}
