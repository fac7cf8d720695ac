package pushcoord

import (
	"context"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/ssh"
	"golang.org/x/oauth2"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// TokenCredential is one candidate credential for a host, tried in order
// by tryPushWithTokens until one works.
type TokenCredential struct {
	Host     string // exact host or suffix, e.g. "github.com" matches "ghe.github.com"
	Username string
	Token    string
}

// AuthConfig holds the per-host credentials for push/fetch: tokens, an
// OAuth2 source and an SSH key, which TryPushWithTokens tries in that order.
type AuthConfig struct {
	Tokens         []TokenCredential
	KeyringService string
	SSHPrivateKey  []byte // PEM, used when no token matches and the URL is SSH-form
	OAuthSource    oauth2.TokenSource
}

// SelectToken returns the first configured token whose host matches the
// URL's host (exact or as a parent domain), per the "host equals or is a
// subdomain of" rule.
func (a *AuthConfig) SelectToken(url string) (TokenCredential, bool) {
	host := hostOf(url)
	for _, c := range a.Tokens {
		if host == c.Host || strings.HasSuffix(host, "."+c.Host) {
			return c, true
		}
	}
	return TokenCredential{}, false
}

// ResolveFromKeyring looks up a token for host/username from the OS
// keyring. TryPushWithTokens does not call it: a Tokens entry's Token is
// used directly as the password.
func (a *AuthConfig) ResolveFromKeyring(host, username string) (string, error) {
	secret, err := keyring.Get(a.KeyringService, host+":"+username)
	if err != nil {
		return "", nerrors.Wrap(nerrors.AuthRequired, "resolve credential from keyring", err)
	}
	return secret, nil
}

// BuildCredential turns a token into the AuthCredential shape GitBackend
// expects for an HTTPS push/fetch.
func BuildCredential(username, token string) *gitbackend.AuthCredential {
	return &gitbackend.AuthCredential{Username: username, Password: token}
}

// BuildSSHCredential parses an SSH private key (optionally passphrase
// protected) into the PEM form GitBackend forwards to its SSH transport.
func BuildSSHCredential(pemBytes, passphrase []byte) (*gitbackend.AuthCredential, error) {
	var signer ssh.Signer
	var err error
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, nerrors.Wrap(nerrors.AuthRequired, "parse ssh private key", err)
	}
	_ = signer // validated parseable; GitBackend's SSH transport re-parses the PEM itself
	return &gitbackend.AuthCredential{SSHKeyPEM: pemBytes}, nil
}

// TryPushWithTokens calls op with each candidate credential until one
// succeeds: every a.Tokens entry whose host matches the URL, then the OAuth2
// source (if set), then the SSH key (if set). It returns an "all tokens
// failed" error if every attempt fails.
func TryPushWithTokens(ctx context.Context, a *AuthConfig, url string, op func(ctx context.Context, cred *gitbackend.AuthCredential) error) error {
	var lastErr error
	tried := 0

	host := hostOf(url)
	for _, cred := range a.Tokens {
		if host != cred.Host && !strings.HasSuffix(host, "."+cred.Host) {
			continue
		}
		tried++
		if err := op(ctx, BuildCredential(cred.Username, cred.Token)); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if a.OAuthSource != nil {
		if tok, err := a.OAuthSource.Token(); err == nil {
			tried++
			if err := op(ctx, BuildCredential("oauth2", tok.AccessToken)); err == nil {
				return nil
			} else {
				lastErr = err
			}
		}
	}

	if len(a.SSHPrivateKey) > 0 {
		cred, err := BuildSSHCredential(a.SSHPrivateKey, nil)
		if err == nil {
			tried++
			if err := op(ctx, cred); err == nil {
				return nil
			} else {
				lastErr = err
			}
		}
	}

	if tried == 0 {
		return nerrors.ErrAuthRequired("no credentials configured for " + hostOf(url))
	}
	return nerrors.Wrap(nerrors.AuthRequired, "all tokens failed", lastErr)
}
