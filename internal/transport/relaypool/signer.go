package relaypool

import (
	"context"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// KeySigner signs events with a raw private key held in memory. Accepts
// either a bech32 nsec or a hex-encoded private key.
type KeySigner struct {
	privateKeyHex string
	publicKeyHex  string
}

// NewKeySigner decodes key (nsec1... or hex) and derives its public key.
func NewKeySigner(key string) (*KeySigner, error) {
	sk := key
	if strings.HasPrefix(key, "nsec1") {
		prefix, value, err := nip19.Decode(key)
		if err != nil || prefix != "nsec" {
			return nil, nerrors.ErrInvalidInput("invalid nsec key")
		}
		decoded, ok := value.(string)
		if !ok {
			return nil, nerrors.ErrInvalidInput("invalid nsec key")
		}
		sk = decoded
	}

	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.InvalidInput, "derive public key", err)
	}

	return &KeySigner{privateKeyHex: sk, publicKeyHex: pk}, nil
}

// Sign returns a copy of unsigned with ID, PubKey, and Sig populated.
func (s *KeySigner) Sign(ctx context.Context, unsigned *nostr.Event) (*nostr.Event, error) {
	signed := *unsigned
	signed.PubKey = s.publicKeyHex
	if err := signed.Sign(s.privateKeyHex); err != nil {
		return nil, nerrors.Wrap(nerrors.Unknown, "sign event", err)
	}
	return &signed, nil
}

// PublicKey returns the signer's hex-encoded public key.
func (s *KeySigner) PublicKey(ctx context.Context) (string, error) {
	return s.publicKeyHex, nil
}
