// Package eventio declares the signed-event transport surface: querying and
// publishing events against one or more relays. internal/transport/relaypool
// provides a reference implementation; production deployments may swap in
// a different relay pool, a local event store, or a test double.
package eventio

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Filter is a local alias so callers don't need a direct go-nostr import
// just to build a query.
type Filter = nostr.Filter

// PublishResult reports one relay's response to a publish attempt.
type PublishResult struct {
	RelayURL string
	OK       bool
	Err      error
}

// EventIO is the signed-event collaborator: query historical/live events
// and publish new ones, each operation scoped by context for cancellation
// and carrying an explicit relay list so callers control fan-out.
type EventIO interface {
	Query(ctx context.Context, relays []string, filter Filter) ([]*nostr.Event, error)
	Subscribe(ctx context.Context, relays []string, filter Filter) (<-chan *nostr.Event, error)
	Publish(ctx context.Context, relays []string, event *nostr.Event) ([]PublishResult, error)
}

// Signer is the key-material collaborator: turns an unsigned event (as
// produced by internal/nostrevent's Create* functions) into a signed one.
// Kept separate from EventIO so a relay pool implementation never needs
// access to private keys.
type Signer interface {
	Sign(ctx context.Context, unsigned *nostr.Event) (*nostr.Event, error)
	PublicKey(ctx context.Context) (string, error)
}
