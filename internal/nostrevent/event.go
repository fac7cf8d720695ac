package nostrevent

import "github.com/nbd-wtf/go-nostr"

// Event is a local alias for the wire envelope so the rest of the package
// (and its callers) don't need to import go-nostr directly for the common
// case. Conversions to/from *nostr.Event are trivial since the field sets
// match exactly.
type Event = nostr.Event

// Tag is a local alias for a single tag ([]string, first element the name).
type Tag = nostr.Tag

// Tags is a local alias for an event's full tag list.
type Tags = nostr.Tags
