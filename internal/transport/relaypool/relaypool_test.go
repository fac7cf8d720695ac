package relaypool

import (
	"context"
	"testing"

	"github.com/chebizarro/nostr-git-sub004/internal/eventio"
)

func TestQueryRejectsEmptyRelayList(t *testing.T) {
	p := New()
	_, err := p.Query(context.Background(), nil, eventio.Filter{})
	if err == nil {
		t.Fatal("expected an error for an empty relay list")
	}
}

func TestSubscribeRejectsEmptyRelayList(t *testing.T) {
	p := New()
	_, err := p.Subscribe(context.Background(), nil, eventio.Filter{})
	if err == nil {
		t.Fatal("expected an error for an empty relay list")
	}
}

func TestPublishRejectsEmptyRelayList(t *testing.T) {
	p := New()
	_, err := p.Publish(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected an error for an empty relay list")
	}
}

func TestCloseOnFreshPoolIsNoop(t *testing.T) {
	p := New()
	p.Close() // must not panic with no cached connections
}
