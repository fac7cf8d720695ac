// Package relaypool is the reference EventIO implementation: a connection
// pool of relays queried/published to directly, with per-relay connections
// cached and reused across calls.
package relaypool

import (
	"context"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/chebizarro/nostr-git-sub004/internal/eventio"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
	"go.uber.org/zap"
)

// Pool caches live relay connections and implements eventio.EventIO over
// them. Safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	relays map[string]*nostr.Relay
}

// New returns an empty pool. Connections are established lazily on first use.
func New() *Pool {
	return &Pool{relays: make(map[string]*nostr.Relay)}
}

// ensureRelay returns a connected relay for url, reusing a cached
// connection when the previous one is still alive.
func (p *Pool) ensureRelay(ctx context.Context, url string) (*nostr.Relay, error) {
	p.mu.Lock()
	if r, ok := p.relays[url]; ok && r.IsConnected() {
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "connect to relay "+url, err)
	}

	p.mu.Lock()
	p.relays[url] = r
	p.mu.Unlock()
	return r, nil
}

// Query fans out filter to every relay in relays and returns the union of
// results, deduplicated by event ID. A relay that fails to connect or
// query is logged and skipped rather than failing the whole call.
func (p *Pool) Query(ctx context.Context, relays []string, filter eventio.Filter) ([]*nostr.Event, error) {
	if len(relays) == 0 {
		return nil, nerrors.ErrInvalidInput("query requires at least one relay")
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var results []*nostr.Event

	var wg sync.WaitGroup
	for _, url := range relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			r, err := p.ensureRelay(ctx, url)
			if err != nil {
				logger.Warn("relaypool query: relay unavailable", zap.String("relay", url), zap.Error(err))
				return
			}
			events, err := r.QuerySync(ctx, filter)
			if err != nil {
				logger.Warn("relaypool query failed", zap.String("relay", url), zap.Error(err))
				return
			}
			mu.Lock()
			for _, e := range events {
				if !seen[e.ID] {
					seen[e.ID] = true
					results = append(results, e)
				}
			}
			mu.Unlock()
		}(url)
	}
	wg.Wait()

	return results, nil
}

// Subscribe opens a live subscription on every relay in relays and merges
// their event streams into a single channel, closed once every relay
// subscription ends or ctx is cancelled.
func (p *Pool) Subscribe(ctx context.Context, relays []string, filter eventio.Filter) (<-chan *nostr.Event, error) {
	if len(relays) == 0 {
		return nil, nerrors.ErrInvalidInput("subscribe requires at least one relay")
	}

	out := make(chan *nostr.Event)
	var wg sync.WaitGroup

	for _, url := range relays {
		r, err := p.ensureRelay(ctx, url)
		if err != nil {
			logger.Warn("relaypool subscribe: relay unavailable", zap.String("relay", url), zap.Error(err))
			continue
		}
		sub, err := r.Subscribe(ctx, nostr.Filters{filter})
		if err != nil {
			logger.Warn("relaypool subscribe failed", zap.String("relay", url), zap.Error(err))
			continue
		}

		wg.Add(1)
		go func(sub *nostr.Subscription) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-sub.Events:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(sub)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Publish sends event to every relay in relays concurrently and reports a
// PublishResult per relay. Overall error is only non-nil when relays is empty.
func (p *Pool) Publish(ctx context.Context, relays []string, event *nostr.Event) ([]eventio.PublishResult, error) {
	if len(relays) == 0 {
		return nil, nerrors.ErrInvalidInput("publish requires at least one relay")
	}

	results := make([]eventio.PublishResult, len(relays))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range relays {
		i, url := i, url
		g.Go(func() error {
			r, err := p.ensureRelay(gctx, url)
			if err != nil {
				results[i] = eventio.PublishResult{RelayURL: url, OK: false, Err: err}
				return nil
			}
			if err := r.Publish(gctx, *event); err != nil {
				results[i] = eventio.PublishResult{RelayURL: url, OK: false, Err: err}
				return nil
			}
			results[i] = eventio.PublishResult{RelayURL: url, OK: true}
			return nil
		})
	}
	_ = g.Wait() // individual failures are captured per-result, never aborts the batch
	return results, nil
}

// Close disconnects every cached relay connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, r := range p.relays {
		if err := r.Close(); err != nil {
			logger.Debug("relaypool close", zap.String("relay", url), zap.Error(err))
		}
	}
	p.relays = make(map[string]*nostr.Relay)
}
