package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chebizarro/nostr-git-sub004/internal/eventio"
	"github.com/chebizarro/nostr-git-sub004/internal/facade"
	"github.com/chebizarro/nostr-git-sub004/internal/identity"
	"github.com/chebizarro/nostr-git-sub004/internal/nostrevent"
	"github.com/chebizarro/nostr-git-sub004/internal/transport/relaypool"
)

var threadCmd = &cobra.Command{
	Use:   "thread <issue-or-pr-event-id>",
	Short: "assemble a comment/status thread and resolve its effective labels",
	Args:  cobra.ExactArgs(1),
	RunE:  runThread,
}

func runThread(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	relays := cfg.Relays.Default
	if cfg.Relays.EnableGrasp {
		relays = append(relays, cfg.Relays.Grasp...)
	}

	pool := relaypool.New()
	defer pool.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	rootEvents, err := pool.Query(ctx, relays, eventio.Filter{IDs: []string{args[0]}})
	if err != nil {
		return fmt.Errorf("query root event: %w", err)
	}
	if len(rootEvents) == 0 {
		return fmt.Errorf("no event found for id %s", args[0])
	}
	root := rootEvents[0]

	maintainers := map[string]bool{}
	if repoAddr := nostrevent.GetTagValue(root.Tags, "a"); repoAddr != "" {
		ownerPubkey, repoID, err := identity.ParseRepoAddress(repoAddr)
		if err == nil {
			repo, err := facade.DiscoverRepo(ctx, pool, relays, ownerPubkey, repoID)
			if err == nil {
				for _, m := range repo.Maintainers {
					maintainers[m] = true
				}
			}
		}
	}

	view, err := facade.GetIssueThread(ctx, pool, relays, root, root.PubKey, maintainers)
	if err != nil {
		return fmt.Errorf("get issue thread: %w", err)
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
