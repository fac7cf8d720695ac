package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"

	"github.com/chebizarro/nostr-git-sub004/internal/facade"
	"github.com/chebizarro/nostr-git-sub004/internal/identity"
	"github.com/chebizarro/nostr-git-sub004/internal/transport/relaypool"
)

var discoverOwnerPubkey string

var discoverCmd = &cobra.Command{
	Use:   "discover <repo-address-or-naddr>",
	Short: "query relays for a repo's announcements and current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOwnerPubkey, "owner", "", "restrict to announcements signed by this hex pubkey (default: any)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pubkeyHex, repoID, ownerPubkey := discoverOwnerPubkey, "", discoverOwnerPubkey
	if identity.IsRepoAddr(args[0]) {
		pk, id, err := identity.ParseRepoAddress(args[0])
		if err != nil {
			return fmt.Errorf("parse repo address: %w", err)
		}
		pubkeyHex, repoID = pk, id
		if ownerPubkey == "" {
			ownerPubkey = pubkeyHex
		}
	} else if prefix, data, err := nip19.Decode(args[0]); err == nil && prefix == "naddr" {
		ptr, ok := data.(nip19.EntityPointer)
		if !ok {
			return fmt.Errorf("decode naddr: unexpected payload")
		}
		repoID = ptr.Identifier
		if ownerPubkey == "" {
			ownerPubkey = ptr.PublicKey
		}
	} else {
		repoID = args[0]
	}

	relays := cfg.Relays.Default
	if cfg.Relays.EnableGrasp {
		relays = append(relays, cfg.Relays.Grasp...)
	}

	pool := relaypool.New()
	defer pool.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	result, err := facade.DiscoverRepo(ctx, pool, relays, ownerPubkey, repoID)
	if err != nil {
		return fmt.Errorf("discover repo: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
