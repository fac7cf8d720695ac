package relaypool

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

// A fixed test private key (hex), not used for anything but this test.
const testPrivHex = "5ee1c8000ab28edd64d74a7d951b27ce3a2ca3c10a5c5b04ded5e7c5bb3fe2a9"

func TestNewKeySignerAcceptsHexKey(t *testing.T) {
	s, err := NewKeySigner(testPrivHex)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	if s.publicKeyHex == "" {
		t.Fatal("expected a derived public key")
	}
}

func TestNewKeySignerRejectsInvalidNsec(t *testing.T) {
	_, err := NewKeySigner("nsec1notvalid")
	if err == nil {
		t.Fatal("expected an error for a malformed nsec")
	}
}

func TestSignPopulatesIDPubKeyAndSig(t *testing.T) {
	s, err := NewKeySigner(testPrivHex)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}

	unsigned := &nostr.Event{Kind: 1, Content: "hello", CreatedAt: nostr.Now()}
	signed, err := s.Sign(context.Background(), unsigned)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.ID == "" || signed.Sig == "" {
		t.Fatal("expected ID and Sig to be populated")
	}
	if signed.PubKey != s.publicKeyHex {
		t.Errorf("expected PubKey %s, got %s", s.publicKeyHex, signed.PubKey)
	}

	pk, err := s.PublicKey(context.Background())
	if err != nil || pk != s.publicKeyHex {
		t.Errorf("PublicKey mismatch: %v %v", pk, err)
	}
}
