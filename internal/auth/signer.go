package auth

import (
	"fmt"
	"strings"
	"time"
)

// EventSigner produces the signature field of an outgoing event. It is the
// client-side counterpart of SignatureVerifier.
type EventSigner interface {
	Sign(ev *Event) error
}

// StaticSigner stamps events with a fixed signature value. It pairs with
// AcceptAllSignatures on the receiving side; servers running a cryptographic
// verifier will reject events signed this way.
type StaticSigner struct {
	Sig string
}

func (s StaticSigner) Sign(ev *Event) error {
	if ev == nil {
		return fmt.Errorf("nil event")
	}
	sig := s.Sig
	if sig == "" {
		sig = strings.Repeat("0", 128)
	}
	ev.Sig = sig
	return nil
}

// NewEvent builds an authorization event for pubkey issued at now. The
// signature is left empty for an EventSigner to fill in.
func NewEvent(pubkey string, now time.Time) *Event {
	return &Event{
		PubKey:    pubkey,
		Kind:      EventKind,
		CreatedAt: now.Unix(),
	}
}
