package auth

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxEventAge is the freshness window applied when none is configured.
const DefaultMaxEventAge = 300 * time.Second

var (
	ErrMissingCredential    = errors.New("authorization event is required")
	ErrMalformedCredential  = errors.New("malformed authorization event")
	ErrWrongCredentialKind  = errors.New("wrong authorization event kind")
	ErrIncompleteCredential = errors.New("incomplete authorization event")
	ErrPubKeyNotAuthorized  = errors.New("pubkey is not authorized")
	ErrCredentialExpired    = errors.New("authorization event expired")
)

// SignatureVerifier checks an event's signature against its claimed pubkey.
//
// The shipped implementation performs no cryptographic verification; the
// claimed pubkey is trusted once the event is structurally valid. Deployments
// that need authenticated identities must plug in a real verifier here.
type SignatureVerifier interface {
	VerifySignature(ev *Event) error
}

// AcceptAllSignatures is the structural-only SignatureVerifier.
type AcceptAllSignatures struct{}

func (AcceptAllSignatures) VerifySignature(*Event) error { return nil }

// Verifier validates authorization events against an allow-list and a
// freshness window and extracts the authenticated pubkey.
type Verifier struct {
	allowed    map[string]struct{}
	maxAge     time.Duration
	signatures SignatureVerifier
	now        func() time.Time
}

// NewVerifier builds a Verifier. An empty allow-list admits every pubkey.
func NewVerifier(allowedPubKeys []string, maxAge time.Duration, signatures SignatureVerifier) *Verifier {
	var allowed map[string]struct{}
	if len(allowedPubKeys) > 0 {
		allowed = make(map[string]struct{}, len(allowedPubKeys))
		for _, pk := range allowedPubKeys {
			allowed[pk] = struct{}{}
		}
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxEventAge
	}
	if signatures == nil {
		signatures = AcceptAllSignatures{}
	}
	return &Verifier{
		allowed:    allowed,
		maxAge:     maxAge,
		signatures: signatures,
		now:        time.Now,
	}
}

// Verify validates the Authorization header value and returns the
// authenticated pubkey. With required false an absent header succeeds with an
// empty pubkey; read paths use that for optional attribution.
func (v *Verifier) Verify(headerValue string, required bool) (string, error) {
	if headerValue == "" {
		if required {
			return "", ErrMissingCredential
		}
		return "", nil
	}

	ev, err := ParseHeader(headerValue)
	if err != nil {
		return "", err
	}
	if ev.Kind != EventKind {
		return "", fmt.Errorf("%w: got %d, want %d", ErrWrongCredentialKind, ev.Kind, EventKind)
	}
	if ev.PubKey == "" || ev.Sig == "" || ev.CreatedAt == 0 {
		return "", ErrIncompleteCredential
	}
	if v.allowed != nil {
		if _, ok := v.allowed[ev.PubKey]; !ok {
			return "", ErrPubKeyNotAuthorized
		}
	}

	// Events dated in the future pass; only staleness is bounded here.
	age := v.now().Unix() - ev.CreatedAt
	if age > int64(v.maxAge/time.Second) {
		return "", fmt.Errorf("%w: created %ds ago", ErrCredentialExpired, age)
	}

	if err := v.signatures.VerifySignature(ev); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	return ev.PubKey, nil
}
