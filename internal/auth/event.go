package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind is the fixed kind discriminator for blob authorization events.
const EventKind = 24242

// Scheme is the Authorization header scheme prefix carrying a signed event.
const Scheme = "Nostr"

// Event is the signed authorization envelope carried in the Authorization
// header. It is constructed per request, validated, and discarded.
type Event struct {
	ID        string     `json:"id,omitempty"`
	PubKey    string     `json:"pubkey"`
	Kind      int        `json:"kind"`
	CreatedAt int64      `json:"created_at"`
	Content   string     `json:"content,omitempty"`
	Tags      [][]string `json:"tags,omitempty"`
	Sig       string     `json:"sig"`
}

// ParseHeader decodes an Authorization header value into an Event.
// The value must be the scheme prefix followed by base64-encoded JSON.
func ParseHeader(value string) (*Event, error) {
	value = strings.TrimSpace(value)
	payload, ok := strings.CutPrefix(value, Scheme+" ")
	if !ok {
		return nil, fmt.Errorf("%w: expected %s scheme", ErrMalformedCredential, Scheme)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload", ErrMalformedCredential)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: bad event JSON", ErrMalformedCredential)
	}
	return &ev, nil
}

// Encode serializes the event for transport in an Authorization header.
func (e *Event) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return Scheme + " " + base64.StdEncoding.EncodeToString(raw), nil
}
