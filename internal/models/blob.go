package models

import "time"

// Blob is one stored content-addressed object together with the metadata
// attached to it in the object store. All fields are fixed at admission time.
type Blob struct {
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	MediaType string    `json:"media_type,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Uploaded  time.Time `json:"uploaded"`
	Expires   time.Time `json:"expires"`
}

// Expired reports whether the blob's retention window has passed at now.
// A zero Expires means the stored object carries no expiry and never expires.
func (b Blob) Expired(now time.Time) bool {
	if b.Expires.IsZero() {
		return false
	}
	return now.After(b.Expires)
}

// OwnedBy reports whether pubkey is the identity recorded at admission.
func (b Blob) OwnedBy(pubkey string) bool {
	return b.Owner != "" && b.Owner == pubkey
}
