package models

import (
	"testing"
	"time"
)

func TestBlobExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"zero expiry never expires", time.Time{}, false},
		{"future expiry", now.Add(time.Hour), false},
		{"expiry exactly now", now, false},
		{"past expiry", now.Add(-time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blob := Blob{Expires: tc.expires}
			if got := blob.Expired(now); got != tc.want {
				t.Fatalf("Expired = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBlobOwnedBy(t *testing.T) {
	blob := Blob{Owner: "abc"}
	if !blob.OwnedBy("abc") {
		t.Fatal("expected owner match")
	}
	if blob.OwnedBy("def") {
		t.Fatal("expected owner mismatch")
	}

	// An ownerless blob matches nobody, not even an empty identity.
	anonymous := Blob{}
	if anonymous.OwnedBy("") {
		t.Fatal("expected no match for empty identity")
	}
}
