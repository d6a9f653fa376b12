package server

import (
	"fmt"
	"mime"
	"regexp"
	"strings"
)

var (
	hashRegex   = regexp.MustCompile(`^[0-9a-f]{64}$`)
	pubkeyRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

func validateHash(hash string) bool {
	return hashRegex.MatchString(hash)
}

func validatePubKey(pubkey string) bool {
	return pubkeyRegex.MatchString(pubkey)
}

// stripBlobExtension drops an optional file extension from a blob path
// segment, so both "abc…def" and "abc…def.png" address the same blob.
func stripBlobExtension(segment string) string {
	if idx := strings.IndexByte(segment, '.'); idx >= 0 {
		return segment[:idx]
	}
	return segment
}

func requireBlobHash(segment string) (string, error) {
	hash := stripBlobExtension(strings.TrimSpace(segment))
	if !validateHash(hash) {
		return "", badRequestCode(fmt.Errorf("invalid blob hash"), ErrCodeInvalidHash)
	}
	return hash, nil
}

func requirePubKey(segment string) (string, error) {
	pubkey := strings.ToLower(strings.TrimSpace(segment))
	if !validatePubKey(pubkey) {
		return "", badRequestCode(fmt.Errorf("invalid pubkey"), ErrCodeInvalidPubKey)
	}
	return pubkey, nil
}

func normalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", badRequest(fmt.Errorf("invalid media type"))
	}
	return strings.ToLower(strings.TrimSpace(parsed)), nil
}
