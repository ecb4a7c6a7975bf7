// Package etag turns an item's internal revision counter into the opaque
// token exposed to HTTP callers as an ETag, and validates presented tokens.
package etag

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedToken is returned when a presented token was never produced
// by Encode.
var ErrMalformedToken = errors.New("malformed version token")

const prefix = "v"

// Encode returns the token for a revision. Deterministic: one token per
// version value, so a replayed token identifies exactly the state it was
// read from.
func Encode(version int64) string {
	return prefix + strconv.FormatInt(version, 10)
}

// Decode parses a token back into its revision number
func Decode(token string) (int64, error) {
	raw, ok := strings.CutPrefix(token, prefix)
	if !ok || raw == "" {
		return 0, ErrMalformedToken
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 1 {
		return 0, ErrMalformedToken
	}
	// Reject forms like "v01" that would alias another token.
	if Encode(version) != token {
		return 0, ErrMalformedToken
	}
	return version, nil
}

// Matches reports whether token identifies currentVersion. A malformed
// token never matches; the caller distinguishes that case via Decode.
func Matches(token string, currentVersion int64) bool {
	version, err := Decode(token)
	if err != nil {
		return false
	}
	return version == currentVersion
}
