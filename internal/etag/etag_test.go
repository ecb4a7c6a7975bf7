package etag

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, version := range []int64{1, 2, 7, 42, 1<<31 + 5, 1<<62 + 1} {
		token := Encode(version)
		got, err := Decode(token)
		if err != nil {
			t.Fatalf("Decode(%q) returned error: %v", token, err)
		}
		if got != version {
			t.Errorf("Decode(Encode(%d)) = %d, want %d", version, got, version)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	if Encode(17) != Encode(17) {
		t.Error("Encode produced different tokens for the same version")
	}
	if Encode(17) == Encode(18) {
		t.Error("Encode produced the same token for different versions")
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, token := range []string{
		"", "v", "17", "v-3", "v0", "vabc", "v1.5", "v 2", "V2", "v01", "v+1",
	} {
		if _, err := Decode(token); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Decode(%q) = %v, want ErrMalformedToken", token, err)
		}
	}
}

func TestMatches(t *testing.T) {
	token := Encode(3)

	if !Matches(token, 3) {
		t.Errorf("Matches(%q, 3) = false, want true", token)
	}
	if Matches(token, 4) {
		t.Errorf("Matches(%q, 4) = true, want false", token)
	}
	if Matches("garbage", 3) {
		t.Error("Matches accepted a malformed token")
	}
}
