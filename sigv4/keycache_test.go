package sigv4

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	// Derivation example from the AWS SigV4 documentation.
	// https://docs.aws.amazon.com/IAM/latest/UserGuide/create-signed-request.html#derive-signing-key
	got := deriveKey("wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", "20120215", "us-east-1", "iam")
	want := "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d"
	if hex.EncodeToString(got) != want {
		t.Errorf("signing key mismatch, got=%s, want=%s", hex.EncodeToString(got), want)
	}
}

func TestKeyCache(t *testing.T) {
	c := NewKeyCache()
	if got, want := c.Len(), 0; got != want {
		t.Fatalf("Len mismatch, got=%d, want=%d", got, want)
	}
	if _, ok := c.Get("secret", "20130524", "us-east-1", "s3"); ok {
		t.Fatal("Get returned a key from an empty cache")
	}

	key := deriveKey("secret", "20130524", "us-east-1", "s3")
	c.Put("secret", "20130524", "us-east-1", "s3", key)
	if got, want := c.Len(), 1; got != want {
		t.Fatalf("Len mismatch, got=%d, want=%d", got, want)
	}
	cached, ok := c.Get("secret", "20130524", "us-east-1", "s3")
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if !bytes.Equal(cached, key) {
		t.Errorf("key mismatch, got=%x, want=%x", cached, key)
	}

	// A rotated secret scopes to its own entry.
	c.Put("rotated", "20130524", "us-east-1", "s3", deriveKey("rotated", "20130524", "us-east-1", "s3"))
	if got, want := c.Len(), 2; got != want {
		t.Errorf("Len mismatch, got=%d, want=%d", got, want)
	}
	if _, ok := c.Get("secret", "20130525", "us-east-1", "s3"); ok {
		t.Error("Get hit across dates")
	}
}
