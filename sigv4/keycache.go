package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
)

// signingKeyID identifies one derived signing key. The secret participates
// so rotated credentials never reuse a stale key.
type signingKeyID struct {
	secret  string
	date    string
	region  string
	service string
}

// KeyCache memoizes derived signing keys by (secret, date, region, service).
// It is not safe for concurrent use: a signer owns and mutates its cache in
// place, and callers sharing one across goroutines must synchronize access
// themselves.
type KeyCache struct {
	keys map[signingKeyID][]byte
}

// NewKeyCache returns an empty cache. Passing one cache to several signers
// via WithKeyCache amortizes key derivation across requests that share a
// date, region and service.
func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[signingKeyID][]byte)}
}

// Get returns the cached signing key for the scope, if present.
func (c *KeyCache) Get(secret, date, region, service string) ([]byte, bool) {
	key, ok := c.keys[signingKeyID{secret, date, region, service}]
	return key, ok
}

// Put stores a signing key for the scope, replacing any previous entry.
func (c *KeyCache) Put(secret, date, region, service string, key []byte) {
	c.keys[signingKeyID{secret, date, region, service}] = key
}

// Len reports the number of cached keys.
func (c *KeyCache) Len() int {
	return len(c.keys)
}

// deriveKey runs the SigV4 key-derivation chain:
// HMAC("AWS4"+secret, date) -> region -> service -> "aws4_request".
// https://docs.aws.amazon.com/IAM/latest/UserGuide/create-signed-request.html#derive-signing-key
func deriveKey(secret, date, region, service string) []byte {
	key := hmacSHA256([]byte("AWS4"+secret), date)
	key = hmacSHA256(key, region)
	key = hmacSHA256(key, service)
	return hmacSHA256(key, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// signingKey returns the signing key for the scope, deriving and caching it
// on first use.
func (s *Signer) signingKey(date, region, service string) []byte {
	secret := s.credentials.SecretAccessKey
	if key, ok := s.cache.Get(secret, date, region, service); ok {
		return key
	}
	key := deriveKey(secret, date, region, service)
	s.cache.Put(secret, date, region, service, key)
	return key
}
