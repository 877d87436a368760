package service

import (
	"crypto/hmac"
	"crypto/sha512"
)

// SignatureSize is the HMAC-SHA384 output length in bytes.
const SignatureSize = sha512.Size384

// Sign returns HMAC-SHA384(key, payload).
func Sign(key, payload []byte) []byte {
	mac := hmac.New(sha512.New384, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Verify reports whether signature is the HMAC-SHA384 of payload under key, in
// constant time.
func Verify(key, payload, signature []byte) bool {
	return hmac.Equal(Sign(key, payload), signature)
}
