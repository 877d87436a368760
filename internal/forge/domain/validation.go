package domain

// Reason explains why an envelope was rejected. An envelope that cannot be decoded
// under the declared scheme is a bad signature.
type Reason string

const (
	ReasonUnknownProvider Reason = "unknown_provider"
	ReasonBadSignature    Reason = "bad_signature"
	ReasonUnknownKeyEpoch Reason = "unknown_key_epoch"
	ReasonExpired         Reason = "expired"
)

// ValidationResult is the outcome of validating an envelope. Payload is set whenever
// the token decoded, including for signature and expiry rejections.
type ValidationResult struct {
	Valid   bool
	Reason  Reason
	Payload *Payload
	Epoch   uint64
}

// Rejected builds a failed result.
func Rejected(reason Reason, payload *Payload) ValidationResult {
	return ValidationResult{Reason: reason, Payload: payload}
}
