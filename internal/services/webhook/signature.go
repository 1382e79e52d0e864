package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// VerifySignature checks the hex HMAC-SHA512 signature of the raw
// payload bytes against the shared secret. The comparison is constant
// time; verification happens before the payload is trusted for anything.
func VerifySignature(secret, payload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
