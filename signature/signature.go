package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

/* HMAC validation of webhook notification bodies
 * The provider signs every POST with the app secret and sends the signature
 * as X-Hub-Signature-256: sha256=<hex>
 */

const (
	// Header is the HTTP header carrying the payload signature.
	Header = "X-Hub-Signature-256"

	// scheme is the signature scheme prefix.
	scheme = "sha256="
)

var (
	ErrMissingSignature   = errors.New("missing signature header")
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrMismatch           = errors.New("signature mismatch")
)

// Sign computes the signature header value for a payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return scheme + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature header against the payload. The
// comparison is constant-time.
func Verify(secret string, payload []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, scheme) {
		return ErrMalformedSignature
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(header, scheme))
	if err != nil {
		return fmt.Errorf("%w: invalid hex", ErrMalformedSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrMismatch
	}
	return nil
}
