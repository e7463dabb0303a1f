package rtcbase

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// CertificateFingerprintSHA256 formats a DER certificate's SHA-256 digest
// the way SDP's a=fingerprint attribute requires (RFC 8122 §5):
// colon-separated uppercase hex octets. Shared by certificate generation
// (pkg/signaling) and the DTLS layer's remote-fingerprint check
// (pkg/pipeline), so both sides of the comparison are formatted identically.
func CertificateFingerprintSHA256(der []byte) string {
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
