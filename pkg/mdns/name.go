package mdns

import (
	"crypto/rand"
	"fmt"
)

// GenerateLocalName coins a random "<uuid>.local" name used to obfuscate a
// host candidate, per the WebRTC mDNS ICE candidate naming convention
// (a version-4 UUID string, RFC 4122 §4.4). Mirrors the
// crypto/rand-backed generator used for ICE ufrag/pwd — this is one-time
// setup randomness, not a clock read, so it does not violate the
// sans-I/O timing contract.
func GenerateLocalName() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10

	return fmt.Sprintf("%x-%x-%x-%x-%x.local",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
