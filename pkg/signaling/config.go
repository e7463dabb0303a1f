package signaling

import (
	"github.com/pion/logging"
)

// IceServer описывает один STUN/TURN сервер, переданный приложением.
// Gathering самих relay-кандидатов остаётся host-у (network I/O — явный
// non-goal); PeerConnection хранит конфигурацию только для того, чтобы
// вернуть её через ICE-restart и для отчётности.
type IceServer struct {
	URLs       []string
	Username   string
	Credential string
}

// BundlePolicy согласно W3C RTCBundlePolicy.
type BundlePolicy int

const (
	BundlePolicyBalanced BundlePolicy = iota
	BundlePolicyMaxCompat
	BundlePolicyMaxBundle
)

// Certificate — идентичность DTLS: ключевая пара плюс самоподписанный
// сертификат и его отпечаток, выставляемый в a=fingerprint. Генерация —
// см. certificate.go.
type Certificate struct {
	Fingerprint          string // "sha-256 AB:CD:..."
	FingerprintAlgorithm string
	PrivateKeyPEM        []byte
	CertificatePEM       []byte
}

// Configuration — аналог teacher-овского BuilderConfig
// (pkg/media_sdp/config.go): один неизменяемый слепок настроек,
// валидируемый целиком в NewPeerConnection, а не разбросанный по
// отдельным сеттерам.
type Configuration struct {
	IceServers       []IceServer
	BundlePolicy     BundlePolicy
	IceCandidatePoolSize int
	Certificates     []Certificate

	// Controlling определяет ICE-роль (controlling/controlled) и сторону
	// DTLS (client/server) — в offer/answer моделях они совпадают:
	// offerer is controlling+client.
	Controlling bool

	Logger logging.LeveledLogger
}

// DefaultConfiguration возвращает конфигурацию без ICE-серверов и с
// нулевым логгером (молчание), аналог teacher-овского
// DefaultBuilderConfig.
func DefaultConfiguration() Configuration {
	return Configuration{
		BundlePolicy: BundlePolicyMaxBundle,
		Controlling:  true,
	}
}

// Validate проверяет конфигурацию перед тем, как она станет частью
// PeerConnection — ошибки параметров должны быть видны в момент создания,
// а не на первом create_offer.
func (c Configuration) Validate() error {
	for _, srv := range c.IceServers {
		if len(srv.URLs) == 0 {
			return errInvalidParameter("ice server entry has no urls")
		}
	}
	if c.IceCandidatePoolSize < 0 {
		return errInvalidParameter("ice candidate pool size must be >= 0")
	}
	return nil
}

func (c Configuration) logger() logging.LeveledLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.NewDefaultLoggerFactory().NewLogger("rtcengine")
}
