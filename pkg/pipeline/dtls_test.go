package pipeline

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func newDtlsTestCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "dtls-test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func newTestDtlsHandler(t *testing.T, client bool) (*Dtls, tls.Certificate) {
	t.Helper()
	cert := newDtlsTestCert(t)
	cfg := &dtls.Config{Certificates: []tls.Certificate{cert}}
	return NewDtls(client, cfg, ""), cert
}

// driveDtls feeds every pending write of src into dst's HandleRead — the
// same scripted-loopback shape sctp_test.go's drive uses for association
// endpoints that only ever talk to each other.
func driveDtls(t *testing.T, src, dst *Dtls) {
	t.Helper()
	for {
		msg, ok := src.PollWrite()
		if !ok {
			return
		}
		require.NoError(t, dst.HandleRead(msg))
	}
}

func connectIce(t *testing.T, d *Dtls) {
	t.Helper()
	require.NoError(t, d.HandleEvent(Event{Kind: EventIceConnectionStateChange, IceConnectionState: rtcbase.IceConnectionConnected}))
}

func TestDtlsFullHandshakeReachesConnectedAndExportsMatchingSrtpKeys(t *testing.T) {
	client, _ := newTestDtlsHandler(t, true)
	server, serverCert := newTestDtlsHandler(t, false)
	client.SetRemoteFingerprint(rtcbase.CertificateFingerprintSHA256(serverCert.Certificate[0]))

	connectIce(t, client)
	connectIce(t, server)
	assert.Equal(t, rtcbase.DtlsConnecting, client.state)
	assert.Equal(t, rtcbase.DtlsConnecting, server.state)

	driveDtls(t, client, server) // flight 1: ClientHello
	assert.True(t, server.started)

	driveDtls(t, server, client) // flight 2: ServerHello, Certificate, ServerHelloDone
	assert.True(t, client.haveServerHello)
	assert.True(t, client.haveCertificate)

	driveDtls(t, client, server) // flight 3: ClientKeyExchange, Finished
	assert.Equal(t, rtcbase.DtlsConnected, server.state)

	driveDtls(t, server, client) // flight 4: server's Finished
	assert.Equal(t, rtcbase.DtlsConnected, client.state)

	var clientKeying, serverKeying *SrtpKeyingMaterial
	for {
		evt, ok := client.PollEvent()
		if !ok {
			break
		}
		if evt.Kind == EventDtlsSrtpKeysReady {
			clientKeying = evt.Keying
		}
	}
	for {
		evt, ok := server.PollEvent()
		if !ok {
			break
		}
		if evt.Kind == EventDtlsSrtpKeysReady {
			serverKeying = evt.Keying
		}
	}
	require.NotNil(t, clientKeying)
	require.NotNil(t, serverKeying)
	assert.Equal(t, clientKeying.LocalMasterKey, serverKeying.RemoteMasterKey)
	assert.Equal(t, clientKeying.RemoteMasterKey, serverKeying.LocalMasterKey)
	assert.Equal(t, clientKeying.LocalMasterSalt, serverKeying.RemoteMasterSalt)
	assert.Equal(t, clientKeying.RemoteMasterSalt, serverKeying.LocalMasterSalt)
	assert.Len(t, clientKeying.LocalMasterKey, srtpMasterKeyLen)
	assert.Len(t, clientKeying.LocalMasterSalt, srtpMasterSaltLen)
}

func TestDtlsFingerprintMismatchFailsConnection(t *testing.T) {
	client, _ := newTestDtlsHandler(t, true)
	server, _ := newTestDtlsHandler(t, false)
	client.SetRemoteFingerprint("00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:EE:FF")

	connectIce(t, client)
	connectIce(t, server)

	driveDtls(t, client, server)
	driveDtls(t, server, client)

	assert.Equal(t, rtcbase.DtlsFailed, client.state)

	var sawFailure bool
	for {
		evt, ok := client.PollEvent()
		if !ok {
			break
		}
		if evt.Kind == EventSecurityFailure {
			sawFailure = true
			assert.Equal(t, rtcbase.ErrSecurity, rtcbase.CategoryOf(evt.Err))
		}
	}
	assert.True(t, sawFailure)

	_, ok := client.PollWrite()
	assert.False(t, ok, "a failed handshake must not keep producing flights")
}

func TestDtlsRetransmitsFlightOnTimeoutWithExponentialBackoff(t *testing.T) {
	client, _ := newTestDtlsHandler(t, true)
	connectIce(t, client)

	first, ok := client.PollWrite()
	require.True(t, ok)

	_, armed := client.PollTimeout()
	assert.False(t, armed, "deadline lazily arms on the next HandleTimeout call")

	start := time.Unix(1000, 0)
	client.HandleTimeout(start)
	deadline, armed := client.PollTimeout()
	require.True(t, armed)
	assert.Equal(t, start.Add(1*time.Second), deadline)

	client.HandleTimeout(start.Add(500 * time.Millisecond))
	_, ok = client.PollWrite()
	assert.False(t, ok, "must not resend before the deadline")

	client.HandleTimeout(start.Add(1500 * time.Millisecond))
	second, ok := client.PollWrite()
	require.True(t, ok)
	assert.Equal(t, first.Raw, second.Raw)

	deadline, _ = client.PollTimeout()
	assert.Equal(t, start.Add(1500*time.Millisecond).Add(2*time.Second), deadline)
}

func TestDtlsDropsApplicationDataBeforeHandshakeCompletes(t *testing.T) {
	d, _ := newTestDtlsHandler(t, true)
	require.NoError(t, d.HandleWrite(PipelineMessage{Kind: MsgSctpRaw, Raw: []byte("too early")}))
	_, ok := d.PollWrite()
	assert.False(t, ok)
}

func TestDtlsWrapsAndUnwrapsApplicationDataAfterConnected(t *testing.T) {
	client, _ := newTestDtlsHandler(t, true)
	server, serverCert := newTestDtlsHandler(t, false)
	client.SetRemoteFingerprint(rtcbase.CertificateFingerprintSHA256(serverCert.Certificate[0]))

	connectIce(t, client)
	connectIce(t, server)
	driveDtls(t, client, server)
	driveDtls(t, server, client)
	driveDtls(t, client, server)
	driveDtls(t, server, client)
	require.Equal(t, rtcbase.DtlsConnected, client.state)
	require.Equal(t, rtcbase.DtlsConnected, server.state)

	require.NoError(t, client.HandleWrite(PipelineMessage{Kind: MsgSctpRaw, Raw: []byte("sctp-association-bytes")}))
	wrapped, ok := client.PollWrite()
	require.True(t, ok)
	assert.Equal(t, MsgDtlsRaw, wrapped.Kind)

	require.NoError(t, server.HandleRead(wrapped))
	unwrapped, ok := server.PollRead()
	require.True(t, ok)
	assert.Equal(t, MsgSctpRaw, unwrapped.Kind)
	assert.Equal(t, []byte("sctp-association-bytes"), unwrapped.Raw)
}

func TestDtlsCloseStopsFurtherOutput(t *testing.T) {
	d, _ := newTestDtlsHandler(t, true)
	connectIce(t, d)
	_, _ = d.PollWrite()

	require.NoError(t, d.Close())
	assert.Equal(t, rtcbase.DtlsClosed, d.state)

	appDataRecord := encodeDtlsRecord(dtlsContentApplicationData, 0, 0, []byte("x"))
	require.NoError(t, d.HandleRead(PipelineMessage{Kind: MsgDtlsRaw, Raw: appDataRecord}))
	_, ok := d.PollRead()
	assert.False(t, ok)

	_, ok = d.PollTimeout()
	assert.False(t, ok)
}
