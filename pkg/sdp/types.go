package sdp

import "github.com/arzzra/rtcengine/pkg/rtcbase"

// MediaSection описывает один m=-блок: один транспортный поток, одно или
// несколько StreamInfo (симулкаст/RTX группируются через ssrc-group).
type MediaSection struct {
	Mid       rtcbase.Mid
	Kind      string // "audio" | "video" | "application"
	Direction rtcbase.Direction
	Streams   []rtcbase.StreamInfo
	// RtxGroup связывает SSRC основного потока с SSRC его RTX-потока для
	// a=ssrc-group:FID.
	RtxGroup map[rtcbase.SSRC]rtcbase.SSRC
	// SimGroup — список SSRC, образующих один a=ssrc-group:SIM (симулкаст
	// на уровне SSRC, а не rid).
	SimGroup []rtcbase.SSRC
}

// SessionParams — сведения сессии, не привязанные к конкретному
// медиа-блоку: транспортные учётные данные ICE и отпечаток сертификата
// DTLS, общие для bundle-группы.
type SessionParams struct {
	IceUfrag    string
	IcePwd      string
	Fingerprint string // "sha-256 AB:CD:..."
	Setup       string // "actpass" | "active" | "passive"
	Candidates  []string
	BundleMids  []rtcbase.Mid
}
