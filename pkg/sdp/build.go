package sdp

import (
	"fmt"
	"strconv"

	"github.com/pion/randutil"
	"github.com/pion/sdp/v3"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// randomOriginID draws an o= session/version id the same way ice.go draws
// ICE credentials and peerconnection.go draws SSRCs: crypto-grade
// randomness, never a clock read — sans-I/O forbids the latter.
func randomOriginID() uint64 {
	v, err := randutil.CryptoUint64()
	if err != nil {
		panic(err)
	}
	return v
}

// Build собирает SessionDescription из секций и параметров сессии.
// isOffer управляет значением a=setup по умолчанию, когда Setup не
// выставлен явно (actpass для offer, active для answer) — RFC 8842 §5.
func Build(isOffer bool, params SessionParams, sections []MediaSection) (*sdp.SessionDescription, error) {
	desc, err := sdp.NewJSEPSessionDescription(false)
	if err != nil {
		return nil, fmt.Errorf("базовый SDP: %w", err)
	}

	version := randomOriginID()
	desc.Origin = sdp.Origin{
		Username:       "-",
		SessionID:      version,
		SessionVersion: version,
		NetworkType:    "IN",
		AddressType:    "IP4",
		UnicastAddress: "0.0.0.0",
	}
	desc.TimeDescriptions = []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}}

	if len(params.BundleMids) > 0 {
		value := "BUNDLE"
		for _, mid := range params.BundleMids {
			value += " " + string(mid)
		}
		desc = desc.WithValueAttribute("group", value)
	}

	setup := params.Setup
	if setup == "" {
		if isOffer {
			setup = "actpass"
		} else {
			setup = "active"
		}
	}

	for _, section := range sections {
		media := buildMediaSection(section, params, setup)
		desc = desc.WithMedia(media)
	}

	return desc, nil
}

func buildMediaSection(section MediaSection, params SessionParams, setup string) *sdp.MediaDescription {
	formats := make([]string, 0, len(section.Streams))
	for _, st := range section.Streams {
		formats = append(formats, strconv.Itoa(int(st.PayloadType)))
	}

	proto := "UDP/TLS/RTP/SAVPF"
	if section.Kind == "application" {
		proto = "UDP/DTLS/SCTP"
		formats = []string{"webrtc-datachannel"}
	}

	media := sdp.NewJSEPMediaDescription(section.Kind, []string{})
	media.MediaName = sdp.MediaName{
		Media:   section.Kind,
		Port:    sdp.RangedPort{Value: 9},
		Protos:  splitProto(proto),
		Formats: formats,
	}
	media.ConnectionInformation = &sdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     &sdp.Address{Address: "0.0.0.0"},
	}

	media = media.WithValueAttribute("mid", string(section.Mid))
	media = media.WithValueAttribute("setup", setup)
	media = media.WithValueAttribute("ice-ufrag", params.IceUfrag)
	media = media.WithValueAttribute("ice-pwd", params.IcePwd)
	if params.Fingerprint != "" {
		media = media.WithValueAttribute("fingerprint", params.Fingerprint)
	}
	for _, c := range params.Candidates {
		media = media.WithValueAttribute("candidate", c)
	}
	media = media.WithPropertyAttribute(directionAttribute(section.Direction))

	for _, st := range section.Streams {
		for _, fb := range st.RTCPFeedback {
			val := fmt.Sprintf("%d %s", st.PayloadType, fb.Type)
			if fb.Parameter != "" {
				val += " " + fb.Parameter
			}
			media = media.WithValueAttribute("rtcp-fb", val)
		}
		for _, ext := range st.HeaderExtensions {
			media = media.WithValueAttribute("extmap", fmt.Sprintf("%d %s", ext.ID, ext.URI))
		}
		if st.Rid != "" {
			media = media.WithValueAttribute("rid", fmt.Sprintf("%s send", st.Rid))
		}
		media = media.WithValueAttribute("ssrc", fmt.Sprintf("%d cname:%s", st.SSRC, section.Mid))
	}

	for primary, rtx := range section.RtxGroup {
		media = media.WithValueAttribute("ssrc-group", fmt.Sprintf("FID %d %d", primary, rtx))
	}
	if len(section.SimGroup) > 0 {
		val := "SIM"
		for _, ssrc := range section.SimGroup {
			val += fmt.Sprintf(" %d", ssrc)
		}
		media = media.WithValueAttribute("ssrc-group", val)
	}

	return media
}

func directionAttribute(d rtcbase.Direction) string {
	switch d {
	case rtcbase.DirectionSendOnly:
		return "sendonly"
	case rtcbase.DirectionRecvOnly:
		return "recvonly"
	case rtcbase.DirectionInactive, rtcbase.DirectionStopped:
		return "inactive"
	default:
		return "sendrecv"
	}
}

func splitProto(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == '/' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
