package sdp

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Parse разбирает SessionDescription, собранную Build (или полученную от
// удалённой стороны), обратно в SessionParams и список MediaSection.
// Сессионные атрибуты ICE/fingerprint берутся на уровне сессии, если
// m-секция их не переопределяет, как допускает RFC 8842 §4.
func Parse(desc *sdp.SessionDescription) (SessionParams, []MediaSection, error) {
	params := SessionParams{
		IceUfrag:    attrValue(desc.Attributes, "ice-ufrag"),
		IcePwd:      attrValue(desc.Attributes, "ice-pwd"),
		Fingerprint: attrValue(desc.Attributes, "fingerprint"),
	}
	if group := attrValue(desc.Attributes, "group"); strings.HasPrefix(group, "BUNDLE") {
		for _, mid := range strings.Fields(strings.TrimPrefix(group, "BUNDLE")) {
			params.BundleMids = append(params.BundleMids, rtcbase.Mid(mid))
		}
	}

	sections := make([]MediaSection, 0, len(desc.MediaDescriptions))
	for _, media := range desc.MediaDescriptions {
		section, err := parseMediaSection(media)
		if err != nil {
			return SessionParams{}, nil, err
		}
		if ufrag := attrValue(media.Attributes, "ice-ufrag"); ufrag != "" {
			params.IceUfrag = ufrag
		}
		if pwd := attrValue(media.Attributes, "ice-pwd"); pwd != "" {
			params.IcePwd = pwd
		}
		if fp := attrValue(media.Attributes, "fingerprint"); fp != "" {
			params.Fingerprint = fp
		}
		for _, a := range media.Attributes {
			if a.Key == "candidate" {
				params.Candidates = append(params.Candidates, a.Value)
			}
		}
		sections = append(sections, section)
	}

	return params, sections, nil
}

func parseMediaSection(media *sdp.MediaDescription) (MediaSection, error) {
	section := MediaSection{
		Kind:      media.MediaName.Media,
		Mid:       rtcbase.Mid(attrValue(media.Attributes, "mid")),
		Direction: rtcbase.DirectionSendRecv,
		RtxGroup:  make(map[rtcbase.SSRC]rtcbase.SSRC),
	}

	for _, a := range media.Attributes {
		switch a.Key {
		case "sendonly":
			section.Direction = rtcbase.DirectionSendOnly
		case "recvonly":
			section.Direction = rtcbase.DirectionRecvOnly
		case "inactive":
			section.Direction = rtcbase.DirectionInactive
		case "sendrecv":
			section.Direction = rtcbase.DirectionSendRecv
		}
	}

	var mlinePT rtcbase.PayloadType
	if len(media.MediaName.Formats) > 0 {
		if pt, err := strconv.ParseUint(media.MediaName.Formats[0], 10, 8); err == nil {
			mlinePT = rtcbase.PayloadType(pt)
		}
	}

	streamsBySSRC := make(map[rtcbase.SSRC]*rtcbase.StreamInfo)
	order := make([]rtcbase.SSRC, 0)
	streamFor := func(ssrc rtcbase.SSRC) *rtcbase.StreamInfo {
		if st, ok := streamsBySSRC[ssrc]; ok {
			return st
		}
		st := &rtcbase.StreamInfo{SSRC: ssrc, Mid: section.Mid, PayloadType: mlinePT}
		streamsBySSRC[ssrc] = st
		order = append(order, ssrc)
		return st
	}

	// a=ssrc может стоять после a=rtcp-fb/extmap/rid, поэтому потоки заводятся заранее.
	for _, a := range media.Attributes {
		if fields := strings.Fields(a.Value); a.Key == "ssrc" && len(fields) > 0 {
			if n, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
				streamFor(rtcbase.SSRC(n))
			}
		}
	}

	for _, a := range media.Attributes {
		switch a.Key {
		case "ssrc":
			fields := strings.Fields(a.Value)
			if len(fields) == 0 {
				continue
			}
			n, err := strconv.ParseUint(fields[0], 10, 32)
			if err != nil {
				continue
			}
			streamFor(rtcbase.SSRC(n))
		case "ssrc-group":
			fields := strings.Fields(a.Value)
			if len(fields) < 2 {
				continue
			}
			switch fields[0] {
			case "FID":
				if len(fields) >= 3 {
					primary, err1 := strconv.ParseUint(fields[1], 10, 32)
					rtx, err2 := strconv.ParseUint(fields[2], 10, 32)
					if err1 == nil && err2 == nil {
						section.RtxGroup[rtcbase.SSRC(primary)] = rtcbase.SSRC(rtx)
					}
				}
			case "SIM":
				for _, f := range fields[1:] {
					n, err := strconv.ParseUint(f, 10, 32)
					if err == nil {
						section.SimGroup = append(section.SimGroup, rtcbase.SSRC(n))
					}
				}
			}
		case "rtcp-fb":
			fields := strings.Fields(a.Value)
			if len(fields) < 2 {
				continue
			}
			pt, err := strconv.ParseUint(fields[0], 10, 8)
			if err != nil {
				continue
			}
			fb := rtcbase.RTCPFeedback{Type: fields[1]}
			if len(fields) >= 3 {
				fb.Parameter = fields[2]
			}
			for _, ssrc := range order {
				st := streamsBySSRC[ssrc]
				if st.PayloadType == rtcbase.PayloadType(pt) {
					st.RTCPFeedback = append(st.RTCPFeedback, fb)
				}
			}
		case "extmap":
			fields := strings.Fields(a.Value)
			if len(fields) < 2 {
				continue
			}
			id, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			ext := rtcbase.RTPHeaderExtension{ID: id, URI: fields[1]}
			for _, ssrc := range order {
				streamsBySSRC[ssrc].HeaderExtensions = append(streamsBySSRC[ssrc].HeaderExtensions, ext)
			}
		case "rid":
			fields := strings.Fields(a.Value)
			if len(fields) == 0 {
				continue
			}
			for _, ssrc := range order {
				streamsBySSRC[ssrc].Rid = rtcbase.Rid(fields[0])
			}
		}
	}

	if len(media.MediaName.Formats) > 0 {
		if pt, err := strconv.ParseUint(media.MediaName.Formats[0], 10, 8); err == nil {
			for _, ssrc := range order {
				streamsBySSRC[ssrc].PayloadType = rtcbase.PayloadType(pt)
			}
		}
	}

	for primary, rtx := range section.RtxGroup {
		if st, ok := streamsBySSRC[primary]; ok {
			st.HasRtx = true
			st.RtxSSRC = rtx
		}
	}

	for _, ssrc := range order {
		section.Streams = append(section.Streams, *streamsBySSRC[ssrc])
	}

	return section, nil
}

func attrValue(attrs []sdp.Attribute, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}
