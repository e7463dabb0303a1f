package signaling

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arzzra/rtcengine/pkg/pipeline"
	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// AddCandidateInit — см. spec.md §6 add_remote_candidate.
type AddCandidateInit struct {
	Candidate     string
	SdpMid        rtcbase.Mid
	SdpMLineIndex *int
}

// formatCandidate renders a Candidate the way a=candidate requires
// (RFC 5245 §15.1), without the "a=candidate:" prefix — sdp.Build already
// adds that via WithValueAttribute, matching pkg/media_with_sdp/sdp_builder.go's
// attribute-building idiom.
func formatCandidate(c pipeline.Candidate) string {
	return fmt.Sprintf("%s %d %s %d %s %d typ %s",
		candidateFoundation(c), c.Component, strings.ToUpper(c.Protocol.String()),
		c.Priority, c.Address, c.Port, candidateTypeName(c.Type))
}

func candidateFoundation(c pipeline.Candidate) string {
	if c.Foundation != "" {
		return c.Foundation
	}
	return "1"
}

func candidateTypeName(t pipeline.CandidateType) string {
	switch t {
	case pipeline.CandidateServerReflexive:
		return "srflx"
	case pipeline.CandidatePeerReflexive:
		return "prflx"
	case pipeline.CandidateRelay:
		return "relay"
	default:
		return "host"
	}
}

// parseCandidate parses the value of an a=candidate attribute (the part
// after "candidate:") into a pipeline.Candidate, tolerating the
// trailing "raddr"/"rport"/"generation" extensions by ignoring unknown
// tokens — the same "read what you need, skip the rest" approach
// pkg/sdp/parse.go takes toward unknown SDP attributes.
func parseCandidate(value string) (pipeline.Candidate, error) {
	fields := strings.Fields(value)
	if len(fields) < 8 {
		return pipeline.Candidate{}, errInvalidParameter("malformed candidate attribute: %q", value)
	}
	component, err := strconv.Atoi(fields[1])
	if err != nil {
		return pipeline.Candidate{}, errInvalidParameter("malformed candidate component: %q", value)
	}
	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return pipeline.Candidate{}, errInvalidParameter("malformed candidate priority: %q", value)
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return pipeline.Candidate{}, errInvalidParameter("malformed candidate port: %q", value)
	}

	proto := rtcbase.TransportUDP
	if strings.EqualFold(fields[2], "tcp") {
		proto = rtcbase.TransportTCP
	}

	typ := pipeline.CandidateHost
	for i := 6; i+1 < len(fields); i++ {
		if fields[i] == "typ" {
			typ = parseCandidateType(fields[i+1])
			break
		}
	}

	return pipeline.Candidate{
		Foundation: fields[0],
		Component:  component,
		Protocol:   proto,
		Priority:   uint32(priority),
		Address:    fields[4],
		Port:       port,
		Type:       typ,
	}, nil
}

func parseCandidateType(s string) pipeline.CandidateType {
	switch s {
	case "srflx":
		return pipeline.CandidateServerReflexive
	case "prflx":
		return pipeline.CandidatePeerReflexive
	case "relay":
		return pipeline.CandidateRelay
	default:
		return pipeline.CandidateHost
	}
}
