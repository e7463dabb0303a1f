package signaling

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	piondtls "github.com/pion/dtls/v2"
	"github.com/pion/randutil"

	"github.com/arzzra/rtcengine/pkg/interceptor"
	"github.com/arzzra/rtcengine/pkg/pipeline"
	"github.com/arzzra/rtcengine/pkg/rtcbase"
	"github.com/arzzra/rtcengine/pkg/sdp"
	"github.com/arzzra/rtcengine/pkg/stats"
)

// CreateOfferOptions — см. spec.md §6 create_offer.
type CreateOfferOptions struct {
	IceRestart    bool
	VoiceActivity bool
}

// CreateAnswerOptions — create_answer принимает сегодня только зарезервированные
// под будущее расширение поля; W3C RTCAnswerOptions тоже фактически пуст.
type CreateAnswerOptions struct{}

// PeerConnection — оркестратор: владеет неизменным списком Handler'ов
// конвейера (см. pkg/pipeline.Pipeline), таблицей трансиверов, автоматом
// состояния согласования (см. state.go) и очередью negotiation-needed.
// Сам реализует Protocol contract, поэтому со стороны host это ровно
// такой же объект, как любой Handler слоя ниже (spec.md §4.2).
type PeerConnection struct {
	cfg  Configuration
	cert Certificate

	pipe *pipeline.Pipeline
	ice  *pipeline.Ice
	dtls *pipeline.Dtls
	sctp *pipeline.Sctp
	dc   *pipeline.DataChannel
	srtp *pipeline.Srtp
	ich  *pipeline.InterceptorHandler
	ep   *pipeline.Endpoint

	acc *stats.Accumulator

	fsm *fsm.FSM

	transceivers []*Transceiver
	dataChannels map[rtcbase.DataChannelId]*DataChannelHandle
	nextDCID     rtcbase.DataChannelId

	senderIDs      idGenerator
	receiverIDs    idGenerator
	transceiverIDs idGenerator

	currentLocal, currentRemote *SessionDescription
	pendingLocal, pendingRemote *SessionDescription

	remoteParams     sdp.SessionParams
	remoteSections   []sdp.MediaSection
	needsSctpSection bool

	negotiationNeeded bool

	iceConnState rtcbase.IceConnectionState
	gatherState  rtcbase.IceGatheringState
	dtlsState    rtcbase.DtlsTransportState
	pcState      rtcbase.PeerConnectionState

	eventOut queue[Event]

	closed bool
}

// NewPeerConnection builds the full handler chain (Demuxer → Ice → Dtls →
// Sctp → DataChannel → Srtp → InterceptorHandler → Endpoint), wires the
// stats accumulator into Endpoint, and mints (or reuses) the DTLS
// identity — the same assembly order spec.md §4.2 names.
func NewPeerConnection(cfg Configuration, chain *interceptor.Registry) (*PeerConnection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cert, err := resolveCertificate(cfg)
	if err != nil {
		return nil, rtcbase.WrapEngineError(rtcbase.ErrInternal, "signaling", "certificate setup", err)
	}

	tlsCert, err := cert.tlsCertificate()
	if err != nil {
		return nil, rtcbase.WrapEngineError(rtcbase.ErrInternal, "signaling", "certificate conversion", err)
	}

	ice := pipeline.NewIce(cfg.Controlling)
	dtlsHandler := pipeline.NewDtls(cfg.Controlling, &piondtls.Config{Certificates: []tls.Certificate{tlsCert}}, "")
	sctpHandler := pipeline.NewSctp(cfg.Controlling)
	dcHandler := pipeline.NewDataChannel()
	srtpHandler := pipeline.NewSrtp()

	if chain == nil {
		chain = interceptor.NewRegistry()
	}
	ichHandler := pipeline.NewInterceptorHandler(chain.Build())
	epHandler := pipeline.NewEndpoint()

	acc := stats.NewAccumulator()
	epHandler.SetStatsAccumulator(acc)

	pipe := pipeline.NewPipeline(
		pipeline.NewDemuxer(),
		ice,
		dtlsHandler,
		sctpHandler,
		dcHandler,
		srtpHandler,
		ichHandler,
		epHandler,
	)

	pc := &PeerConnection{
		cfg:          cfg,
		cert:         cert,
		pipe:         pipe,
		ice:          ice,
		dtls:         dtlsHandler,
		sctp:         sctpHandler,
		dc:           dcHandler,
		srtp:         srtpHandler,
		ich:          ichHandler,
		ep:           epHandler,
		acc:          acc,
		fsm:          newSignalingFSM(),
		dataChannels: make(map[rtcbase.DataChannelId]*DataChannelHandle),
		senderIDs:      idGenerator{prefix: "sender"},
		receiverIDs:    idGenerator{prefix: "receiver"},
		transceiverIDs: idGenerator{prefix: "transceiver"},
		iceConnState:   rtcbase.IceConnectionNew,
		dtlsState:    rtcbase.DtlsNew,
		pcState:      rtcbase.PeerConnectionNew,
	}
	if !cfg.Controlling {
		pc.nextDCID = 1
	}
	return pc, nil
}

func resolveCertificate(cfg Configuration) (Certificate, error) {
	if len(cfg.Certificates) > 0 {
		return cfg.Certificates[0], nil
	}
	return GenerateCertificate()
}

// --- signaling state -------------------------------------------------

func (pc *PeerConnection) SignalingState() rtcbase.SignalingState {
	return toRtcbaseState(pc.fsm.Current())
}

func (pc *PeerConnection) IceConnectionState() rtcbase.IceConnectionState   { return pc.iceConnState }
func (pc *PeerConnection) IceGatheringState() rtcbase.IceGatheringState     { return pc.gatherState }
func (pc *PeerConnection) PeerConnectionState() rtcbase.PeerConnectionState { return pc.pcState }

func (pc *PeerConnection) LocalDescription() *SessionDescription {
	if pc.pendingLocal != nil {
		return pc.pendingLocal
	}
	return pc.currentLocal
}

func (pc *PeerConnection) RemoteDescription() *SessionDescription {
	if pc.pendingRemote != nil {
		return pc.pendingRemote
	}
	return pc.currentRemote
}

func (pc *PeerConnection) CurrentLocalDescription() *SessionDescription  { return pc.currentLocal }
func (pc *PeerConnection) CurrentRemoteDescription() *SessionDescription { return pc.currentRemote }
func (pc *PeerConnection) PendingLocalDescription() *SessionDescription  { return pc.pendingLocal }
func (pc *PeerConnection) PendingRemoteDescription() *SessionDescription { return pc.pendingRemote }

// CanTrickleIceCandidates reports whether the remote side has signalled
// trickle support; this engine never requires waiting for end-of-candidates
// before a connection attempt, so it is always true once a remote
// description has been set, matching the teacher's "assume capable unless
// told otherwise" posture.
func (pc *PeerConnection) CanTrickleIceCandidates() *bool {
	if pc.currentRemote == nil && pc.pendingRemote == nil {
		return nil
	}
	v := true
	return &v
}

// --- transceivers / tracks --------------------------------------------

// AddTransceiverFromKind creates a new Transceiver with no track attached
// — the host adds a track later via AddTrack, or leaves it recvonly, the
// same two-step flow W3C's addTransceiver(kind) allows.
func (pc *PeerConnection) AddTransceiverFromKind(kind string, direction rtcbase.Direction) (*Transceiver, error) {
	if pc.closed {
		return nil, errInvalidState("peer connection is closed")
	}
	t := &Transceiver{
		ID:        pc.transceiverIDs.nextID(),
		Direction: direction,
		Receiver:  &Receiver{ID: pc.receiverIDs.nextID(), Kind: kind},
	}
	if direction == rtcbase.DirectionSendRecv || direction == rtcbase.DirectionSendOnly {
		t.Sender = &Sender{ID: pc.senderIDs.nextID()}
	}
	pc.transceivers = append(pc.transceivers, t)
	pc.queueNegotiationNeeded()
	return t, nil
}

// AddTransceiverFromTrack mirrors W3C addTransceiver(track): the
// transceiver's sender is pre-bound to the supplied track.
func (pc *PeerConnection) AddTransceiverFromTrack(track TrackInit, direction rtcbase.Direction) (*Transceiver, error) {
	t, err := pc.AddTransceiverFromKind(track.Kind, direction)
	if err != nil {
		return nil, err
	}
	if t.Sender == nil {
		t.Sender = &Sender{ID: pc.senderIDs.nextID()}
	}
	t.Sender.Track = &track
	return t, nil
}

// AddTrack mirrors W3C addTrack: reuses a non-stopped transceiver of the
// same kind whose sender carries no track (a transceiver created without a
// sender gets one here) if one exists, otherwise creates a new sendrecv
// transceiver — spec.md §6 add_track.
func (pc *PeerConnection) AddTrack(track TrackInit) (string, error) {
	if pc.closed {
		return "", errInvalidState("peer connection is closed")
	}
	for _, t := range pc.transceivers {
		if t.Stopped() || (t.Sender != nil && t.Sender.Track != nil) {
			continue
		}
		if t.Receiver != nil && t.Receiver.Kind != track.Kind {
			continue
		}
		if t.Sender == nil {
			t.Sender = &Sender{ID: pc.senderIDs.nextID()}
		}
		t.Sender.Track = &track
		if t.Direction == rtcbase.DirectionRecvOnly {
			t.Direction = rtcbase.DirectionSendRecv
		}
		pc.queueNegotiationNeeded()
		return t.Sender.ID, nil
	}
	t, err := pc.AddTransceiverFromTrack(track, rtcbase.DirectionSendRecv)
	if err != nil {
		return "", err
	}
	return t.Sender.ID, nil
}

// RemoveTrack mirrors W3C removeTrack: detaches the track and downgrades
// direction, it does not remove the transceiver (renegotiation turns it
// inactive/recvonly, per W3C's "keep the m-section, stop sending" rule).
func (pc *PeerConnection) RemoveTrack(senderID string) error {
	for _, t := range pc.transceivers {
		if t.Sender == nil || t.Sender.ID != senderID {
			continue
		}
		t.Sender.Track = nil
		switch t.Direction {
		case rtcbase.DirectionSendRecv:
			t.Direction = rtcbase.DirectionRecvOnly
		case rtcbase.DirectionSendOnly:
			t.Direction = rtcbase.DirectionInactive
		}
		pc.queueNegotiationNeeded()
		return nil
	}
	return errInvalidParameter("unknown sender id %q", senderID)
}

func (pc *PeerConnection) GetSenders() []*Sender {
	var out []*Sender
	for _, t := range pc.transceivers {
		if t.Sender != nil {
			out = append(out, t.Sender)
		}
	}
	return out
}

func (pc *PeerConnection) GetReceivers() []*Receiver {
	var out []*Receiver
	for _, t := range pc.transceivers {
		if t.Receiver != nil {
			out = append(out, t.Receiver)
		}
	}
	return out
}

func (pc *PeerConnection) GetTransceivers() []*Transceiver {
	out := make([]*Transceiver, len(pc.transceivers))
	copy(out, pc.transceivers)
	return out
}

func (pc *PeerConnection) transceiverByMid(mid rtcbase.Mid) *Transceiver {
	for _, t := range pc.transceivers {
		if t.Mid == mid {
			return t
		}
	}
	return nil
}

// queueNegotiationNeeded coalesces a burst of local mutations (AddTrack,
// CreateDataChannel, ...) within one host "turn" into at most one queued
// event — there is no microtask boundary in a sans-I/O engine to trigger
// on, so the flag itself is the debounce: SetLocalDescription with an
// offer or an answer is what finally consumes it.
func (pc *PeerConnection) queueNegotiationNeeded() {
	if pc.closed || pc.negotiationNeeded {
		return
	}
	pc.negotiationNeeded = true
	pc.eventOut.push(Event{Kind: EventNegotiationNeeded})
}

// --- data channels -----------------------------------------------------

// CreateDataChannel mirrors spec.md §6 create_data_channel: validates
// init, allocates a stream id (even for the controlling/offering side,
// odd for the answering side, per RFC 8832 §6's SCTP stream allocation
// convention) unless the application negotiated one out-of-band, and
// pushes DATA_CHANNEL_OPEN down the chain immediately — pion's own
// DataChannel.Dial behaves the same way, opening eagerly rather than
// waiting for the SCTP association to finish (SCTP buffers it).
func (pc *PeerConnection) CreateDataChannel(label string, init DataChannelInit) (*DataChannelHandle, error) {
	if pc.closed {
		return nil, errInvalidState("peer connection is closed")
	}
	if err := init.validate(); err != nil {
		return nil, err
	}

	var id rtcbase.DataChannelId
	if init.ID != nil {
		id = *init.ID
	} else {
		id = pc.nextDCID
		pc.nextDCID += 2
	}
	if _, exists := pc.dataChannels[id]; exists {
		return nil, errInvalidParameter("data channel id %d already in use", id)
	}

	handle := &DataChannelHandle{ID: id, Label: label, Init: init, State: rtcbase.DataChannelConnecting}
	pc.dataChannels[id] = handle
	pc.acc.BindDataChannel(id, label)

	if !init.Negotiated {
		pc.dc.OpenChannel(id, label, init.channelType(), init.Priority)
		pc.pipe.InjectDescendingWrite(pc.dc)
	} else {
		handle.State = rtcbase.DataChannelOpen
	}

	pc.needsSctpSection = true
	pc.queueNegotiationNeeded()
	return handle, nil
}

// SendData writes one message on an already-open channel — spec.md §3
// DataChannel.send.
func (pc *PeerConnection) SendData(id rtcbase.DataChannelId, payload []byte, isText bool) error {
	handle, ok := pc.dataChannels[id]
	if !ok {
		return errInvalidParameter("unknown data channel id %d", id)
	}
	if handle.State != rtcbase.DataChannelOpen {
		return errInvalidState("data channel %d is not open", id)
	}
	pc.acc.RecordDataChannelSent(id, len(payload))
	return pc.pipe.HandleWrite(pipeline.PipelineMessage{
		Kind:               pipeline.MsgDataChannelData,
		DataChannelID:      id,
		DataChannelPayload: payload,
		DataChannelIsText:  isText,
	})
}

// CloseDataChannel — spec.md §3 DataChannel.close.
func (pc *PeerConnection) CloseDataChannel(id rtcbase.DataChannelId) {
	pc.dc.CloseChannel(id)
	if handle, ok := pc.dataChannels[id]; ok {
		handle.State = rtcbase.DataChannelClosed
	}
}

func (pc *PeerConnection) handleDataChannelOpen(evt pipeline.Event) {
	handle, known := pc.dataChannels[evt.DataChannelID]
	if !known {
		init := DefaultDataChannelInit()
		handle = &DataChannelHandle{ID: evt.DataChannelID, Label: evt.DataChannelLabel, Init: init, State: rtcbase.DataChannelOpen}
		pc.dataChannels[evt.DataChannelID] = handle
		pc.acc.BindDataChannel(evt.DataChannelID, evt.DataChannelLabel)
		pc.acc.SetDataChannelState(evt.DataChannelID, handle.State.String())
		pc.eventOut.push(Event{Kind: EventOnDataChannel, DataChannelID: handle.ID, DataChannelLabel: handle.Label, DataChannelInit: handle.Init})
		return
	}
	handle.State = rtcbase.DataChannelOpen
	pc.acc.SetDataChannelState(evt.DataChannelID, handle.State.String())
	pc.eventOut.push(Event{Kind: EventDataChannelOpen, DataChannelID: handle.ID, DataChannelLabel: handle.Label})
}

// --- ICE candidates ------------------------------------------------------

// AddLocalCandidate — spec.md §6 add_local_candidate: the host owns socket
// gathering, this just feeds a discovered candidate into ICE and makes it
// visible to the application via OnIceCandidate for signaling onward.
func (pc *PeerConnection) AddLocalCandidate(c pipeline.Candidate) {
	pc.ice.AddLocalCandidate(c)
	pc.eventOut.push(Event{Kind: EventIceCandidate, Candidate: formatCandidate(c)})
}

// AddRemoteCandidate — spec.md §6 add_remote_candidate.
func (pc *PeerConnection) AddRemoteCandidate(init AddCandidateInit) error {
	if init.Candidate == "" {
		return nil // end-of-candidates marker, nothing to parse
	}
	c, err := parseCandidate(init.Candidate)
	if err != nil {
		return err
	}
	pc.ice.AddRemoteCandidate(c)
	return nil
}

func (pc *PeerConnection) RestartIce() {
	pc.ice.Restart()
	pc.queueNegotiationNeeded()
}

// --- offer / answer ------------------------------------------------------

// CreateOffer — spec.md §6 create_offer. Building an offer never mutates
// signaling state; only set_local_description(offer) does (W3C's
// createOffer is a pure function of current local state).
func (pc *PeerConnection) CreateOffer(opts CreateOfferOptions) (SessionDescription, error) {
	if pc.closed {
		return SessionDescription{}, errInvalidState("peer connection is closed")
	}
	if opts.IceRestart {
		pc.ice.Restart()
	}
	pc.assignMids()
	pc.ensureSenderSSRCs()

	sections := pc.buildLocalSections()
	params := pc.localSessionParams(len(sections) > 0)
	return buildSessionDescription(SdpOffer, params, sections)
}

// CreateAnswer — spec.md §6 create_answer. Only valid while a remote
// offer is outstanding (HaveRemoteOffer/HaveLocalPranswer), mirroring
// W3C's createAnswer precondition.
func (pc *PeerConnection) CreateAnswer(CreateAnswerOptions) (SessionDescription, error) {
	if pc.closed {
		return SessionDescription{}, errInvalidState("peer connection is closed")
	}
	switch pc.fsm.Current() {
	case stHaveRemoteOffer, stHaveLocalPranswer:
	default:
		return SessionDescription{}, errInvalidState("create_answer requires an outstanding remote offer, have %s", pc.fsm.Current())
	}

	pc.reconcileTransceiversWithRemote()
	pc.ensureSenderSSRCs()

	sections := pc.buildLocalSections()
	params := pc.localSessionParams(len(sections) > 0)
	params.Setup = "active"
	return buildSessionDescription(SdpAnswer, params, sections)
}

// reconcileTransceiversWithRemote creates/updates local transceivers to
// match the m-sections of the last parsed remote offer, the simplified
// analogue of W3C's createAnswer transceiver-matching algorithm: same
// mid, reciprocal direction, reusing an existing sender/track if present.
func (pc *PeerConnection) reconcileTransceiversWithRemote() {
	for _, section := range pc.remoteSections {
		if section.Kind == "application" {
			pc.needsSctpSection = true
			continue
		}
		t := pc.transceiverByMid(section.Mid)
		if t == nil {
			t = &Transceiver{
				ID:       pc.transceiverIDs.nextID(),
				Mid:      section.Mid,
				Receiver: &Receiver{ID: pc.receiverIDs.nextID(), Kind: section.Kind},
			}
			pc.transceivers = append(pc.transceivers, t)
		}
		t.Direction = reciprocalDirection(section.Direction, t.Sender != nil)
	}
}

func reciprocalDirection(remote rtcbase.Direction, haveLocalSender bool) rtcbase.Direction {
	switch remote {
	case rtcbase.DirectionSendOnly:
		return rtcbase.DirectionRecvOnly
	case rtcbase.DirectionRecvOnly:
		if haveLocalSender {
			return rtcbase.DirectionSendOnly
		}
		return rtcbase.DirectionInactive
	case rtcbase.DirectionInactive, rtcbase.DirectionStopped:
		return rtcbase.DirectionInactive
	default: // sendrecv
		if haveLocalSender {
			return rtcbase.DirectionSendRecv
		}
		return rtcbase.DirectionRecvOnly
	}
}

func (pc *PeerConnection) assignMids() {
	next := 0
	used := make(map[rtcbase.Mid]bool)
	for _, t := range pc.transceivers {
		if t.Mid != "" {
			used[t.Mid] = true
		}
	}
	for _, t := range pc.transceivers {
		if t.Mid != "" {
			continue
		}
		for {
			candidate := rtcbase.Mid(fmt.Sprintf("%d", next))
			next++
			if !used[candidate] {
				t.Mid = candidate
				used[candidate] = true
				break
			}
		}
	}
}

func (pc *PeerConnection) ensureSenderSSRCs() {
	for _, t := range pc.transceivers {
		if t.Sender == nil || t.Sender.Track == nil || len(t.Sender.Encodings) > 0 {
			continue
		}
		t.Sender.Encodings = []Encoding{{SSRC: randomSSRC(), Codec: t.Sender.Track.Codec}}
		pc.acc.BindSender(t.Sender.ID, t.Sender.Encodings[0].SSRC, t.Mid)
	}
}

func (pc *PeerConnection) buildLocalSections() []sdp.MediaSection {
	var sections []sdp.MediaSection
	for _, t := range pc.transceivers {
		if t.Stopped() {
			continue
		}
		section := sdp.MediaSection{
			Mid:       t.Mid,
			Kind:      transceiverKind(t),
			Direction: t.Direction,
			RtxGroup:  make(map[rtcbase.SSRC]rtcbase.SSRC),
		}
		if t.Sender != nil {
			for _, enc := range t.Sender.Encodings {
				info := rtcbase.StreamInfo{SSRC: enc.SSRC, Mid: t.Mid, Rid: enc.Rid, Codec: enc.Codec}
				if enc.RtxSSRC != 0 {
					info.HasRtx = true
					info.RtxSSRC = enc.RtxSSRC
					section.RtxGroup[enc.SSRC] = enc.RtxSSRC
				}
				section.Streams = append(section.Streams, info)
			}
		}
		sections = append(sections, section)
	}
	if pc.needsSctpSection {
		sections = append(sections, sdp.MediaSection{Mid: rtcbase.Mid(fmt.Sprintf("%d", len(sections))), Kind: "application"})
	}
	return sections
}

func transceiverKind(t *Transceiver) string {
	if t.Receiver != nil && t.Receiver.Kind != "" {
		return t.Receiver.Kind
	}
	if t.Sender != nil && t.Sender.Track != nil {
		return t.Sender.Track.Kind
	}
	return "audio"
}

// randomSSRC draws a fresh synchronization source identifier the way
// pkg/pipeline/ice.go draws ICE credentials: crypto-grade randomness, not
// a PRNG seeded from the clock — reading the clock is exactly what
// sans-I/O forbids.
func randomSSRC() rtcbase.SSRC {
	v, err := randutil.CryptoUint64()
	if err != nil {
		panic(err)
	}
	if uint32(v) == 0 {
		return 1
	}
	return rtcbase.SSRC(uint32(v))
}

func (pc *PeerConnection) localSessionParams(haveSections bool) sdp.SessionParams {
	ufrag, pwd := pc.ice.LocalCredentials()
	params := sdp.SessionParams{
		IceUfrag:    ufrag,
		IcePwd:      pwd,
		Fingerprint: pc.cert.FingerprintAlgorithm + " " + pc.cert.Fingerprint,
	}
	if pc.cfg.BundlePolicy == BundlePolicyMaxBundle && haveSections {
		for _, t := range pc.transceivers {
			if !t.Stopped() {
				params.BundleMids = append(params.BundleMids, t.Mid)
			}
		}
		if pc.needsSctpSection {
			params.BundleMids = append(params.BundleMids, rtcbase.Mid(fmt.Sprintf("%d", len(params.BundleMids))))
		}
	}
	return params
}

// --- set_local_description / set_remote_description ---------------------

func sdpEvent(t SdpType) (string, error) {
	switch t {
	case SdpOffer:
		return evSetLocalOffer, nil
	case SdpAnswer:
		return evSetLocalAnswer, nil
	case SdpPranswer:
		return evSetLocalPranswer, nil
	case SdpRollback:
		return evRollback, nil
	default:
		return "", errInvalidParameter("unknown sdp type %d", t)
	}
}

// SetLocalDescription — spec.md §6 set_local_description. Rollback is only
// valid for a description the *local* side put in flight (have-local-offer);
// attempting it from have-remote-offer is rejected before the fsm even
// sees it, since the shared rollback edge in state.go doesn't distinguish
// direction (see S5 in spec.md §8 for the canonical round-trip this guards).
func (pc *PeerConnection) SetLocalDescription(desc SessionDescription) error {
	if pc.closed {
		return errInvalidState("peer connection is closed")
	}
	if desc.Type == SdpRollback && pc.fsm.Current() != stHaveLocalOffer {
		return errInvalidState("local rollback only valid from have-local-offer, have %s", pc.fsm.Current())
	}

	from := pc.fsm.Current()
	event, err := sdpEvent(desc.Type)
	if err != nil {
		return err
	}
	if err := applySignalingEvent(pc.fsm, event); err != nil {
		return err
	}
	to := pc.fsm.Current()

	switch desc.Type {
	case SdpRollback:
		pc.pendingLocal = nil
	case SdpOffer, SdpPranswer:
		d := desc
		pc.pendingLocal = &d
		pc.applyLocalTransport(desc)
	case SdpAnswer:
		d := desc
		pc.pendingLocal = &d
		pc.applyLocalTransport(desc)
		pc.commitDescriptions(from, to)
	}

	if desc.Type == SdpOffer || desc.Type == SdpAnswer {
		pc.negotiationNeeded = false
	}
	pc.emitSignalingStateChange()
	return nil
}

// SetRemoteDescription — spec.md §6 set_remote_description. Parses the SDP
// immediately (InvalidParameter on failure, no state mutation — §7) and,
// once the fsm transition succeeds, feeds ICE credentials/candidates and
// the DTLS fingerprint into the lower layers.
func (pc *PeerConnection) SetRemoteDescription(desc SessionDescription) error {
	if pc.closed {
		return errInvalidState("peer connection is closed")
	}
	if desc.Type == SdpRollback && pc.fsm.Current() != stHaveRemoteOffer {
		return errInvalidState("remote rollback only valid from have-remote-offer, have %s", pc.fsm.Current())
	}

	var params sdp.SessionParams
	var sections []sdp.MediaSection
	if desc.Type != SdpRollback {
		var err error
		params, sections, err = parseSessionDescription(desc)
		if err != nil {
			return err
		}
	}

	from := pc.fsm.Current()
	event, err := remoteSdpEvent(desc.Type)
	if err != nil {
		return err
	}
	if err := applySignalingEvent(pc.fsm, event); err != nil {
		return err
	}
	to := pc.fsm.Current()

	switch desc.Type {
	case SdpRollback:
		pc.pendingRemote = nil
		return nil
	case SdpOffer, SdpPranswer:
		d := desc
		pc.pendingRemote = &d
		pc.remoteParams, pc.remoteSections = params, sections
	case SdpAnswer:
		d := desc
		pc.pendingRemote = &d
		pc.remoteParams, pc.remoteSections = params, sections
		pc.commitDescriptions(from, to)
	}

	pc.applyRemoteTransport(params, sections)
	pc.emitSignalingStateChange()
	return nil
}

func remoteSdpEvent(t SdpType) (string, error) {
	switch t {
	case SdpOffer:
		return evSetRemoteOffer, nil
	case SdpAnswer:
		return evSetRemoteAnswer, nil
	case SdpPranswer:
		return evSetRemotePranswer, nil
	case SdpRollback:
		return evRollback, nil
	default:
		return "", errInvalidParameter("unknown sdp type %d", t)
	}
}

// commitDescriptions promotes pending to current on both sides once an
// answer lands the fsm back in Stable — W3C updates current{Local,Remote}
// together regardless of which setXDescription call completed the O/A
// exchange.
func (pc *PeerConnection) commitDescriptions(from, to string) {
	if to != stStable {
		return
	}
	if pc.pendingLocal != nil {
		pc.currentLocal = pc.pendingLocal
	}
	if pc.pendingRemote != nil {
		pc.currentRemote = pc.pendingRemote
	}
	pc.pendingLocal, pc.pendingRemote = nil, nil
}

// applyRemoteTransport feeds the parsed remote session into ICE/DTLS and
// binds remote streams to Endpoint/the interceptor chain so inbound
// packets resolve to a mid immediately — spec.md §4.9's "negotiation
// binds StreamInfo to the handlers that need it" step.
func (pc *PeerConnection) applyRemoteTransport(params sdp.SessionParams, sections []sdp.MediaSection) {
	if params.IceUfrag != "" {
		pc.ice.SetRemoteCredentials(params.IceUfrag, params.IcePwd)
	}
	for _, value := range params.Candidates {
		if c, err := parseCandidate(value); err == nil {
			pc.ice.AddRemoteCandidate(c)
		}
	}
	if params.Fingerprint != "" {
		pc.dtls.SetRemoteFingerprint(params.Fingerprint)
	}

	for _, section := range sections {
		if section.Kind == "application" {
			continue
		}
		for _, info := range section.Streams {
			pc.ep.BindRemoteStream(info)
			pc.ich.BindRemoteStream(info)
			if t := pc.transceiverByMid(section.Mid); t != nil && t.Receiver != nil {
				t.Receiver.Encodings = append(t.Receiver.Encodings, Encoding{SSRC: info.SSRC, RtxSSRC: info.RtxSSRC, Rid: info.Rid, Codec: info.Codec})
				pc.acc.BindReceiver(t.Receiver.ID, info.SSRC, section.Mid)
			}
		}
	}
}

// applyLocalTransport binds outgoing StreamInfo to the interceptor chain
// once the local description carrying them is actually set, not merely
// built by CreateOffer — mirrors applyRemoteTransport's timing on the
// receive side.
func (pc *PeerConnection) applyLocalTransport(desc SessionDescription) {
	_, sections, err := parseSessionDescription(desc)
	if err != nil {
		return
	}
	for _, section := range sections {
		for _, info := range section.Streams {
			pc.ich.BindLocalStream(info)
		}
	}
}

func (pc *PeerConnection) emitSignalingStateChange() {
	pc.eventOut.push(Event{Kind: EventSignalingStateChange, SignalingState: pc.SignalingState()})
}

// --- stats -----------------------------------------------------------

// GetStats — spec.md §6 get_stats. now is supplied by the host, never
// read from a clock internally (§9 "current time is never read").
func (pc *PeerConnection) GetStats(now time.Time, sel stats.Selector) stats.Report {
	return pc.acc.Snapshot(now, sel)
}

// --- close -------------------------------------------------------------

// Close — spec.md §6 close: always infallible and idempotent (§7).
func (pc *PeerConnection) Close() error {
	if pc.closed {
		return nil
	}
	pc.closed = true
	_ = applySignalingEvent(pc.fsm, evClose)
	_ = pc.pipe.Close()
	pc.pcState = rtcbase.PeerConnectionClosed
	pc.eventOut.push(Event{Kind: EventConnectionStateChange, ConnectionState: pc.pcState})
	pc.eventOut.push(Event{Kind: EventSignalingStateChange, SignalingState: rtcbase.SignalingClosed})
	return nil
}

// --- Protocol contract ---------------------------------------------------

func (pc *PeerConnection) HandleRead(msg pipeline.PipelineMessage) error {
	if pc.closed {
		return nil
	}
	err := pc.pipe.HandleRead(msg)
	pc.drainPipelineEvents()
	return err
}

func (pc *PeerConnection) PollRead() (pipeline.PipelineMessage, bool) { return pc.pipe.PollRead() }

func (pc *PeerConnection) HandleWrite(msg pipeline.PipelineMessage) error {
	if pc.closed {
		return nil
	}
	err := pc.pipe.HandleWrite(msg)
	pc.drainPipelineEvents()
	return err
}

func (pc *PeerConnection) PollWrite() (pipeline.PipelineMessage, bool) { return pc.pipe.PollWrite() }

func (pc *PeerConnection) HandleEvent(evt Event) error {
	// The orchestrator sits at the top of the chain; it has no outer
	// layer to accept events from, so this is a no-op like
	// pipeline.Endpoint.HandleEvent.
	return nil
}

func (pc *PeerConnection) PollEvent() (Event, bool) {
	pc.drainPipelineEvents()
	return pc.eventOut.pop()
}

func (pc *PeerConnection) HandleTimeout(now time.Time) {
	if pc.closed {
		return
	}
	pc.pipe.HandleTimeout(now)
	pc.drainPipelineEvents()
}

func (pc *PeerConnection) PollTimeout() (time.Time, bool) {
	return pc.pipe.PollTimeout()
}

// drainPipelineEvents pulls every event the pipeline produced since the
// last drain and routes each into the orchestrator's own event vocabulary
// (events.go), updating mirrored state (IceConnectionState,
// PeerConnectionState, data channel handles) along the way.
func (pc *PeerConnection) drainPipelineEvents() {
	for {
		evt, ok := pc.pipe.PollEvent()
		if !ok {
			return
		}
		pc.routeEvent(evt)
	}
}

func (pc *PeerConnection) routeEvent(evt pipeline.Event) {
	switch evt.Kind {
	case pipeline.EventIceConnectionStateChange:
		pc.iceConnState = evt.IceConnectionState
		pc.eventOut.push(Event{Kind: EventIceConnectionStateChange, IceConnectionState: evt.IceConnectionState})
		pc.updateConnectionState()
	case pipeline.EventIceGatheringStateChange:
		pc.gatherState = evt.IceGatheringState
		pc.eventOut.push(Event{Kind: EventIceGatheringStateChange, IceGatheringState: evt.IceGatheringState})
	case pipeline.EventIceCandidateError:
		pc.eventOut.push(Event{Kind: EventIceCandidateError, Err: evt.Err})
	case pipeline.EventDtlsStateChange:
		pc.dtlsState = evt.DtlsState
		pc.updateConnectionState()
	case pipeline.EventSecurityFailure:
		pc.dtlsState = rtcbase.DtlsFailed
		pc.updateConnectionState()
		pc.eventOut.push(Event{Kind: EventIceCandidateError, Err: evt.Err})
	case pipeline.EventOnTrack:
		pc.eventOut.push(Event{Kind: EventOnTrack, TrackSSRC: evt.TrackSSRC, Mid: evt.Mid})
	case pipeline.EventDataChannelOpen:
		pc.handleDataChannelOpen(evt)
	case pipeline.EventDataChannelClose:
		if h, ok := pc.dataChannels[evt.DataChannelID]; ok {
			h.State = rtcbase.DataChannelClosed
			pc.acc.SetDataChannelState(evt.DataChannelID, h.State.String())
		}
		pc.eventOut.push(Event{Kind: EventDataChannelClose, DataChannelID: evt.DataChannelID})
	case pipeline.EventDataChannelMessage:
		pc.acc.RecordDataChannelReceived(evt.DataChannelID, len(evt.DataChannelPayload))
		pc.eventOut.push(Event{Kind: EventDataChannelMessage, DataChannelID: evt.DataChannelID, DataChannelPayload: evt.DataChannelPayload, DataChannelIsText: evt.DataChannelIsText})
	case pipeline.EventDataChannelError:
		pc.eventOut.push(Event{Kind: EventDataChannelError, DataChannelID: evt.DataChannelID, Err: evt.Err})
	case pipeline.EventBufferedAmountLow:
		pc.eventOut.push(Event{Kind: EventBufferedAmountLow, DataChannelID: evt.DataChannelID})
	}
}

// updateConnectionState aggregates IceConnectionState and DtlsTransportState
// into RTCPeerConnectionState per W3C §5.7.2: failed dominates, then
// disconnected, then closed; connected needs ICE connected/completed and
// DTLS connected, new needs both still new, and every other combination
// is connecting.
func (pc *PeerConnection) updateConnectionState() {
	var next rtcbase.PeerConnectionState
	switch {
	case pc.iceConnState == rtcbase.IceConnectionFailed || pc.dtlsState == rtcbase.DtlsFailed:
		next = rtcbase.PeerConnectionFailed
	case pc.iceConnState == rtcbase.IceConnectionDisconnected:
		next = rtcbase.PeerConnectionDisconnected
	case pc.iceConnState == rtcbase.IceConnectionClosed || pc.dtlsState == rtcbase.DtlsClosed:
		next = rtcbase.PeerConnectionClosed
	case (pc.iceConnState == rtcbase.IceConnectionConnected || pc.iceConnState == rtcbase.IceConnectionCompleted) && pc.dtlsState == rtcbase.DtlsConnected:
		next = rtcbase.PeerConnectionConnected
	case pc.iceConnState == rtcbase.IceConnectionNew && pc.dtlsState == rtcbase.DtlsNew:
		next = rtcbase.PeerConnectionNew
	default:
		next = rtcbase.PeerConnectionConnecting
	}
	if next == pc.pcState {
		return
	}
	pc.pcState = next
	pc.eventOut.push(Event{Kind: EventConnectionStateChange, ConnectionState: next})
}
