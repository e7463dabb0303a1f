package mdns

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

const (
	queryInterval  = time.Second
	queryMaxRetries = 3
)

type pendingQuery struct {
	attempts int
	nextAt   time.Time
}

// Handler implements the engine's handle/poll contract for the mDNS
// obfuscation sub-protocol (RFC 6762), entirely in terms of raw
// datagrams — it never opens a socket itself. The host multiplexes
// traffic destined for UDP port 5353 to HandleRead and reads outbound
// datagrams from PollWrite, exactly as it does for every other layer of
// the main pipeline.
type Handler struct {
	localNames map[string]net.IP
	pending    map[string]*pendingQuery

	readOut  queue[Message]
	writeOut queue[Message]
	eventOut queue[Event]

	nextID uint16
	closed bool
}

func NewHandler() *Handler {
	return &Handler{
		localNames: make(map[string]net.IP),
		pending:    make(map[string]*pendingQuery),
	}
}

// BindLocalName publishes a candidate's obfuscated name: incoming A
// queries for it are answered with addr.
func (h *Handler) BindLocalName(name string, addr net.IP) {
	h.localNames[name] = addr
}

func (h *Handler) UnbindLocalName(name string) {
	delete(h.localNames, name)
}

// Query starts resolving a remote peer's "<uuid>.local" candidate name.
// The first probe is emitted immediately; HandleTimeout retries it.
func (h *Handler) Query(name string) {
	h.pending[name] = &pendingQuery{}
	h.writeOut.push(h.buildQuery(name))
}

func (h *Handler) buildQuery(name string) Message {
	h.nextID++
	msg := new(dns.Msg)
	msg.Id = h.nextID
	msg.Question = []dns.Question{{Name: dns.Fqdn(name), Qtype: dns.TypeA, Qclass: dns.ClassINET}}
	raw, err := msg.Pack()
	if err != nil {
		return Message{Kind: MsgRaw}
	}
	return Message{Kind: MsgRaw, Raw: raw}
}

func (h *Handler) HandleRead(msg Message) error {
	if h.closed || msg.Kind != MsgRaw {
		return nil
	}
	parsed := new(dns.Msg)
	if err := parsed.Unpack(msg.Raw); err != nil {
		return nil // повреждённый mDNS-пакет — тихо отбрасываем
	}

	for _, q := range parsed.Question {
		h.answerQuestion(q)
	}
	for _, rr := range parsed.Answer {
		h.consumeAnswer(rr)
	}
	return nil
}

func (h *Handler) answerQuestion(q dns.Question) {
	if q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY {
		return
	}
	addr, ok := h.localNames[trimDot(q.Name)]
	if !ok {
		return
	}
	answer := new(dns.Msg)
	answer.Response = true
	answer.Authoritative = true
	answer.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120},
		A:   addr,
	}}
	raw, err := answer.Pack()
	if err != nil {
		return
	}
	h.writeOut.push(Message{Kind: MsgRaw, Raw: raw})
}

func (h *Handler) consumeAnswer(rr dns.RR) {
	a, ok := rr.(*dns.A)
	if !ok {
		return
	}
	name := trimDot(a.Hdr.Name)
	if _, waiting := h.pending[name]; !waiting {
		return
	}
	delete(h.pending, name)
	h.readOut.push(Message{Kind: MsgResolved, ResolvedName: name, ResolvedAddr: a.A})
}

func trimDot(name string) string {
	if len(name) > 0 && name[len(name)-1] == '.' {
		return name[:len(name)-1]
	}
	return name
}

func (h *Handler) HandleWrite(msg Message) error {
	if h.closed {
		return nil
	}
	h.writeOut.push(msg)
	return nil
}

func (h *Handler) HandleEvent(Event) error { return nil }

// HandleTimeout re-sends any query that has not yet resolved, up to
// queryMaxRetries, then gives up and reports EventQueryTimedOut.
func (h *Handler) HandleTimeout(now time.Time) {
	if h.closed {
		return
	}
	for name, p := range h.pending {
		if p.nextAt.After(now) {
			continue
		}
		if p.attempts >= queryMaxRetries {
			delete(h.pending, name)
			h.eventOut.push(Event{Kind: EventQueryTimedOut, Name: name})
			continue
		}
		p.attempts++
		p.nextAt = now.Add(queryInterval)
		h.writeOut.push(h.buildQuery(name))
	}
}

func (h *Handler) PollTimeout() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, p := range h.pending {
		if !found || p.nextAt.Before(earliest) {
			earliest = p.nextAt
			found = true
		}
	}
	return earliest, found
}

func (h *Handler) PollRead() (Message, bool)  { return h.readOut.pop() }
func (h *Handler) PollWrite() (Message, bool) { return h.writeOut.pop() }
func (h *Handler) PollEvent() (Event, bool)   { return h.eventOut.pop() }

func (h *Handler) Close() error {
	h.closed = true
	return nil
}
