package mdns

import "net"

// MessageKind различает входящий/исходящий датаграммный трафик mDNS от
// команд, которыми хост управляет публикацией и разрешением имён.
type MessageKind int

const (
	// MsgRaw — сырая mDNS-датаграмма (порт 5353), идущая в handle_read/
	// poll_write на границе с хостовым сокетом.
	MsgRaw MessageKind = iota
	// MsgResolved эмитится в poll_read, когда пришёл ответ на заданный
	// ранее запрос Query.
	MsgResolved
)

// Message — конверт протокольного контракта mDNS.
type Message struct {
	Kind MessageKind

	Raw []byte

	ResolvedName string
	ResolvedAddr net.IP
}

// EventKind — события, видимые хосту через poll_event.
type EventKind int

const (
	// EventQueryTimedOut эмитится, когда запрошенное имя не разрешилось
	// после первой попытки и queryMaxRetries повторов.
	EventQueryTimedOut EventKind = iota
)

// Event — конверт событий mDNS-протокола.
type Event struct {
	Kind EventKind
	Name string
}
