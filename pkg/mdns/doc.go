// Package mdns реализует обфускацию локальных ICE-кандидатов через mDNS
// (RFC 6762), оформленную как отдельный экземпляр протокольного контракта
// движка: handle_read/poll_read/handle_write/poll_write/handle_timeout,
// без привязки к сокету. Хост сам решает, какой трафик относится к mDNS —
// по назначению порта 5353 — и передаёт сырые датаграммы сюда.
//
// Кодирование/разбор сообщений A-записей выполняет github.com/miekg/dns —
// чистая работа с байтами, без побочного сетевого ввода-вывода, в отличие
// от github.com/pion/mdns/v2, чей Conn сам открывает multicast-сокет в
// конструкторе (см. DESIGN.md).
package mdns
