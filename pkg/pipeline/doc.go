// Package pipeline реализует Protocol contract, разделяемый всеми слоями
// движка (Demuxer, Ice, Dtls, Sctp, DataChannel, Srtp, Interceptor,
// Endpoint), и сами эти слои.
//
// Каждый Handler синхронен: handle_* никогда не блокируется, poll_*
// вычерпывает накопленный вывод в порядке производства. Время передаётся
// извне через handle_timeout(now) — пакет не читает системные часы.
package pipeline
