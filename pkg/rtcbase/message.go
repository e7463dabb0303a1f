package rtcbase

import "time"

// TaggedMessage — универсальный конверт, пересекающий границу движка.
// Timestamp — монотонное время, предоставленное хостом; движок никогда не
// читает его из системных часов самостоятельно.
type TaggedMessage[T any] struct {
	Timestamp time.Time
	Transport TransportContext
	Payload   T
}

// NewTaggedMessage — удобный конструктор.
func NewTaggedMessage[T any](now time.Time, transport TransportContext, payload T) TaggedMessage[T] {
	return TaggedMessage[T]{Timestamp: now, Transport: transport, Payload: payload}
}

// Map применяет f к payload, сохраняя время и транспорт — используется при
// понижении/повышении типа payload на границе между слоями.
func (m TaggedMessage[T]) Map(f func(T) T) TaggedMessage[T] {
	m.Payload = f(m.Payload)
	return m
}
