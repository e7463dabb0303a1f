package interceptor

import "time"

// ntpEpochOffset — секунды между 1900-01-01 (эпоха NTP) и 1970-01-01 (эпоха
// time.Time/Unix).
const ntpEpochOffset = 2208988800

// toNTP конвертирует wall-clock время в 64-битный фиксированный формат NTP
// (32.32), как того требует RTCP Sender Report.
func toNTP(t time.Time) uint64 {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64(float64(t.Nanosecond()) * (1 << 32) / 1e9)
	return secs | frac
}

// middle32 извлекает средние 32 бита 64-битного NTP-времени, как того
// требует поле LSR RTCP Receiver Report Block.
func middle32(ntp uint64) uint32 {
	return uint32(ntp >> 16)
}
