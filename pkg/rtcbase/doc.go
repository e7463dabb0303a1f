// Package rtcbase содержит типы, общие для всех слоёв движка: идентификаторы
// потоков (SSRC, Mid, Rid, DataChannelId), транспортный контекст, конверт
// TaggedMessage и единый набор категорий ошибок.
//
// Пакет не содержит сетевого кода и не читает системные часы — значения
// времени приходят извне (см. TaggedMessage.Timestamp).
package rtcbase
