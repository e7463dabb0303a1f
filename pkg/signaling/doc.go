// Package signaling содержит оркестратор PeerConnection: владеет
// неизменным списком Handler'ов конвейера, таблицей трансиверов,
// автоматом состояния согласования (с rollback) и очередью
// negotiation-needed. Он сам реализует Protocol contract, так что со
// стороны host это ровно такой же объект, как любой Handler слоя ниже.
//
// Пакет не делает сетевого ввода-вывода и не читает системные часы:
// время приходит через handle_timeout(now) / явные now-параметры
// (create_offer, get_stats), как и во всех остальных слоях.
package signaling
