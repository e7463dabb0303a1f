package pipeline

import "time"

// Pipeline — оркестрация фиксированного, известного на этапе конфигурации
// списка Handler'ов (Demuxer → Ice → Dtls → Sctp → DataChannel → Srtp →
// Interceptor → Endpoint), реализующая §4.2 спецификации: двунаправленный
// обход read/write, агрегацию таймеров и распространение событий через
// промежуточную очередь.
//
// Handlers хранится в порядке "снизу вверх" (индекс 0 — Demuxer, ближе к
// проводу; последний — Endpoint, ближе к приложению). HandleRead обходит
// список вперёд, HandleWrite — в обратном порядке.
type Pipeline struct {
	handlers []Handler

	appReadOut  queue[PipelineMessage]
	appWriteOut queue[PipelineMessage]
	appEventOut queue[Event]
}

func NewPipeline(handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: handlers}
}

func (p *Pipeline) Handlers() []Handler { return p.handlers }

// HandleRead протягивает msg вперёд по списку: на каждом шаге передаёт все
// накопленные промежуточные сообщения в HandleRead текущего Handler'а, затем
// вычерпывает его PollRead в промежуточную очередь для следующего шага.
// После последнего Handler'а (Endpoint) остаток — сообщения, видимые
// приложению, они попадают в очередь, вычерпываемую Pipeline.PollRead.
func (p *Pipeline) HandleRead(msg PipelineMessage) error {
	pending := []PipelineMessage{msg}
	for _, h := range p.handlers {
		for _, m := range pending {
			if err := h.HandleRead(m); err != nil {
				return err
			}
		}
		pending = pending[:0]
		for {
			out, ok := h.PollRead()
			if !ok {
				break
			}
			pending = append(pending, out)
		}
		p.pumpEventsFrom(h)
	}
	for _, m := range pending {
		p.appReadOut.push(m)
	}
	return nil
}

// HandleWrite — симметрично HandleRead, но список обходится в обратном
// порядке: от Endpoint к Demuxer. Итог — сырые байты для провода.
func (p *Pipeline) HandleWrite(msg PipelineMessage) error {
	pending := []PipelineMessage{msg}
	for i := len(p.handlers) - 1; i >= 0; i-- {
		h := p.handlers[i]
		for _, m := range pending {
			if err := h.HandleWrite(m); err != nil {
				return err
			}
		}
		pending = pending[:0]
		for {
			out, ok := h.PollWrite()
			if !ok {
				break
			}
			pending = append(pending, out)
		}
		p.pumpEventsFrom(h)
	}
	for _, m := range pending {
		p.appWriteOut.push(m)
	}
	return nil
}

// pumpEventsFrom вычерпывает события, накопленные Handler'ом h за последний
// вызов, и пропускает их через каждый Handler выше h (в сторону приложения).
// Если Handler в ответ на HandleEvent выдал событие, дальше идёт первое из
// выданных им вместо текущего; если не выдал, дальше идёт текущее. Отбросить
// событие Handler не может: каждое доходит до очереди, видимой оркестратору.
func (p *Pipeline) pumpEventsFrom(h Handler) {
	idx := p.indexOf(h)
	for {
		evt, ok := h.PollEvent()
		if !ok {
			return
		}
		p.propagateUp(idx, evt)
	}
}

func (p *Pipeline) propagateUp(originIdx int, evt Event) {
	cur := evt
	for j := originIdx + 1; j < len(p.handlers); j++ {
		if err := p.handlers[j].HandleEvent(cur); err != nil {
			continue
		}
		if mapped, ok := p.handlers[j].PollEvent(); ok {
			cur = mapped
		}
	}
	p.appEventOut.push(cur)
}

// InjectEvent позволяет оркестратору доставить событие напрямую на вход
// конкретного Handler'а (например, ICE-кандидат, добавленный приложением).
// Само evt выше h не передаётся: вверх распространяются события, которые h
// выдал в ответ, так же, как любые события, произведённые самим Handler'ом.
func (p *Pipeline) InjectEvent(h Handler, evt Event) error {
	if err := h.HandleEvent(evt); err != nil {
		return err
	}
	idx := p.indexOf(h)
	p.pumpEventsFrom(h)
	_ = idx
	return nil
}

func (p *Pipeline) indexOf(h Handler) int {
	for i, x := range p.handlers {
		if x == h {
			return i
		}
	}
	return -1
}

// drainWriteFrom вычерпывает PollWrite накопленный handlers[idx] (например,
// STUN connectivity check, который Ice завела себе в HandleTimeout) и
// протягивает результат через все Handler'ы ниже idx — к проводу — тем же
// способом, каким HandleWrite обходит нижнюю половину списка.
func (p *Pipeline) drainWriteFrom(idx int) {
	var pending []PipelineMessage
	for {
		out, ok := p.handlers[idx].PollWrite()
		if !ok {
			break
		}
		pending = append(pending, out)
	}
	if len(pending) == 0 {
		return
	}
	for i := idx - 1; i >= 0; i-- {
		h := p.handlers[i]
		for _, m := range pending {
			if err := h.HandleWrite(m); err != nil {
				return
			}
		}
		pending = pending[:0]
		for {
			out, ok := h.PollWrite()
			if !ok {
				break
			}
			pending = append(pending, out)
		}
		p.pumpEventsFrom(h)
	}
	for _, m := range pending {
		p.appWriteOut.push(m)
	}
}

// InjectDescendingWrite позволяет оркестратору протолкнуть сообщение,
// которое уже лежит в очереди PollWrite Handler'а h (например,
// DATA_CHANNEL_OPEN, заведённый DataChannel.OpenChannel вне обычного
// handle_write обхода), вниз по конвейеру к проводу — той же дорогой,
// которой идут записи, произведённые самим Handler'ом при HandleTimeout.
func (p *Pipeline) InjectDescendingWrite(h Handler) {
	idx := p.indexOf(h)
	if idx < 0 {
		return
	}
	p.drainWriteFrom(idx)
}

// HandleTimeout транслируется каждому Handler'у без гарантии порядка между
// ними — таймеры у каждого слоя свои. Любые записи, которые Handler завёл
// себе во время HandleTimeout (например, STUN connectivity check), тут же
// протягиваются вниз по конвейеру тем же способом, каким это делает
// обычный handle_write обход.
func (p *Pipeline) HandleTimeout(now time.Time) {
	for i, h := range p.handlers {
		h.HandleTimeout(now)
		p.pumpEventsFrom(h)
		p.drainWriteFrom(i)
	}
}

// PollTimeout возвращает минимум среди дедлайнов всех Handler'ов.
func (p *Pipeline) PollTimeout() (time.Time, bool) {
	var best time.Time
	found := false
	for _, h := range p.handlers {
		if d, ok := h.PollTimeout(); ok {
			if !found || d.Before(best) {
				best = d
				found = true
			}
		}
	}
	return best, found
}

func (p *Pipeline) PollRead() (PipelineMessage, bool)  { return p.appReadOut.pop() }
func (p *Pipeline) PollWrite() (PipelineMessage, bool) { return p.appWriteOut.pop() }
func (p *Pipeline) PollEvent() (Event, bool)           { return p.appEventOut.pop() }

// Close закрывает все Handler'ы в порядке "сверху вниз" — тот же порядок,
// в котором scoped-ресурсы освобождаются в teacher-коде (сначала
// прекращается приём новых данных, потом — транспорт).
func (p *Pipeline) Close() error {
	var firstErr error
	for i := len(p.handlers) - 1; i >= 0; i-- {
		if err := p.handlers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
