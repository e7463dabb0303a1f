package pipeline

import "time"

// Handler — единый синхронный контракт, реализуемый каждым слоем движка и
// самим оркестратором. Ни один метод не блокируется; длинная работа (скажем,
// проверка сертификата) выполняется целиком внутри HandleRead/HandleTimeout.
//
// Гарантия порядка: значения, извлечённые последовательными вызовами
// PollRead/PollWrite/PollEvent, приходят в порядке их производства.
// Determinism: для одной и той же начальной конфигурации и одной и той же
// последовательности вызовов (с неубывающими now) выходная последовательность
// воспроизводима побайтово.
type Handler interface {
	// HandleRead поглощает входящее сообщение (со стороны сети).
	HandleRead(msg PipelineMessage) error
	// PollRead вычерпывает следующее сообщение, готовое двигаться дальше
	// вверх по конвейеру. Вызывающий повторяет вызов, пока не получит false.
	PollRead() (PipelineMessage, bool)

	// HandleWrite поглощает исходящее сообщение от верхнего слоя/приложения.
	HandleWrite(msg PipelineMessage) error
	// PollWrite вычерпывает следующее сообщение, готовое двигаться дальше
	// вниз по конвейеру, к проводу.
	PollWrite() (PipelineMessage, bool)

	// HandleEvent поглощает событие, пришедшее снизу (смена состояния,
	// завершение хендшейка, ...).
	HandleEvent(evt Event) error
	// PollEvent вычерпывает следующее событие, предназначенное выше.
	PollEvent() (Event, bool)

	// HandleTimeout продвигает внутренние таймеры. now не убывает между
	// последовательными вызовами; повторная передача того же now допустима.
	HandleTimeout(now time.Time)
	// PollTimeout возвращает минимальный дедлайн среди всех таймеров,
	// принадлежащих Handler'у, либо ok=false, если таймеров нет.
	PollTimeout() (deadline time.Time, ok bool)

	// Close освобождает состояние. Идемпотентен; после Close Handler не
	// производит новых выходов, а HandleRead/HandleWrite становятся no-op.
	Close() error
}

// BaseHandler — встраиваемая реализация очередей ввода/вывода/событий и
// учёта закрытия, общая почти для всех слоёв. Конкретные Handler'ы
// встраивают BaseHandler и переопределяют только то, что им специфично,
// так же как teacher-репозиторий делит сквозную bookkeeping-логику между
// session-подобными структурами.
type BaseHandler struct {
	closed    bool
	readOut   queue[PipelineMessage]
	writeOut  queue[PipelineMessage]
	eventOut  queue[Event]
}

func (b *BaseHandler) emitRead(msg PipelineMessage) {
	if b.closed {
		return
	}
	b.readOut.push(msg)
}

func (b *BaseHandler) emitWrite(msg PipelineMessage) {
	if b.closed {
		return
	}
	b.writeOut.push(msg)
}

func (b *BaseHandler) emitEvent(evt Event) {
	if b.closed {
		return
	}
	b.eventOut.push(evt)
}

func (b *BaseHandler) PollRead() (PipelineMessage, bool)  { return b.readOut.pop() }
func (b *BaseHandler) PollWrite() (PipelineMessage, bool) { return b.writeOut.pop() }
func (b *BaseHandler) PollEvent() (Event, bool)            { return b.eventOut.pop() }

func (b *BaseHandler) IsClosed() bool { return b.closed }

func (b *BaseHandler) markClosed() {
	b.closed = true
	b.readOut = queue[PipelineMessage]{}
	b.writeOut = queue[PipelineMessage]{}
	b.eventOut = queue[Event]{}
}
