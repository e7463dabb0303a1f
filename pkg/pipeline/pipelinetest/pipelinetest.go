// Package pipelinetest драйвит Handler через сценарий handle_*/poll_*/
// handle_timeout вызовов и возвращает итоговую последовательность выходов,
// которую тест сверяет с ожидаемой, для проверки свойства детерминизма (spec.md §8.1):
// одна и та же начальная конфигурация плюс одна и та же
// последовательность вызовов (с неубывающим now) обязаны воспроизводить
// побайтово идентичный выход. Грубо повторяет table-driven стиль
// teacher-овского pkg/rtp/session_test.go, но без mock-транспорта —
// Handler уже sans-I/O, и его можно просто вызывать напрямую.
package pipelinetest

import (
	"fmt"
	"time"

	"github.com/arzzra/rtcengine/pkg/pipeline"
)

// Step — один шаг сценария. Ровно одно из полей Read/Write/Event/Timeout
// должно быть задано; нулевой Step (все поля пустые) — ошибка сценария.
type Step struct {
	Read    *pipeline.PipelineMessage
	Write   *pipeline.PipelineMessage
	Event   *pipeline.Event
	Timeout *time.Time
}

// ReadStep, WriteStep, EventStep, TimeoutStep — конструкторы шагов,
// избавляющие вызывающий код от ручного взятия адреса литерала.
func ReadStep(msg pipeline.PipelineMessage) Step    { return Step{Read: &msg} }
func WriteStep(msg pipeline.PipelineMessage) Step   { return Step{Write: &msg} }
func EventStep(evt pipeline.Event) Step             { return Step{Event: &evt} }
func TimeoutStep(now time.Time) Step                { return Step{Timeout: &now} }

// Outcome — вычерпанный после шага выход, снятый с трёх
// Poll*-каналов (PollRead, PollWrite, PollEvent) до полного осушения
// каждого; PollTimeout не опрашивается.
type Outcome struct {
	Reads  []pipeline.PipelineMessage
	Writes []pipeline.PipelineMessage
	Events []pipeline.Event
}

// Run прогоняет handler через steps по порядку, после каждого шага
// вычерпывая PollRead, PollWrite и PollEvent до исчерпания, и возвращает один
// Outcome на шаг — вызывающий код сравнивает длину/содержимое срезов с
// ожидаемым сценарием через require.Equal, получая побайтовую проверку
// детерминизма без необходимости переизобретать цикл вычёрпывания в
// каждом тесте.
func Run(h pipeline.Handler, steps []Step) ([]Outcome, error) {
	outcomes := make([]Outcome, len(steps))
	for i, step := range steps {
		if err := apply(h, step); err != nil {
			return outcomes, fmt.Errorf("шаг %d: %w", i, err)
		}
		outcomes[i] = drain(h)
	}
	return outcomes, nil
}

func apply(h pipeline.Handler, step Step) error {
	switch {
	case step.Read != nil:
		return h.HandleRead(*step.Read)
	case step.Write != nil:
		return h.HandleWrite(*step.Write)
	case step.Event != nil:
		return h.HandleEvent(*step.Event)
	case step.Timeout != nil:
		h.HandleTimeout(*step.Timeout)
		return nil
	default:
		return fmt.Errorf("пустой шаг сценария")
	}
}

func drain(h pipeline.Handler) Outcome {
	var out Outcome
	for {
		msg, ok := h.PollRead()
		if !ok {
			break
		}
		out.Reads = append(out.Reads, msg)
	}
	for {
		msg, ok := h.PollWrite()
		if !ok {
			break
		}
		out.Writes = append(out.Writes, msg)
	}
	for {
		evt, ok := h.PollEvent()
		if !ok {
			break
		}
		out.Events = append(out.Events, evt)
	}
	return out
}

// RunTwice выполняет один и тот же сценарий на двух отдельно построенных
// Handler'ах (fresh у каждого вызова build) и возвращает оба результата —
// прямая проверка свойства 1 (детерминизм): одинаковый вход должен дать
// одинаковый выход независимо от того, какой именно экземпляр его
// обработал.
func RunTwice(build func() pipeline.Handler, steps []Step) (a, b []Outcome, err error) {
	a, err = Run(build(), steps)
	if err != nil {
		return nil, nil, fmt.Errorf("первый прогон: %w", err)
	}
	b, err = Run(build(), steps)
	if err != nil {
		return nil, nil, fmt.Errorf("второй прогон: %w", err)
	}
	return a, b, nil
}
