// Package interceptor реализует компонуемую на этапе конфигурации цепочку
// обработчиков RTP/RTCP: каждый интерсептор оборачивает "внутренний"
// (inner) интерсептор и либо
// наблюдает проходящие пакеты на плече handle_*, либо впрыскивает новые на
// плече poll_*, прежде чем делегировать вызов внутрь. Терминатор цепочки —
// Noop, который ничего не делает, кроме прозрачной буферизации ввода в
// вывод.
//
// Композиция строится Registry: начиная с Noop, каждый добавленный
// интерсептор берёт текущую цепочку как свой inner. Звенья хранят inner как
// значение интерфейса Interceptor, и Build возвращает тот же интерфейс:
// вызовы вдоль цепочки идут через динамическую диспетчеризацию, тип
// собранной цепочки компилятору не известен.
package interceptor
