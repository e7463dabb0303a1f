package rtcbase

import "fmt"

// ErrorCategory классифицирует ошибки движка по семействам, описанным в
// разделе "ERROR HANDLING DESIGN" спецификации. Категория, а не конкретный
// тип ошибки, определяет как её обрабатывает оркестратор (см. Is).
type ErrorCategory int

const (
	ErrInvalidState ErrorCategory = iota + 1
	ErrInvalidParameter
	ErrSecurity
	ErrNetwork
	ErrProtocolParse
	ErrResourceExhausted
	ErrNotSupported
	ErrInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrInvalidState:
		return "InvalidState"
	case ErrInvalidParameter:
		return "InvalidParameter"
	case ErrSecurity:
		return "Security"
	case ErrNetwork:
		return "Network"
	case ErrProtocolParse:
		return "ProtocolParse"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	case ErrNotSupported:
		return "NotSupported"
	case ErrInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// EngineError — базовая ошибка движка: типизированная категория плюс
// опциональная обёрнутая причина. Слои строят её через NewEngineError/
// WrapEngineError, передавая своё имя в Layer; отдельных конструкторов
// на каждый слой нет.
type EngineError struct {
	Category ErrorCategory
	Layer     string // "ice", "dtls", "sctp", "srtp", "signaling", ...
	Message   string
	Wrapped   error
}

func NewEngineError(category ErrorCategory, layer, message string) *EngineError {
	return &EngineError{Category: category, Layer: layer, Message: message}
}

func WrapEngineError(category ErrorCategory, layer, message string, cause error) *EngineError {
	return &EngineError{Category: category, Layer: layer, Message: message, Wrapped: cause}
}

func (e *EngineError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Layer, e.Category, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Wrapped
}

// Is поддерживает errors.Is по категории — два *EngineError совпадают, если
// у них одна категория, независимо от слоя и сообщения.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// CategoryOf извлекает категорию из ошибки, если это *EngineError в цепочке
// оборачивания; иначе возвращает ErrInternal.
func CategoryOf(err error) ErrorCategory {
	var ee *EngineError
	for err != nil {
		if e, ok := err.(*EngineError); ok {
			ee = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ee == nil {
		return ErrInternal
	}
	return ee.Category
}
