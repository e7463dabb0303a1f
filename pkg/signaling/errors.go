package signaling

import (
	"fmt"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// errInvalidState/errInvalidParameter строят *rtcbase.EngineError с
// layer="signaling", тем же способом, каким pkg/media/errors.go в
// teacher-репозитории заводит конструкторы по категориям для своего
// слоя — см. DESIGN.md.
func errInvalidState(format string, args ...interface{}) error {
	return rtcbase.NewEngineError(rtcbase.ErrInvalidState, "signaling", fmt.Sprintf(format, args...))
}

func errInvalidParameter(format string, args ...interface{}) error {
	return rtcbase.NewEngineError(rtcbase.ErrInvalidParameter, "signaling", fmt.Sprintf(format, args...))
}
