package signaling

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Строковые имена состояний/событий для looplab/fsm — généralisé версия
// teacher-овского ReferFSM (pkg/dialog/refer_fsm.go): тот же
// fsm.NewFSM(initial, fsm.Events{...}, nil) идиом, но таблица переходов
// теперь W3C RTCSignalingState (§4.9), а не состояния REFER-подписки.
const (
	stStable             = "stable"
	stHaveLocalOffer     = "have-local-offer"
	stHaveLocalPranswer  = "have-local-pranswer"
	stHaveRemoteOffer    = "have-remote-offer"
	stHaveRemotePranswer = "have-remote-pranswer"
	stClosed             = "closed"

	evSetLocalOffer      = "set-local-offer"
	evSetLocalAnswer     = "set-local-answer"
	evSetLocalPranswer   = "set-local-pranswer"
	evSetRemoteOffer     = "set-remote-offer"
	evSetRemoteAnswer    = "set-remote-answer"
	evSetRemotePranswer  = "set-remote-pranswer"
	evRollback           = "rollback"
	evClose              = "close"
)

// newSignalingFSM codifies the W3C setLocalDescription/setRemoteDescription
// transition table, including the rollback edges spec.md §4.9 calls out
// explicitly (HaveLocalOffer/HaveRemoteOffer --rollback--> Stable).
func newSignalingFSM() *fsm.FSM {
	return fsm.NewFSM(
		stStable,
		fsm.Events{
			{Name: evSetLocalOffer, Src: []string{stStable}, Dst: stHaveLocalOffer},
			{Name: evSetRemoteOffer, Src: []string{stStable}, Dst: stHaveRemoteOffer},

			{Name: evSetLocalPranswer, Src: []string{stHaveRemoteOffer}, Dst: stHaveLocalPranswer},
			{Name: evSetLocalAnswer, Src: []string{stHaveRemoteOffer, stHaveLocalPranswer}, Dst: stStable},

			{Name: evSetRemotePranswer, Src: []string{stHaveLocalOffer}, Dst: stHaveRemotePranswer},
			{Name: evSetRemoteAnswer, Src: []string{stHaveLocalOffer, stHaveRemotePranswer}, Dst: stStable},

			// Повторная установка того же типа описания в открытом
			// согласовании допустима по W3C (например, второй offer с тем
			// же ufrag при ICE restart) — self-loop на текущем состоянии.
			{Name: evSetLocalOffer, Src: []string{stHaveLocalOffer}, Dst: stHaveLocalOffer},
			{Name: evSetRemoteOffer, Src: []string{stHaveRemoteOffer}, Dst: stHaveRemoteOffer},

			{Name: evRollback, Src: []string{stHaveLocalOffer}, Dst: stStable},
			{Name: evRollback, Src: []string{stHaveRemoteOffer}, Dst: stStable},

			{Name: evClose, Src: []string{stStable, stHaveLocalOffer, stHaveLocalPranswer, stHaveRemoteOffer, stHaveRemotePranswer}, Dst: stClosed},
		},
		nil,
	)
}

func toRtcbaseState(s string) rtcbase.SignalingState {
	switch s {
	case stStable:
		return rtcbase.SignalingStable
	case stHaveLocalOffer:
		return rtcbase.SignalingHaveLocalOffer
	case stHaveLocalPranswer:
		return rtcbase.SignalingHaveLocalPranswer
	case stHaveRemoteOffer:
		return rtcbase.SignalingHaveRemoteOffer
	case stHaveRemotePranswer:
		return rtcbase.SignalingHaveRemotePranswer
	default:
		return rtcbase.SignalingClosed
	}
}

// applySignalingEvent drives the fsm and translates its Unknown-transition
// error into the engine's InvalidState error category; "no such edge"
// is exactly the W3C InvalidStateError condition (e.g. rollback from
// Stable, per spec.md S5).
func applySignalingEvent(f *fsm.FSM, event string) error {
	if err := f.Event(context.Background(), event); err != nil {
		// looplab/fsm сообщает о переходе в то же состояние как
		// NoTransitionError; для self-loop рёбер таблицы это успех.
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		return errInvalidState("invalid signaling transition %s from %s: %v", event, f.Current(), err)
	}
	return nil
}
