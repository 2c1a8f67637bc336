package session

import (
	"fmt"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
)

// Transition is the plan for one signal. Steps run in field order: close
// the current interval, open a new one, then append the instantaneous
// event.
type Transition struct {
	From  Phase
	Close activity.CloseReason
	Open  bool
	Log   bool
}

// Closes reports whether the plan closes the current interval.
func (t Transition) Closes() bool {
	return t.Close != activity.ReasonNone
}

// Decide maps the current open session and an incoming code to a plan.
// It performs no I/O.
func Decide(current *OpenSession, code activity.Code) (Transition, error) {
	phase := PhaseOf(current)
	tr := Transition{From: phase}

	switch phase {
	case Idle:
		switch code {
		case activity.CheckIn, activity.CheckOut, activity.Leave, activity.Medical:
			tr.Log = true
			return tr, nil
		case activity.Restroom, activity.Meal, activity.Errand:
			tr.Open = true
			return tr, nil
		}
	case OnBreak:
		switch code {
		case activity.CheckIn, activity.Leave, activity.Medical:
			// The open interval stays open.
			tr.Log = true
			return tr, nil
		case activity.CheckOut:
			tr.Close = activity.ReasonCheckout
			tr.Log = true
			return tr, nil
		case activity.Restroom, activity.Meal, activity.Errand:
			if code == current.Code {
				tr.Close = activity.ReasonRepeat
				return tr, nil
			}
			tr.Close = activity.ReasonSuperseded
			tr.Open = true
			return tr, nil
		}
	}
	return Transition{}, fmt.Errorf("%w: %q", ErrInvalidSignal, code)
}
