package workflow

import (
	"fmt"

	"github.com/agenthands/cartographer/internal/core/model"
)

// Event is what a phase handler reports back to the machine.
type Event string

const (
	// EventAdvance moves to the next phase in order.
	EventAdvance Event = "advance"
	// EventLoop returns from critique to gather for another iteration.
	EventLoop Event = "loop"
	// EventFail jumps to the terminal failed phase.
	EventFail Event = "fail"
)

// Next is the pure transition function of the state machine. It has no
// side effects and no knowledge of state beyond the phase itself, which
// keeps the loop bound and terminal conditions independently testable.
func Next(p model.Phase, e Event) (model.Phase, error) {
	if e == EventFail {
		if p.Terminal() {
			return p, fmt.Errorf("no transition from terminal phase %q", p)
		}
		return model.PhaseFailed, nil
	}

	switch {
	case p == model.PhaseInit && e == EventAdvance:
		return model.PhaseGather, nil
	case p == model.PhaseGather && e == EventAdvance:
		return model.PhaseExtract, nil
	case p == model.PhaseExtract && e == EventAdvance:
		return model.PhaseCritique, nil
	case p == model.PhaseCritique && e == EventAdvance:
		return model.PhaseScore, nil
	case p == model.PhaseCritique && e == EventLoop:
		return model.PhaseGather, nil
	case p == model.PhaseScore && e == EventAdvance:
		return model.PhaseSynthesize, nil
	case p == model.PhaseSynthesize && e == EventAdvance:
		return model.PhaseComplete, nil
	}
	return p, fmt.Errorf("no transition from phase %q on event %q", p, e)
}
