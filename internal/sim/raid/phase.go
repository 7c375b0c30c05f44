package raid

import (
	"context"
	"io"
	"log"

	"github.com/looplab/fsm"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseResolving Phase = "resolving"
)

const (
	evStart = "start"
	evWin   = "win"
	evLose  = "lose"
	evAbort = "abort"
	evEnd   = "end"
)

// phaseMachine guards raid phase transitions. Callers hold Manager.mu.
type phaseMachine struct {
	f *fsm.FSM
}

func newPhaseMachine(logger *log.Logger) *phaseMachine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	f := fsm.NewFSM(
		string(PhaseIdle),
		fsm.Events{
			{Name: evStart, Src: []string{string(PhaseIdle)}, Dst: string(PhaseActive)},
			{Name: evWin, Src: []string{string(PhaseActive)}, Dst: string(PhaseResolving)},
			{Name: evLose, Src: []string{string(PhaseActive)}, Dst: string(PhaseResolving)},
			{Name: evAbort, Src: []string{string(PhaseActive)}, Dst: string(PhaseResolving)},
			{Name: evEnd, Src: []string{string(PhaseResolving)}, Dst: string(PhaseIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Printf("phase %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
	return &phaseMachine{f: f}
}

func (p *phaseMachine) Current() Phase { return Phase(p.f.Current()) }

// fire applies ev and reports whether the transition happened.
func (p *phaseMachine) fire(ev string) bool {
	return p.f.Event(context.Background(), ev) == nil
}

// force sets the phase without running callbacks. Used when loading saved state.
func (p *phaseMachine) force(ph Phase) { p.f.SetState(string(ph)) }
