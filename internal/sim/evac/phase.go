package evac

import "sync"

// Phase is the global simulation stage. It only ever advances:
// Normal -> Evacuating -> Finished.
type Phase int

const (
	PhaseNormal Phase = iota
	PhaseEvacuating
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNormal:
		return "normal"
	case PhaseEvacuating:
		return "evacuating"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// phaseController holds the global phase and the run flag every worker polls.
// The two are set together when the orchestrator shuts the run down; workers
// check both so a missed phase read still ends the loop within one tick.
type phaseController struct {
	mu      sync.RWMutex
	phase   Phase
	running bool
}

func newPhaseController() *phaseController {
	return &phaseController{phase: PhaseNormal, running: true}
}

func (pc *phaseController) Phase() Phase {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.phase
}

// advance moves the phase forward. Regressions are ignored so the progression
// stays monotonic no matter the caller.
func (pc *phaseController) advance(p Phase) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if p > pc.phase {
		pc.phase = p
	}
}

func (pc *phaseController) Running() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.running
}

func (pc *phaseController) stop() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.running = false
}
