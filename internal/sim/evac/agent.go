package evac

import (
	"math/rand"
	"sync"
	"time"
)

// AgentState tracks where an agent is in its lifecycle. Exited and Stopped
// are terminal; a worker never leaves a terminal state.
type AgentState int

const (
	AgentWandering AgentState = iota
	AgentEvacuating
	AgentExited
	AgentStopped
)

func (s AgentState) String() string {
	switch s {
	case AgentWandering:
		return "wandering"
	case AgentEvacuating:
		return "evacuating"
	case AgentExited:
		return "exited"
	case AgentStopped:
		return "stopped"
	}
	return "unknown"
}

// Agent is one inhabitant of the grid, driven by its own goroutine. Position,
// cached route and target door are owned exclusively by that goroutine; all
// cross-agent coordination happens through the grid's occupancy set.
type Agent struct {
	ID    int
	delay time.Duration
	rng   *rand.Rand

	// goroutine-owned, no guard needed
	pos    Position
	route  []Position
	target *Door

	mu    sync.Mutex
	state AgentState
}

func newAgent(id int, pos Position, delay time.Duration, seed int64) *Agent {
	return &Agent{
		ID:    id,
		pos:   pos,
		delay: delay,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s AgentState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AgentExited || a.state == AgentStopped {
		return
	}
	a.state = s
}

// run is the worker loop: read phase, act once, sleep the agent's own delay.
// Termination is cooperative only; the run flag and Finished phase are
// observed at the top of each iteration, so an agent mid-sleep reacts within
// one tick of its own delay.
func (a *Agent) run(s *Simulation) {
	for s.phases.Running() {
		switch s.phases.Phase() {
		case PhaseNormal:
			a.wander(s)
		case PhaseEvacuating:
			a.setState(AgentEvacuating)
			if a.evacuate(s) {
				a.setState(AgentExited)
				return
			}
		case PhaseFinished:
			a.setState(AgentStopped)
			return
		}
		time.Sleep(a.delay)
	}
	a.setState(AgentStopped)
}

// wander picks a free interior neighbour uniformly at random and attempts a
// single move. Losing the race for the cell is fine: no retry this tick.
func (a *Agent) wander(s *Simulation) {
	moves := a.freeNeighbours(s.grid)
	if len(moves) == 0 {
		return
	}
	next := moves[a.rng.Intn(len(moves))]
	if s.grid.TryMove(a.pos, next) {
		a.pos = next
	}
}

func (a *Agent) freeNeighbours(g *Grid) []Position {
	moves := make([]Position, 0, 4)
	for _, d := range stepDirs {
		next := a.pos.add(d)
		if g.Interior(next) && g.IsFree(next) {
			moves = append(moves, next)
		}
	}
	return moves
}

// evacuate advances the agent one step toward its chosen door and reports
// whether it got out. The cached route is a hint computed from a snapshot:
// whenever reality disagrees (next hop not adjacent, or another agent claimed
// the cell first) the route and target are discarded and recomputed on the
// next tick rather than retried.
func (a *Agent) evacuate(s *Simulation) bool {
	if len(a.route) == 0 || a.target == nil {
		a.target, a.route = bestReachableDoor(s.grid, s.doors, a.pos)
		if a.target == nil || len(a.route) == 0 {
			// No door reachable right now. Transient: retry next tick.
			return false
		}
	}

	if a.pos.Dist(a.route[0]) != 1 {
		// Stale route: its assumed start no longer matches reality.
		a.route, a.target = nil, nil
		return false
	}

	next := a.route[0]
	a.route = a.route[1:]

	if next == a.target.Pos {
		s.grid.Release(a.pos)
		s.recordExit(a.ID, a.target)
		return true
	}

	if s.grid.TryMove(a.pos, next) {
		a.pos = next
	} else {
		// Contested move: someone took the cell first. Replan from scratch.
		a.route, a.target = nil, nil
	}
	return false
}
