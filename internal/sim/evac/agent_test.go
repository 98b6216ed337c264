package evac

import (
	"io"
	"log"
	"math/rand"
	"testing"
	"time"
)

// manualSim wires a simulation with fixed door and agent placement so tests
// control the geometry exactly. Setup mirrors New without the random layout.
func manualSim(t *testing.T, width, height int, doorPos, agentPos []Position, delay time.Duration) *Simulation {
	t.Helper()
	p := Params{
		Width:        width,
		Height:       height,
		Agents:       len(agentPos),
		Doors:        len(doorPos),
		EvacWindow:   2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		JoinGrace:    time.Second,
		StepDelayMin: delay,
		StepDelayMax: delay,
		Seed:         1,
	}
	s := &Simulation{
		params: p,
		grid:   NewGrid(width, height),
		phases: newPhaseController(),
		rng:    rand.New(rand.NewSource(p.Seed)),
		logger: log.New(io.Discard, "", 0),
	}
	for i, pos := range doorPos {
		s.grid.Reserve(pos)
		s.doors = append(s.doors, &Door{ID: i + 1, Pos: pos})
	}
	for i, pos := range agentPos {
		s.grid.Reserve(pos)
		s.agents = append(s.agents, newAgent(i+1, pos, delay, int64(i+1)))
	}
	return s
}

func TestEvacuateStepsAndExits(t *testing.T) {
	door := Position{X: 5, Y: 0}
	start := Position{X: 5, Y: 3}
	s := manualSim(t, 10, 10, []Position{door}, []Position{start}, time.Millisecond)
	a := s.agents[0]

	for i := 0; i < 10; i++ {
		if a.evacuate(s) {
			break
		}
	}
	if s.Evacuated() != 1 {
		t.Fatalf("evacuated = %d, want 1", s.Evacuated())
	}
	if !s.grid.IsFree(start) {
		t.Fatalf("start cell still occupied after exit")
	}
	if got := s.doors[0].Evacuees(); len(got) != 1 || got[0] != a.ID {
		t.Fatalf("door evacuees = %v, want [%d]", got, a.ID)
	}
}

func TestEvacuateDiscardsStaleRoute(t *testing.T) {
	door := Position{X: 5, Y: 0}
	s := manualSim(t, 10, 10, []Position{door}, []Position{{X: 5, Y: 3}}, time.Millisecond)
	a := s.agents[0]

	a.target = s.doors[0]
	a.route = []Position{{X: 8, Y: 8}} // not adjacent to (5,3)

	if a.evacuate(s) {
		t.Fatalf("stale route produced an exit")
	}
	if a.route != nil || a.target != nil {
		t.Fatalf("stale route not discarded: route=%v target=%v", a.route, a.target)
	}
}

func TestEvacuateDiscardsRouteOnContestedMove(t *testing.T) {
	door := Position{X: 5, Y: 0}
	s := manualSim(t, 10, 10, []Position{door}, []Position{{X: 5, Y: 3}}, time.Millisecond)
	a := s.agents[0]

	next := Position{X: 5, Y: 2}
	s.grid.Reserve(next) // someone else got there first
	a.target = s.doors[0]
	a.route = []Position{next, {X: 5, Y: 1}, door}

	if a.evacuate(s) {
		t.Fatalf("blocked step produced an exit")
	}
	if a.route != nil || a.target != nil {
		t.Fatalf("contested move must clear the plan: route=%v target=%v", a.route, a.target)
	}
	if a.pos != (Position{X: 5, Y: 3}) {
		t.Fatalf("agent moved despite losing the cell: %v", a.pos)
	}
}

func TestEvacuateRetriesWhenNoDoorReachable(t *testing.T) {
	door := Position{X: 5, Y: 0}
	trapped := Position{X: 5, Y: 5}
	s := manualSim(t, 12, 12, []Position{door}, []Position{trapped}, time.Millisecond)
	for _, d := range stepDirs {
		s.grid.Reserve(trapped.add(d))
	}
	a := s.agents[0]

	if a.evacuate(s) {
		t.Fatalf("trapped agent exited")
	}
	if a.target != nil || a.route != nil {
		t.Fatalf("trapped agent cached a plan: %v %v", a.target, a.route)
	}
}

func TestAgentStateTerminal(t *testing.T) {
	a := newAgent(1, Position{X: 1, Y: 1}, time.Millisecond, 1)
	a.setState(AgentExited)
	a.setState(AgentStopped)
	if got := a.State(); got != AgentExited {
		t.Fatalf("terminal state overwritten: %v", got)
	}
}

func TestWanderStaysInterior(t *testing.T) {
	// Corner of the interior: only two legal neighbours.
	start := Position{X: 1, Y: 1}
	s := manualSim(t, 10, 10, nil, []Position{start}, time.Millisecond)
	a := s.agents[0]

	for i := 0; i < 50; i++ {
		a.wander(s)
		if !s.grid.Interior(a.pos) {
			t.Fatalf("wander left the interior: %v", a.pos)
		}
	}
}
