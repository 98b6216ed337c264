package evac

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// Params configures one simulation run. Zero durations fall back to the
// defaults from the reference timings.
type Params struct {
	Width  int
	Height int
	Agents int
	Doors  int

	// PreEvacDelay is how long agents wander before the evacuation order.
	PreEvacDelay time.Duration
	// EvacWindow bounds how long the orchestrator waits for everyone to get
	// out once evacuation starts.
	EvacWindow time.Duration
	// PollInterval is how often the orchestrator re-checks progress during
	// the evacuation window.
	PollInterval time.Duration
	// JoinGrace bounds the wait for worker goroutines after Finished. A
	// worker past the grace period is not force-killed; final stats come
	// from guarded counters, never from join completion.
	JoinGrace time.Duration

	// StepDelayMin/Max bound each agent's fixed per-tick delay, drawn
	// uniformly at creation.
	StepDelayMin time.Duration
	StepDelayMax time.Duration

	Seed int64
}

func (p *Params) normalize() {
	if p.EvacWindow <= 0 {
		p.EvacWindow = 30 * time.Second
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 500 * time.Millisecond
	}
	if p.JoinGrace <= 0 {
		p.JoinGrace = 2 * time.Second
	}
	if p.StepDelayMax <= 0 {
		p.StepDelayMin = 500 * time.Millisecond
		p.StepDelayMax = 1500 * time.Millisecond
	}
	if p.StepDelayMin > p.StepDelayMax {
		p.StepDelayMin = p.StepDelayMax
	}
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
}

// Event is a notification emitted by the simulation as it runs. Deliveries
// are serialized, so a sink needs no locking of its own and the Evacuated
// field is non-decreasing across consecutive events. Sinks must not block:
// slow consumers buffer or drop on their side.
type Event struct {
	Kind      string    `json:"kind"` // "phase", "exit" or "progress"
	At        time.Time `json:"at"`
	Phase     string    `json:"phase,omitempty"`
	AgentID   int       `json:"agent_id,omitempty"`
	DoorID    int       `json:"door_id,omitempty"`
	Evacuated int       `json:"evacuated"`
	Agents    int       `json:"agents"`
}

// ExitRecord is one entry in the global evacuation log: which agent left
// through which door, in commit order.
type ExitRecord struct {
	AgentID int `json:"agent_id"`
	DoorID  int `json:"door_id"`
}

// Simulation owns the grid, the doors, the phase and the agent workers. The
// occupancy set, the phase/run flag, per-door tallies and the global counter
// and log each sit behind their own guard; nothing ever holds two guards at
// once.
type Simulation struct {
	params Params
	grid   *Grid
	doors  []*Door
	agents []*Agent
	phases *phaseController
	rng    *rand.Rand

	logger *log.Logger

	// emitMu orders sink deliveries: the counter read and the sink call
	// happen together, so consecutive events never carry a regressing
	// Evacuated value.
	emitMu sync.Mutex
	sink   func(Event)

	statsMu   sync.Mutex
	evacuated int

	logMu   sync.Mutex
	history []ExitRecord
}

// New builds a simulation: doors and agents placed, everything reserved in
// the grid, no worker running yet. Unsatisfiable parameters (more doors than
// boundary cells, no free interior cell left for an agent) fail here, before
// the run starts. New checks feasibility only; range clamping (minimum grid
// size, agent and door caps) belongs to the config layer, so callers are
// expected to pass normalized parameters.
func New(p Params, logger *log.Logger) (*Simulation, error) {
	p.normalize()
	if p.Width < 3 || p.Height < 3 {
		return nil, fmt.Errorf("grid %dx%d has no interior", p.Width, p.Height)
	}
	if p.Agents < 1 {
		return nil, fmt.Errorf("need at least one agent, got %d", p.Agents)
	}
	if p.Doors < 1 {
		return nil, fmt.Errorf("need at least one door, got %d", p.Doors)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[evac] ", log.LstdFlags)
	}

	s := &Simulation{
		params: p,
		grid:   NewGrid(p.Width, p.Height),
		phases: newPhaseController(),
		rng:    rand.New(rand.NewSource(p.Seed)),
		logger: logger,
	}

	doors, err := placeDoors(s.grid, s.rng, p.Doors)
	if err != nil {
		return nil, err
	}
	s.doors = doors

	for i := 0; i < p.Agents; i++ {
		pos, ok := s.randomFreeInterior()
		if !ok {
			return nil, fmt.Errorf("no free interior cell for agent %d of %d", i+1, p.Agents)
		}
		s.grid.Reserve(pos)
		delay := p.StepDelayMin
		if span := p.StepDelayMax - p.StepDelayMin; span > 0 {
			delay += time.Duration(s.rng.Int63n(int64(span)))
		}
		s.agents = append(s.agents, newAgent(i+1, pos, delay, s.rng.Int63()))
	}
	return s, nil
}

// Notify installs the event sink. Must be called before Run. The sink is
// invoked from agent goroutines and the orchestrator, one call at a time.
func (s *Simulation) Notify(sink func(Event)) { s.sink = sink }

func (s *Simulation) Params() Params   { return s.params }
func (s *Simulation) Doors() []*Door   { return s.doors }
func (s *Simulation) Agents() []*Agent { return s.agents }
func (s *Simulation) Phase() Phase     { return s.phases.Phase() }

// randomFreeInterior samples interior cells until it finds a free one.
// Bounded attempts keep setup from spinning forever on a packed grid.
func (s *Simulation) randomFreeInterior() (Position, bool) {
	for attempt := 0; attempt < 100; attempt++ {
		pos := Position{
			X: 1 + s.rng.Intn(s.grid.width-2),
			Y: 1 + s.rng.Intn(s.grid.height-2),
		}
		if s.grid.IsFree(pos) {
			return pos, true
		}
	}
	return Position{}, false
}

// Run drives the timeline: spawn workers, wander until the pre-evacuation
// delay elapses, order the evacuation, poll until everyone is out or the
// window closes, then finish and join workers within the grace period.
// Cancelling ctx ends the run early through the same Finished path.
func (s *Simulation) Run(ctx context.Context) Summary {
	var wg sync.WaitGroup
	for _, a := range s.agents {
		wg.Add(1)
		go func(a *Agent) {
			defer wg.Done()
			a.run(s)
		}(a)
	}
	s.emit(Event{Kind: "phase", Phase: PhaseNormal.String()})
	s.logger.Printf("run started: %dx%d grid, %d agents, %d doors",
		s.params.Width, s.params.Height, len(s.agents), len(s.doors))

	sleepCtx(ctx, s.params.PreEvacDelay)

	s.phases.advance(PhaseEvacuating)
	s.emit(Event{Kind: "phase", Phase: PhaseEvacuating.String()})
	s.logger.Printf("evacuation ordered")

	deadline := time.Now().Add(s.params.EvacWindow)
	for s.Evacuated() < len(s.agents) && time.Now().Before(deadline) && ctx.Err() == nil {
		sleepCtx(ctx, s.params.PollInterval)
		s.emit(Event{Kind: "progress"})
	}

	s.phases.advance(PhaseFinished)
	s.phases.stop()
	s.emit(Event{Kind: "phase", Phase: PhaseFinished.String()})

	if !waitTimeout(&wg, s.params.JoinGrace) {
		s.logger.Printf("worker join grace period expired; reporting from counters")
	}

	sum := s.Summary()
	s.logger.Printf("run finished: %d/%d evacuated", sum.Evacuated, sum.Agents)
	return sum
}

// Evacuated returns the global exit counter.
func (s *Simulation) Evacuated() int {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.evacuated
}

// History returns a copy of the global evacuation log in commit order.
func (s *Simulation) History() []ExitRecord {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]ExitRecord, len(s.history))
	copy(out, s.history)
	return out
}

// recordExit commits one evacuation: door tally, global counter, global log,
// event sink. Each guard is taken and dropped on its own.
func (s *Simulation) recordExit(agentID int, door *Door) {
	door.registerExit(agentID)

	s.statsMu.Lock()
	s.evacuated++
	count := s.evacuated
	s.statsMu.Unlock()

	s.logMu.Lock()
	s.history = append(s.history, ExitRecord{AgentID: agentID, DoorID: door.ID})
	s.logMu.Unlock()

	s.logger.Printf("agent %d exited through door %d (%d/%d)", agentID, door.ID, count, len(s.agents))
	s.emit(Event{Kind: "exit", AgentID: agentID, DoorID: door.ID})
}

// emit delivers one event to the sink. Agents and the orchestrator call this
// concurrently; emitMu serializes the calls.
func (s *Simulation) emit(ev Event) {
	if s.sink == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	ev.At = time.Now().UTC()
	ev.Evacuated = s.Evacuated()
	ev.Agents = len(s.agents)
	s.sink(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// waitTimeout waits for the group up to d and reports whether it finished.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
