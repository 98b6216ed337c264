package evac

import (
	"fmt"
	"math/rand"
	"sync"
)

// Door is an exit cell on the wall ring. Its counter and evacuee list are
// guarded per door, so exits through different doors never contend.
type Door struct {
	ID  int
	Pos Position

	mu       sync.Mutex
	exited   int
	evacuees []int
}

// registerExit records one agent leaving through this door. The list order is
// the arrival order at this specific door.
func (d *Door) registerExit(agentID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exited++
	d.evacuees = append(d.evacuees, agentID)
}

// Exited returns how many agents have left through this door.
func (d *Door) Exited() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exited
}

// Evacuees returns a copy of the door's evacuee ids in arrival order.
func (d *Door) Evacuees() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.evacuees))
	copy(out, d.evacuees)
	return out
}

// placeDoors picks n distinct wall cells (corners excluded) uniformly without
// replacement and reserves them in the grid. Runs once during setup.
func placeDoors(g *Grid, rng *rand.Rand, n int) ([]*Door, error) {
	candidates := boundaryCells(g)
	if n > len(candidates) {
		return nil, fmt.Errorf("%d doors requested but only %d boundary cells available", n, len(candidates))
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	doors := make([]*Door, 0, n)
	for i := 0; i < n; i++ {
		door := &Door{ID: i + 1, Pos: candidates[i]}
		g.Reserve(door.Pos)
		doors = append(doors, door)
	}
	return doors, nil
}

// boundaryCells lists every wall cell that can host a door: the full outer
// ring minus the four corners.
func boundaryCells(g *Grid) []Position {
	cells := make([]Position, 0, 2*(g.width-2)+2*(g.height-2))
	for x := 1; x < g.width-1; x++ {
		cells = append(cells, Position{X: x, Y: 0}, Position{X: x, Y: g.height - 1})
	}
	for y := 1; y < g.height-1; y++ {
		cells = append(cells, Position{X: 0, Y: y}, Position{X: g.width - 1, Y: y})
	}
	return cells
}
