package evac

import "sync"

// Grid holds the bounded coordinate space and the occupancy set: every cell
// currently taken by a door or by an agent. The set is the single source of
// truth for free/blocked queries; all mutations go through one mutex so no
// interleaving can leave two occupants on the same cell.
type Grid struct {
	width  int
	height int

	mu       sync.Mutex
	occupied map[Position]struct{}
}

func NewGrid(width, height int) *Grid {
	return &Grid{
		width:    width,
		height:   height,
		occupied: make(map[Position]struct{}),
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether pos lies anywhere on the grid, walls included.
func (g *Grid) InBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.width && pos.Y >= 0 && pos.Y < g.height
}

// Interior reports whether pos lies strictly inside the wall ring. Agents
// spawn, wander and route only through interior cells; doors sit on the ring.
func (g *Grid) Interior(pos Position) bool {
	return pos.X >= 1 && pos.X < g.width-1 && pos.Y >= 1 && pos.Y < g.height-1
}

// IsFree reports whether nothing currently occupies pos.
func (g *Grid) IsFree(pos Position) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, taken := g.occupied[pos]
	return !taken
}

// TryMove atomically claims newPos and releases oldPos. It is the only way a
// moving agent changes occupancy: of two racing calls targeting the same
// destination exactly one succeeds, the other sees false and must replan.
func (g *Grid) TryMove(oldPos, newPos Position) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, taken := g.occupied[newPos]; taken {
		return false
	}
	delete(g.occupied, oldPos)
	g.occupied[newPos] = struct{}{}
	return true
}

// Release frees pos. Used when an agent steps off the grid through a door;
// the vacated cell becomes claimable by anyone still inside.
func (g *Grid) Release(pos Position) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.occupied, pos)
}

// Reserve claims pos unconditionally. Setup only: door placement and initial
// agent placement, before any worker runs.
func (g *Grid) Reserve(pos Position) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.occupied[pos] = struct{}{}
}

// Occupied returns a copy of the occupancy set.
func (g *Grid) Occupied() []Position {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Position, 0, len(g.occupied))
	for pos := range g.occupied {
		out = append(out, pos)
	}
	return out
}
