package evac

// Position is a cell coordinate on the grid. Comparable, so it works
// directly as a map key for occupancy and visited sets.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dist returns the Manhattan distance to other.
func (p Position) Dist(other Position) int {
	return absInt(p.X-other.X) + absInt(p.Y-other.Y)
}

// step order is fixed (down, up, right, left) so BFS tie-breaking is
// deterministic on a static grid.
var stepDirs = [4]Position{
	{X: 0, Y: 1},
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: -1, Y: 0},
}

func (p Position) add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
