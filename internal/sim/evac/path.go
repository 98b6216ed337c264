package evac

// maxExpansions caps BFS node expansions so the search terminates on a fully
// congested grid instead of draining the frontier cell by cell.
const maxExpansions = 500

type pathNode struct {
	pos  Position
	path []Position
}

// shortestPath runs a breadth-first search from from to to over 4-adjacency.
// A cell is traversable if it is the destination itself, or it lies strictly
// in the interior and is free right now. Occupancy is read live during the
// search, so the result is a snapshot-based hint: callers reconcile it
// against the grid when they actually step.
//
// The returned path excludes from and ends at to. Empty means from == to or
// no route within the expansion budget.
func shortestPath(g *Grid, from, to Position) []Position {
	if from == to {
		return nil
	}

	queue := []pathNode{{pos: from}}
	visited := map[Position]struct{}{from: {}}

	for iter := 0; len(queue) > 0 && iter < maxExpansions; iter++ {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range stepDirs {
			next := cur.pos.add(d)
			if next == to {
				return append(cur.path, next)
			}
			if !g.InBounds(next) {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			if !g.Interior(next) || !g.IsFree(next) {
				continue
			}
			visited[next] = struct{}{}
			path := make([]Position, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			queue = append(queue, pathNode{pos: next, path: append(path, next)})
		}
	}
	return nil
}

// bestReachableDoor evaluates every door in id order and keeps the strictly
// shortest route; among equal lengths the first door scanned wins. Returns
// (nil, nil) when no door is reachable right now, which callers treat as a
// transient condition, not a fault.
func bestReachableDoor(g *Grid, doors []*Door, from Position) (*Door, []Position) {
	var (
		best     *Door
		bestPath []Position
	)
	for _, door := range doors {
		path := shortestPath(g, from, door.Pos)
		if len(path) == 0 {
			continue
		}
		if best == nil || len(path) < len(bestPath) {
			best = door
			bestPath = path
		}
	}
	return best, bestPath
}
