package evac

import (
	"sync"
	"testing"
)

func TestGridTryMoveBasics(t *testing.T) {
	g := NewGrid(10, 10)
	a := Position{X: 2, Y: 2}
	b := Position{X: 2, Y: 3}

	g.Reserve(a)
	if g.IsFree(a) {
		t.Fatalf("reserved cell reported free")
	}
	if !g.IsFree(b) {
		t.Fatalf("empty cell reported occupied")
	}

	if !g.TryMove(a, b) {
		t.Fatalf("move to free cell failed")
	}
	if !g.IsFree(a) {
		t.Fatalf("old cell still occupied after move")
	}
	if g.IsFree(b) {
		t.Fatalf("new cell free after move")
	}

	g.Release(b)
	if !g.IsFree(b) {
		t.Fatalf("released cell still occupied")
	}
}

func TestGridTryMoveContested(t *testing.T) {
	g := NewGrid(10, 10)
	a := Position{X: 2, Y: 2}
	b := Position{X: 4, Y: 4}
	target := Position{X: 3, Y: 3}
	g.Reserve(a)
	g.Reserve(b)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	start := make(chan struct{})
	for i, from := range []Position{a, b} {
		wg.Add(1)
		go func(i int, from Position) {
			defer wg.Done()
			<-start
			results[i] = g.TryMove(from, target)
		}(i, from)
	}
	close(start)
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("expected exactly one winner, got %v and %v", results[0], results[1])
	}
	if g.IsFree(target) {
		t.Fatalf("contested cell free after the race")
	}
}

func TestGridOccupancyConservedUnderContention(t *testing.T) {
	g := NewGrid(20, 20)
	positions := make([]Position, 0, 16)
	for i := 0; i < 16; i++ {
		pos := Position{X: 1 + i%4*2, Y: 1 + i/4*2}
		g.Reserve(pos)
		positions = append(positions, pos)
	}

	var wg sync.WaitGroup
	for i := range positions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pos := positions[i]
			for step := 0; step < 200; step++ {
				next := pos.add(stepDirs[step%len(stepDirs)])
				if !g.Interior(next) {
					continue
				}
				if g.TryMove(pos, next) {
					pos = next
				}
			}
		}(i)
	}
	wg.Wait()

	if got := len(g.Occupied()); got != 16 {
		t.Fatalf("occupancy count changed under contention: got %d, want 16", got)
	}
}

func TestGridInteriorBounds(t *testing.T) {
	g := NewGrid(10, 8)
	cases := []struct {
		pos      Position
		interior bool
	}{
		{Position{X: 0, Y: 0}, false},
		{Position{X: 1, Y: 1}, true},
		{Position{X: 8, Y: 6}, true},
		{Position{X: 9, Y: 6}, false},
		{Position{X: 5, Y: 0}, false},
		{Position{X: 5, Y: 7}, false},
	}
	for _, c := range cases {
		if got := g.Interior(c.pos); got != c.interior {
			t.Fatalf("Interior(%v) = %v, want %v", c.pos, got, c.interior)
		}
	}
}
