package evac

// DoorStat is the read-only view of one door.
type DoorStat struct {
	ID       int      `json:"id"`
	Pos      Position `json:"pos"`
	Exited   int      `json:"exited"`
	Evacuees []int    `json:"evacuees,omitempty"`
}

// Snapshot is a consistent-enough read-only view for observers: each guarded
// structure is copied under its own lock, so counts may be mid-transition
// relative to each other but every individual value is valid.
type Snapshot struct {
	Phase     string       `json:"phase"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Agents    int          `json:"agents"`
	Evacuated int          `json:"evacuated"`
	Occupied  []Position   `json:"occupied"`
	Doors     []DoorStat   `json:"doors"`
	History   []ExitRecord `json:"history"`
}

// Summary is the end-of-run report.
type Summary struct {
	Agents    int          `json:"agents"`
	Evacuated int          `json:"evacuated"`
	Stuck     int          `json:"stuck"`
	Rate      float64      `json:"rate"` // evacuated / agents
	Doors     []DoorStat   `json:"doors"`
	History   []ExitRecord `json:"history"`
}

// Snapshot captures the current run state for the observer layer.
func (s *Simulation) Snapshot() Snapshot {
	return Snapshot{
		Phase:     s.phases.Phase().String(),
		Width:     s.grid.Width(),
		Height:    s.grid.Height(),
		Agents:    len(s.agents),
		Evacuated: s.Evacuated(),
		Occupied:  s.grid.Occupied(),
		Doors:     s.doorStats(),
		History:   s.History(),
	}
}

// Summary reports final statistics from the guarded counters.
func (s *Simulation) Summary() Summary {
	evacuated := s.Evacuated()
	sum := Summary{
		Agents:    len(s.agents),
		Evacuated: evacuated,
		Stuck:     len(s.agents) - evacuated,
		Doors:     s.doorStats(),
		History:   s.History(),
	}
	if sum.Agents > 0 {
		sum.Rate = float64(sum.Evacuated) / float64(sum.Agents)
	}
	return sum
}

func (s *Simulation) doorStats() []DoorStat {
	stats := make([]DoorStat, 0, len(s.doors))
	for _, d := range s.doors {
		stats = append(stats, DoorStat{
			ID:       d.ID,
			Pos:      d.Pos,
			Exited:   d.Exited(),
			Evacuees: d.Evacuees(),
		})
	}
	return stats
}
