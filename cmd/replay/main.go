package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"evacgrid.dev/internal/persistence/evlog"
	"evacgrid.dev/internal/sim/evac"
)

// replay reads a run's event log and reprints the evacuation history,
// recomputing the per-door totals and checking them against the counters
// recorded in the events themselves.
func main() {
	var (
		eventsDir = flag.String("events", "./data/events", "events directory containing events-*.jsonl.zst")
		runID     = flag.String("run", "", "run id to replay (default: latest)")
	)
	flag.Parse()

	path, err := pickLogFile(*eventsDir, *runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	events, err := evlog.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "empty event log:", path)
		os.Exit(1)
	}

	fmt.Printf("replaying %s (%d events)\n\n", filepath.Base(path), len(events))

	perDoor := map[int][]int{}
	var exits []evac.ExitRecord
	lastCount := 0
	agents := 0

	for _, ev := range events {
		if ev.Agents > agents {
			agents = ev.Agents
		}
		if ev.Evacuated < lastCount {
			fmt.Fprintf(os.Stderr, "counter regressed: %d -> %d\n", lastCount, ev.Evacuated)
			os.Exit(1)
		}
		lastCount = ev.Evacuated

		switch ev.Kind {
		case "phase":
			fmt.Printf("%s  phase -> %s\n", ev.At.Format("15:04:05.000"), ev.Phase)
		case "exit":
			exits = append(exits, evac.ExitRecord{AgentID: ev.AgentID, DoorID: ev.DoorID})
			perDoor[ev.DoorID] = append(perDoor[ev.DoorID], ev.AgentID)
			fmt.Printf("%s  agent %d -> door %d (%d/%d)\n",
				ev.At.Format("15:04:05.000"), ev.AgentID, ev.DoorID, ev.Evacuated, ev.Agents)
		}
	}

	if lastCount != len(exits) {
		fmt.Fprintf(os.Stderr, "final counter %d disagrees with %d exit events\n", lastCount, len(exits))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("agents=%d evacuated=%d stuck=%d\n", agents, len(exits), agents-len(exits))
	doorIDs := make([]int, 0, len(perDoor))
	for id := range perDoor {
		doorIDs = append(doorIDs, id)
	}
	sort.Ints(doorIDs)
	for _, id := range doorIDs {
		parts := make([]string, 0, len(perDoor[id]))
		for _, a := range perDoor[id] {
			parts = append(parts, fmt.Sprint(a))
		}
		fmt.Printf("door %d: %d (agents %s)\n", id, len(perDoor[id]), strings.Join(parts, ", "))
	}
}

func pickLogFile(dir, runID string) (string, error) {
	if runID != "" {
		return filepath.Join(dir, fmt.Sprintf("events-%s.jsonl.zst", runID)), nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no event logs in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
