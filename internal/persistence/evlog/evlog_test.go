package evlog

import (
	"path/filepath"
	"testing"
	"time"

	"evacgrid.dev/internal/sim/evac"
)

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "testrun")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	in := []evac.Event{
		{Kind: "phase", At: at, Phase: "normal", Agents: 3},
		{Kind: "exit", At: at.Add(time.Second), AgentID: 2, DoorID: 1, Evacuated: 1, Agents: 3},
		{Kind: "phase", At: at.Add(2 * time.Second), Phase: "finished", Evacuated: 1, Agents: 3},
	}
	for _, ev := range in {
		if err := w.Write(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := ReadFile(filepath.Join(dir, "events-testrun.jsonl.zst"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("read %d events, wrote %d", len(out), len(in))
	}
	if out[1].Kind != "exit" || out[1].AgentID != 2 || out[1].DoorID != 1 {
		t.Fatalf("exit event mangled: %+v", out[1])
	}
	if !out[0].At.Equal(at) {
		t.Fatalf("timestamp mangled: %v", out[0].At)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "events-nope.jsonl.zst")); err == nil {
		t.Fatalf("missing file read succeeded")
	}
}
