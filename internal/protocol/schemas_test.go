package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"evacgrid.dev/internal/protocol"
	"evacgrid.dev/internal/sim/evac"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		raw, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	subscribeSchema := compile("subscribe.schema.json")
	snapshotSchema := compile("snapshot.schema.json")
	eventSchema := compile("event.schema.json")
	errorSchema := compile("error.schema.json")

	validate(subscribeSchema, protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		SnapshotEveryMs: 250,
		Events:          true,
	})

	validate(snapshotSchema, protocol.SnapshotMsg{
		Type:            protocol.TypeSnapshot,
		ProtocolVersion: protocol.Version,
		RunID:           "20260829-120000",
		State: evac.Snapshot{
			Phase:     "evacuating",
			Width:     15,
			Height:    10,
			Agents:    8,
			Evacuated: 3,
			Occupied:  []evac.Position{{X: 4, Y: 5}, {X: 7, Y: 2}},
			Doors: []evac.DoorStat{
				{ID: 1, Pos: evac.Position{X: 0, Y: 4}, Exited: 2, Evacuees: []int{3, 1}},
				{ID: 2, Pos: evac.Position{X: 6, Y: 0}, Exited: 1, Evacuees: []int{5}},
			},
			History: []evac.ExitRecord{
				{AgentID: 3, DoorID: 1},
				{AgentID: 5, DoorID: 2},
				{AgentID: 1, DoorID: 1},
			},
		},
	})

	validate(errorSchema, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrProtoBadRequest,
		Message:         "expected SUBSCRIBE",
	})

	validate(eventSchema, protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		RunID:           "20260829-120000",
		Event: evac.Event{
			Kind:      "exit",
			At:        time.Date(2026, 8, 29, 12, 0, 5, 0, time.UTC),
			AgentID:   3,
			DoorID:    1,
			Evacuated: 1,
			Agents:    8,
		},
	})
}

func TestSchemas_RejectBadSubscribe(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "subscribe.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var v any
	_ = json.Unmarshal([]byte(`{"type":"SNAPSHOT","protocol_version":"1.0"}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("wrong type discriminator accepted")
	}

	_ = json.Unmarshal([]byte(`{"type":"SUBSCRIBE"}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("missing protocol_version accepted")
	}
}

func TestSchemas_RejectUnknownErrorCode(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "error.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var v any
	_ = json.Unmarshal([]byte(`{"type":"ERROR","protocol_version":"1.0","code":"E_NOPE"}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("unknown error code accepted")
	}
	if protocol.IsKnownCode("E_NOPE") {
		t.Fatalf("unknown code reported known")
	}
}
