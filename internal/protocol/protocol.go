package protocol

import "evacgrid.dev/internal/sim/evac"

// Version is the observer wire protocol version.
const Version = "1.0"

// Message type discriminators.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeSnapshot  = "SNAPSHOT"
	TypeEvent     = "EVENT"
	TypeError     = "ERROR"
)

// SUBSCRIBE (client -> server). First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// SnapshotEveryMs asks for full snapshots at this cadence; zero means
	// the server default.
	SnapshotEveryMs int `json:"snapshot_every_ms,omitempty"`
	// Events requests exit/phase event frames between snapshots.
	Events bool `json:"events,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string    `json:"protocol_version"`
	RunID           string    `json:"run_id"`
	RunParams       RunParams `json:"run_params"`
}

type RunParams struct {
	Width           int   `json:"width"`
	Height          int   `json:"height"`
	Agents          int   `json:"agents"`
	Doors           int   `json:"doors"`
	PreEvacDelaySec int   `json:"pre_evac_delay_sec"`
	EvacWindowSec   int   `json:"evac_window_sec"`
	Seed            int64 `json:"seed"`
}

// SNAPSHOT (server -> client). Periodic full state.
type SnapshotMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	RunID           string        `json:"run_id"`
	State           evac.Snapshot `json:"state"`
}

// ERROR (server -> client). Sent as the last frame before the server closes
// a misbehaving connection, and as the body of bootstrap error responses.
// Code is one of the E_* constants in errors.go.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// EVENT (server -> client). One simulation event as it happened.
type EventMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	RunID           string     `json:"run_id"`
	Event           evac.Event `json:"event"`
}
