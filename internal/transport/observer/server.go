package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"evacgrid.dev/internal/protocol"
	"evacgrid.dev/internal/sim/evac"
)

const defaultSnapshotEvery = time.Second

// Server streams read-only run state to websocket observers. It never
// touches simulation state: everything it sends comes from Snapshot() and
// from events fanned in through Broadcast.
type Server struct {
	sim   *evac.Simulation
	runID string
	log   *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[chan evac.Event]struct{}
}

func NewServer(sim *evac.Simulation, runID string, logger *log.Logger) *Server {
	return &Server{
		sim:   sim,
		runID: runID,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[chan evac.Event]struct{}),
	}
}

// Broadcast fans one simulation event out to subscribers. Never blocks:
// a subscriber that falls behind loses events and catches up on the next
// snapshot frame.
func (s *Server) Broadcast(ev evac.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) subscribe() chan evac.Event {
	ch := make(chan evac.Event, 256)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan evac.Event) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusMethodNotAllowed)
			_ = json.NewEncoder(rw).Encode(protocol.ErrorMsg{
				Type:            protocol.TypeError,
				ProtocolVersion: protocol.Version,
				Code:            protocol.ErrProtoBadRequest,
				Message:         "GET only",
			})
			return
		}
		p := s.sim.Params()
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			RunID:           s.runID,
			RunParams: protocol.RunParams{
				Width:           p.Width,
				Height:          p.Height,
				Agents:          p.Agents,
				Doors:           p.Doors,
				PreEvacDelaySec: int(p.PreEvacDelay / time.Second),
				EvacWindowSec:   int(p.EvacWindow / time.Second),
				Seed:            p.Seed,
			},
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			reject(conn, protocol.ErrProtoBadRequest, "bad subscribe")
			return
		}
		if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
			reject(conn, protocol.ErrProtoBadRequest, "expected SUBSCRIBE")
			return
		}
		every := defaultSnapshotEvery
		if sub.SnapshotEveryMs > 0 {
			every = time.Duration(sub.SnapshotEveryMs) * time.Millisecond
		}

		var events chan evac.Event
		if sub.Events {
			events = s.subscribe()
			defer s.unsubscribe(events)
		}

		// Reader goroutine: only watches for the peer going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(4 * 1024)
			_ = conn.SetReadDeadline(time.Time{})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		s.log.Printf("observer connected from %s", r.RemoteAddr)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		if done, err := s.writeSnapshot(conn); err != nil || done {
			return
		}
		for {
			select {
			case <-gone:
				return
			case <-ticker.C:
				if done, err := s.writeSnapshot(conn); err != nil || done {
					return
				}
			// A nil events channel blocks forever, disabling this arm.
			case ev := <-events:
				out := protocol.EventMsg{
					Type:            protocol.TypeEvent,
					ProtocolVersion: protocol.Version,
					RunID:           s.runID,
					Event:           ev,
				}
				if err := writeJSON(conn, out); err != nil {
					return
				}
			}
		}
	}
}

// writeSnapshot sends one snapshot frame. Once the run has finished, the
// snapshot is the last frame: the server closes with E_RUN_FINISHED and
// reports done so the handler returns.
func (s *Server) writeSnapshot(conn *websocket.Conn) (done bool, err error) {
	state := s.sim.Snapshot()
	out := protocol.SnapshotMsg{
		Type:            protocol.TypeSnapshot,
		ProtocolVersion: protocol.Version,
		RunID:           s.runID,
		State:           state,
	}
	if err := writeJSON(conn, out); err != nil {
		return false, err
	}
	if state.Phase == evac.PhaseFinished.String() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, protocol.ErrRunFinished),
			time.Now().Add(time.Second))
		return true, nil
	}
	return false, nil
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(v)
}

// reject sends an ERROR frame with the given code, then closes with the code
// as the policy-violation payload so clients that only read the close frame
// still see it.
func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(time.Second))
}

func isLoopbackRemote(remote string) bool {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	host = strings.Trim(host, "[]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
