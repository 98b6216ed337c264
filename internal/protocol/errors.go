package protocol

// Error codes carried by ERROR frames and close payloads.
const (
	// Handshake/transport validation: malformed SUBSCRIBE, wrong protocol
	// version, wrong HTTP method on the bootstrap endpoint.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Setup-time failures: unsatisfiable run parameters.
	ErrConfig = "E_CONFIG"

	// The run is over; sent with the closing frame after the final snapshot.
	ErrRunFinished = "E_RUN_FINISHED"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrConfig:          {},
	ErrRunFinished:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
