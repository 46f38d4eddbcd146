package domain

// Reply is what the engine hands back to the transport for one turn.
// The transport owns protocol framing: it maps Continue to its own
// continuation or termination marker.
type Reply struct {
	Text     string `json:"text"`
	Continue bool   `json:"continue"`
}

// Turn is one inbound request from the transport.
type Turn struct {
	SessionID string `json:"session_id"`
	RawInput  string `json:"raw_input"`
	// Phone is the caller MSISDN, when the gateway provides it.
	Phone string `json:"phone_number,omitempty"`
}
