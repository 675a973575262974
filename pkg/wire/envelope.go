// Package wire implements the JSON envelope format spoken over the daemon's
// WebSocket. Encoding and decoding are pure; envelope data payloads are opaque
// passthrough so this package never needs to know every command shape.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is reported when a frame cannot be decoded into a valid
// envelope. Malformed inbound frames are logged and dropped by the client;
// they never tear down the connection.
var ErrMalformed = errors.New("walletrpc: malformed message")

// Envelope is the unit exchanged with the daemon. Requests carry a
// destination service and a fresh request id; responses echo the id with
// Ack set; unsolicited events carry only an origin and command.
type Envelope struct {
	Command     string          `json:"command"`
	Ack         bool            `json:"ack"`
	Data        json.RawMessage `json:"data,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Origin      string          `json:"origin,omitempty"`
}

// NewRequest builds a request envelope for the given destination service and
// command, marshalling payload into the data field. A nil payload produces a
// request with no data. A fresh request id is assigned.
func NewRequest(destination, command string, payload interface{}) (*Envelope, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for %s/%s: %w", destination, command, err)
		}
	}
	return &Envelope{
		Command:     command,
		Data:        data,
		RequestID:   NewRequestID(),
		Destination: destination,
	}, nil
}

// NewEvent builds an unsolicited event envelope. Used by tests and mock
// daemons; the real daemon produces these on its own.
func NewEvent(origin, command string, payload interface{}) (*Envelope, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for event %s/%s: %w", origin, command, err)
		}
	}
	return &Envelope{
		Command: command,
		Data:    data,
		Origin:  origin,
	}, nil
}

// Encode serializes an envelope to its wire representation. Requests (non-ack
// frames) must name a command and a destination.
func Encode(env *Envelope) ([]byte, error) {
	if env.Command == "" {
		return nil, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	if !env.Ack && env.Destination == "" && env.Origin == "" {
		return nil, fmt.Errorf("%w: request missing destination", ErrMalformed)
	}
	return json.Marshal(env)
}

// Decode parses a wire frame back into an envelope. Response frames (Ack set)
// must carry the correlation id; every frame must name a command.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Command == "" {
		return nil, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	if env.Ack && env.RequestID == "" {
		return nil, fmt.Errorf("%w: response missing request_id", ErrMalformed)
	}
	return &env, nil
}

// IsEvent reports whether the envelope is an unsolicited daemon push rather
// than the reply to an outstanding request.
func (e *Envelope) IsEvent() bool {
	return !e.Ack
}

// DecodeData unmarshals the envelope's data payload into v (a pointer).
// A missing or null payload leaves v untouched.
func (e *Envelope) DecodeData(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
