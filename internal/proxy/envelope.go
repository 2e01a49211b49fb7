package proxy

import (
	"encoding/json"
)

// FailureKind classifies a failed Envelope. It is not part of the wire shape.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureUnauthenticated
	FailureTransport
	FailureApplication
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureUnauthenticated:
		return "unauthenticated"
	case FailureTransport:
		return "transport"
	case FailureApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Envelope is the normalized result of a proxied command. When OK is true
// Payload is set and ErrorMessage is empty; otherwise the reverse. Construct
// it with Succeed or Fail.
type Envelope struct {
	OK           bool
	Payload      json.RawMessage
	ErrorMessage string
	Failure      FailureKind
}

func Succeed(payload json.RawMessage) Envelope {
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}
	return Envelope{OK: true, Payload: payload}
}

func Fail(kind FailureKind, message string) Envelope {
	if message == "" {
		message = "operation failed"
	}
	if kind == FailureNone {
		kind = FailureApplication
	}
	return Envelope{OK: false, ErrorMessage: message, Failure: kind}
}

type envelopeJSON struct {
	OK           bool            `json:"ok"`
	Payload      json.RawMessage `json:"payload"`
	ErrorMessage *string         `json:"errorMessage"`
}

// MarshalJSON writes {ok, payload, errorMessage} with the unused side null.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := envelopeJSON{OK: e.OK}
	if e.OK {
		out.Payload = e.Payload
		if len(out.Payload) == 0 {
			out.Payload = json.RawMessage("{}")
		}
	} else {
		out.Payload = json.RawMessage("null")
		msg := e.ErrorMessage
		out.ErrorMessage = &msg
	}
	return json.Marshal(out)
}
