// Package operation tracks the lifecycle of proxied commands issued from one
// interactive surface. Each surface runs Idle -> Pending -> Succeeded|Failed
// and the most recent trigger always wins.
package operation

import (
	"encoding/json"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

type Phase int

const (
	Idle Phase = iota
	Pending
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the surface read model. Payload is set only when Succeeded and
// ErrorMessage only when Failed. Token is the latest invocation issued.
type State struct {
	Phase        Phase           `json:"phase"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Token        uint64          `json:"-"`
}

func (s State) IsBusy() bool {
	return s.Phase == Pending
}

type EventKind int

const (
	Triggered EventKind = iota
	Resolved
	ResetRequested
)

// Event drives Next. Token identifies the invocation for Triggered and
// Resolved; Result is read only for Resolved.
type Event struct {
	Kind   EventKind
	Token  uint64
	Result proxy.Envelope
}

// Next is the surface transition function. A Resolved event is applied only
// when it carries the latest token and the surface is still Pending; anything
// else is a stale result and leaves the state untouched.
func Next(s State, e Event) State {
	switch e.Kind {
	case Triggered:
		if e.Token <= s.Token {
			return s
		}
		return State{Phase: Pending, Token: e.Token}
	case Resolved:
		if s.Phase != Pending || e.Token != s.Token {
			return s
		}
		if e.Result.OK {
			payload := e.Result.Payload
			if len(payload) == 0 {
				payload = json.RawMessage("{}")
			}
			return State{Phase: Succeeded, Payload: payload, Token: s.Token}
		}
		msg := e.Result.ErrorMessage
		if msg == "" {
			msg = "operation failed"
		}
		return State{Phase: Failed, ErrorMessage: msg, Token: s.Token}
	case ResetRequested:
		return State{Phase: Idle, Token: s.Token}
	}
	return s
}
