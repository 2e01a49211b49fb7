package operation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

func TestNextStaleResultLeavesSettledStateUnchanged(t *testing.T) {
	var s State
	s = Next(s, Event{Kind: Triggered, Token: 1})
	s = Next(s, Event{Kind: Triggered, Token: 2})
	s = Next(s, Event{Kind: Resolved, Token: 2, Result: proxy.Succeed(json.RawMessage(`{"analysis":"new"}`))})
	settled := s

	tests := []struct {
		name   string
		result proxy.Envelope
	}{
		{"stale success", proxy.Succeed(json.RawMessage(`{"analysis":"old"}`))},
		{"stale failure", proxy.Fail(proxy.FailureTransport, "Inference service offline")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, settled, Next(settled, Event{Kind: Resolved, Token: 1, Result: tt.result}))
		})
	}
	assert.Equal(t, Succeeded, settled.Phase)
	assert.JSONEq(t, `{"analysis":"new"}`, string(settled.Payload))
}

func TestNextStaleResultWhilePending(t *testing.T) {
	var s State
	s = Next(s, Event{Kind: Triggered, Token: 1})
	s = Next(s, Event{Kind: Triggered, Token: 2})
	before := s

	s = Next(s, Event{Kind: Resolved, Token: 1, Result: proxy.Succeed(json.RawMessage(`{}`))})
	assert.Equal(t, before, s)
	assert.True(t, s.IsBusy())
}
