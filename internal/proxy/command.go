// Package proxy forwards tenant-scoped commands to the inference service and
// normalizes its replies into a single Envelope shape.
package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type CommandName string

const (
	Analyze           CommandName = "ANALYZE"
	Compare           CommandName = "COMPARE"
	GenerateManifesto CommandName = "GENERATE_MANIFESTO"
	DraftCampaign     CommandName = "DRAFT_CAMPAIGN"
	PublishCampaign   CommandName = "PUBLISH_CAMPAIGN"
)

// Idempotent reports whether re-sending the command is free of external side
// effects. Publishing creates a marketing event and must never be repeated
// automatically.
func (n CommandName) Idempotent() bool {
	return n != PublishCampaign
}

func (n CommandName) Valid() bool {
	_, ok := routes[n]
	return ok
}

// Route binds a command to its same-origin endpoint and its inference service
// endpoint. ResponseKey names the field the endpoint nests the payload under;
// when empty the payload's fields are merged into the response body.
type Route struct {
	Command      CommandName
	Path         string
	UpstreamPath string
	ResponseKey  string
}

var routes = map[CommandName]Route{
	Analyze:           {Command: Analyze, Path: "/api/analyze", UpstreamPath: "/api/analyze", ResponseKey: "data"},
	Compare:           {Command: Compare, Path: "/api/compare", UpstreamPath: "/api/compare"},
	GenerateManifesto: {Command: GenerateManifesto, Path: "/api/scan_store", UpstreamPath: "/api/manifesto/generate", ResponseKey: "manifesto"},
	DraftCampaign:     {Command: DraftCampaign, Path: "/api/campaign/draft", UpstreamPath: "/api/campaign/draft"},
	PublishCampaign:   {Command: PublishCampaign, Path: "/api/campaign/publish", UpstreamPath: "/api/campaign/publish"},
}

var routeOrder = []CommandName{Analyze, Compare, GenerateManifesto, DraftCampaign, PublishCampaign}

func RouteFor(name CommandName) (Route, bool) {
	route, ok := routes[name]
	return route, ok
}

// Routes lists every command route in a stable order.
func Routes() []Route {
	out := make([]Route, 0, len(routeOrder))
	for _, name := range routeOrder {
		out = append(out, routes[name])
	}
	return out
}

// Command is one proxied operation. Payload is always a JSON object.
type Command struct {
	Name    CommandName
	Payload json.RawMessage
}

var ErrInvalidPayload = errors.New("command payload must be a JSON object")

// NewCommand validates the name and payload and takes a private copy of the
// payload bytes. An empty payload becomes {}.
func NewCommand(name CommandName, payload []byte) (Command, error) {
	if !name.Valid() {
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return Command{}, ErrInvalidPayload
	}
	return Command{Name: name, Payload: append(json.RawMessage(nil), trimmed...)}, nil
}
