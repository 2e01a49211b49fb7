//go:build property
// +build property

package proxy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var commandNames = []interface{}{Analyze, Compare, GenerateManifesto, DraftCampaign, PublishCampaign}

// Property: every input yields exactly one of a success with a JSON object
// payload or a failure with a non-empty message.
func TestNormalizeIsTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	n := Normalizer{Service: "Inference service"}
	check := func(env Envelope) bool {
		if env.OK {
			var obj map[string]any
			return env.ErrorMessage == "" && env.Failure == FailureNone && json.Unmarshal(env.Payload, &obj) == nil && obj != nil
		}
		return env.Payload == nil && env.ErrorMessage != "" && env.Failure != FailureNone
	}

	properties.Property("arbitrary bytes", prop.ForAll(
		func(name CommandName, status int, raw string) bool {
			return check(n.Normalize(name, status, []byte(raw), nil))
		},
		gen.OneConstOf(commandNames...),
		gen.IntRange(0, 599),
		gen.AnyString(),
	))

	properties.Property("json objects", prop.ForAll(
		func(name CommandName, status int, keys []string, values []string) bool {
			obj := map[string]any{}
			for i := 0; i < len(keys) && i < len(values); i++ {
				obj[keys[i]] = values[i]
			}
			raw, _ := json.Marshal(obj)
			return check(n.Normalize(name, status, raw, nil))
		},
		gen.OneConstOf(commandNames...),
		gen.IntRange(0, 599),
		gen.SliceOf(gen.OneConstOf("status", "data", "analysis", "comparison", "manifesto", "campaign_data", "shopify_event_id", "detail", "error", "message")),
		gen.SliceOf(gen.OneConstOf("error", "success", "failed", "", "x")),
	))

	properties.Property("transport errors are offline", prop.ForAll(
		func(name CommandName, raw string) bool {
			env := n.Normalize(name, 200, []byte(raw), errors.New("boom"))
			return !env.OK && env.Failure == FailureTransport && env.ErrorMessage == "Inference service offline"
		},
		gen.OneConstOf(commandNames...),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
