package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

var allowedChannels = map[string]struct{}{
	"EMAIL":          {},
	"INSTAGRAM":      {},
	"BLOG":           {},
	"YOUTUBE_SHORTS": {},
}

func validationError(format string, args ...any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf(format, args...))
}

// validatePayload checks the fields each command needs before anything is
// sent to the inference service. Unknown fields pass through untouched.
func validatePayload(name proxy.CommandName, raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domainError(http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
	}

	switch name {
	case proxy.Analyze:
		if err := requireString(fields, "url"); err != nil {
			return err
		}
		return optionalString(fields, "prompt")
	case proxy.Compare:
		if err := requireString(fields, "summary"); err != nil {
			return err
		}
		return optionalString(fields, "manifesto")
	case proxy.DraftCampaign:
		if err := requireString(fields, "campaign_goal"); err != nil {
			return err
		}
		return validateChannels(fields["channels"])
	case proxy.PublishCampaign:
		var data map[string]json.RawMessage
		value, ok := fields["campaign_data"]
		if !ok || json.Unmarshal(value, &data) != nil || data == nil {
			return validationError("campaign_data must be an object")
		}
	}
	return nil
}

func requireString(fields map[string]json.RawMessage, key string) error {
	var value string
	raw, ok := fields[key]
	if !ok || json.Unmarshal(raw, &value) != nil || strings.TrimSpace(value) == "" {
		return validationError("%s is required", key)
	}
	return nil
}

func optionalString(fields map[string]json.RawMessage, key string) error {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return validationError("%s must be a string", key)
	}
	return nil
}

func validateChannels(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var channels []string
	if err := json.Unmarshal(raw, &channels); err != nil {
		return validationError("channels must be a list of strings")
	}
	for _, channel := range channels {
		if _, ok := allowedChannels[channel]; !ok {
			return validationError("unknown channel %q", channel)
		}
	}
	return nil
}
