package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Normalizer maps inference service replies onto Envelope. Service is the
// human-readable name used in failure messages ("<Service> offline").
type Normalizer struct {
	Service string
}

func (n Normalizer) service() string {
	if n.Service == "" {
		return "Inference service"
	}
	return n.Service
}

// OfflineMessage is the browser-visible message for transport failures.
func (n Normalizer) OfflineMessage() string {
	return n.service() + " offline"
}

// Normalize is total: every input yields exactly one of a success or a failure
// Envelope. status 0 is treated as 200.
func (n Normalizer) Normalize(name CommandName, status int, raw []byte, transportErr error) Envelope {
	if transportErr != nil {
		return Fail(FailureTransport, n.OfflineMessage())
	}
	success := status == 0 || (status >= 200 && status < 300)

	var body any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || dec.More() {
		if !success {
			return Fail(FailureTransport, n.OfflineMessage())
		}
		return Fail(FailureApplication, fmt.Sprintf("%s returned an unreadable response", n.service()))
	}

	obj, isObject := body.(map[string]any)
	if isObject {
		if msg, failed := n.errorSignal(obj); failed {
			return Fail(FailureApplication, msg)
		}
	}
	if !success {
		return Fail(FailureApplication, fmt.Sprintf("%s responded with status %d", n.service(), status))
	}
	if !isObject {
		return n.unexpected()
	}

	payload, ok := extract(name, obj)
	if !ok {
		return n.unexpected()
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return n.unexpected()
	}
	return Succeed(encoded)
}

func (n Normalizer) unexpected() Envelope {
	return Fail(FailureApplication, fmt.Sprintf("unexpected response from %s", n.service()))
}

// errorSignal recognizes the service's application error shapes:
// {status:"error", message}, FastAPI {detail: string | [{loc, msg}]} and
// {error: string | {message}}.
func (n Normalizer) errorSignal(obj map[string]any) (string, bool) {
	if status, ok := obj["status"].(string); ok {
		switch strings.ToLower(status) {
		case "error", "failed", "failure":
			if msg := firstMessage(obj); msg != "" {
				return msg, true
			}
			return fmt.Sprintf("%s reported an error", n.service()), true
		}
	}
	if detail, ok := obj["detail"]; ok && detail != nil {
		if msg := detailMessage(detail); msg != "" {
			return msg, true
		}
		return fmt.Sprintf("%s rejected the request", n.service()), true
	}
	if errValue, ok := obj["error"]; ok && errValue != nil {
		switch v := errValue.(type) {
		case string:
			if v != "" {
				return v, true
			}
		case map[string]any:
			if msg, _ := v["message"].(string); msg != "" {
				return msg, true
			}
			return fmt.Sprintf("%s reported an error", n.service()), true
		case bool:
			if v {
				return fmt.Sprintf("%s reported an error", n.service()), true
			}
		}
	}
	return "", false
}

func firstMessage(obj map[string]any) string {
	for _, key := range []string{"message", "detail", "error"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			if msg := detailMessage(v); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// detailMessage flattens a FastAPI detail value. Validation items contribute
// "loc: msg" only; their echoed input values are dropped.
func detailMessage(detail any) string {
	switch v := detail.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			msg, _ := entry["msg"].(string)
			if msg == "" {
				continue
			}
			if loc := joinLoc(entry["loc"]); loc != "" {
				msg = loc + ": " + msg
			}
			parts = append(parts, msg)
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func joinLoc(loc any) string {
	items, ok := loc.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s := fmt.Sprint(item); s != "body" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// extract picks the command's payload out of the service's reply.
func extract(name CommandName, obj map[string]any) (map[string]any, bool) {
	switch name {
	case Analyze:
		if s, ok := obj["analysis"].(string); ok {
			return map[string]any{"analysis": s}, true
		}
		switch data := obj["data"].(type) {
		case string:
			return map[string]any{"analysis": data}, true
		case map[string]any:
			if s, ok := data["analysis"].(string); ok {
				return map[string]any{"analysis": s}, true
			}
		}
	case Compare:
		if v, ok := obj["comparison"]; ok && v != nil {
			return map[string]any{"comparison": v}, true
		}
	case GenerateManifesto:
		switch m := obj["manifesto"].(type) {
		case string:
			return map[string]any{"manifesto": m}, true
		case map[string]any:
			if inner, ok := m["manifesto"]; ok && inner != nil {
				return map[string]any{"manifesto": inner}, true
			}
			return map[string]any{"manifesto": m}, true
		}
	case DraftCampaign:
		if v, ok := obj["campaign_data"]; ok && v != nil {
			return map[string]any{"campaign_data": v}, true
		}
		rest := make(map[string]any, len(obj))
		for k, v := range obj {
			if k != "status" {
				rest[k] = v
			}
		}
		if len(rest) > 0 {
			return map[string]any{"campaign_data": rest}, true
		}
	case PublishCampaign:
		if id, ok := obj["shopify_event_id"]; ok && id != nil {
			return map[string]any{"event_id": id, "event": obj["shopify_event"]}, true
		}
	}
	return nil, false
}
