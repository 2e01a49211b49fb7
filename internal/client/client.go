// Package client calls the panel's same-origin routes on behalf of an
// interactive surface and turns each reply back into a proxy.Envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

const maxBodyBytes = 8 << 20

// Client implements operation.Dispatcher against a running panel server.
type Client struct {
	baseURL      string
	sessionToken string
	http         *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.http = client }
}

// New targets the panel at baseURL and authenticates every call with
// sessionToken. The default HTTP timeout leaves room for the server's own
// inference timeout.
func New(baseURL, sessionToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		sessionToken: sessionToken,
		http:         &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Dispatch(ctx context.Context, cmd proxy.Command) proxy.Envelope {
	route, ok := proxy.RouteFor(cmd.Name)
	if !ok {
		return proxy.Fail(proxy.FailureApplication, fmt.Sprintf("unknown command %q", cmd.Name))
	}
	payload := cmd.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route.Path, bytes.NewReader(payload))
	if err != nil {
		return proxy.Fail(proxy.FailureTransport, "control panel unreachable")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return proxy.Fail(proxy.FailureTransport, "control panel unreachable")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return proxy.Fail(proxy.FailureTransport, "control panel unreachable")
	}
	return decode(route, resp.StatusCode, raw)
}

type replyBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// decode maps a same-origin reply onto an Envelope: 401 is Unauthenticated,
// 5xx is a transport failure, {status:"error"} is an application failure and
// anything else carries the route's payload.
func decode(route proxy.Route, status int, raw []byte) proxy.Envelope {
	var reply replyBody
	_ = json.Unmarshal(raw, &reply)
	message := reply.Message

	switch {
	case status == http.StatusUnauthorized:
		if message == "" {
			message = "No session found"
		}
		return proxy.Fail(proxy.FailureUnauthenticated, message)
	case status >= 500:
		if message == "" {
			message = fmt.Sprintf("control panel responded with status %d", status)
		}
		return proxy.Fail(proxy.FailureTransport, message)
	case status >= 400 || reply.Status == "error":
		if message == "" {
			message = fmt.Sprintf("request rejected with status %d", status)
		}
		return proxy.Fail(proxy.FailureApplication, message)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return proxy.Fail(proxy.FailureApplication, "unexpected response from control panel")
	}
	if route.ResponseKey != "" {
		inner, ok := body[route.ResponseKey]
		if !ok {
			return proxy.Fail(proxy.FailureApplication, "unexpected response from control panel")
		}
		return proxy.Succeed(inner)
	}
	delete(body, "status")
	encoded, err := json.Marshal(body)
	if err != nil {
		return proxy.Fail(proxy.FailureApplication, "unexpected response from control panel")
	}
	return proxy.Succeed(encoded)
}
