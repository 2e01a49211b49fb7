package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/session"
)

// Wire names of the identity fields the inference service expects.
const (
	TenantField      = "shop_domain"
	AccessTokenField = "access_token"
)

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 8 << 20
	tracerName       = "github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

// Gateway performs exactly one outbound call per Forward and converts every
// outcome, including transport failures, into an Envelope.
type Gateway struct {
	baseURL    string
	timeout    time.Duration
	client     *http.Client
	normalizer Normalizer
	logger     *zap.Logger
	tracer     trace.Tracer
}

type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) { g.tracer = tp.Tracer(tracerName) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// NewGateway targets baseURL (e.g. http://127.0.0.1:8000). A non-positive
// timeout falls back to 60s.
func NewGateway(baseURL, service string, timeout time.Duration, opts ...Option) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		client:     &http.Client{},
		normalizer: Normalizer{Service: service},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Normalizer() Normalizer {
	return g.normalizer
}

// Forward sends cmd with the session identity merged into its payload.
func (g *Gateway) Forward(ctx context.Context, cmd Command, sess session.AdminSession) (env Envelope) {
	ctx, span := g.tracer.Start(ctx, "proxy.forward", trace.WithAttributes(
		attribute.String("panel.command", string(cmd.Name)),
		attribute.String("panel.tenant", sess.TenantID),
	))
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("forward panicked", zap.String("command", string(cmd.Name)), zap.Any("panic", r))
			env = Fail(FailureApplication, "operation failed")
		}
		span.SetAttributes(attribute.Bool("panel.ok", env.OK), attribute.String("panel.failure", env.Failure.String()))
		if !env.OK {
			span.SetStatus(codes.Error, env.Failure.String())
		}
		span.End()
	}()

	route, ok := RouteFor(cmd.Name)
	if !ok {
		return Fail(FailureApplication, fmt.Sprintf("unknown command %q", cmd.Name))
	}

	body, err := mergeIdentity(cmd.Payload, sess)
	if err != nil {
		return Fail(FailureApplication, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+route.UpstreamPath, bytes.NewReader(body))
	if err != nil {
		g.logger.Error("build inference request", zap.String("command", string(cmd.Name)), zap.Error(err))
		return Fail(FailureTransport, g.normalizer.OfflineMessage())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	started := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("inference service unreachable",
			zap.String("command", string(cmd.Name)),
			zap.Object("session", sess),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return g.normalizer.Normalize(cmd.Name, 0, nil, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		g.logger.Warn("read inference response",
			zap.String("command", string(cmd.Name)),
			zap.Object("session", sess),
			zap.Error(err),
		)
		return g.normalizer.Normalize(cmd.Name, resp.StatusCode, nil, err)
	}

	env = redact(g.normalizer.Normalize(cmd.Name, resp.StatusCode, raw, nil), sess.AccessToken)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if env.OK {
		g.logger.Info("inference call completed",
			zap.String("command", string(cmd.Name)),
			zap.Object("session", sess),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(started)),
		)
	} else {
		g.logger.Warn("inference call failed",
			zap.String("command", string(cmd.Name)),
			zap.Object("session", sess),
			zap.Int("status", resp.StatusCode),
			zap.Stringer("failure", env.Failure),
			zap.String("message", env.ErrorMessage),
		)
	}
	return env
}

// Ping checks that the inference service answers on its root path.
func (g *Gateway) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable", g.normalizer.service())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s responded with status %d", g.normalizer.service(), resp.StatusCode)
	}
	return nil
}

// mergeIdentity overlays the session identity onto the payload object. The
// identity always wins over client-supplied fields of the same name.
func mergeIdentity(payload json.RawMessage, sess session.AdminSession) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
			return nil, ErrInvalidPayload
		}
	}
	tenant, _ := json.Marshal(sess.TenantID)
	token, _ := json.Marshal(sess.AccessToken)
	fields[TenantField] = tenant
	fields[AccessTokenField] = token
	return json.Marshal(fields)
}

// minRedactLen guards against rewriting ordinary text when the access
// token is short.
const minRedactLen = 8

// redact keeps the access token out of messages that reach the browser. Only
// string values are rewritten; object keys are left alone.
func redact(env Envelope, secret string) Envelope {
	if len(secret) < minRedactLen {
		return env
	}
	if !env.OK && strings.Contains(env.ErrorMessage, secret) {
		env.ErrorMessage = strings.ReplaceAll(env.ErrorMessage, secret, "[redacted]")
	}
	if env.OK && bytes.Contains(env.Payload, []byte(secret)) {
		var doc any
		dec := json.NewDecoder(bytes.NewReader(env.Payload))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return env
		}
		cleaned, err := json.Marshal(redactValue(doc, secret))
		if err != nil {
			return env
		}
		env.Payload = cleaned
	}
	return env
}

func redactValue(v any, secret string) any {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, secret, "[redacted]")
	case map[string]any:
		for k, inner := range t {
			t[k] = redactValue(inner, secret)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = redactValue(inner, secret)
		}
		return t
	default:
		return v
	}
}
