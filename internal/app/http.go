package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
	"github.com/andrearcaina/uofthacks-2026/internal/rbac"
	"github.com/andrearcaina/uofthacks-2026/internal/session"
)

const maxBodyBytes = 1 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	limiter    *tenantLimiter
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		limiter:    newTenantLimiter(service.cfg.RateLimitRPS, service.cfg.RateLimitBurst),
		logger:     service.logger,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.withMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Head("/api/ready", s.handleReady)

	for _, route := range proxy.Routes() {
		r.Post(route.Path, s.handleCommand(route))
	}

	r.Route("/api/internal/sessions", func(r chi.Router) {
		r.Use(s.requireInstallToken)
		r.Post("/", s.handleInstall)
		r.Delete("/{tenant}", s.handleUninstall)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleCommand serves one proxied command route. The gateway is reached only
// after the session resolves, the tenant is within its rate limit, its scopes
// allow the command and the body validates.
func (s *HTTPServer) handleCommand(route proxy.Route) http.HandlerFunc {
	action := actionFor(route.Command)
	return func(w http.ResponseWriter, r *http.Request) {
		sess, grants, err := s.service.Authenticate(r)
		if err != nil {
			if !errors.Is(err, session.ErrUnauthenticated) {
				s.logger.Error("resolve session", zap.String("request_id", requestID(r.Context())), zap.Error(err))
			}
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}

		if !s.limiter.Allow(sess.TenantID) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		if !rbac.Can(grants, action) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", fmt.Sprintf("Missing access scope %s", rbac.Required(action)))
			return
		}

		raw, err := readPayload(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if err := validatePayload(route.Command, raw); err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		cmd, err := proxy.NewCommand(route.Command, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}

		writeEnvelope(w, route, s.service.Execute(r.Context(), cmd, sess))
	}
}

func actionFor(name proxy.CommandName) rbac.Action {
	switch name {
	case proxy.GenerateManifesto, proxy.DraftCampaign:
		return rbac.ActionReadStore
	case proxy.PublishCampaign:
		return rbac.ActionPublish
	default:
		return rbac.ActionAnalyze
	}
}

// writeEnvelope renders an Envelope in the route's response shape.
// Transport failures are 500, application failures are 200 with
// status "error".
func writeEnvelope(w http.ResponseWriter, route proxy.Route, env proxy.Envelope) {
	if !env.OK {
		switch env.Failure {
		case proxy.FailureTransport:
			writeError(w, http.StatusInternalServerError, "UPSTREAM_OFFLINE", env.ErrorMessage)
		case proxy.FailureUnauthenticated:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", env.ErrorMessage)
		default:
			writeError(w, http.StatusOK, "UPSTREAM_ERROR", env.ErrorMessage)
		}
		return
	}

	body := map[string]any{"status": "success"}
	if route.ResponseKey != "" {
		body[route.ResponseKey] = env.Payload
	} else {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(env.Payload, &fields); err == nil {
			for key, value := range fields {
				if key != "status" {
					body[key] = value
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *HTTPServer) requireInstallToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Panel-Install-Token"))
		if !s.service.InstallTokenValid(token) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleInstall(w http.ResponseWriter, r *http.Request) {
	var body InstallInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	result, err := s.service.Install(r.Context(), body)
	if err != nil {
		s.logger.Error("install tenant", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tenantId":     result.TenantID,
		"sessionToken": result.SessionToken,
		"expiresAt":    result.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleUninstall(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Uninstall(r.Context(), chi.URLParam(r, "tenant")); err != nil {
		s.logger.Error("uninstall tenant", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// readPayload returns the request body as a JSON object. An empty body is {}.
func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body too large")
		}
		return nil, fmt.Errorf("invalid JSON body")
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return []byte("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	return []byte(trimmed), nil
}
