package operation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

var ErrClosed = errors.New("operation controller closed")

// Dispatcher delivers one command and always answers with an Envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd proxy.Command) proxy.Envelope
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, cmd proxy.Command) proxy.Envelope

func (f DispatcherFunc) Dispatch(ctx context.Context, cmd proxy.Command) proxy.Envelope {
	return f(ctx, cmd)
}

// RetryPolicy re-dispatches an invocation after a transport failure.
// MaxAttempts counts the first attempt; values below 2 disable retries.
// Non-idempotent commands are never retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) allows(name proxy.CommandName, attempt int, env proxy.Envelope) bool {
	return name.Idempotent() && attempt < p.MaxAttempts && !env.OK && env.Failure == proxy.FailureTransport
}

type Option func(*Controller)

func WithRetry(policy RetryPolicy) Option {
	return func(c *Controller) { c.retry = policy }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Controller owns the state of one surface. Every trigger dispatches in its
// own goroutine; results are applied through Next so only the latest
// invocation can settle the surface.
type Controller struct {
	surface    string
	command    proxy.CommandName
	dispatcher Dispatcher
	retry      RetryPolicy
	logger     *zap.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	seq     uint64
	changed chan struct{}
	closed  bool
}

func NewController(surface string, command proxy.CommandName, dispatcher Dispatcher, opts ...Option) *Controller {
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		surface:    surface,
		command:    command,
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		base:       base,
		cancel:     cancel,
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Surface() string { return c.surface }

func (c *Controller) Command() proxy.CommandName { return c.command }

// State returns a snapshot of the read model.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger starts a new invocation and supersedes any pending one. It returns
// the invocation token. ctx carries request values only; the dispatch is not
// cancelled when ctx ends.
func (c *Controller) Trigger(ctx context.Context, payload []byte) (uint64, error) {
	cmd, err := proxy.NewCommand(c.command, payload)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.seq++
	token := c.seq
	superseded := c.state.IsBusy()
	c.apply(Event{Kind: Triggered, Token: token})
	c.wg.Add(1)
	c.mu.Unlock()

	if superseded {
		c.logger.Debug("superseding pending invocation", zap.String("surface", c.surface), zap.Uint64("token", token))
	}

	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.base, cancel)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()
		c.resolve(token, c.run(dctx, token, cmd))
	}()
	return token, nil
}

// Reset returns the surface to Idle. Results of in-flight invocations are
// dropped when they arrive.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(Event{Kind: ResetRequested})
}

// Wait blocks until the surface is not Pending or ctx ends.
func (c *Controller) Wait(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		state, changed := c.state, c.changed
		c.mu.Unlock()
		if !state.IsBusy() {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close stops accepting triggers, cancels in-flight dispatches and waits for
// their goroutines to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context, token uint64, cmd proxy.Command) proxy.Envelope {
	for attempt := 1; ; attempt++ {
		env := c.dispatcher.Dispatch(ctx, cmd)
		if !c.retry.allows(cmd.Name, attempt, env) || !c.current(token) {
			return env
		}
		c.logger.Info("retrying after transport failure",
			zap.String("surface", c.surface),
			zap.String("command", string(cmd.Name)),
			zap.Int("attempt", attempt),
		)
		timer := time.NewTimer(c.retry.Backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return env
		}
		if !c.current(token) {
			return env
		}
	}
}

func (c *Controller) current(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsBusy() && c.state.Token == token
}

func (c *Controller) resolve(token uint64, env proxy.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.state
	c.apply(Event{Kind: Resolved, Token: token, Result: env})
	if c.state.Phase == before.Phase {
		c.logger.Debug("dropping stale result", zap.String("surface", c.surface), zap.Uint64("token", token))
	}
}

// apply must be called with mu held.
func (c *Controller) apply(e Event) {
	next := Next(c.state, e)
	if next.Phase == c.state.Phase && next.Token == c.state.Token {
		return
	}
	c.state = next
	close(c.changed)
	c.changed = make(chan struct{})
}
