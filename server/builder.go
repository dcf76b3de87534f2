// Package server assembles the library's components (store, queue
// manager, aggregator, push notifier, request handler, JSON-RPC
// transport) behind a single Build/Start entry point, the way a host
// application wires this module up rather than constructing each piece
// by hand. It is grounded on the teacher's server/builder.go ServerBuilder
// and server/options.go functional options, generalized from that
// builder's MCP-capability-registration shape (EnsureXCapability +
// WithMCPTool-style options) to this library's fixed A2A component set.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/aggregator"
	"github.com/gate4ai/a2a/config"
	"github.com/gate4ai/a2a/executor"
	"github.com/gate4ai/a2a/handler"
	"github.com/gate4ai/a2a/queue"
	"github.com/gate4ai/a2a/rpc"
	"github.com/gate4ai/a2a/store"
	"github.com/gate4ai/a2a/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Builder accumulates configuration before Build assembles the running
// component graph. Use New then zero or more Options, then Build.
type Builder struct {
	logger           *zap.Logger
	store            store.TaskStore
	queueCapacity    int
	cancelTimeout    time.Duration
	pushRatePerSec   float64
	rateLimitRPS     float64
	rateLimitBurst   int
	overwriteAddr    string
	capabilities     a2a.AgentCapabilities
	skills           []a2a.AgentSkill
	extendedCard     *a2a.AgentCard
	securitySchemes  []map[string][]string
}

// Option configures a Builder.
type Option func(*Builder) error

// New returns a Builder with the library's defaults: an in-memory task
// store, queue.DefaultCapacity per task, a 10s cancel timeout, and
// unthrottled push delivery.
func New(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		logger:        logger,
		store:         store.NewInMemoryTaskStore(),
		queueCapacity: queue.DefaultCapacity,
		cancelTimeout: handler.DefaultCancelTimeout,
	}
}

// WithTaskStore overrides the default in-memory TaskStore, e.g. with a
// database-backed implementation.
func WithTaskStore(s store.TaskStore) Option {
	return func(b *Builder) error {
		if s == nil {
			return fmt.Errorf("server: task store cannot be nil")
		}
		b.store = s
		return nil
	}
}

// WithQueueCapacity overrides the per-task EventQueue buffer bound.
func WithQueueCapacity(capacity int) Option {
	return func(b *Builder) error {
		if capacity <= 0 {
			return fmt.Errorf("server: queue capacity must be positive")
		}
		b.queueCapacity = capacity
		return nil
	}
}

// WithCancelTimeout overrides how long tasks/cancel waits for the
// executor's cooperative cancel hook to produce a terminal event.
func WithCancelTimeout(d time.Duration) Option {
	return func(b *Builder) error {
		b.cancelTimeout = d
		return nil
	}
}

// WithPushNotifications enables the pushNotificationConfig/* methods
// and throttles outbound deliveries to ratePerSecond (0 = unthrottled).
func WithPushNotifications(ratePerSecond float64) Option {
	return func(b *Builder) error {
		b.capabilities.PushNotifications = true
		b.pushRatePerSec = ratePerSecond
		return nil
	}
}

// WithStreaming enables message/stream and tasks/resubscribe.
func WithStreaming() Option {
	return func(b *Builder) error {
		b.capabilities.Streaming = true
		return nil
	}
}

// WithStateTransitionHistory sets the stateTransitionHistory capability
// on the AgentCard. The TaskManager appends a status update's message to
// Task.History when one is present; a transition without a message
// leaves no History entry.
func WithStateTransitionHistory() Option {
	return func(b *Builder) error {
		b.capabilities.StateTransitionHistory = true
		return nil
	}
}

// WithRateLimit bounds the JSON-RPC HTTP endpoint to rps requests per
// second per client IP, with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(b *Builder) error {
		b.rateLimitRPS = rps
		b.rateLimitBurst = burst
		return nil
	}
}

// WithListenAddr overrides the listen address read from config.
func WithListenAddr(addr string) Option {
	return func(b *Builder) error {
		b.overwriteAddr = addr
		return nil
	}
}

// WithSkill appends one AgentSkill to the served AgentCard.
func WithSkill(skill a2a.AgentSkill) Option {
	return func(b *Builder) error {
		b.skills = append(b.skills, skill)
		return nil
	}
}

// WithSecurityScheme appends one entry to the AgentCard's security
// requirements list.
func WithSecurityScheme(scheme map[string][]string) Option {
	return func(b *Builder) error {
		b.securitySchemes = append(b.securitySchemes, scheme)
		return nil
	}
}

// WithAuthenticatedExtendedCard configures the
// /agent/authenticatedExtendedCard endpoint to serve card and marks the
// base card as supporting it.
func WithAuthenticatedExtendedCard(card a2a.AgentCard) Option {
	return func(b *Builder) error {
		b.extendedCard = &card
		return nil
	}
}

// Server is the fully assembled, not-yet-started component graph.
type Server struct {
	logger         *zap.Logger
	cfg            config.Config
	card           a2a.AgentCard
	rpcServer      *rpc.Server
	store          store.TaskStore
	queues         *queue.Manager
	overwriteAddr  string
	rateLimitRPS   float64
	rateLimitBurst int

	httpServer *http.Server
}

// Build wires store, queue.Manager, aggregator.ResultAggregator,
// handler.PushNotifier, and handler.RequestHandler together around exec,
// and constructs the AgentCard from cfg plus any WithSkill/
// WithSecurityScheme options.
func (b *Builder) Build(cfg config.Config, exec executor.AgentExecutor, opts ...Option) (*Server, error) {
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("server: apply option: %w", err)
		}
	}
	if exec == nil {
		return nil, fmt.Errorf("server: executor cannot be nil")
	}

	base, err := cfg.AgentCardBase()
	if err != nil {
		return nil, fmt.Errorf("server: load agent card base: %w", err)
	}

	listenAddr := b.overwriteAddr
	if listenAddr == "" {
		listenAddr, err = cfg.ListenAddr()
		if err != nil {
			return nil, fmt.Errorf("server: listen address: %w", err)
		}
	}
	sslEnabled, _ := cfg.SSLEnabled()
	scheme := "http"
	if sslEnabled {
		scheme = "https"
	}

	card := a2a.AgentCard{
		Name:                              base.Name,
		Description:                       base.Description,
		URL:                               fmt.Sprintf("%s://%s", scheme, listenAddr),
		Version:                           base.Version,
		DocumentationURL:                  base.DocumentationURL,
		Provider:                          base.Provider,
		Capabilities:                      b.capabilities,
		DefaultInputModes:                 base.DefaultInputModes,
		DefaultOutputModes:                base.DefaultOutputModes,
		Skills:                            append(append([]a2a.AgentSkill{}, base.Skills...), b.skills...),
		Security:                          b.securitySchemes,
		SupportsAuthenticatedExtendedCard: b.extendedCard != nil,
	}

	queues := queue.NewManager()
	agg := aggregator.New(b.store, b.logger)
	push := handler.NewPushNotifier(b.logger, b.pushRatePerSec)
	h := handler.New(b.store, queues, agg, exec, push, card, b.logger)
	h.SetQueueCapacity(b.queueCapacity)
	h.SetCancelTimeout(b.cancelTimeout)
	rpcServer := rpc.NewServer(h, card, b.extendedCard, b.logger)

	return &Server{
		logger:         b.logger,
		cfg:            cfg,
		card:           card,
		rpcServer:      rpcServer,
		store:          b.store,
		queues:         queues,
		overwriteAddr:  b.overwriteAddr,
		rateLimitRPS:   b.rateLimitRPS,
		rateLimitBurst: b.rateLimitBurst,
	}, nil
}

// Start launches the HTTP listener in the background per
// transport.Start's contract, returning the listener error channel.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	var root http.Handler = s.rpcServer.Routes()
	if s.rateLimitRPS > 0 {
		root = transport.RateLimit(root, s.rateLimitRPS, s.rateLimitBurst)
	}

	httpServer, errCh, err := transport.Start(ctx, s.logger, s.cfg, root, s.overwriteAddr)
	if err != nil {
		return nil, err
	}
	s.httpServer = httpServer
	return errCh, nil
}

// Shutdown gracefully stops the HTTP listener, stops every still-running
// executor, closes every live task queue, and flushes the task store,
// bounded by ctx. It combines any failures from those independent
// cleanup steps into a single error.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := transport.Shutdown(ctx, s.logger, s.httpServer)
	queueErr := s.queues.CloseAll()
	storeErr := s.store.Close()

	err := multierr.Combine(httpErr, queueErr, storeErr)
	if err != nil {
		s.logger.Error("shutdown finished with errors", zap.Error(err))
	}
	return err
}

// AgentCard returns the card this server advertises.
func (s *Server) AgentCard() a2a.AgentCard {
	return s.card
}
