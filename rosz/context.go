package rosz

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/jazi007/oxidros-sub001/names"
	"github.com/jazi007/oxidros-sub001/transport"
	"github.com/jazi007/oxidros-sub001/transport/natsbus"
)

// Context represents a rosz context: one transport session shared by the
// nodes created from it.
type Context struct {
	session     transport.Session
	ownsSession bool
	domainID    uint32
	enclave     string
	resolver    *names.Resolver
	params      []ParamAssignment
	logger      *slog.Logger
	tel         *telemetry
	graph       *graphCache

	nodeCounter atomic.Uint32

	mu        sync.Mutex
	nodes     map[uint64]io.Closer
	nextChild uint64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ContextBuilder builds a Context
type ContextBuilder struct {
	domainID       *uint32
	session        transport.Session
	bus            *transport.MemoryBus
	configFile     string
	connect        []string
	mode           Mode
	connectTimeout time.Duration
	remapRules     []string
	args           []string
	enclave        string
	logLevel       string
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewContext creates a new context builder
func NewContext() *ContextBuilder {
	return &ContextBuilder{}
}

// WithDomainID sets the ROS domain ID. It overrides ROS_DOMAIN_ID.
func (b *ContextBuilder) WithDomainID(id uint32) *ContextBuilder {
	b.domainID = &id
	return b
}

// WithTransport uses an existing session. The context does not close it.
func (b *ContextBuilder) WithTransport(s transport.Session) *ContextBuilder {
	b.session = s
	return b
}

// WithMemoryBus opens the session on bus instead of the process-wide bus.
func (b *ContextBuilder) WithMemoryBus(bus *transport.MemoryBus) *ContextBuilder {
	b.bus = bus
	b.mode = ModeMemory
	return b
}

// WithConfigFile loads configuration from a YAML file
func (b *ContextBuilder) WithConfigFile(path string) *ContextBuilder {
	b.configFile = path
	return b
}

// WithConnectEndpoints sets the NATS server URLs
func (b *ContextBuilder) WithConnectEndpoints(endpoints ...string) *ContextBuilder {
	b.connect = endpoints
	return b
}

// WithMode selects the transport
func (b *ContextBuilder) WithMode(mode Mode) *ContextBuilder {
	b.mode = mode
	return b
}

// WithConnectTimeout bounds the initial NATS connection
func (b *ContextBuilder) WithConnectTimeout(d time.Duration) *ContextBuilder {
	b.connectTimeout = d
	return b
}

// WithRemapRule adds a name remapping rule in "from:=to" format
func (b *ContextBuilder) WithRemapRule(rule string) *ContextBuilder {
	b.remapRules = append(b.remapRules, rule)
	return b
}

// WithRemapRules adds multiple name remapping rules
func (b *ContextBuilder) WithRemapRules(rules ...string) *ContextBuilder {
	b.remapRules = append(b.remapRules, rules...)
	return b
}

// WithArgs applies the ROS arguments found in args, typically os.Args[1:].
func (b *ContextBuilder) WithArgs(args []string) *ContextBuilder {
	b.args = args
	return b
}

// WithEnclave sets the security enclave advertised by every node
func (b *ContextBuilder) WithEnclave(enclave string) *ContextBuilder {
	b.enclave = enclave
	return b
}

// WithLogger replaces the package logger for this context
func (b *ContextBuilder) WithLogger(l *slog.Logger) *ContextBuilder {
	b.logger = l
	return b
}

// WithLogLevel sets the level of the default stderr logger
func (b *ContextBuilder) WithLogLevel(level string) *ContextBuilder {
	b.logLevel = level
	return b
}

// WithTracerProvider enables service call spans
func (b *ContextBuilder) WithTracerProvider(tp trace.TracerProvider) *ContextBuilder {
	b.tracerProvider = tp
	return b
}

// WithMeterProvider enables message counters
func (b *ContextBuilder) WithMeterProvider(mp metric.MeterProvider) *ContextBuilder {
	b.meterProvider = mp
	return b
}

// config merges the sources in increasing precedence: config file,
// ROS_DOMAIN_ID, builder options.
func (b *ContextBuilder) config() (Config, *Args, error) {
	var cfg Config
	path := b.configFile
	if path == "" {
		path = os.Getenv(EnvSessionConfig)
	}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, nil, err
		}
		cfg = *loaded
	}

	domain, err := domainFromEnv()
	if err != nil {
		return Config{}, nil, err
	}
	if domain != nil {
		cfg.DomainID = domain
	}

	args := &Args{}
	if b.args != nil {
		if args, err = ParseArgs(b.args); err != nil {
			return Config{}, nil, err
		}
	}

	if b.domainID != nil {
		cfg.DomainID = b.domainID
	}
	if b.mode != "" {
		cfg.Mode = b.mode
	}
	if len(b.connect) > 0 {
		cfg.Connect = b.connect
	}
	if b.connectTimeout > 0 {
		cfg.ConnectTimeout = b.connectTimeout
	}
	switch {
	case b.enclave != "":
		cfg.Enclave = b.enclave
	case args.Enclave != "":
		cfg.Enclave = args.Enclave
	}
	switch {
	case b.logLevel != "":
		cfg.LogLevel = b.logLevel
	case args.LogLevel() != "":
		cfg.LogLevel = args.LogLevel()
	}
	cfg.ParamsFiles = append(cfg.ParamsFiles, args.ParamFiles...)
	if err := cfg.validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg.applyDefaults(), args, nil
}

// Build creates the context
func (b *ContextBuilder) Build() (*Context, error) {
	cfg, args, err := b.config()
	if err != nil {
		return nil, err
	}

	// The first matching remap rule wins: builder rules, then the command
	// line, then the config file.
	fileRules, err := names.ParseRemapRules(cfg.Remap)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "invalid remap rule in config")
	}
	builderRules, err := names.ParseRemapRules(b.remapRules)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "invalid remap rule")
	}
	rules := append(append(builderRules, args.Remaps...), fileRules...)

	var params []ParamAssignment
	for _, path := range cfg.ParamsFiles {
		p, err := LoadParamFile(path)
		if err != nil {
			return nil, err
		}
		params = append(params, p...)
	}
	params = append(params, args.Params...)

	log := b.logger
	if log == nil {
		log = logger
		if cfg.LogLevel != "" {
			lvl, err := parseLogLevel(cfg.LogLevel)
			if err != nil {
				return nil, err
			}
			log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		}
	}

	tel, err := newTelemetry(b.tracerProvider, b.meterProvider)
	if err != nil {
		return nil, wrapError(ErrorCodeContextCreationFailed, err, "failed to create telemetry")
	}

	session, owned, err := b.open(cfg, log)
	if err != nil {
		return nil, err
	}

	c := &Context{
		session:     session,
		ownsSession: owned,
		domainID:    *cfg.DomainID,
		enclave:     cfg.Enclave,
		resolver:    names.NewResolver(rules...),
		params:      params,
		logger:      log,
		tel:         tel,
		nodes:       make(map[uint64]io.Closer),
	}
	c.graph, err = newGraphCache(session, c.domainID, log)
	if err != nil {
		if owned {
			err = multierr.Append(err, session.Close())
		}
		return nil, wrapError(ErrorCodeContextCreationFailed, err, "failed to start graph discovery")
	}

	log.Debug("context created",
		"domain_id", c.domainID,
		"session", session.ID(),
		"mode", cfg.Mode,
		"remap_rules", len(rules))
	runtime.SetFinalizer(c, (*Context).Close)
	return c, nil
}

func (b *ContextBuilder) open(cfg Config, log *slog.Logger) (transport.Session, bool, error) {
	if b.session != nil {
		return b.session, false, nil
	}
	switch cfg.Mode {
	case ModeNATS:
		s, err := natsbus.Connect(natsbus.Config{
			URL:            strings.Join(cfg.Connect, ","),
			ConnectTimeout: cfg.ConnectTimeout,
			Logger:         log,
		})
		if err != nil {
			return nil, false, wrapError(ErrorCodeContextCreationFailed, err,
				"failed to connect to %s", strings.Join(cfg.Connect, ","))
		}
		return s, true, nil
	default:
		bus := b.bus
		if bus == nil {
			bus = transport.DefaultBus()
		}
		return bus.Session(), true, nil
	}
}

// DomainID returns the ROS domain of the context
func (c *Context) DomainID() uint32 { return c.domainID }

// SessionID returns the id of the underlying transport session
func (c *Context) SessionID() string { return c.session.ID() }

// Enclave returns the security enclave, empty when unset
func (c *Context) Enclave() string { return c.enclave }

// Logger returns the context logger
func (c *Context) Logger() *slog.Logger { return c.logger }

// CreateNode creates a new node builder
func (c *Context) CreateNode(name string) *NodeBuilder {
	return &NodeBuilder{
		ctx:       c,
		name:      name,
		namespace: "",
	}
}

func (c *Context) track(cl io.Closer) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return 0, ErrContextClosed
	}
	c.nextChild++
	c.nodes[c.nextChild] = cl
	return c.nextChild, nil
}

func (c *Context) untrack(id uint64) {
	c.mu.Lock()
	delete(c.nodes, id)
	c.mu.Unlock()
}

// Close shuts down the context: every node it created, the graph cache and
// the session, when the context opened it.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed.Store(true)
		nodes := make([]io.Closer, 0, len(c.nodes))
		for _, n := range c.nodes {
			nodes = append(nodes, n)
		}
		c.nodes = nil
		c.mu.Unlock()

		var err error
		for _, n := range nodes {
			err = multierr.Append(err, n.Close())
		}
		err = multierr.Append(err, c.graph.close())
		if c.ownsSession {
			err = multierr.Append(err, c.session.Close())
		}
		if err != nil {
			c.closeErr = fmt.Errorf("context shutdown failed: %w", err)
		}
		runtime.SetFinalizer(c, nil)
	})
	return c.closeErr
}
