package fixi

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLoopLimit bounds while, until, until-event and forever loops.
const DefaultLoopLimit = 10000

// Config controls evaluation bounds and host hooks.
type Config struct {
	// LoopLimit caps iterations of loops without a natural end.
	LoopLimit int
	// StepQuota caps evaluation steps per invocation; negative disables it.
	StepQuota int
	// RecursionLimit caps nested function calls and nested event handlers.
	RecursionLimit int
	Logger         *zerolog.Logger
	// Tick is called on every until-event iteration while the turn is
	// released. The default yields the processor.
	Tick  func(ctx context.Context) error
	Clock func() time.Time
}

// Engine holds configuration and the expression registry. Register
// extensions before creating the first runtime; the registry is read-only
// afterwards.
type Engine struct {
	config   Config
	log      zerolog.Logger
	registry *Registry
	sealed   atomic.Bool
}

// NewEngine constructs an Engine with defaults applied and the built-in
// expressions registered.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.LoopLimit < 0 {
		return nil, fmt.Errorf("fixi: loop limit must not be negative")
	}
	if cfg.RecursionLimit < 0 {
		return nil, fmt.Errorf("fixi: recursion limit must not be negative")
	}
	if cfg.LoopLimit == 0 {
		cfg.LoopLimit = DefaultLoopLimit
	}
	if cfg.StepQuota == 0 {
		cfg.StepQuota = 1_000_000
	}
	if cfg.RecursionLimit == 0 {
		cfg.RecursionLimit = 64
	}
	if cfg.Tick == nil {
		cfg.Tick = func(context.Context) error {
			runtime.Gosched()
			return nil
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	engine := &Engine{
		config:   cfg,
		log:      logger,
		registry: newRegistry(),
	}
	if err := registerBuiltins(engine.registry); err != nil {
		return nil, err
	}
	return engine, nil
}

// MustNewEngine constructs an Engine or panics if the config is invalid.
func MustNewEngine(cfg Config) *Engine {
	engine, err := NewEngine(cfg)
	if err != nil {
		panic(err)
	}
	return engine
}

// RegisterExpression adds a named expression or operator implementation.
func (e *Engine) RegisterExpression(entry Entry) error {
	if e.sealed.Load() {
		return fmt.Errorf("register %q: %w", entry.Name, ErrRegistrySealed)
	}
	return e.registry.register(&entry, OpExternal)
}

// Registry exposes the expression table for inspection.
func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Config() Config { return e.config }

// ConfigSummary provides a human-readable description of the limits.
func (e *Engine) ConfigSummary() string {
	return fmt.Sprintf("loop_limit=%d steps=%d recursion=%d", e.config.LoopLimit, e.config.StepQuota, e.config.RecursionLimit)
}
