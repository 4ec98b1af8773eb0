package core

import (
	"twincore/pkg/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option configures an EntityStore, ConnectionRegistry or Project.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	layout  *domain.Layout
	layouts map[domain.Kind]domain.Layout
	newID   func() string
	rules   *domain.RulesEngine
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the recorder that observes every operation.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer wrapping every operation.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithLayout overrides the default code layout of a new entity store. A
// store adopts the layout of its persisted records on Load.
func WithLayout(layout domain.Layout) Option {
	return func(o *options) {
		l := layout
		o.layout = &l
	}
}

// WithKindLayouts sets per-kind layouts for the stores a Project opens.
// It takes precedence over WithLayout.
func WithKindLayouts(layouts map[domain.Kind]domain.Layout) Option {
	return func(o *options) {
		if o.layouts == nil {
			o.layouts = make(map[domain.Kind]domain.Layout, len(layouts))
		}
		for k, l := range layouts {
			o.layouts[k] = l
		}
	}
}

// WithIDGenerator replaces the UUIDv4 generator, mostly for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithRulesEngine replaces the integrity rules evaluated by Check.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(o *options) {
		if engine != nil {
			o.rules = engine
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		newID:   uuid.NewString,
		rules:   NewDefaultRulesEngine(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
