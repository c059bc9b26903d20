// Package netwatch observes connectivity to the backend host on a schedule,
// independently of individual request failures.
package netwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// State is the last observed connectivity
type State string

const (
	StateUnknown State = "unknown"
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// Probe reports whether the backend host answered
type Probe interface {
	Probe(ctx context.Context) error
}

// HTTPProbe treats any HTTP answer from the target, whatever its status, as
// connectivity
type HTTPProbe struct {
	target string
	rest   *resty.Client
}

// NewHTTPProbe creates a probe against target with a per-probe timeout
func NewHTTPProbe(target string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		target: target,
		rest:   resty.New().SetTimeout(timeout).SetLogger(cronLogger{zerolog.Nop()}),
	}
}

func (p *HTTPProbe) Probe(ctx context.Context) error {
	if _, err := p.rest.R().SetContext(ctx).Head(p.target); err != nil {
		return fmt.Errorf("failed to reach %s: %w", p.target, err)
	}
	return nil
}

// Watcher runs a Probe on a cron schedule and reports state transitions
type Watcher struct {
	probe    Probe
	schedule string
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	listeners []func(State)
}

// New creates a watcher. schedule accepts cron expressions and descriptors
// such as "@every 15s".
func New(probe Probe, schedule string, logger zerolog.Logger) (*Watcher, error) {
	if _, err := parser().Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid probe schedule %q: %w", schedule, err)
	}
	return &Watcher{
		probe:    probe,
		schedule: schedule,
		logger:   logger,
		state:    StateUnknown,
	}, nil
}

func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// OnChange registers fn for every transition, including the first
// observation
func (w *Watcher) OnChange(fn func(State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// State returns the last observed state
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Check probes once and returns the new state
func (w *Watcher) Check(ctx context.Context) State {
	next := StateOnline
	if err := w.probe.Probe(ctx); err != nil {
		w.logger.Debug().Err(err).Msg("Connectivity probe failed")
		next = StateOffline
	}

	w.mu.Lock()
	changed := next != w.state
	w.state = next
	listeners := append([]func(State){}, w.listeners...)
	w.mu.Unlock()

	if changed {
		w.logger.Info().Str("state", string(next)).Msg("Connectivity changed")
		for _, fn := range listeners {
			fn(next)
		}
	}
	return next
}

// Run checks immediately, then on every scheduled tick until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	logger := cronLogger{w.logger}
	c := cron.New(
		cron.WithParser(parser()),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
	)
	if _, err := c.AddFunc(w.schedule, func() { w.Check(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	w.Check(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zerolog to the logger interfaces of cron and resty
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l cronLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l cronLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
