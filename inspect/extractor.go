// CLAUDE:SUMMARY Session lifecycle orchestrator — attach, settle, locate, parse, sample, collect, guaranteed detach, bounded retry with fixed backoff.
package inspect

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy is the retry policy applied across full attempts. Passed as data
// so tests run with zero backoff.
type Policy struct {
	// MaxAttempts is the number of full attach-to-detach attempts.
	MaxAttempts int
	// Backoff is the fixed delay between attempts. No backoff runs after
	// the final failed attempt. Zero disables it.
	Backoff time.Duration
}

// DefaultPolicy is used when no policy is supplied: 3 attempts, 2 s fixed
// backoff.
var DefaultPolicy = Policy{MaxAttempts: 3, Backoff: 2 * time.Second}

// Config describes what to extract.
type Config struct {
	// PanelSelector is the structured-search query for the panel.
	PanelSelector string
	// PanelMarker is the identifying attribute fragment matched by the
	// traversal fallback.
	PanelMarker string
	// SettleDelay runs after attach, before locating, to let late panel
	// content load. Default 1s.
	SettleDelay time.Duration
	// Labels overrides the label→field table. Default DefaultLabelTable.
	Labels []LabelRule

	Sampler   SamplerConfig
	Auxiliary AuxiliaryConfig
}

func (c *Config) defaults() {
	if c.PanelSelector == "" {
		c.PanelSelector = `div[class*="goods-analytics"]`
	}
	if c.PanelMarker == "" {
		c.PanelMarker = "goods-analytics"
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if len(c.Labels) == 0 {
		c.Labels = DefaultLabelTable()
	}
}

// Result is the immutable outcome of one extraction call. All entities it
// carries are attempt-scoped copies; nothing references the session that
// produced them.
type Result struct {
	Success      bool              `json:"success"`
	Fields       FieldMap          `json:"fields,omitempty"`
	Samples      []SampledPoint    `json:"samples,omitempty"`
	Auxiliary    []AuxiliarySignal `json:"auxiliary,omitempty"`
	Error        string            `json:"error,omitempty"`
	AttemptsUsed int               `json:"attempts_used"`
	Strategy     Strategy          `json:"locator_strategy,omitempty"`
}

// Extractor runs instrumented extractions against live pages.
type Extractor struct {
	attacher  Attacher
	cfg       Config
	policy    Policy
	telemetry Telemetry
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option { return func(e *Extractor) { e.policy = p } }

// WithTelemetry sets the per-attempt telemetry sink.
func WithTelemetry(t Telemetry) Option { return func(e *Extractor) { e.telemetry = t } }

// WithLogger sets the logger. Default slog.Default.
func WithLogger(l *slog.Logger) Option { return func(e *Extractor) { e.logger = l } }

// WithSleep replaces the delay function. Test hook.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Extractor) { e.sleep = fn }
}

// New creates an Extractor.
func New(attacher Attacher, cfg Config, opts ...Option) *Extractor {
	cfg.defaults()
	e := &Extractor{
		attacher: attacher,
		cfg:      cfg,
		policy:   DefaultPolicy,
		logger:   slog.Default(),
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(e)
	}
	if e.policy.MaxAttempts <= 0 {
		e.policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	return e
}

// Extract runs up to Policy.MaxAttempts full attempts against the target.
// It never panics and never returns a Go error: every failure is folded
// into the Result. A successful locate terminates the loop immediately,
// even with partial field or sample extraction.
func (e *Extractor) Extract(ctx context.Context, target TargetID) *Result {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		start := time.Now()
		res, err := e.attempt(ctx, target)
		e.emit(ctx, target, attempt, res, err, time.Since(start))

		if err == nil {
			res.AttemptsUsed = attempt
			return res
		}
		lastErr = err
		e.logger.Warn("inspect: attempt failed",
			"target", target, "attempt", attempt, "error", err)

		if !retryable(err) || ctx.Err() != nil {
			return &Result{Success: false, Error: err.Error(), AttemptsUsed: attempt}
		}
		if attempt < e.policy.MaxAttempts {
			if serr := e.sleep(ctx, e.policy.Backoff); serr != nil {
				return &Result{Success: false, Error: err.Error(), AttemptsUsed: attempt}
			}
		}
	}

	e.logger.Error("inspect: extraction exhausted",
		"target", target, "attempts", e.policy.MaxAttempts, "last_error", lastErr)
	return &Result{
		Success:      false,
		Error:        "max retries exceeded",
		AttemptsUsed: e.policy.MaxAttempts,
	}
}

// attempt runs one attach-to-detach cycle. Detach runs on every exit path
// exactly once; the session's own idempotence covers the rest.
func (e *Extractor) attempt(ctx context.Context, target TargetID) (*Result, error) {
	sess, err := e.attacher.Attach(ctx, target)
	if err != nil {
		var ae *AttachError
		if !errors.As(err, &ae) {
			err = &AttachError{Target: target, Err: err}
		}
		return nil, err
	}
	defer func() {
		// Detach even when ctx is the reason the attempt died.
		if derr := sess.Detach(context.WithoutCancel(ctx)); derr != nil {
			e.logger.Debug("inspect: detach failed", "target", target, "error", derr)
		}
	}()

	if serr := e.sleep(ctx, e.cfg.SettleDelay); serr != nil {
		return nil, &ProtocolError{Op: "settle wait", Err: serr}
	}

	panelID, strategy, err := locate(ctx, sess, e.cfg.PanelSelector, e.cfg.PanelMarker)
	if err != nil {
		if errors.Is(err, ErrPanelNotFound) {
			return nil, err
		}
		return nil, &ProtocolError{Op: "locate", Err: err}
	}

	markup, err := sess.NodeMarkup(ctx, panelID)
	if err != nil {
		return nil, &ProtocolError{Op: "panel markup", Err: err}
	}
	fields := Parse(markup, e.cfg.Labels)

	samples := sampleChart(ctx, sess, e.cfg.Sampler, e.sleep, e.logger)
	auxiliary := collectAuxiliary(ctx, sess, e.cfg.Auxiliary, e.logger)

	return &Result{
		Success:   true,
		Fields:    fields,
		Samples:   samples,
		Auxiliary: auxiliary,
		Strategy:  strategy,
	}, nil
}

// emit hands the attempt record to telemetry. Guarded: a broken telemetry
// collaborator never affects the extraction result.
func (e *Extractor) emit(ctx context.Context, target TargetID, attempt int, res *Result, err error, elapsed time.Duration) {
	if e.telemetry == nil {
		return
	}
	rec := AttemptRecord{
		Target:     target,
		Attempt:    attempt,
		Success:    err == nil,
		ErrorClass: classify(err),
		Elapsed:    elapsed,
	}
	if res != nil {
		rec.Strategy = res.Strategy
		rec.Fields = len(res.Fields)
		rec.Samples = len(res.Samples)
		rec.Signals = len(res.Auxiliary)
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("inspect: telemetry panicked", "recover", r)
		}
	}()
	e.telemetry.RecordAttempt(ctx, rec)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
