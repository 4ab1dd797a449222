// Package engine runs the poll/diff/notify loop: fetch each query, diff
// against the seen record, notify new listings, and keep the failure score.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/listing-notifier/internal/metrics"
	"github.com/donaldgifford/listing-notifier/internal/notify"
	"github.com/donaldgifford/listing-notifier/internal/resilience"
	"github.com/donaldgifford/listing-notifier/internal/seen"
	"github.com/donaldgifford/listing-notifier/internal/source"
	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

const instrumentationName = "github.com/donaldgifford/listing-notifier/internal/engine"

// Options is the immutable loop configuration.
type Options struct {
	// Recipient receives listing notifications.
	Recipient string
	// AlertRecipient receives failure reports. Empty disables them.
	AlertRecipient string
	Render         notify.RenderOptions
	Policy         resilience.Policy
	// RepeatSuppressThreshold mutes a failure report after this many
	// identical failures in a row. Zero never mutes.
	RepeatSuppressThreshold int
	// AlertMinScore holds back failure reports until the score exceeds it.
	AlertMinScore int
	// ReportTransient also reports failures made only of transient fetch
	// errors.
	ReportTransient bool
}

// DefaultOptions returns options with the default resilience policy.
func DefaultOptions() Options {
	return Options{Policy: resilience.DefaultPolicy()}
}

// FatalError ends the loop: the failure score crossed the ceiling.
type FatalError struct {
	Score   int
	Ceiling int
	Last    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("failure score %d exceeded ceiling %d: %v", e.Score, e.Ceiling, e.Last)
}

func (e *FatalError) Unwrap() error { return e.Last }

// Engine runs poll iterations over a fixed set of queries.
type Engine struct {
	source    source.Source
	notifier  notify.Notifier
	alerter   notify.Notifier
	snapshots seen.SnapshotStore
	queries   []domain.Query
	opts      Options

	store      *seen.Store
	renderer   *notify.Renderer
	counter    *resilience.Counter
	suppressor *resilience.Suppressor
	log        *slog.Logger
	nowFunc    func() time.Time
	tracer     trace.Tracer
	cycles     otelmetric.Int64Counter

	mu         sync.RWMutex
	iterations int64
	lastAt     *time.Time
	lastErr    string
	ready      atomic.Bool
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithAlertNotifier sends failure reports through n instead of the listing
// notifier.
func WithAlertNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) {
		e.alerter = n
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = f
	}
}

// WithRendererOptions passes options through to the message renderer.
func WithRendererOptions(opts ...notify.RendererOption) EngineOption {
	return func(e *Engine) {
		e.renderer = notify.NewRenderer(e.opts.Render, opts...)
	}
}

// NewEngine creates an Engine. snapshots may be nil, in which case the seen
// record lives only in memory.
func NewEngine(
	src source.Source,
	n notify.Notifier,
	snapshots seen.SnapshotStore,
	queries []domain.Query,
	opts Options,
	engineOpts ...EngineOption,
) *Engine {
	qs := make([]domain.Query, len(queries))
	for i := range queries {
		qs[i] = queries[i].Normalize()
	}

	eng := &Engine{
		source:     src,
		notifier:   n,
		alerter:    n,
		snapshots:  snapshots,
		queries:    qs,
		opts:       opts,
		store:      seen.NewStore(),
		renderer:   notify.NewRenderer(opts.Render),
		counter:    resilience.NewCounter(opts.Policy),
		suppressor: resilience.NewSuppressor(opts.RepeatSuppressThreshold),
		log:        slog.Default(),
		nowFunc:    time.Now,
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range engineOpts {
		opt(eng)
	}

	cycles, err := otel.Meter(instrumentationName).Int64Counter("poll.cycles",
		otelmetric.WithDescription("Poll iterations by outcome."))
	if err != nil {
		eng.log.Warn("creating otel cycle counter", "error", err)
	}
	eng.cycles = cycles

	return eng
}

// Restore loads the seen record from the snapshot store. A corrupt snapshot
// is logged and treated as empty.
func (eng *Engine) Restore(ctx context.Context) error {
	if eng.snapshots == nil {
		return nil
	}

	snap, err := eng.snapshots.Load(ctx)
	switch {
	case errors.Is(err, seen.ErrSnapshotCorrupt):
		eng.log.Warn("snapshot unreadable, starting with an empty record", "error", err)
	case err != nil:
		return fmt.Errorf("loading snapshot: %w", err)
	}

	eng.store.Reset(snap)
	for _, key := range eng.store.Keys() {
		metrics.SeenListings.WithLabelValues(key).Set(float64(eng.store.Len(key)))
	}
	eng.log.Info("seen record restored", "queries", len(eng.store.Keys()))
	return nil
}

// Iterate runs one poll iteration and folds its outcome into the failure
// score. It returns *FatalError once the score crosses the ceiling, the
// context error when canceled mid-iteration, and nil otherwise.
func (eng *Engine) Iterate(ctx context.Context) error {
	start := eng.nowFunc()
	err := eng.RunCycle(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := eng.nowFunc()
	eng.mu.Lock()
	eng.iterations++
	eng.lastAt = &now
	eng.lastErr = ""
	if err != nil {
		eng.lastErr = err.Error()
	}
	eng.mu.Unlock()
	eng.ready.Store(true)

	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(now.Sub(start).Seconds())
	metrics.LastCycleTimestamp.Set(float64(now.Unix()))

	if err == nil {
		score := eng.counter.Success()
		eng.suppressor.Reset()
		metrics.ResilienceScore.Set(float64(score))
		eng.countCycle(ctx, "success")
		eng.log.Debug("poll iteration complete", "score", score)
		return nil
	}

	score := eng.counter.Failure()
	metrics.CycleFailuresTotal.Inc()
	metrics.ResilienceScore.Set(float64(score))
	eng.countCycle(ctx, "failure")
	eng.report(ctx, err, score)

	if eng.counter.Fatal() {
		fatal := &FatalError{Score: score, Ceiling: eng.opts.Policy.FatalCeiling, Last: err}
		eng.log.Error("failure score exceeded ceiling, giving up",
			"score", score,
			"ceiling", fatal.Ceiling,
			"error", err,
		)
		eng.sendAlert(ctx, "fatal", "Listing notifier stopped", fatal)
		return fatal
	}
	return nil
}

// RunCycle polls every query once. One query's failure does not stop the
// others; all failures come back joined.
func (eng *Engine) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	ctx, span := eng.tracer.Start(ctx, "poll.cycle",
		trace.WithAttributes(attribute.String("cycle_id", cycleID)))
	defer span.End()

	log := eng.log.With("cycle_id", cycleID)

	var errs []error
	for i := range eng.queries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := eng.pollQuery(ctx, log, &eng.queries[i]); err != nil {
			log.Debug("query failed", "query", eng.queries[i].Key(), "error", err)
			errs = append(errs, err)
		}
	}

	if err := eng.save(ctx); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll cycle failed")
	}
	return err
}

func (eng *Engine) pollQuery(ctx context.Context, log *slog.Logger, q *domain.Query) error {
	key := q.Key()
	ctx, span := eng.tracer.Start(ctx, "poll.query",
		trace.WithAttributes(attribute.String("query", key)))
	defer span.End()

	listings, err := eng.source.Fetch(ctx, *q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}

	fresh := eng.store.Diff(key, listings)
	span.SetAttributes(
		attribute.Int("listings", len(listings)),
		attribute.Int("new", len(fresh)),
	)
	metrics.ListingsNewTotal.Add(float64(len(fresh)))

	if len(fresh) == 0 {
		log.Info("no new listings", "query", key, "count", len(listings))
		return nil
	}

	msgs := eng.renderer.Render(key, fresh)
	for i := range msgs {
		msgs[i].To = eng.opts.Recipient
		log.Info("sending notification",
			"query", key,
			"message", i+1,
			"messages", len(msgs),
			"count", len(msgs[i].ListingIDs),
		)
		if err := eng.notifier.Send(ctx, msgs[i]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delivery failed")
			return fmt.Errorf("notifying %q: %w", key, err)
		}
	}

	ids := make([]string, len(fresh))
	for i := range fresh {
		ids[i] = fresh[i].ID
	}
	added := eng.store.Add(key, ids...)
	metrics.SeenListings.WithLabelValues(key).Set(float64(eng.store.Len(key)))

	log.Info("new listings notified", "query", key, "count", added, "messages", len(msgs))
	return nil
}

func (eng *Engine) save(ctx context.Context) error {
	if eng.snapshots == nil {
		return nil
	}
	if err := eng.snapshots.Save(ctx, eng.store.Snapshot()); err != nil {
		metrics.SnapshotSaveErrorsTotal.Inc()
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Flush writes the seen record to the snapshot store.
func (eng *Engine) Flush(ctx context.Context) error {
	return eng.save(ctx)
}

func (eng *Engine) report(ctx context.Context, err error, score int) {
	eng.log.Log(ctx, eng.opts.Policy.Severity(score), "poll iteration failed",
		"score", score,
		"ceiling", eng.opts.Policy.FatalCeiling,
		"failures", eng.counter.Failures(),
		"error", err,
	)

	switch {
	case eng.opts.AlertRecipient == "":
		return
	case !eng.opts.ReportTransient && onlyTransient(err):
		return
	case score <= eng.opts.AlertMinScore:
		return
	}

	if !eng.suppressor.Allow(err.Error()) {
		eng.log.Debug("duplicate failure report suppressed", "repeats", eng.suppressor.Repeats())
		return
	}

	eng.sendAlert(ctx, "failure", "Listing notifier failure", err)
}

func (eng *Engine) sendAlert(ctx context.Context, kind, subject string, cause error) {
	if eng.opts.AlertRecipient == "" || eng.alerter == nil {
		return
	}

	body := fmt.Sprintf("Score: %d of %d\r\nConsecutive failures: %d\r\n\r\n%v",
		eng.counter.Score(),
		eng.opts.Policy.FatalCeiling,
		eng.counter.Failures(),
		cause,
	)
	msg := notify.Message{To: eng.opts.AlertRecipient, Subject: subject, Body: body}

	if err := eng.alerter.Send(ctx, msg); err != nil {
		eng.log.Warn("sending failure report", "kind", kind, "error", err)
		return
	}
	metrics.AlertsSentTotal.WithLabelValues(kind).Inc()
}

// onlyTransient reports whether every error joined in err is a transient
// fetch error.
func onlyTransient(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !onlyTransient(e) {
				return false
			}
		}
		return true
	}
	return source.IsTransient(err)
}

func (eng *Engine) countCycle(ctx context.Context, outcome string) {
	if eng.cycles == nil {
		return
	}
	eng.cycles.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// Ready reports whether at least one iteration has finished.
func (eng *Engine) Ready() bool {
	return eng.ready.Load()
}

// Queries returns the normalized queries the engine polls.
func (eng *Engine) Queries() []domain.Query {
	out := make([]domain.Query, len(eng.queries))
	copy(out, eng.queries)
	return out
}

// Status returns a snapshot of loop state.
func (eng *Engine) Status() domain.Status {
	eng.mu.RLock()
	st := domain.Status{
		Iterations: eng.iterations,
		LastError:  eng.lastErr,
	}
	if eng.lastAt != nil {
		t := *eng.lastAt
		st.LastIterationAt = &t
	}
	eng.mu.RUnlock()

	st.Score = eng.counter.Score()
	st.FatalCeiling = eng.opts.Policy.FatalCeiling
	st.Failures = eng.counter.Failures()
	st.Queries = make([]domain.QueryStatus, len(eng.queries))
	for i := range eng.queries {
		key := eng.queries[i].Key()
		st.Queries[i] = domain.QueryStatus{
			Key:   key,
			Terms: eng.queries[i].Terms,
			Seen:  eng.store.Len(key),
		}
	}
	return st
}

// LogSeenCounts writes the size of every seen set at debug level.
func (eng *Engine) LogSeenCounts(ctx context.Context) {
	for _, key := range eng.store.Keys() {
		eng.log.DebugContext(ctx, "seen listings", "query", key, "count", eng.store.Len(key))
	}
}
