package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
)

// Fetcher queries a seismic event catalog.
type Fetcher interface {
	FetchEvents(ctx context.Context, q domain.Query) ([]domain.CatalogEvent, error)
}

// TableWriter persists the event table to a spreadsheet.
type TableWriter interface {
	WriteTable(path string, table domain.EventTable) error
}

// Renderer draws the event table and returns the image path, or "" when
// nothing was drawn.
type Renderer interface {
	Render(table domain.EventTable, q domain.Query) (string, error)
}

// Sink receives the table after the spreadsheet and map are written.
// Failures are counted and logged but never abort a run.
type Sink interface {
	Name() string
	Load(ctx context.Context, table domain.EventTable) error
}

// ArtifactArchiver uploads the files produced by a run.
type ArtifactArchiver interface {
	Archive(ctx context.Context, runID string, paths ...string) ([]string, error)
}

// Result describes one completed run.
type Result struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	Fetched         int           `json:"fetched"`
	Rows            int           `json:"rows"`
	Skipped         int           `json:"skipped"`
	SpreadsheetPath string        `json:"spreadsheet_path,omitempty"`
	MapPath         string        `json:"map_path,omitempty"`
	Artifacts       []string      `json:"artifacts,omitempty"`
}

// Status summarises the runs made so far; served on /status.
type Status struct {
	Runs      int     `json:"runs"`
	Failures  int     `json:"failures"`
	LastError string  `json:"last_error,omitempty"`
	LastRun   *Result `json:"last_run,omitempty"`
}

// Pipeline orchestrates fetch, tabulate, write, render and the optional sinks.
type Pipeline struct {
	query           domain.Query
	spreadsheetPath string

	fetcher  Fetcher
	writer   TableWriter
	renderer Renderer
	geocoder domain.Geocoder
	sinks    []Sink
	archiver ArtifactArchiver

	failOnFetchError bool
	initialBackoff   time.Duration
	maxBackoff       time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	status Status
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithGeocoder fills missing descriptions with reverse-geocoded place names.
func WithGeocoder(g domain.Geocoder) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// WithSinks adds destinations that receive the table after each run.
func WithSinks(sinks ...Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

// WithArchiver uploads the spreadsheet and map after each run.
func WithArchiver(a ArtifactArchiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

// WithFailOnFetchError makes a failed catalog query fail the run instead of
// producing an empty table.
func WithFailOnFetchError(fail bool) Option {
	return func(p *Pipeline) { p.failOnFetchError = fail }
}

// WithBackoff sets the retry delay range used by RunEvery after failed runs.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(p *Pipeline) {
		p.initialBackoff = initial
		p.maxBackoff = maxDelay
	}
}

// WithClock replaces the clock used for run timing and scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline with the required stages and observability.
func New(q domain.Query, spreadsheetPath string, f Fetcher, w TableWriter, r Renderer, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		query:           q,
		spreadsheetPath: spreadsheetPath,
		fetcher:         f,
		writer:          w,
		renderer:        r,
		initialBackoff:  time.Second,
		maxBackoff:      5 * time.Minute,
		clock:           clockwork.NewRealClock(),
		logger:          logger,
		metrics:         metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.LastRun == nil {
		return errors.New("no pipeline run has completed yet")
	}
	return nil
}

// Status returns a snapshot of run counters and the last successful result.
func (p *Pipeline) Status() any {
	return p.Snapshot()
}

// Snapshot is the typed form of Status.
func (p *Pipeline) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	if s.LastRun != nil {
		r := *s.LastRun
		s.LastRun = &r
	}
	return s
}

// RunOnce performs one full run. Spreadsheet and map failures are returned;
// fetch failures are returned only with WithFailOnFetchError.
func (p *Pipeline) RunOnce(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), StartedAt: p.clock.Now().UTC()}
	logger := p.logger.With("run_id", res.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx, logger, &res)
	res.Duration = p.clock.Since(res.StartedAt)
	p.metrics.RunDuration.Observe(res.Duration.Seconds())
	p.record(res, err)

	if err != nil {
		p.metrics.RunsCompleted.WithLabelValues("error").Inc()
		logger.Error("pipeline run failed", "error", err, "duration", res.Duration)
		return res, err
	}
	p.metrics.RunsCompleted.WithLabelValues("success").Inc()
	logger.Info("pipeline run complete",
		"fetched", res.Fetched, "rows", res.Rows, "skipped", res.Skipped,
		"spreadsheet", res.SpreadsheetPath, "map", res.MapPath, "duration", res.Duration)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, res *Result) error {
	logger.Info("fetching events",
		"catalog", p.query.Catalog,
		"start", p.query.StartTime, "end", p.query.EndTime,
		"min_magnitude", p.query.Magnitude.Min, "max_magnitude", p.query.Magnitude.Max)

	events, err := p.fetcher.FetchEvents(ctx, p.query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.metrics.FetchErrors.Inc()
		if p.failOnFetchError {
			return err
		}
		logger.Warn("fetch failed, continuing with an empty catalog", "error", err)
		events = nil
	}
	res.Fetched = len(events)
	p.metrics.EventsFetched.Add(float64(len(events)))
	logger.Info("events fetched", "count", len(events))

	table, recErrs := domain.Tabulate(events, p.query.Magnitude)
	for _, e := range recErrs {
		var re *domain.RecordError
		if errors.As(e, &re) {
			logger.Warn("skipping event", "event_id", re.EventID, "index", re.Index, "error", re.Err)
			continue
		}
		logger.Warn("skipping event", "error", e)
	}
	res.Rows, res.Skipped = len(table), len(recErrs)
	p.metrics.RowsTabulated.Add(float64(len(table)))
	p.metrics.RecordsSkipped.Add(float64(len(recErrs)))

	if p.geocoder != nil {
		table = domain.EnrichTable(ctx, table, p.geocoder, logger)
	}

	if err := p.writer.WriteTable(p.spreadsheetPath, table); err != nil {
		return &domain.WriteError{Path: p.spreadsheetPath, Err: err}
	}
	res.SpreadsheetPath = p.spreadsheetPath
	logger.Info("spreadsheet written", "path", p.spreadsheetPath, "rows", len(table))

	mapPath, err := p.renderer.Render(table, p.query)
	if err != nil {
		return err
	}
	res.MapPath = mapPath

	for _, s := range p.sinks {
		if err := s.Load(ctx, table); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			logger.Error("sink failed", "sink", s.Name(), "error", err)
		}
	}

	if p.archiver != nil {
		keys, err := p.archiver.Archive(ctx, res.RunID, res.SpreadsheetPath, res.MapPath)
		if err != nil {
			p.metrics.SinkErrors.WithLabelValues("s3").Inc()
			logger.Error("artifact archive failed", "error", err)
		}
		res.Artifacts = keys
	}
	return nil
}

func (p *Pipeline) record(res Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Runs++
	if err != nil {
		p.status.Failures++
		p.status.LastError = err.Error()
		return
	}
	p.status.LastError = ""
	p.status.LastRun = &res
}

// RunEvery runs immediately and then once per interval until ctx is
// cancelled. A failed run is retried with exponential backoff instead of
// waiting for the next tick.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("run interval must be positive")
	}
	p.logger.Info("scheduled mode started", "interval", interval)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	maxBackoff := min(p.maxBackoff, interval)
	backoff := p.initialBackoff
	for {
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("retrying after failed run", "backoff", backoff)
			if !p.sleep(ctx, backoff) {
				break
			}
			backoff = sharedretry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = p.initialBackoff

		select {
		case <-ctx.Done():
			p.logger.Info("scheduled mode stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
	p.logger.Info("scheduled mode stopping", "reason", ctx.Err())
	return nil
}

// sleep waits d on the pipeline clock. It returns false if ctx ends first.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := p.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
