// CLAUDE:SUMMARY domfinder service: extract domains from text, resolve titles sequentially, render the report, merge into CSV storage, log history.
// Package domfinder extracts domain names from free text, fetches each
// page's title and keeps a cumulative CSV of everything found.
//
// Usage:
//
//	svc, err := domfinder.New(cfg, domfinder.WithHistory(events))
//	sess := svc.Sessions().Get("")
//	run, err := svc.Extract(ctx, sess, text, false)
package domfinder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domfinder/domfinder/internal/extractor"
	"github.com/hazyhaar/domfinder/domfinder/internal/pick"
	"github.com/hazyhaar/domfinder/domfinder/internal/render"
	"github.com/hazyhaar/domfinder/domfinder/internal/resolve"
	"github.com/hazyhaar/domfinder/domfinder/internal/store"
	"github.com/hazyhaar/domfinder/idgen"
	"github.com/hazyhaar/domfinder/kit"
	"github.com/hazyhaar/domfinder/observability"
)

// TitleResolver fetches the title of one URL. Failures are reported in the
// Resolution, never as an error.
type TitleResolver interface {
	Resolve(ctx context.Context, rawURL string) resolve.Resolution
}

// Service is the domfinder application.
type Service struct {
	config    Config
	extractor *extractor.Extractor
	resolver  TitleResolver
	renderer  *render.Renderer
	store     *store.Store
	sessions  *SessionStore
	history   *observability.EventLogger
	logger    *slog.Logger
	now       func() time.Time
	newRunID  idgen.Generator
	rnd       pick.Source
}

// Option configures a Service.
type Option func(*Service)

// WithResolver replaces the HTTP title resolver.
func WithResolver(r TitleResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithHistory enables the history log.
func WithHistory(l *observability.EventLogger) Option {
	return func(s *Service) { s.history = l }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the time source for run and extraction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom sets the source for User-Agent and row colour draws.
func WithRandom(src pick.Source) Option {
	return func(s *Service) { s.rnd = src }
}

// WithRunIDGenerator sets the generator for run IDs.
func WithRunIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newRunID = gen }
}

// New creates a Service. The storage file is not touched until the first run.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.defaults()
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:   cfg,
		store:    store.New(path),
		sessions: NewSessionStore(0),
		logger:   slog.Default(),
		now:      time.Now,
		newRunID: idgen.Prefixed("run_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rnd == nil {
		s.rnd = pick.NewTimeSeeded()
	}
	s.extractor = extractor.New(cfg.Exclude)
	s.renderer = render.New(cfg.Palette, s.rnd)
	if s.resolver == nil {
		s.resolver = resolve.New(cfg.Fetch, s.rnd)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.config }

// Sessions returns the session store.
func (s *Service) Sessions() *SessionStore { return s.sessions }

// StoragePath returns the path of the CSV storage file.
func (s *Service) StoragePath() string { return s.store.Path() }

// ExtractDomains runs the extractor alone: no fetch, no storage.
func (s *Service) ExtractDomains(text string) extractor.Result {
	return s.extractor.Extract(text)
}

// ResolveTitle fetches the title of a single URL.
func (s *Service) ResolveTitle(ctx context.Context, rawURL string) resolve.Resolution {
	return s.resolver.Resolve(ctx, rawURL)
}

// Extract runs one extraction for sess: find domains in text, resolve each
// title in order, render the report and merge the records into storage.
//
// With reload set, the session snapshot is refreshed from the storage file
// the first time. Storage errors abort the run with ErrStorage and nothing
// is returned. Fetch failures never do.
func (s *Service) Extract(ctx context.Context, sess *Session, text string, reload bool) (*Run, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := time.Now()
	run := &Run{ID: s.newRunID(), At: s.now()}
	logger := s.logger.With("run_id", run.ID, "session_id", sess.ID)

	found := s.extractor.Extract(text)
	run.URLs, run.Hostnames = found.URLs, found.Hostnames

	if reload && !sess.existingLoaded {
		t, err := s.store.Load()
		if err != nil {
			return nil, s.fail(ctx, logger, sess, run, fmt.Errorf("%w: %w", ErrStorage, err))
		}
		sess.table = t
	}
	run.ExistingRows = len(sess.table)

	items := make([]observability.Event, 0, len(run.URLs))
	run.Records = make([]Record, 0, len(run.URLs))
	for _, u := range run.URLs {
		res := s.resolver.Resolve(ctx, u)
		rec := Record{
			Domain:        u,
			Title:         res.Title,
			ExtractedDate: s.now().Format(render.DateFormat),
		}
		run.Records = append(run.Records, rec)

		attrs := []any{"domain", u, "title", res.Title, "final_url", res.URL, "duration", res.Duration}
		if res.Err != nil {
			logger.Warn("title resolution failed", append(attrs, "error", res.Err)...)
		} else {
			logger.Info("title resolved", attrs...)
		}
		items = append(items, resolutionEvent(ctx, sess, u, res))
	}

	report, err := s.renderer.Render(run.Records, run.At)
	if err != nil {
		return nil, s.fail(ctx, logger, sess, run, fmt.Errorf("domfinder: render: %w", err))
	}
	run.Report = report

	// The fetches are done: a client that went away must not lose them.
	combined, err := s.store.Merge(context.WithoutCancel(ctx), run.Records)
	if err != nil {
		return nil, s.fail(ctx, logger, sess, run, fmt.Errorf("%w: %w", ErrStorage, err))
	}
	run.StoredRows = len(combined)
	sess.table = combined
	sess.existingLoaded = true
	sess.last = run

	elapsed := time.Since(start)
	logger.Info("extraction run",
		"domains", len(run.URLs),
		"existing_rows", run.ExistingRows,
		"stored_rows", run.StoredRows,
		"duration", elapsed,
	)
	s.history.LogRun(context.WithoutCancel(ctx), observability.Event{
		RunID:      run.ID,
		Type:       observability.EventExtractionRun,
		SessionID:  sess.ID,
		Transport:  kit.GetTransport(ctx),
		Outcome:    "ok",
		Detail:     fmt.Sprintf("%d domains, %d stored rows", len(run.URLs), run.StoredRows),
		Success:    true,
		DurationMs: elapsed.Milliseconds(),
	}, items)
	return run, nil
}

// fail logs and records a fatal run error, then returns it.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, sess *Session, run *Run, err error) error {
	logger.Error("extraction run failed", "error", err)
	s.history.LogEvent(context.WithoutCancel(ctx), observability.Event{
		RunID:     run.ID,
		Type:      observability.EventExtractionFailed,
		SessionID: sess.ID,
		Transport: kit.GetTransport(ctx),
		Outcome:   "error",
		Detail:    err.Error(),
	})
	return err
}

func resolutionEvent(ctx context.Context, sess *Session, domain string, res resolve.Resolution) observability.Event {
	return observability.Event{
		Type:       observability.EventTitleResolved,
		SessionID:  sess.ID,
		Transport:  kit.GetTransport(ctx),
		Domain:     domain,
		Outcome:    res.Title,
		Detail:     res.URL,
		Success:    res.Err == nil,
		DurationMs: res.Duration.Milliseconds(),
	}
}

// LastRun returns the last completed run of sess, or ErrNoRun.
func (s *Service) LastRun(sess *Session) (*Run, error) {
	if run := sess.LastRun(); run != nil {
		return run, nil
	}
	return nil, ErrNoRun
}

// DownloadCSV returns the storage table as CSV and refreshes the session
// snapshot with it.
func (s *Service) DownloadCSV(sess *Session) ([]byte, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	t, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	sess.table = t
	data, err := store.EncodeCSV(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return data, nil
}

// History returns the most recent history events, newest first. It is
// empty when history is disabled.
func (s *Service) History(ctx context.Context, limit int) ([]observability.Event, error) {
	return s.history.Recent(ctx, limit)
}
