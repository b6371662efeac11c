package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/newstweet/internal/logger"
	"github.com/deusflow/newstweet/internal/metrics"
	"github.com/deusflow/newstweet/internal/storage"
)

// HeadlineSource provides normalized headlines, most relevant first.
type HeadlineSource interface {
	Headlines(ctx context.Context) ([]string, error)
	Name() string
}

// History is the record of already posted headlines.
type History interface {
	Sync(ctx context.Context) error
	Load() error
	Reset()
	ExistsInRecent(item string, window int) (bool, error)
	Append(ctx context.Context, item string) error
}

// Poster publishes one text post and returns its id.
type Poster interface {
	PostText(ctx context.Context, text string) (string, error)
}

type Outcome int

const (
	OutcomeNone        Outcome = iota // stopped by an error before anything was posted
	OutcomeNoHeadlines                // nothing fetched
	OutcomeAllSeen                    // every headline is in the dedup window
	OutcomePosted
	OutcomeDryRun
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoHeadlines:
		return "no_headlines"
	case OutcomeAllSeen:
		return "all_seen"
	case OutcomePosted:
		return "posted"
	case OutcomeDryRun:
		return "dry_run"
	default:
		return "none"
	}
}

// Result describes what a run did. It is meaningful even when Run returns an
// error: Outcome is OutcomePosted if the post went out but recording it failed.
type Result struct {
	Outcome  Outcome
	Headline string
	PostID   string
	Fetched  int
	Skipped  int
}

type Options struct {
	DedupWindow      int
	BootstrapHistory bool
	DryRun           bool
}

type App struct {
	source  HeadlineSource
	history History
	poster  Poster
	opts    Options
	metrics *metrics.Metrics
}

func New(source HeadlineSource, history History, poster Poster, opts Options, m *metrics.Metrics) *App {
	if m == nil {
		m = metrics.Global
	}
	return &App{
		source:  source,
		history: history,
		poster:  poster,
		opts:    opts,
		metrics: m,
	}
}

// Run posts the first fetched headline that is not among the last DedupWindow
// history entries, records it, and stops. At most one post per run.
func (a *App) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordRunDuration(time.Since(start))
		a.metrics.SetLastRun()
	}()

	var res Result

	headlines, err := a.source.Headlines(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch headlines from %s: %w", a.source.Name(), err)
	}
	res.Fetched = len(headlines)
	a.metrics.AddHeadlinesFetched(len(headlines))

	if len(headlines) == 0 {
		logger.Warn("no news to process", "source", a.source.Name())
		res.Outcome = OutcomeNoHeadlines
		return res, nil
	}
	logger.Info("processed news", "source", a.source.Name(), "headlines", len(headlines))

	if err := a.prepareHistory(ctx); err != nil {
		return res, err
	}

	for _, headline := range headlines {
		if strings.TrimSpace(headline) == "" {
			continue
		}

		seen, err := a.history.ExistsInRecent(headline, a.opts.DedupWindow)
		if err != nil {
			return res, fmt.Errorf("check history: %w", err)
		}
		if seen {
			res.Skipped++
			a.metrics.IncrementDuplicatesSkipped()
			logger.Debug("headline already posted", "headline", headline)
			continue
		}

		res.Headline = headline
		if a.opts.DryRun {
			res.Outcome = OutcomeDryRun
			logger.Info("dry run, not posting", "headline", headline)
			return res, nil
		}

		id, err := a.poster.PostText(ctx, headline)
		if err != nil {
			return res, fmt.Errorf("post headline: %w", err)
		}
		res.Outcome = OutcomePosted
		res.PostID = id
		a.metrics.IncrementPostsSent()

		if err := a.history.Append(ctx, headline); err != nil {
			return res, fmt.Errorf("record posted headline %q: %w", headline, err)
		}
		a.metrics.IncrementHistoryAppends()

		logger.Info("tweeted", "headline", headline, "id", id)
		return res, nil
	}

	res.Outcome = OutcomeAllSeen
	logger.Info("all headlines already posted", "checked", res.Skipped, "window", a.opts.DedupWindow)
	return res, nil
}

// prepareHistory pulls the remote history and loads it. A missing remote
// object starts a new history when bootstrapping is enabled; any other sync
// failure falls back to the local copy.
func (a *App) prepareHistory(ctx context.Context) error {
	err := a.history.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrRemoteNotFound) && a.opts.BootstrapHistory:
		logger.Warn("remote history missing, starting a new one", "error", err)
		a.history.Reset()
		return nil
	default:
		logger.Warn("history sync failed, using local copy", "error", err)
	}

	if err := a.history.Load(); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return nil
}
