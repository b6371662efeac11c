package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/deusflow/newstweet/internal/app"
	"github.com/deusflow/newstweet/internal/config"
	"github.com/deusflow/newstweet/internal/logger"
	"github.com/deusflow/newstweet/internal/metrics"
	"github.com/deusflow/newstweet/internal/news"
	"github.com/deusflow/newstweet/internal/rss"
	"github.com/deusflow/newstweet/internal/storage"
	"github.com/deusflow/newstweet/internal/twitter"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		// the run ends here; like every other failure it is only logged
		fail("invalid configuration", err)
		metrics.Global.LogSummary()
		return
	}

	runID := logger.Init(logger.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	logger.Info("starting run", "run_id", runID, "source", cfg.HeadlineSource, "language", cfg.Language, "dry_run", cfg.DryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	run(ctx, cfg)
	metrics.Global.LogSummary()
}

// run never fails the process: every error ends up in the log.
func run(ctx context.Context, cfg *config.Config) {
	source, err := newSource(cfg)
	if err != nil {
		fail("failed to set up headline source", err)
		return
	}

	remote, err := storage.NewGCSRemote(ctx, cfg.BucketName, cfg.HistoryObjectName(), cfg.ServiceAccountPath)
	if err != nil {
		fail("failed to initialize Google Cloud Storage client", err)
		return
	}
	defer remote.Close()

	history := storage.NewHistory(cfg.HistoryFilePath, cfg.HistoryColumn, remote)

	poster := twitter.NewClient(cfg.TwitterAPIBaseURL, twitter.Credentials{
		ConsumerKey:       cfg.TwitterConsumerKey,
		ConsumerSecret:    cfg.TwitterConsumerSecret,
		AccessToken:       cfg.TwitterAccessToken,
		AccessTokenSecret: cfg.TwitterAccessTokenSecret,
	}, cfg.RequestTimeout, cfg.RateLimitMaxWaits)

	a := app.New(source, history, poster, app.Options{
		DedupWindow:      cfg.DedupWindow,
		BootstrapHistory: cfg.HistoryBootstrap,
		DryRun:           cfg.DryRun,
	}, metrics.Global)

	res, err := a.Run(ctx)
	if err != nil {
		if res.Outcome == app.OutcomePosted {
			logger.Error("headline posted but not recorded in history",
				"headline", res.Headline, "id", res.PostID, "error", err)
		}
		fail("run failed", err)
		return
	}
	logger.Info("run finished", "outcome", res.Outcome.String(), "headline", res.Headline,
		"fetched", res.Fetched, "skipped", res.Skipped)
}

func newSource(cfg *config.Config) (app.HeadlineSource, error) {
	if cfg.HeadlineSource == config.SourceRSS {
		feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
		if err != nil {
			return nil, err
		}
		return rss.NewSource(feeds, cfg.RequestTimeout), nil
	}
	return news.NewClient(cfg.NewsAPIBaseURL, cfg.NewsAPIKey, cfg.Language, cfg.RequestTimeout), nil
}

func fail(msg string, err error) {
	logger.Error(msg, "error", err)
	metrics.Global.SetError(err.Error())
}
