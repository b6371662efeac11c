package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/newstweet/internal/logger"
	"github.com/deusflow/newstweet/internal/news"
)

var ErrNoFeeds = errors.New("no RSS feed could be loaded")

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode feeds %s: %w", path, err)
	}
	return cfg.Feeds, nil
}

// Source reads headlines from a fixed list of feeds.
type Source struct {
	feeds  []string
	parser *gofeed.Parser
}

func NewSource(feeds []string, timeout time.Duration) *Source {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &Source{feeds: feeds, parser: parser}
}

func (s *Source) Name() string {
	return "RSS"
}

// Headlines returns item titles of all feeds, feed by feed in listed order.
// A failing feed is skipped; the call fails only when every feed fails.
func (s *Source) Headlines(ctx context.Context) ([]string, error) {
	var headlines []string
	successCount := 0

	for _, url := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			logger.Warn("error parsing RSS", "url", url, "error", err)
			continue
		}
		successCount++
		for _, item := range feed.Items {
			title := plainText(item.Title)
			if title == "" {
				continue
			}
			headlines = append(headlines, news.Normalize(title))
		}
		logger.Debug("loaded feed", "url", url, "items", len(feed.Items))
	}

	logger.Info("processed RSS feeds", "ok", successCount, "total", len(s.feeds), "headlines", len(headlines))
	if successCount == 0 && len(s.feeds) > 0 {
		return nil, ErrNoFeeds
	}
	return headlines, nil
}

// plainText drops markup some feeds leave in titles.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
