package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/newstweet/internal/metrics"
)

func TestMain_InvalidConfigurationIsLoggedNotFatal(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("NEWS_API_KEY", "key")
	t.Setenv("GOOGLE_CLOUD_BUCKET_NAME", "")

	// exiting here would abort the test binary
	main()

	stats := metrics.Global.GetStats()
	assert.Equal(t, false, stats["is_healthy"])
	assert.Contains(t, stats["last_error"], "GOOGLE_CLOUD_BUCKET_NAME")
}
