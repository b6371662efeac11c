package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	m.AddHeadlinesFetched(5)
	m.IncrementDuplicatesSkipped()
	m.IncrementDuplicatesSkipped()
	m.IncrementPostsSent()
	m.IncrementHistoryAppends()
	m.RecordRunDuration(1500 * time.Millisecond)

	stats := m.GetStats()
	assert.EqualValues(t, 5, stats["headlines_fetched"])
	assert.EqualValues(t, 2, stats["duplicates_skipped"])
	assert.EqualValues(t, 1, stats["posts_sent"])
	assert.EqualValues(t, 1, stats["history_appends"])
	assert.EqualValues(t, 1500, stats["run_duration_ms"])
	assert.Equal(t, true, stats["is_healthy"])
}

func TestMetrics_SetError(t *testing.T) {
	m := &Metrics{IsHealthy: true}
	m.SetError("push history: conflict")

	stats := m.GetStats()
	assert.Equal(t, false, stats["is_healthy"])
	assert.Equal(t, "push history: conflict", stats["last_error"])
}
