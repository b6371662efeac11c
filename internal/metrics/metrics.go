package metrics

import (
	"sync"
	"time"

	"github.com/deusflow/newstweet/internal/logger"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	HeadlinesFetched  int64
	DuplicatesSkipped int64
	PostsSent         int64
	HistoryAppends    int64

	// Timings
	LastRunDuration time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddHeadlinesFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HeadlinesFetched += int64(n)
}

func (m *Metrics) IncrementDuplicatesSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesSkipped++
}

func (m *Metrics) IncrementPostsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsSent++
}

func (m *Metrics) IncrementHistoryAppends() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryAppends++
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunDuration = duration
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"headlines_fetched":  m.HeadlinesFetched,
		"duplicates_skipped": m.DuplicatesSkipped,
		"posts_sent":         m.PostsSent,
		"history_appends":    m.HistoryAppends,
		"run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"last_run_time":      m.LastRunTime.Format(time.RFC3339),
		"last_error":         m.LastError,
		"is_healthy":         m.IsHealthy,
	}
}

// LogSummary writes the counters of this run as one log record.
func (m *Metrics) LogSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logger.Info("run summary",
		"headlines_fetched", m.HeadlinesFetched,
		"duplicates_skipped", m.DuplicatesSkipped,
		"posts_sent", m.PostsSent,
		"history_appends", m.HistoryAppends,
		"duration", m.LastRunDuration,
		"healthy", m.IsHealthy,
		"last_error", m.LastError,
	)
}
