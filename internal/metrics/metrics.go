package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsFetched       int64
	ItemsFiltered      int64
	DuplicatesFiltered int64
	PostsSent          int64
	PostFailures       int64
	AIRequests         int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	RateLimited   bool
}

var Global = &Metrics{}

func (m *Metrics) AddFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched += int64(n)
}

func (m *Metrics) IncrementFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFiltered++
}

func (m *Metrics) IncrementDuplicatesFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered++
}

func (m *Metrics) IncrementPostsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsSent++
}

func (m *Metrics) IncrementPostFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostFailures++
}

func (m *Metrics) IncrementAIRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AIRequests++
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
}

func (m *Metrics) SetRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimited = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
}

func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched, m.ItemsFiltered, m.DuplicatesFiltered = 0, 0, 0
	m.PostsSent, m.PostFailures, m.AIRequests = 0, 0, 0
	m.LastProcessingTime, m.AverageProcessingTime, m.TotalProcessingTime = 0, 0, 0
	m.ProcessingCount = 0
	m.LastRunTime, m.LastErrorTime = time.Time{}, time.Time{}
	m.LastError = ""
	m.RateLimited = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_fetched":              m.ItemsFetched,
		"items_filtered":             m.ItemsFiltered,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"posts_sent":                 m.PostsSent,
		"post_failures":              m.PostFailures,
		"ai_requests":                m.AIRequests,
		"rate_limited":               m.RateLimited,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_error":                 m.LastError,
	}
}

// LogArgs flattens the stats into slog key/value pairs.
func (m *Metrics) LogArgs() []any {
	stats := m.GetStats()
	keys := []string{
		"items_fetched", "items_filtered", "duplicates_filtered", "posts_sent",
		"post_failures", "ai_requests", "rate_limited", "average_processing_time_ms",
	}
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k, stats[k])
	}
	return args
}
