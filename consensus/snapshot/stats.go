package snapshot

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sasha-s/go-deadlock"
)

const statsWindow = 1024

// Stats summarises recent compositions.
type Stats struct {
	Runs         int64   `json:"runs"`
	Retries      int64   `json:"retries"`
	Unavailable  int64   `json:"unavailable"`
	Failures     int64   `json:"failures"`
	MeanAttempts float64 `json:"meanAttempts"`
	P50Millis    float64 `json:"p50Millis"`
	P90Millis    float64 `json:"p90Millis"`
	MaxMillis    float64 `json:"maxMillis"`
}

type recorder struct {
	mutex     *deadlock.Mutex
	stats     Stats
	durations []float64
	attempts  []float64
	next      int
}

func newRecorder() *recorder {
	return &recorder{mutex: &deadlock.Mutex{}}
}

func (r *recorder) record(attempts int, d time.Duration, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.stats.Runs++
	if attempts > 1 {
		r.stats.Retries += int64(attempts - 1)
	}
	if err != nil {
		r.stats.Failures++
	}
	ms := float64(d) / float64(time.Millisecond)
	if len(r.durations) < statsWindow {
		r.durations = append(r.durations, ms)
		r.attempts = append(r.attempts, float64(attempts))
		return
	}
	r.durations[r.next] = ms
	r.attempts[r.next] = float64(attempts)
	r.next = (r.next + 1) % statsWindow
}

func (r *recorder) unavailable() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.stats.Unavailable++
}

func (r *recorder) snapshot() Stats {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	s := r.stats
	if len(r.durations) == 0 {
		return s
	}
	s.MeanAttempts, _ = stats.Mean(r.attempts)
	s.P50Millis, _ = stats.Percentile(r.durations, 50)
	s.P90Millis, _ = stats.Percentile(r.durations, 90)
	s.MaxMillis, _ = stats.Max(r.durations)
	return s
}
