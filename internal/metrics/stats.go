package metrics

import "time"

// Stats holds the counters for one run, updated with sync/atomic from the
// hashing workers.
type Stats struct {
	TotalBytes int64

	Total      int64
	Processed  int64
	Matches    int64
	Mismatches int64
	Missing    int64
	HashErrors int64

	BytesHashed int64
	Started     time.Time
	Finished    time.Time
}

func (s *Stats) Start() { s.Started = time.Now() }
func (s *Stats) Stop()  { s.Finished = time.Now() }
func (s *Stats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}
