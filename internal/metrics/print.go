package metrics

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

type Snapshot struct {
	DurationMs  int64
	Total       int64
	Processed   int64
	Matches     int64
	Mismatches  int64
	Missing     int64
	HashErrors  int64
	BytesHashed int64
	TotalBytes  int64
}

func (s *Stats) Snapshot() Snapshot {
	dur := s.Duration()

	return Snapshot{
		DurationMs:  dur.Milliseconds(),
		Total:       atomic.LoadInt64(&s.Total),
		Processed:   atomic.LoadInt64(&s.Processed),
		Matches:     atomic.LoadInt64(&s.Matches),
		Mismatches:  atomic.LoadInt64(&s.Mismatches),
		Missing:     atomic.LoadInt64(&s.Missing),
		HashErrors:  atomic.LoadInt64(&s.HashErrors),
		BytesHashed: atomic.LoadInt64(&s.BytesHashed),
		TotalBytes:  atomic.LoadInt64(&s.TotalBytes),
	}
}

func Print(w io.Writer, s *Stats) {
	snap := s.Snapshot()

	fmt.Fprintln(w, "--- summary ---")
	fmt.Fprintln(w, "duration_ms:", snap.DurationMs)
	fmt.Fprintln(w, "records:", snap.Total)
	fmt.Fprintln(w, "processed:", snap.Processed)
	fmt.Fprintln(w, "matches:", snap.Matches)
	fmt.Fprintln(w, "mismatches:", snap.Mismatches)
	fmt.Fprintln(w, "missing:", snap.Missing)
	fmt.Fprintln(w, "hash_errors:", snap.HashErrors)
	fmt.Fprintln(w, "bytes_hashed:", humanize.Bytes(uint64(snap.BytesHashed)))

	if snap.DurationMs > 0 {
		secs := float64(snap.DurationMs) / 1000.0
		bps := float64(snap.BytesHashed) / secs
		fmt.Fprintf(w, "throughput: %s/s\n", humanize.Bytes(uint64(bps)))
	}
}
