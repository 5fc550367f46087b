// Package verify compares expected digests from a listing against freshly
// computed or remotely retrieved ones.
package verify

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"etagcheck/internal/listing"
	"etagcheck/internal/metrics"
	"etagcheck/internal/remote"
)

// ErrNotFound marks a record whose identifier resolved to nothing, locally
// or in the remote listing.
var ErrNotFound = errors.New("not found")

// Files recomputes the digest for each record identifier and compares it
// case-insensitively against the expected one. Records are fanned out to
// opts.Workers goroutines; outcomes keep listing order.
func Files(records []listing.Record, hash Hasher, opts Options, stats *metrics.Stats) *Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome, len(records))

	type job struct {
		idx int
		rec listing.Record
	}
	jobs := make(chan job)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			outcomes[j.idx] = checkFile(j.rec, hash, stats)
			atomic.AddInt64(&stats.Processed, 1)
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}

	for i, rec := range records {
		jobs <- job{idx: i, rec: rec}
	}
	close(jobs)
	wg.Wait()

	return tally(outcomes)
}

func checkFile(rec listing.Record, hash Hasher, stats *metrics.Stats) Outcome {
	out := Outcome{ID: rec.ID, Expected: rec.Digest}

	if _, err := os.Stat(rec.ID); err != nil {
		atomic.AddInt64(&stats.Missing, 1)
		out.Err = fmt.Errorf("%w: %v", ErrNotFound, err)
		return out
	}

	computed, err := hash(rec.ID)
	if err != nil {
		atomic.AddInt64(&stats.HashErrors, 1)
		out.Err = err
		return out
	}

	out.Actual = computed
	if strings.EqualFold(strings.TrimSpace(rec.Digest), computed) {
		out.OK = true
		atomic.AddInt64(&stats.Matches, 1)
	} else {
		atomic.AddInt64(&stats.Mismatches, 1)
	}
	return out
}

// Remote compares each record against the retrieved remote objects. A record
// matches a remote object when the object key contains the record identifier;
// with several candidates, one matching digest is enough.
func Remote(records []listing.Record, objects []remote.Object, stats *metrics.Stats) *Result {
	outcomes := make([]Outcome, len(records))

	for i, rec := range records {
		out := Outcome{ID: rec.ID, Expected: rec.Digest}

		var candidates []string
		for _, obj := range objects {
			if strings.Contains(obj.Key, rec.ID) {
				candidates = append(candidates, obj.ETag)
			}
		}

		switch {
		case len(candidates) == 0:
			atomic.AddInt64(&stats.Missing, 1)
			out.Err = fmt.Errorf("%s: %w in remote listing", rec.ID, ErrNotFound)
		default:
			out.Actual = candidates[0]
			expected := strings.TrimSpace(rec.Digest)
			for _, etag := range candidates {
				if strings.EqualFold(etag, expected) {
					out.OK = true
					out.Actual = etag
					break
				}
			}
			if out.OK {
				atomic.AddInt64(&stats.Matches, 1)
			} else {
				atomic.AddInt64(&stats.Mismatches, 1)
			}
		}

		atomic.AddInt64(&stats.Processed, 1)
		outcomes[i] = out
	}

	return tally(outcomes)
}

func tally(outcomes []Outcome) *Result {
	res := &Result{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.OK {
			res.Matches++
		} else {
			res.Mismatches++
		}
	}
	return res
}
