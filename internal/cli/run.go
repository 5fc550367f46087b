package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"etagcheck/internal/config"
	"etagcheck/internal/hashing"
	"etagcheck/internal/listing"
	"etagcheck/internal/metrics"
	"etagcheck/internal/progress"
	"etagcheck/internal/remote"
	"etagcheck/internal/verify"
)

// newLister is swapped out in tests.
var newLister = func(ctx context.Context) (remote.Lister, error) {
	return remote.NewS3Lookup(ctx)
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, stdout, stderr io.Writer) error {
	if cfg.CheckPath != "" {
		return runCheck(ctx, cfg, log, stdout, stderr)
	}
	return runCompute(ctx, cfg, log, stdout)
}

func runCompute(ctx context.Context, cfg config.Config, log *slog.Logger, stdout io.Writer) error {
	if cfg.Mode == config.ModeS3URI {
		objects, err := fetchRemote(ctx, cfg, log)
		if err != nil {
			return err
		}
		records := make([]listing.Record, len(objects))
		for i, o := range objects {
			records[i] = listing.Record{Digest: o.ETag, ID: o.Key}
		}
		return writeRecords(cfg.OutPath, records, stdout)
	}

	// All infiles must exist before any hashing starts.
	var totalBytes int64
	for _, p := range cfg.Infiles {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("file not found: %s", p)
		}
		totalBytes += info.Size()
	}

	stats := &metrics.Stats{}
	stats.Start()
	atomic.StoreInt64(&stats.Total, int64(len(cfg.Infiles)))
	atomic.StoreInt64(&stats.TotalBytes, totalBytes)

	bar := progress.New(totalBytes, statsSnapshot(stats))
	hash := bindHasher(cfg, stats, bar)

	records, err := computeRecords(cfg.Infiles, hash, cfg.Workers, stats)

	bar.Close()
	stats.Stop()
	if err != nil {
		return err
	}

	log.Debug("hashing complete", "files", len(records), "mode", cfg.Mode)
	return writeRecords(cfg.OutPath, records, stdout)
}

func runCheck(ctx context.Context, cfg config.Config, log *slog.Logger, stdout, stderr io.Writer) error {
	records, err := listing.Load(cfg.CheckPath)
	if err != nil {
		return err
	}
	log.Debug("loaded listing", "path", cfg.CheckPath, "records", len(records))

	stats := &metrics.Stats{}
	stats.Start()
	atomic.StoreInt64(&stats.Total, int64(len(records)))

	var res *verify.Result
	if cfg.Mode == config.ModeS3URI {
		objects, err := fetchRemote(ctx, cfg, log)
		if err != nil {
			return err
		}
		res = verify.Remote(records, objects, stats)
	} else {
		var totalBytes int64
		for _, rec := range records {
			if info, err := os.Stat(rec.ID); err == nil {
				totalBytes += info.Size()
			}
		}
		atomic.StoreInt64(&stats.TotalBytes, totalBytes)

		bar := progress.New(totalBytes, statsSnapshot(stats))
		hash := bindHasher(cfg, stats, bar)
		res = verify.Files(records, hash, verify.Options{Workers: cfg.Workers}, stats)
		bar.Close()
	}
	stats.Stop()

	printOutcomes(stdout, res)
	metrics.Print(stderr, stats)

	if cfg.ReportPath != "" {
		if err := writeReport(cfg.ReportPath, cfg.Mode, res); err != nil {
			return err
		}
		log.Debug("wrote report", "path", cfg.ReportPath)
	}

	if res.Mismatches > 0 {
		return fmt.Errorf("verification failed: %d of %d records did not match", res.Mismatches, len(records))
	}
	return nil
}

func fetchRemote(ctx context.Context, cfg config.Config, log *slog.Logger) ([]remote.Object, error) {
	lister, err := newLister(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := lister.ListDigests(ctx, cfg.Buckets, cfg.Keys, cfg.Patterns)
	if err != nil {
		return nil, err
	}
	log.Debug("retrieved remote digests", "objects", len(objects))
	return objects, nil
}

// bindHasher fixes the mode, chunk size and progress hooks into a single
// path -> digest function.
func bindHasher(cfg config.Config, stats *metrics.Stats, bar *progress.Bar) verify.Hasher {
	onProgress := func(n int64) {
		atomic.AddInt64(&stats.BytesHashed, n)
		if bar != nil {
			bar.AddBytes(n)
		}
	}

	if cfg.Mode == config.ModeMD5 {
		return func(path string) (string, error) {
			return hashing.FileMD5(path, onProgress)
		}
	}
	return func(path string) (string, error) {
		return hashing.FileETag(path, cfg.ChunkSize, onProgress)
	}
}

// computeRecords hashes independent files on a bounded worker pool; chunk
// order within one file stays sequential. Results keep input order, and any
// read failure fails the whole run.
func computeRecords(paths []string, hash verify.Hasher, workers int, stats *metrics.Stats) ([]listing.Record, error) {
	if workers <= 0 {
		workers = 1
	}

	records := make([]listing.Record, len(paths))
	errs := make([]error, len(paths))

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			digest, err := hash(paths[i])
			if err != nil {
				errs[i] = err
			} else {
				records[i] = listing.Record{Digest: digest, ID: paths[i]}
				atomic.AddInt64(&stats.Matches, 1)
			}
			atomic.AddInt64(&stats.Processed, 1)
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
	}
	return records, nil
}

func writeRecords(outPath string, records []listing.Record, stdout io.Writer) error {
	if outPath == "" {
		return listing.Write(stdout, records)
	}

	f, err := os.Create(outPath) // #nosec G304
	if err != nil {
		return err
	}
	if err := listing.Write(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printOutcomes(w io.Writer, res *verify.Result) {
	for _, o := range res.Outcomes {
		switch {
		case o.OK:
			fmt.Fprintf(w, "%s\t%s\tOK\n", o.Expected, o.ID)
		case o.Err != nil:
			fmt.Fprintf(w, "%s\t%s\tERROR: %v\n", o.Expected, o.ID, o.Err)
		default:
			fmt.Fprintf(w, "%s\t%s\t->\t%s\tMISMATCH\n", o.Expected, o.ID, o.Actual)
		}
	}
}

func statsSnapshot(stats *metrics.Stats) progress.SnapshotFn {
	return func() (p, total, matches, mismatches, errc, bytesHashed int64) {
		p = atomic.LoadInt64(&stats.Processed)
		total = atomic.LoadInt64(&stats.Total)
		matches = atomic.LoadInt64(&stats.Matches)
		mismatches = atomic.LoadInt64(&stats.Mismatches)
		errc = atomic.LoadInt64(&stats.Missing) + atomic.LoadInt64(&stats.HashErrors)
		bytesHashed = atomic.LoadInt64(&stats.BytesHashed)
		return p, total, matches, mismatches, errc, bytesHashed
	}
}
