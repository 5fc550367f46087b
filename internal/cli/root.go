// Package cli wires the command surface: argument parsing, dispatch and
// output writing around the hashing and verification core.
package cli

import (
	"log/slog"

	"etagcheck/internal/config"
	"etagcheck/internal/logger"

	"github.com/spf13/cobra"
)

type flags struct {
	infiles    []string
	chunkSize  string
	mode       string
	buckets    []string
	keys       []string
	patterns   []string
	checkPath  string
	outPath    string
	reportPath string
	workers    int
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var fl flags

	cmd := &cobra.Command{
		Use:   "etagcheck",
		Short: "Compute and verify S3 multipart ETags and MD5 digests.",
		Example: "  etagcheck -i genome.bam -s 8MB\n" +
			"  etagcheck -m md5 -i a.bin -o sums.txt\n" +
			"  etagcheck -m s3uri -b mybucket -k genomes/ -p '*.bam' -o etags.txt\n" +
			"  etagcheck -c etags.txt",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, &fl)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if fl.verbose {
				level = slog.LevelDebug
			}
			log := logger.New(cmd.ErrOrStderr(), level)

			return run(cmd.Context(), cfg, log, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&fl.infiles, "infiles", "i", nil, "Local files to digest, repeatable")
	f.StringVarP(&fl.chunkSize, "chunk-size", "s", config.DefaultChunkSize, "Chunk size for etag mode, with optional KB/MB/GB/TB suffix")
	f.StringVarP(&fl.mode, "mode", "m", config.ModeETag, "Digest mode: etag, md5 or s3uri")
	f.StringSliceVarP(&fl.buckets, "bucket", "b", nil, "S3 bucket, repeatable")
	f.StringSliceVarP(&fl.keys, "key", "k", nil, "S3 key prefix, repeatable")
	f.StringSliceVarP(&fl.patterns, "pattern", "p", nil, "Glob pattern filtering remote keys, repeatable")
	f.StringVarP(&fl.checkPath, "check", "c", "", "Verification listing to compare and exit")
	f.StringVarP(&fl.outPath, "out", "o", "", "Write computed digests to this file instead of stdout")
	f.StringVarP(&fl.reportPath, "report", "j", "", "Write a JSON verification report to this file")
	f.IntVarP(&fl.workers, "workers", "w", 1, "Worker pool size for hashing independent files")
	f.StringVar(&fl.configPath, "config", "", "TOML defaults file")
	f.BoolVarP(&fl.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.MarkFlagsMutuallyExclusive("check", "out")
	cmd.MarkFlagsMutuallyExclusive("infiles", "bucket")

	return cmd
}

// buildConfig folds TOML defaults under explicit flags and validates the
// result once, before any work starts.
func buildConfig(cmd *cobra.Command, fl *flags) (config.Config, error) {
	d, err := config.LoadDefaults(fl.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if !changed("mode") && d.Mode != "" {
		fl.mode = d.Mode
	}
	if !changed("chunk-size") && d.ChunkSize != "" {
		fl.chunkSize = d.ChunkSize
	}
	if !changed("workers") && d.Workers > 0 {
		fl.workers = d.Workers
	}
	if len(fl.buckets) == 0 {
		fl.buckets = d.Buckets
	}
	if len(fl.keys) == 0 {
		fl.keys = d.Keys
	}

	size, err := config.ParseChunkSize(fl.chunkSize)
	if err != nil {
		return config.Config{}, err
	}

	cfg := config.Config{
		Mode:       fl.mode,
		ChunkSize:  size,
		Infiles:    fl.infiles,
		Buckets:    fl.buckets,
		Keys:       fl.keys,
		Patterns:   fl.patterns,
		CheckPath:  fl.checkPath,
		OutPath:    fl.outPath,
		ReportPath: fl.reportPath,
		Workers:    fl.workers,
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
