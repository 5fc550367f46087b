package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Mode selects the computation path for one invocation.
const (
	ModeETag  = "etag"
	ModeMD5   = "md5"
	ModeS3URI = "s3uri"
)

// Config is the full, typed configuration for one run. It is built once at
// the command boundary, validated, and then passed into the core by value.
type Config struct {
	Mode      string `validate:"oneof=etag md5 s3uri"`
	ChunkSize int64  `validate:"gt=0"`

	Infiles  []string
	Buckets  []string
	Keys     []string
	Patterns []string

	CheckPath  string
	OutPath    string
	ReportPath string

	Workers int `validate:"gte=1"`
}

// Defaults holds the optional TOML defaults file. Flags override any value
// set here.
type Defaults struct {
	Mode      string   `toml:"mode"`
	ChunkSize string   `toml:"chunk_size"`
	Buckets   []string `toml:"buckets"`
	Keys      []string `toml:"keys"`
	Workers   int      `toml:"workers"`
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the flag
// parser cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint", f.Field(), f.Tag())
		}
		return err
	}

	switch c.Mode {
	case ModeS3URI:
		if len(c.Buckets) == 0 {
			return errors.New("mode s3uri requires at least one --bucket")
		}
		if len(c.Keys) == 0 {
			return errors.New("mode s3uri requires at least one --key")
		}
	default:
		if c.CheckPath == "" && len(c.Infiles) == 0 {
			return errors.New("nothing to do: provide --infiles or --check")
		}
	}

	return nil
}

// LoadDefaults reads the TOML defaults file at path. An empty path falls
// back to the per-user config location; a missing file is not an error.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults

	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return d, nil
		}
		path = filepath.Join(dir, "etagcheck", "config.toml")
		if _, err := os.Stat(path); err != nil {
			return d, nil
		}
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return d, err
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse %s: %w", path, err)
	}

	return d, nil
}
