package quiver

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/storage"
)

// Config holds the tunables of a Context.
type Config struct {
	BatchSize          int    `yaml:"batch_size"`
	Parallelism        int    `yaml:"parallelism"`
	ParquetCompression string `yaml:"parquet_compression"`
	ParquetGlobLimit   int    `yaml:"parquet_glob_limit"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		BatchSize:          storage.DefaultBatchSize,
		Parallelism:        runtime.GOMAXPROCS(0),
		ParquetCompression: "snappy",
		ParquetGlobLimit:   storage.DefaultGlobLimit,
	}
}

// RegisterFlags registers flags for every field, defaulting to the values
// of DefaultConfig.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	d := DefaultConfig()
	f.IntVar(&cfg.BatchSize, "batch-size", d.BatchSize, "Number of rows per batch read from a file.")
	f.IntVar(&cfg.Parallelism, "parallelism", d.Parallelism, "Number of batches filtered and projected at once. 1 runs queries on a single goroutine.")
	f.StringVar(&cfg.ParquetCompression, "parquet.compression", d.ParquetCompression, "Compression codec for written Parquet files: none, snappy, gzip, zstd, lz4 or brotli.")
	f.IntVar(&cfg.ParquetGlobLimit, "parquet.glob-limit", d.ParquetGlobLimit, "Maximum number of files a Parquet glob pattern may match.")
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", errs.ErrInvalidArgument, cfg.BatchSize)
	}
	if cfg.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be positive, got %d", errs.ErrInvalidArgument, cfg.Parallelism)
	}
	if cfg.ParquetGlobLimit < 1 {
		return fmt.Errorf("%w: parquet_glob_limit must be positive, got %d", errs.ErrInvalidArgument, cfg.ParquetGlobLimit)
	}
	if _, err := storage.ParseCompression(cfg.ParquetCompression); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults. Unknown keys are an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.parse(buf); err != nil {
		return cfg, fmt.Errorf("%w: config file %s: %v", errs.ErrInvalidArgument, path, err)
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) parse(buf []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
