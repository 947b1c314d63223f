package smatch

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages matcher and driver configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Search parameters
	v.SetDefault("search.restarts", 4) // 4 restarts + the initial run
	v.SetDefault("search.random_seed", time.Now().UnixNano())
	v.SetDefault("search.swap_moves", true)
	v.SetDefault("search.parallel_restarts", false)
	v.SetDefault("search.pair_timeout", time.Duration(0))

	// Corpus parameters
	v.SetDefault("corpus.per_pair", false)
	v.SetDefault("corpus.show_pr", false)
	v.SetDefault("corpus.strict", false)
	v.SetDefault("corpus.test_prefix", "a")
	v.SetDefault("corpus.gold_prefix", "b")

	// Performance parameters
	v.SetDefault("performance.parallel", true)
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)
	v.SetDefault("logging.progress_every", 100)

	v.SetDefault("analysis.track_moves", false)
	v.SetDefault("analysis.output_file", "smatch_moves.jsonl")

	// Score cache, off unless an address is given
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for search parameters
func (c *Config) Restarts() int { return c.v.GetInt("search.restarts") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("search.random_seed") }
func (c *Config) SwapMoves() bool { return c.v.GetBool("search.swap_moves") }
func (c *Config) ParallelRestarts() bool { return c.v.GetBool("search.parallel_restarts") }
func (c *Config) PairTimeout() time.Duration { return c.v.GetDuration("search.pair_timeout") }

// IterationNum is the total number of hill-climbing runs: restarts plus the initial run
func (c *Config) IterationNum() int {
	if r := c.Restarts(); r > 0 {
		return r + 1
	}
	return 1
}

func (c *Config) PerPair() bool { return c.v.GetBool("corpus.per_pair") }
func (c *Config) ShowPR() bool { return c.v.GetBool("corpus.show_pr") }
func (c *Config) Strict() bool { return c.v.GetBool("corpus.strict") }
func (c *Config) TestPrefix() string { return c.v.GetString("corpus.test_prefix") }
func (c *Config) GoldPrefix() string { return c.v.GetString("corpus.gold_prefix") }

func (c *Config) Parallel() bool { return c.v.GetBool("performance.parallel") }
func (c *Config) NumWorkers() int {
	if n := c.v.GetInt("performance.num_workers"); n > 0 {
		return n
	}
	return 1
}

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }
func (c *Config) ProgressEvery() int { return c.v.GetInt("logging.progress_every") }

func (c *Config) TrackMoves() bool { return c.v.GetBool("analysis.track_moves") }
func (c *Config) OutputFile() string { return c.v.GetString("analysis.output_file") }

func (c *Config) CacheAddr() string { return c.v.GetString("cache.redis_addr") }
func (c *Config) CacheTTL() time.Duration { return c.v.GetDuration("cache.ttl") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config. Output goes to
// stderr; stdout carries the scores.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "smatch").Logger()
}
