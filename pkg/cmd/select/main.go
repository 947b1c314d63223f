package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/gilchrisn/graph-matching-service/pkg/cache"
	"github.com/gilchrisn/graph-matching-service/pkg/corpus"
	"github.com/gilchrisn/graph-matching-service/pkg/smatch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flagSet := flag.NewFlagSet("select", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	goldPath := flagSet.String("g", "", "gold file")
	dir := flagSet.String("d", ".", "directory holding the *_out prediction files")
	restarts := flagSet.Int("r", 4, "restart number")
	logLevel := flagSet.String("log-level", "warn", "log level")
	seed := flagSet.Int64("seed", 0, "random seed (default: time based)")
	redisAddr := flagSet.String("redis-addr", "", "reuse pair scores cached in this Redis server")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *goldPath == "" {
		fmt.Fprintln(stderr, "Usage: select -g <gold.jsonl> -d <dir>")
		return 2
	}

	config := smatch.NewConfig()
	config.Set("search.restarts", *restarts)
	config.Set("logging.level", *logLevel)
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			config.Set("search.random_seed", *seed)
		}
	})

	candidates, err := corpus.FindCandidates(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	evaluator := corpus.NewEvaluator(config, nil)
	if *redisAddr != "" {
		scoreCache, err := cache.Dial(ctx, *redisAddr, config.CacheTTL())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer scoreCache.Close()
		evaluator.SetCache(scoreCache)
	}

	scores, best, err := corpus.SelectBest(ctx, evaluator, *goldPath, candidates)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, s := range scores {
		if s.Err != nil {
			fmt.Fprintf(stdout, "%s f1: failed (%v)\n", s.Path, s.Err)
			continue
		}
		fmt.Fprintf(stdout, "%s f1: %.4f\n", s.Path, s.F1)
	}
	if best >= 0 {
		fmt.Fprintln(stdout, scores[best].Path)
	} else {
		fmt.Fprintln(stdout)
	}
	return 0
}
