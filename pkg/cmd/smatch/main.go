package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-matching-service/pkg/cache"
	"github.com/gilchrisn/graph-matching-service/pkg/corpus"
	"github.com/gilchrisn/graph-matching-service/pkg/smatch"
	"github.com/gilchrisn/graph-matching-service/pkg/store"
	"github.com/gilchrisn/graph-matching-service/pkg/utils"
)

type options struct {
	testPath    string
	goldPath    string
	configPath  string
	jsonOutput  bool
	metricsAddr string
	historyPath string
	set         map[string]interface{}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	flagSet := flag.NewFlagSet("smatch", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "Usage: smatch [flags] <test.jsonl> <gold.jsonl>")
		flagSet.PrintDefaults()
	}

	restarts := flagSet.Int("r", 4, "restart number")
	verbose := flagSet.Bool("v", false, "verbose output (debug logging to stderr)")
	logLevel := flagSet.String("log-level", "info", "log level: trace, debug, info, warn, error, disabled")
	perPair := flagSet.Bool("ms", false, "output one score per pair instead of a document-level score")
	showPR := flagSet.Bool("pr", false, "output precision and recall as well as the f-score")
	strict := flagSet.Bool("strict", false, "abort on the first malformed pair")
	configPath := flagSet.String("config", "", "config file (yaml, toml or json)")
	seed := flagSet.Int64("seed", 0, "random seed (default: time based)")
	workers := flagSet.Int("workers", 0, "number of concurrent pairs (default: number of CPUs)")
	parallelRestarts := flagSet.Bool("parallel-restarts", false, "run the restarts of a pair concurrently")
	timeout := flagSet.Duration("timeout", 0, "per-pair search deadline, 0 for none")
	trackMoves := flagSet.String("track-moves", "", "write every hill-climbing move to this JSON-lines file")
	jsonOutput := flagSet.Bool("json", false, "print the full report as JSON")
	metricsAddr := flagSet.String("metrics-addr", "", "serve prometheus metrics on this address")
	historyPath := flagSet.String("history", "", "record the run in this SQLite database")
	redisAddr := flagSet.String("redis-addr", "", "reuse pair scores cached in this Redis server")
	cacheTTL := flagSet.Duration("cache-ttl", 24*time.Hour, "lifetime of cached pair scores")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() != 2 {
		flagSet.Usage()
		return options{}, fmt.Errorf("expected a test file and a gold file, got %d arguments", flagSet.NArg())
	}

	opts := options{
		testPath:    flagSet.Arg(0),
		goldPath:    flagSet.Arg(1),
		configPath:  *configPath,
		jsonOutput:  *jsonOutput,
		metricsAddr: *metricsAddr,
		historyPath: *historyPath,
		set:         make(map[string]interface{}),
	}

	// only explicit flags override the config file
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "r":
			opts.set["search.restarts"] = *restarts
		case "log-level":
			opts.set["logging.level"] = *logLevel
		case "v":
			if *verbose {
				opts.set["logging.level"] = "debug"
			}
		case "ms":
			opts.set["corpus.per_pair"] = *perPair
		case "pr":
			opts.set["corpus.show_pr"] = *showPR
		case "strict":
			opts.set["corpus.strict"] = *strict
		case "seed":
			opts.set["search.random_seed"] = *seed
		case "workers":
			opts.set["performance.num_workers"] = *workers
		case "parallel-restarts":
			opts.set["search.parallel_restarts"] = *parallelRestarts
		case "timeout":
			opts.set["search.pair_timeout"] = *timeout
		case "redis-addr":
			opts.set["cache.redis_addr"] = *redisAddr
		case "cache-ttl":
			opts.set["cache.ttl"] = *cacheTTL
		case "track-moves":
			opts.set["analysis.track_moves"] = *trackMoves != ""
			opts.set["analysis.output_file"] = *trackMoves
		}
	})
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	config := smatch.NewConfig()
	if opts.configPath != "" {
		if err := config.LoadFromFile(opts.configPath); err != nil {
			fmt.Fprintf(stderr, "Error: failed to load config: %v\n", err)
			return 1
		}
	}
	for key, value := range opts.set {
		config.Set(key, value)
	}
	logger := config.CreateLogger()

	var tracker *utils.MoveTracker
	if config.TrackMoves() {
		tracker, err = utils.NewMoveTracker(config.OutputFile())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer func() {
			if err := tracker.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to write move trace")
			}
		}()
	}

	if opts.metricsAddr != "" {
		server := serveMetrics(opts.metricsAddr, func(err error) {
			logger.Error().Err(err).Msg("Metrics server failed")
		})
		defer stopMetrics(server, logger, 2*time.Second)
		logger.Info().Str("addr", opts.metricsAddr).Msg("Serving metrics")
	}

	test, gold, err := corpus.ReadPairFiles(opts.testPath, opts.goldPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	evaluator := corpus.NewEvaluator(config, tracker)
	if addr := config.CacheAddr(); addr != "" {
		scoreCache, err := cache.Dial(ctx, addr, config.CacheTTL())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer scoreCache.Close()
		evaluator.SetCache(scoreCache)
	}
	report, err := evaluator.EvaluateEntries(ctx, test, gold)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.jsonOutput {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintf(stderr, "Error: failed to encode report: %v\n", err)
			return 1
		}
	} else {
		writeScores(stdout, report, config.ShowPR())
	}

	if opts.historyPath != "" {
		if err := recordHistory(ctx, opts, config, report); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		logger.Info().Str("run_id", report.RunID).Str("history", opts.historyPath).Msg("Run recorded")
	}
	return 0
}

// writeScores prints one F1 per pair in per-pair mode, or the
// document-level score otherwise. A failed pair prints NaN so that line k
// still belongs to pair k.
func writeScores(w io.Writer, report *corpus.Report, showPR bool) {
	if report.PerPair {
		for _, pr := range report.Pairs {
			if pr.Err != nil {
				if showPR {
					fmt.Fprintln(w, "Precision: NaN")
					fmt.Fprintln(w, "Recall: NaN")
				}
				fmt.Fprintln(w, "F1: NaN")
				continue
			}
			if showPR {
				fmt.Fprintf(w, "Precision: %.2f\n", pr.Precision)
				fmt.Fprintf(w, "Recall: %.2f\n", pr.Recall)
			}
			fmt.Fprintf(w, "F1: %.3f\n", pr.F1)
		}
		return
	}
	if showPR {
		fmt.Fprintf(w, "Precision: %.3f\n", report.Precision)
		fmt.Fprintf(w, "Recall: %.3f\n", report.Recall)
	}
	fmt.Fprintf(w, "Document F-score: %.3f\n", report.F1)
}

func serveMetrics(addr string, onError func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onError(err)
		}
	}()
	return server
}

func stopMetrics(server interface{ Shutdown(context.Context) error }, logger zerolog.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop metrics server")
	}
}

func recordHistory(ctx context.Context, opts options, config *smatch.Config, report *corpus.Report) error {
	history, err := store.NewStore(opts.historyPath)
	if err != nil {
		return err
	}
	defer history.Close()

	return history.RecordRun(ctx, store.RunInfo{
		TestPath: opts.testPath,
		GoldPath: opts.goldPath,
		Restarts: config.Restarts(),
		Seed:     config.RandomSeed(),
	}, report)
}
