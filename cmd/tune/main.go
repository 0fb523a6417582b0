// Command tune runs a single tuning run from a YAML search-space file
// against a built-in benchmark trainer and prints the final report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/copyleftdev/EVOLVR/internal/config"
	"github.com/copyleftdev/EVOLVR/internal/logging"
	"github.com/copyleftdev/EVOLVR/internal/tuning/batch"
	"github.com/copyleftdev/EVOLVR/internal/tuning/continuous"
	"github.com/copyleftdev/EVOLVR/internal/tuning/report"
	"github.com/copyleftdev/EVOLVR/internal/tuning/trainers"
)

func main() {
	spacePath := flag.String("space", "", "path to the YAML search-space file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if *spacePath == "" {
		fmt.Fprintln(os.Stderr, "usage: tune -space <search-space.yaml>")
		os.Exit(2)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  *logLevel,
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	engineLog := logging.NewZapLogger(logger)

	ss, err := config.LoadSearchSpace(*spacePath)
	if err != nil {
		logger.Fatal("Invalid search space", map[string]interface{}{"error": err.Error()})
	}

	benchmark := trainers.Benchmark(ss.Trainer)
	if benchmark == "" {
		benchmark = trainers.Sphere
	}
	trainer, err := trainers.New(benchmark)
	if err != nil {
		logger.Fatal("Invalid trainer", map[string]interface{}{"error": err.Error()})
	}

	var rep *report.Report
	switch ss.Strategy {
	case "batch":
		cfg, err := ss.BatchConfig()
		if err != nil {
			logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
		}
		cfg.Logger = engineLog
		sched, err := batch.New(cfg)
		if err != nil {
			logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
		}
		rep, err = sched.Run(context.Background(), trainer)
		if err != nil {
			logger.Error("Run failed", map[string]interface{}{
				"error":     err.Error(),
				"evaluated": sched.Population().Len(),
			})
			os.Exit(1)
		}
	case "continuous":
		cfg, err := ss.ContinuousConfig()
		if err != nil {
			logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
		}
		cfg.Logger = engineLog
		sched, err := continuous.New(cfg)
		if err != nil {
			logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
		}
		rep, err = sched.Run(context.Background(), trainer)
		if err != nil {
			logger.Error("Run failed", map[string]interface{}{
				"error":     err.Error(),
				"evaluated": sched.Population().Len(),
			})
			os.Exit(1)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		logger.Fatal("Failed to encode report", map[string]interface{}{"error": err.Error()})
	}
}
