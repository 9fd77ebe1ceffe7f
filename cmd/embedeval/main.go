// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/embedeval"
	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/ingestion"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "embedeval",
		Usage: "Evaluate embedding models on a ground-truthed retrieval corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./embedeval_db",
				EnvVars: []string{"EMBEDEVAL_DB"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "ollama-host",
				Usage:   "Ollama server used by models without a provider URL",
				Value:   "http://localhost:11434",
				EnvVars: []string{"EMBEDEVAL_OLLAMA_HOST"},
			},
			&cli.StringFlag{
				Name:    "openai-host",
				Usage:   "OpenAI-compatible server used by models without a provider URL",
				Value:   "http://localhost:1234/v1",
				EnvVars: []string{"EMBEDEVAL_OPENAI_HOST"},
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Token sent to OpenAI-compatible servers",
				Value:   "none",
				EnvVars: []string{"EMBEDEVAL_API_TOKEN"},
			},
			&cli.DurationFlag{
				Name:  "request-timeout",
				Usage: "Timeout of a single backend call",
				Value: 60 * time.Second,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						EnvVars: []string{"EMBEDEVAL_ADDR"},
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Add embedding models and rerankers from a catalog file",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "catalog",
						Usage: "Catalog YAML file (default: built-in LM Studio models)",
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Import source texts and test phrases from a corpus file",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "corpus",
						Usage:    "Corpus YAML file",
						Required: true,
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Embed chunks and test phrases for one model or every model",
				Action: embedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "model",
						Usage: "Model name or id",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Embed for every catalog model",
					},
					&cli.StringFlag{
						Name:  "scope",
						Usage: "What to embed (all, chunks, phrases)",
						Value: "all",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of texts sent per backend call",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "evaluate",
				Usage:  "Evaluate retrieval quality of a model",
				Action: evaluateCommand,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "details",
						Usage: "Print every phrase",
					},
				}, evalFlags()...),
			},
			{
				Name:      "search",
				Usage:     "Search the corpus with a free-text query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model",
						Usage:    "Model name or id",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of hits",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "matryoshka-dim",
						Usage: "Truncate vectors to this size",
					},
				},
			},
			{
				Name:   "compare",
				Usage:  "Compare evaluation runs on latency and quality",
				Action: compareCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "model",
						Usage: "Model name or id (repeatable, default: every model with a run)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Compare every completed run instead of the latest run per model",
					},
					&cli.IntSliceFlag{
						Name:  "run",
						Usage: "Run id to compare (repeatable, excludes --model and --all)",
					},
					&cli.StringFlag{
						Name:  "metric",
						Usage: "Quality axis of the Pareto front (top1, mrr, ndcg)",
						Value: "top1",
					},
				},
			},
			{
				Name:   "grid",
				Usage:  "Search chunk sizes and overlaps for the best configuration",
				Action: gridCommand,
				Flags: append([]cli.Flag{
					&cli.IntSliceFlag{
						Name:  "size",
						Usage: "Chunk size in tokens (repeatable)",
						Value: cli.NewIntSlice(100, 200, 300, 500),
					},
					&cli.IntSliceFlag{
						Name:  "overlap",
						Usage: "Chunk overlap in tokens (repeatable)",
						Value: cli.NewIntSlice(0, 30, 60),
					},
					&cli.StringSliceFlag{
						Name:  "strategy",
						Usage: "Chunking strategy (repeatable)",
						Value: cli.NewStringSlice(ingestion.StrategySentence),
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of texts sent per backend call",
						Value: 50,
					},
				}, evalFlags()...),
			},
			{
				Name:   "runs",
				Usage:  "List evaluation runs",
				Action: runsCommand,
			},
			{
				Name:   "export",
				Usage:  "Write the results of a run to a parquet file",
				Action: exportCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "run",
						Usage:    "Run id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output file",
						Value: "results.parquet",
					},
				},
			},
		},
	}
}

func evalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "model",
			Usage:    "Model name or id",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "reranker",
			Usage: "Reranker name or id",
		},
		&cli.IntFlag{
			Name:  "matryoshka-dim",
			Usage: "Truncate vectors to this size",
		},
		&cli.IntFlag{
			Name:  "top-k",
			Usage: "Number of chunks retrieved per phrase",
			Value: 5,
		},
	}
}

// openDatabase opens the database named by the global flags.
func openDatabase(c *cli.Context, opts ...embedeval.DatabaseOption) (*embedeval.Database, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	aiConfig := ai.NewConfig(
		ai.WithOllamaHost(c.String("ollama-host")),
		ai.WithOpenAIHost(c.String("openai-host")),
		ai.WithAPIToken(c.String("api-token")),
		ai.WithRequestTimeout(c.Duration("request-timeout")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts = append([]embedeval.DatabaseOption{
		embedeval.WithAIConfig(aiConfig),
		embedeval.WithLogger(slog.Default()),
	}, opts...)
	db, err := embedeval.NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func jobConfig(c *cli.Context) (*reembed.Config, error) {
	config := &reembed.Config{
		BatchSize:  c.Int("batch-size"),
		MaxRetries: c.Int("max-retries"),
		RetryDelay: c.Duration("retry-delay"),
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = reembed.DefaultConfig().MaxRetries
		config.RetryDelay = reembed.DefaultConfig().RetryDelay
	}

	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch-size must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}
	return config, nil
}

func newMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.NewRegistry())
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
