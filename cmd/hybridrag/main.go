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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/ai/openai"
	"github.com/urfave/cli/v2"
)

// newProvider creates the AI provider used by every command.
var newProvider = func(config *ai.Config) (ai.AIProvider, error) {
	return openai.NewProvider(config)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hybridrag",
		Usage: "Hybrid vector retrieval over a tiered knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagLogLevel,
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"HYBRIDRAG_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Embed a knowledge file and write the vector index",
				Action: buildCommand,
				Flags:  buildFlags(),
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed an existing index with another embedding model",
				Action: reembedCommand,
				Flags:  reembedFlags(),
			},
			{
				Name:      "query",
				Usage:     "Print the ranked candidates for a query",
				ArgsUsage: "<query>",
				Action:    queryCommand,
				Flags:     queryFlags(),
			},
			{
				Name:   "chat",
				Usage:  "Answer questions interactively (empty line exits)",
				Action: chatCommand,
				Flags:  chatFlags(),
			},
			{
				Name:   "serve",
				Usage:  "Serve chat and search over HTTP",
				Action: serveCommand,
				Flags:  serveFlags(),
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String(flagLogLevel))

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

	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
