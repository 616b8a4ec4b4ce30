package main

import (
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/indexer"
	"github.com/poiesic/hybridrag/search"
	"github.com/poiesic/hybridrag/server"
	"github.com/urfave/cli/v2"
)

const (
	flagLogLevel       = "log-level"
	flagConfig         = "config"
	flagIndex          = "index"
	flagKnowledge      = "knowledge"
	flagHost           = "host"
	flagEmbeddingHost  = "embedding-host"
	flagEmbeddingModel = "embedding-model"
	flagChatHost       = "chat-host"
	flagChatModel      = "chat-model"
	flagAPIToken       = "api-token"
	flagTemperature    = "temperature"
	flagBatchSize      = "batch-size"
	flagWorkers        = "workers"
	flagMaxRetries     = "max-retries"
	flagRetryDelay     = "retry-delay"
	flagKSearch        = "k-search"
	flagTopN           = "top-n"
	flagKeywordBoost   = "keyword-boost"
	flagVerbose        = "verbose"
	flagListen         = "listen"
	flagAllowOrigins   = "allow-origins"
	flagRequestTimeout = "request-timeout"
)

const (
	defaultIndexPath = "index"
	// The interactive and HTTP front ends retrieve more widely than the library defaults.
	defaultKSearch = 15
	defaultTopN    = 10
)

func indexFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    flagIndex,
		Aliases: []string{"i"},
		Usage:   "Path to the index directory",
		Value:   defaultIndexPath,
	}
}

func embeddingFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagHost,
			Usage: "Host URL for both embedding and chat services",
		},
		&cli.StringFlag{
			Name:  flagEmbeddingHost,
			Usage: "Embedding service host URL",
			Value: defaults.EmbeddingHost,
		},
		&cli.StringFlag{
			Name:  flagEmbeddingModel,
			Usage: "Embedding model name",
			Value: defaults.EmbeddingModel,
		},
		&cli.StringFlag{
			Name:    flagAPIToken,
			Usage:   "Bearer token for the AI services",
			Value:   defaults.APIToken,
			EnvVars: []string{"HYBRIDRAG_API_TOKEN"},
		},
	}
}

func aiFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	return append(embeddingFlags(),
		&cli.StringFlag{
			Name:  flagChatHost,
			Usage: "Chat completion service host URL",
			Value: defaults.ChatHost,
		},
		&cli.StringFlag{
			Name:  flagChatModel,
			Usage: "Chat model name",
			Value: defaults.ChatModel,
		},
		&cli.Float64Flag{
			Name:  flagTemperature,
			Usage: "Sampling temperature for answers",
			Value: defaults.Temperature,
		},
	)
}

func buildFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    flagKnowledge,
			Aliases: []string{"k"},
			Usage:   "Path to the tiered knowledge JSON file",
		},
	}, reembedFlags()...)
}

func reembedFlags() []cli.Flag {
	flags := []cli.Flag{
		indexFlag(),
		&cli.IntFlag{
			Name:  flagBatchSize,
			Usage: "Number of texts embedded per request",
			Value: indexer.DefaultBatchSize,
		},
		&cli.IntFlag{
			Name:  flagWorkers,
			Usage: "Number of concurrent embedding requests (0 uses half the CPUs)",
		},
		&cli.IntFlag{
			Name:  flagMaxRetries,
			Usage: "Maximum attempts per embedding batch",
			Value: indexer.DefaultMaxRetries,
		},
		&cli.DurationFlag{
			Name:  flagRetryDelay,
			Usage: "Base delay for exponential backoff",
			Value: indexer.DefaultRetryDelay,
		},
	}
	return append(flags, embeddingFlags()...)
}

func retrievalFlags() []cli.Flag {
	return []cli.Flag{
		indexFlag(),
		&cli.IntFlag{
			Name:  flagKSearch,
			Usage: "Number of nearest neighbors fetched per query",
			Value: defaultKSearch,
		},
		&cli.IntFlag{
			Name:  flagTopN,
			Usage: "Number of candidates kept per query",
			Value: defaultTopN,
		},
		&cli.Float64Flag{
			Name:  flagKeywordBoost,
			Usage: "Score boost when a query word appears in the text",
			Value: float64(search.DefaultKeywordBoost),
		},
	}
}

func queryFlags() []cli.Flag {
	flags := append(retrievalFlags(), &cli.BoolFlag{
		Name:    flagVerbose,
		Aliases: []string{"v"},
		Usage:   "Print the full text of each candidate",
	})
	return append(flags, embeddingFlags()...)
}

func chatFlags() []cli.Flag {
	return append(retrievalFlags(), aiFlags()...)
}

func serveFlags() []cli.Flag {
	flags := append(retrievalFlags(),
		&cli.StringFlag{
			Name:  flagListen,
			Usage: "Address to listen on",
			Value: server.DefaultListenAddr,
		},
		&cli.StringFlag{
			Name:  flagAllowOrigins,
			Usage: "Comma separated CORS origins",
			Value: "*",
		},
		&cli.DurationFlag{
			Name:  flagRequestTimeout,
			Usage: "Time limit for one request (0 disables)",
			Value: 2 * time.Minute,
		},
	)
	return append(flags, aiFlags()...)
}
