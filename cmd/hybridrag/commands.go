package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/hybridrag"
	"github.com/poiesic/hybridrag/answer"
	"github.com/poiesic/hybridrag/indexer"
	"github.com/poiesic/hybridrag/search"
	"github.com/poiesic/hybridrag/server"
	"github.com/urfave/cli/v2"
)

func buildCommand(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}

	knowledgePath := stringSetting(c, flagKnowledge, s.Index.Knowledge)
	if err := requireSetting(knowledgePath, flagKnowledge); err != nil {
		return err
	}
	indexPath := stringSetting(c, flagIndex, s.Index.Path)

	aiConfig, err := aiConfigFrom(c, s)
	if err != nil {
		return err
	}

	builderOpts, err := builderOptionsFrom(c, s)
	if err != nil {
		return err
	}

	provider, err := newProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	errw := c.App.ErrWriter
	fmt.Fprintf(errw, "Knowledge: %s\n", knowledgePath)
	fmt.Fprintf(errw, "Index: %s\n", indexPath)
	fmt.Fprintf(errw, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(errw, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintln(errw)

	report, err := hybridrag.BuildIndex(c.Context, knowledgePath, indexPath,
		hybridrag.WithAIConfig(aiConfig),
		hybridrag.WithProvider(provider),
		hybridrag.WithBuilderOptions(builderOpts...))
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Indexed %d units (dimension %d) in %s\n",
		report.Count, report.Dimension, report.Elapsed.Round(time.Millisecond))
	if report.ZeroVectors > 0 {
		fmt.Fprintf(errw, "Warning: %d units had zero-norm embeddings\n", report.ZeroVectors)
	}
	return nil
}

// builderOptionsFrom maps the embedding batch flags and settings to builder options.
func builderOptionsFrom(c *cli.Context, s *settings) ([]indexer.Option, error) {
	batchSize := intSetting(c, flagBatchSize, s.Index.BatchSize)
	maxRetries := intSetting(c, flagMaxRetries, s.Index.MaxRetries)
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch-size must be greater than 0")
	}
	if maxRetries <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}

	opts := []indexer.Option{
		indexer.WithBatchSize(batchSize),
		indexer.WithMaxRetries(maxRetries),
		indexer.WithRetryDelay(durationSetting(c, flagRetryDelay, s.Index.RetryDelay)),
		indexer.WithProgress(c.App.ErrWriter),
	}
	if workers := intSetting(c, flagWorkers, s.Index.Workers); workers > 0 {
		opts = append(opts, indexer.WithPoolSize(workers))
	}
	return opts, nil
}

func reembedCommand(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	indexPath := stringSetting(c, flagIndex, s.Index.Path)

	aiConfig, err := aiConfigFrom(c, s)
	if err != nil {
		return err
	}
	builderOpts, err := builderOptionsFrom(c, s)
	if err != nil {
		return err
	}

	provider, err := newProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	errw := c.App.ErrWriter
	fmt.Fprintf(errw, "Index: %s\n", indexPath)
	fmt.Fprintf(errw, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(errw, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintln(errw)

	report, err := hybridrag.Reembed(c.Context, indexPath,
		hybridrag.WithAIConfig(aiConfig),
		hybridrag.WithProvider(provider),
		hybridrag.WithBuilderOptions(builderOpts...))
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Reembedded %d units (dimension %d) in %s\n",
		report.Count, report.Dimension, report.Elapsed.Round(time.Millisecond))
	return nil
}

// openEngine loads the index named by the flags and settings.
func openEngine(c *cli.Context, s *settings) (*hybridrag.Engine, error) {
	aiConfig, err := aiConfigFrom(c, s)
	if err != nil {
		return nil, err
	}
	retrieverOpts, err := retrieverOptionsFrom(c, s)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	return hybridrag.Open(c.Context, stringSetting(c, flagIndex, s.Index.Path),
		hybridrag.WithAIConfig(aiConfig),
		hybridrag.WithProvider(provider),
		hybridrag.WithRetrieverOptions(retrieverOpts...),
		hybridrag.WithAnswerOptions(answerOptionsFrom(s)...))
}

func queryCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c, s)
	if err != nil {
		return err
	}
	defer engine.Close()

	candidates, err := engine.Retrieve(c.Context, query)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Fprintln(c.App.Writer, renderCandidates(query, candidates, c.Bool(flagVerbose)))
	return nil
}

func chatCommand(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c, s)
	if err != nil {
		return err
	}
	defer engine.Close()

	return runChat(c.Context, engine, c.App.Reader, c.App.Writer)
}

// runChat reads one question per line from in until an empty line or EOF.
func runChat(ctx context.Context, engine *hybridrag.Engine, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, titleStyle.Render("Hybrid RAG chat"))
	fmt.Fprintln(out, "Type your question. Press Enter on an empty line to exit.")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			fmt.Fprintln(out, "Exiting chat.")
			return nil
		}

		res := engine.Answer(ctx, question)
		switch {
		case res.Err == nil, errors.Is(res.Err, answer.ErrNoInformation):
			fmt.Fprintf(out, "\n%s%s\n\n", botPrompt, res.Text)
		case search.IsFatal(res.Err):
			return res.Err
		default:
			fmt.Fprintf(out, "\n%s\n\n", errorStyle.Render("[error] "+res.Err.Error()))
		}
	}
}

func serveCommand(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c, s)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.NewServer(server.Config{
		ListenAddr:     stringSetting(c, flagListen, s.Server.Listen),
		AllowOrigins:   stringSetting(c, flagAllowOrigins, s.Server.AllowOrigins),
		RequestTimeout: durationSetting(c, flagRequestTimeout, s.Server.RequestTimeout),
	}, engine.Retriever(), engine.Answerer(), nil)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		fmt.Fprintln(c.App.ErrWriter, "shutting down")
		return srv.Shutdown()
	}
}
