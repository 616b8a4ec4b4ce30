package main

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/answer"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/search"
	"github.com/urfave/cli/v2"
)

// settings mirrors the optional TOML config file. Flags given on the command
// line take precedence over the file; the file takes precedence over flag defaults.
type settings struct {
	AI        aiSettings        `toml:"ai"`
	Index     indexSettings     `toml:"index"`
	Retrieval retrievalSettings `toml:"retrieval"`
	Server    serverSettings    `toml:"server"`
}

type aiSettings struct {
	EmbeddingHost  string   `toml:"embedding_host"`
	EmbeddingModel string   `toml:"embedding_model"`
	ChatHost       string   `toml:"chat_host"`
	ChatModel      string   `toml:"chat_model"`
	APIToken       string   `toml:"api_token"`
	Temperature    *float64 `toml:"temperature"`
}

type indexSettings struct {
	Path       string        `toml:"path"`
	Knowledge  string        `toml:"knowledge"`
	BatchSize  int           `toml:"batch_size"`
	Workers    int           `toml:"workers"`
	MaxRetries int           `toml:"max_retries"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

type retrievalSettings struct {
	KSearch      int                `toml:"k_search"`
	TopN         int                `toml:"top_n"`
	KeywordBoost *float64           `toml:"keyword_boost"`
	TierWeights  map[string]float64 `toml:"tier_weights"`
	Fallback     string             `toml:"fallback"`
	SystemPrompt string             `toml:"system_prompt"`
}

type serverSettings struct {
	Listen         string        `toml:"listen"`
	AllowOrigins   string        `toml:"allow_origins"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// loadSettings decodes the config file at path. An empty path yields empty settings.
// Keys the file sets but settings does not know are an error.
func loadSettings(path string) (*settings, error) {
	s := &settings{}
	if path == "" {
		return s, nil
	}

	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return s, nil
}

func settingsFrom(c *cli.Context) (*settings, error) {
	return loadSettings(c.String(flagConfig))
}

func stringSetting(c *cli.Context, name, fromFile string) string {
	if !c.IsSet(name) && fromFile != "" {
		return fromFile
	}
	return c.String(name)
}

func intSetting(c *cli.Context, name string, fromFile int) int {
	if !c.IsSet(name) && fromFile != 0 {
		return fromFile
	}
	return c.Int(name)
}

func floatSetting(c *cli.Context, name string, fromFile *float64) float64 {
	if !c.IsSet(name) && fromFile != nil {
		return *fromFile
	}
	return c.Float64(name)
}

func durationSetting(c *cli.Context, name string, fromFile time.Duration) time.Duration {
	if !c.IsSet(name) && fromFile != 0 {
		return fromFile
	}
	return c.Duration(name)
}

// hasFlag reports whether the running command defines the flag name.
func hasFlag(c *cli.Context, name string) bool {
	if c.Command == nil {
		return false
	}
	for _, f := range c.Command.Flags {
		if slices.Contains(f.Names(), name) {
			return true
		}
	}
	return false
}

// aiConfigFrom builds and validates the AI configuration.
// Settings that neither a flag nor the file provides keep their defaults.
func aiConfigFrom(c *cli.Context, s *settings) (*ai.Config, error) {
	host := c.String(flagHost)
	embeddingHost := stringSetting(c, flagEmbeddingHost, s.AI.EmbeddingHost)
	chatHost := stringSetting(c, flagChatHost, s.AI.ChatHost)
	if c.IsSet(flagHost) {
		if !c.IsSet(flagEmbeddingHost) {
			embeddingHost = host
		}
		if !c.IsSet(flagChatHost) {
			chatHost = host
		}
	}

	var opts []ai.ConfigOption
	set := func(value string, option func(string) ai.ConfigOption) {
		if value != "" {
			opts = append(opts, option(value))
		}
	}
	set(embeddingHost, ai.WithEmbeddingHost)
	set(chatHost, ai.WithChatHost)
	set(stringSetting(c, flagEmbeddingModel, s.AI.EmbeddingModel), ai.WithEmbeddingModel)
	set(stringSetting(c, flagChatModel, s.AI.ChatModel), ai.WithChatModel)
	set(stringSetting(c, flagAPIToken, s.AI.APIToken), ai.WithAPIToken)
	if hasFlag(c, flagTemperature) || s.AI.Temperature != nil {
		opts = append(opts, ai.WithTemperature(floatSetting(c, flagTemperature, s.AI.Temperature)))
	}

	cfg := ai.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

// retrieverOptionsFrom maps retrieval flags and settings to retriever options.
func retrieverOptionsFrom(c *cli.Context, s *settings) ([]search.Option, error) {
	opts := []search.Option{
		search.WithKSearch(intSetting(c, flagKSearch, s.Retrieval.KSearch)),
		search.WithTopN(intSetting(c, flagTopN, s.Retrieval.TopN)),
		search.WithKeywordBoost(float32(floatSetting(c, flagKeywordBoost, s.Retrieval.KeywordBoost))),
	}

	if len(s.Retrieval.TierWeights) > 0 {
		weights := make(map[core.Tier]float32, len(s.Retrieval.TierWeights))
		for name, w := range s.Retrieval.TierWeights {
			tier, err := core.ParseTier(name)
			if err != nil {
				return nil, fmt.Errorf("retrieval.tier_weights: %w", err)
			}
			weights[tier] = float32(w)
		}
		opts = append(opts, search.WithTierWeights(weights))
	}
	return opts, nil
}

// answerOptionsFrom maps answer settings to answerer options.
func answerOptionsFrom(s *settings) []answer.Option {
	var opts []answer.Option
	if s.Retrieval.Fallback != "" {
		opts = append(opts, answer.WithFallback(s.Retrieval.Fallback))
	}
	if s.Retrieval.SystemPrompt != "" {
		opts = append(opts, answer.WithSystemPrompt(s.Retrieval.SystemPrompt))
	}
	return opts
}

func requireSetting(value, flag string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(flag + " is required")
	}
	return nil
}
