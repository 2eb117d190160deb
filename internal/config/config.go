// Package config loads the YAML configuration shared by every command.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deidaraiorek/deisearch/internal/tokenizer"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	PageRankInPlace     = "in-place"
	PageRankSynchronous = "synchronous"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Index    IndexConfig    `yaml:"index"`
	PageRank PageRankConfig `yaml:"pagerank"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Log      LogConfig      `yaml:"log"`
}

type StoreConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

type CrawlConfig struct {
	Workers       int           `yaml:"workers"`
	MaxDepth      int           `yaml:"max_depth"`
	UserAgent     string        `yaml:"user_agent"`
	RateLimit     time.Duration `yaml:"rate_limit"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots"`
}

type IndexConfig struct {
	StopWords []string `yaml:"stopwords"`
	Stem      bool     `yaml:"stem"`
}

type PageRankConfig struct {
	Iterations int    `yaml:"iterations"`
	Mode       string `yaml:"mode"`
}

type RankingConfig struct {
	Limit   int     `yaml:"limit"`
	Weights Weights `yaml:"weights"`
}

type Weights struct {
	Frequency float64 `yaml:"frequency"`
	Location  float64 `yaml:"location"`
	Distance  float64 `yaml:"distance"`
	Inbound   float64 `yaml:"inbound"`
	PageRank  float64 `yaml:"pagerank"`
	LinkText  float64 `yaml:"link_text"`
	Network   float64 `yaml:"network"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:   "searchindex.db",
			Driver: "sqlite3",
		},
		Crawl: CrawlConfig{
			Workers:       8,
			MaxDepth:      2,
			UserAgent:     "DeiSearchBot/1.0",
			Timeout:       30 * time.Second,
			MaxBodyBytes:  10 * 1024 * 1024,
			RespectRobots: true,
		},
		Index: IndexConfig{
			StopWords: append([]string(nil), tokenizer.DefaultStopWords...),
		},
		PageRank: PageRankConfig{
			Iterations: 20,
			Mode:       PageRankInPlace,
		},
		Ranking: RankingConfig{
			Limit: 10,
			Weights: Weights{
				Frequency: 1.0,
				Location:  1.0,
				Distance:  1.0,
				Inbound:   0.5,
				PageRank:  1.0,
				LinkText:  1.0,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load overlays the YAML file at path on Default. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Store.Path == "":
		return fmt.Errorf("%w: store.path is empty", ErrInvalid)
	case c.Store.Driver != "sqlite3" && c.Store.Driver != "sqlite":
		return fmt.Errorf("%w: store.driver %q", ErrInvalid, c.Store.Driver)
	case c.Crawl.Workers <= 0:
		return fmt.Errorf("%w: crawl.workers must be positive", ErrInvalid)
	case c.Crawl.MaxDepth <= 0:
		return fmt.Errorf("%w: crawl.max_depth must be positive", ErrInvalid)
	case c.Crawl.RateLimit < 0:
		return fmt.Errorf("%w: crawl.rate_limit is negative", ErrInvalid)
	case c.PageRank.Iterations <= 0:
		return fmt.Errorf("%w: pagerank.iterations must be positive", ErrInvalid)
	case c.PageRank.Mode != PageRankInPlace && c.PageRank.Mode != PageRankSynchronous:
		return fmt.Errorf("%w: pagerank.mode %q", ErrInvalid, c.PageRank.Mode)
	case c.Ranking.Limit <= 0:
		return fmt.Errorf("%w: ranking.limit must be positive", ErrInvalid)
	}

	w := c.Ranking.Weights
	for name, v := range map[string]float64{
		"frequency": w.Frequency,
		"location":  w.Location,
		"distance":  w.Distance,
		"inbound":   w.Inbound,
		"pagerank":  w.PageRank,
		"link_text": w.LinkText,
		"network":   w.Network,
	} {
		if v < 0 {
			return fmt.Errorf("%w: ranking.weights.%s is negative", ErrInvalid, name)
		}
	}
	return nil
}

// Tokenizer builds the tokenizer used for both indexing and querying.
func (c IndexConfig) Tokenizer() *tokenizer.Tokenizer {
	var opts []tokenizer.Option
	if c.Stem {
		opts = append(opts, tokenizer.WithStemming())
	}
	return tokenizer.New(c.StopWords, opts...)
}
