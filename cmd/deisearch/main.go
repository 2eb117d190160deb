package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/deisearch/internal/config"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "deisearch",
		Usage:     "Crawl, index and search a small corner of the web",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"DEISEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the index database (overrides store.path)",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "SQL driver: sqlite3 or sqlite (overrides store.driver)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:      "crawl",
				Usage:     "Crawl breadth-first from the seed urls and index every page",
				ArgsUsage: "<seed-url> [seed-url...]",
				Action:    crawlCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Number of link levels to follow (overrides crawl.max_depth)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent fetches per level (overrides crawl.workers)",
					},
				},
			},
			{
				Name:   "pagerank",
				Usage:  "Recompute the PageRank of every indexed url",
				Action: pageRankCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "iterations",
						Usage: "Number of passes (overrides pagerank.iterations)",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Update order: in-place or synchronous (overrides pagerank.mode)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank the indexed urls for a query",
				ArgsUsage: "<query words...>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (overrides ranking.limit)",
					},
				},
			},
			{
				Name:      "train",
				Usage:     "Teach the relevance network that a result was chosen for a query",
				ArgsUsage: "<query words...>",
				Action:    trainCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "The chosen result url",
						Required: true,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print row counts of the index",
				Action: statsCommand,
			},
			{
				Name:   "reset",
				Usage:  "Delete everything in the index",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Confirm the reset",
					},
				},
			},
		},
	}
}

const (
	configKey  = "config"
	logFileKey = "log-file"
)

// setup loads the config, applies global flag overrides and installs the
// default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("db") {
		cfg.Store.Path = c.String("db")
	}
	if c.IsSet("driver") {
		cfg.Store.Driver = c.String("driver")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile, err := setupLogger(c.App.ErrWriter, cfg.Log)
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]interface{})
	}
	c.App.Metadata[configKey] = cfg
	if logFile != nil {
		c.App.Metadata[logFileKey] = logFile
	}
	return nil
}

func teardown(c *cli.Context) error {
	if f, ok := c.App.Metadata[logFileKey].(io.Closer); ok {
		delete(c.App.Metadata, logFileKey)
		return f.Close()
	}
	return nil
}

func configFrom(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
