package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/deisearch/internal/config"
	"github.com/deidaraiorek/deisearch/internal/crawler"
	"github.com/deidaraiorek/deisearch/internal/fetcher"
	"github.com/deidaraiorek/deisearch/internal/network"
	"github.com/deidaraiorek/deisearch/internal/pagerank"
	"github.com/deidaraiorek/deisearch/internal/parser"
	"github.com/deidaraiorek/deisearch/internal/ranking"
	"github.com/deidaraiorek/deisearch/internal/storage"
)

func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg.Store.Path, storage.WithDriver(cfg.Store.Driver))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return store, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func crawlCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	seeds := c.Args().Slice()
	if len(seeds) == 0 {
		return fmt.Errorf("at least one seed url is required")
	}

	depth := cfg.Crawl.MaxDepth
	if c.IsSet("depth") {
		depth = c.Int("depth")
	}
	workers := cfg.Crawl.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	if depth <= 0 || workers <= 0 {
		return fmt.Errorf("depth and workers must be greater than 0")
	}

	ctx, stop := signalContext(c)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	f := fetcher.New(fetcher.Options{
		UserAgent:     cfg.Crawl.UserAgent,
		Timeout:       cfg.Crawl.Timeout,
		MaxBodyBytes:  cfg.Crawl.MaxBodyBytes,
		RespectRobots: cfg.Crawl.RespectRobots,
	})
	cr := crawler.New(store, f, cfg.Index.Tokenizer(), crawler.Config{
		Workers:   workers,
		RateLimit: cfg.Crawl.RateLimit,
	})

	stats, err := cr.Crawl(ctx, seeds, depth)
	if stats != nil {
		fmt.Fprintf(c.App.Writer, "levels: %d, indexed: %d, skipped: %d, failed: %d, links: %d\n",
			stats.Levels, stats.Indexed, stats.Skipped, stats.Failed, stats.Links)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	return err
}

func pageRankCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}

	iterations := cfg.PageRank.Iterations
	if c.IsSet("iterations") {
		iterations = c.Int("iterations")
	}
	mode := cfg.PageRank.Mode
	if c.IsSet("mode") {
		mode = c.String("mode")
	}
	if mode != config.PageRankInPlace && mode != config.PageRankSynchronous {
		return fmt.Errorf("invalid mode %q: must be %s or %s", mode, config.PageRankInPlace, config.PageRankSynchronous)
	}

	ctx, stop := signalContext(c)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	scores, err := pagerank.New(store, pagerank.WithMode(pagerank.Mode(mode))).Compute(ctx, iterations)
	if err != nil {
		return fmt.Errorf("pagerank failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "scored %d urls in %d iterations\n", len(scores), iterations)
	return nil
}

func newSearcher(store *storage.Store, cfg *config.Config, limit int) *ranking.Searcher {
	w := cfg.Ranking.Weights
	opts := []ranking.Option{
		ranking.WithLimit(limit),
		ranking.WithWeights(ranking.Weights{
			Frequency: w.Frequency,
			Location:  w.Location,
			Distance:  w.Distance,
			Inbound:   w.Inbound,
			PageRank:  w.PageRank,
			LinkText:  w.LinkText,
			Network:   w.Network,
		}),
	}
	if w.Network > 0 {
		opts = append(opts, ranking.WithNetwork(network.New(store)))
	}
	return ranking.New(store, cfg.Index.Tokenizer(), opts...)
}

func searchCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}
	limit := cfg.Ranking.Limit
	if c.IsSet("limit") {
		limit = c.Int("limit")
	}

	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := newSearcher(store, cfg, limit).Search(c.Context, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "no results")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(c.App.Writer, "%f\t%s\n", r.Score, r.URL)
	}
	return nil
}

// trainCommand records that --url was picked from the results of the query.
func trainCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}
	chosen, err := parser.NormalizeURL(c.String("url"))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	searcher := newSearcher(store, cfg, cfg.Ranking.Limit)
	wordIDs, err := searcher.WordIDs(c.Context, query)
	if err != nil {
		return err
	}
	if len(wordIDs) == 0 {
		return fmt.Errorf("no query word is in the index")
	}
	results, err := searcher.Search(c.Context, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var selected int64
	urlIDs := make([]int64, len(results))
	for i, r := range results {
		urlIDs[i] = r.URLID
		if r.URL == chosen {
			selected = r.URLID
		}
	}
	if selected == 0 {
		return fmt.Errorf("%w: %s", network.ErrUnknownURL, chosen)
	}

	if err := network.New(store).Train(c.Context, wordIDs, urlIDs, selected); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "trained %q -> %s\n", query, chosen)
	return nil
}

func statsCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "urls\t%d\n", stats.URLs)
	fmt.Fprintf(w, "words\t%d\n", stats.Words)
	fmt.Fprintf(w, "word locations\t%d\n", stats.WordLocations)
	fmt.Fprintf(w, "links\t%d\n", stats.Links)
	fmt.Fprintf(w, "link words\t%d\n", stats.LinkWords)
	fmt.Fprintf(w, "pagerank scores\t%d\n", stats.PageRanks)
	fmt.Fprintf(w, "hidden nodes\t%d\n", stats.HiddenNodes)
	fmt.Fprintf(w, "word-hidden edges\t%d\n", stats.WordHidden)
	fmt.Fprintf(w, "hidden-url edges\t%d\n", stats.HiddenURL)
	return w.Flush()
}

func resetCommand(c *cli.Context) error {
	if !c.Bool("force") {
		return fmt.Errorf("reset deletes the whole index; pass --force to confirm")
	}
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "reset %s\n", cfg.Store.Path)
	return nil
}
