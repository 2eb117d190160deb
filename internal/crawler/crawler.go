// Package crawler walks the link graph breadth-first from a set of seed
// pages and writes every fetched page into the index store.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/deidaraiorek/deisearch/internal/frontier"
	"github.com/deidaraiorek/deisearch/internal/parser"
	"github.com/deidaraiorek/deisearch/internal/storage"
	"github.com/deidaraiorek/deisearch/internal/tokenizer"
)

// Fetcher returns the body of an html page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Config struct {
	Workers   int
	RateLimit time.Duration
}

// Stats summarizes one crawl.
type Stats struct {
	Levels  int
	Indexed int
	Skipped int
	Failed  int
	Links   int
}

type Crawler struct {
	store   *storage.Store
	fetcher Fetcher
	parser  *parser.Parser
	tok     *tokenizer.Tokenizer
	config  Config
	logger  *slog.Logger

	mu    sync.Mutex
	stats Stats
}

type Option func(*Crawler)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

func New(store *storage.Store, fetcher Fetcher, tok *tokenizer.Tokenizer, config Config, opts ...Option) *Crawler {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	c := &Crawler{
		store:   store,
		fetcher: fetcher,
		parser:  parser.New(),
		tok:     tok,
		config:  config,
		logger:  slog.Default().With("component", "crawler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl indexes the seeds and everything reachable from them within maxDepth
// levels. Pages already in the index are neither refetched nor expanded.
// Fetch and parse failures are logged and counted; store failures abort the
// crawl.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, maxDepth int) (*Stats, error) {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return c.snapshot(), err
	}

	front := frontier.New(c.config.RateLimit)
	for _, seed := range seeds {
		address, err := parser.NormalizeURL(seed)
		if err != nil {
			c.logger.Warn("skipping seed", "url", seed, "error", err)
			continue
		}
		if _, err := c.store.GetOrCreateID(ctx, storage.URLList, address); err != nil {
			return c.snapshot(), fmt.Errorf("failed to register seed %s: %w", address, err)
		}
		front.Add(address)
	}

	for depth := 0; depth < maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return c.snapshot(), err
		}

		level := front.Advance()
		if len(level) == 0 {
			break
		}
		c.logger.Info("crawling level", "depth", depth, "pages", len(level))

		if err := c.crawlLevel(ctx, front, level); err != nil {
			return c.snapshot(), err
		}
		c.logger.Info("level completed", "depth", depth, "queued", front.Size())
		c.mu.Lock()
		c.stats.Levels++
		c.mu.Unlock()
	}

	stats := c.snapshot()
	c.logger.Info("crawl completed",
		"levels", stats.Levels,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"links", stats.Links)
	return stats, nil
}

func (c *Crawler) crawlLevel(ctx context.Context, front *frontier.Frontier, level []string) error {
	pool, err := ants.NewPool(c.config.Workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	levelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, address := range level {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := c.crawlPage(levelCtx, front, address); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				errMu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to schedule %s: %w", address, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

func (c *Crawler) crawlPage(ctx context.Context, front *frontier.Frontier, address string) error {
	if !front.Claim(address) {
		return nil
	}

	indexed, err := c.store.IsIndexed(ctx, address)
	if err != nil {
		return err
	}
	if indexed {
		c.count(func(s *Stats) { s.Skipped++ })
		return nil
	}

	if wait := front.Reserve(address); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	body, err := c.fetcher.Fetch(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("could not open page", "url", address, "error", err)
		c.count(func(s *Stats) { s.Failed++ })
		return nil
	}

	doc, err := c.parser.Parse(bytes.NewReader(body), address)
	if err != nil {
		c.logger.Warn("could not parse page", "url", address, "error", err)
		c.count(func(s *Stats) { s.Failed++ })
		return nil
	}

	batch := c.buildBatch(address, doc)
	result, err := c.store.IndexPage(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", address, err)
	}
	if result.AlreadyIndexed {
		c.count(func(s *Stats) { s.Skipped++ })
		return nil
	}

	c.logger.Debug("indexed page", "url", address, "words", result.Locations, "links", result.Links)
	c.count(func(s *Stats) {
		if result.Indexed {
			s.Indexed++
		}
		s.Links += result.Links
	})

	targets := make([]string, 0, len(batch.Links))
	for _, link := range batch.Links {
		if link.Target != address {
			targets = append(targets, link.Target)
		}
	}
	if added := front.AddAll(targets); added > 0 {
		c.logger.Debug("queued links", "url", address, "added", added)
	}
	return nil
}

func (c *Crawler) buildBatch(address string, doc *parser.Document) storage.PageBatch {
	tokens := c.tok.Tokenize(doc.Text())
	batch := storage.PageBatch{
		URL:   address,
		Words: make([]storage.Occurrence, len(tokens)),
	}
	for i, tok := range tokens {
		batch.Words[i] = storage.Occurrence{Word: tok.Word, Position: tok.Position}
	}

	for _, anchor := range doc.Anchors {
		target, err := parser.Resolve(doc.Base, anchor.Href)
		if err != nil {
			c.logger.Debug("dropping link", "url", address, "href", anchor.Href, "error", err)
			continue
		}
		batch.Links = append(batch.Links, storage.Anchor{
			Target: target,
			Words:  c.tok.Words(anchor.Text),
		})
	}
	return batch
}

func (c *Crawler) count(update func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.stats)
}

func (c *Crawler) snapshot() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	return &stats
}
