// Package pagerank scores every url in the index by the recursive weight of
// the links pointing at it.
package pagerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/deidaraiorek/deisearch/internal/storage"
)

const (
	// MinScore is the score of a page nothing links to.
	MinScore = 0.15
	Damping  = 0.85
)

type Mode string

const (
	// InPlace lets later urls in a pass read scores already updated earlier
	// in the same pass. Results depend on url id order.
	InPlace Mode = "in-place"

	// Synchronous computes each pass only from the previous pass.
	Synchronous Mode = "synchronous"
)

var ErrNegativeIterations = errors.New("iterations must not be negative")

type Engine struct {
	store  *storage.Store
	mode   Mode
	logger *slog.Logger
}

type Option func(*Engine)

func WithMode(mode Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(store *storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		mode:   InPlace,
		logger: slog.Default().With("component", "pagerank"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// graph is the link table reshaped for repeated passes.
type graph struct {
	ids       []int64
	parents   map[int64][]int64
	outDegree map[int64]int
}

func (e *Engine) loadGraph(ctx context.Context) (*graph, error) {
	ids, err := e.store.URLIDs(ctx)
	if err != nil {
		return nil, err
	}
	links, err := e.store.Links(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	g := &graph{
		ids:       ids,
		parents:   make(map[int64][]int64),
		outDegree: make(map[int64]int),
	}
	seen := make(map[[2]int64]bool, len(links))
	for _, link := range links {
		if !known[link.From] {
			return nil, &storage.IntegrityError{Table: "link", Column: "fromid", Ref: link.From}
		}
		if !known[link.To] {
			return nil, &storage.IntegrityError{Table: "link", Column: "toid", Ref: link.To}
		}
		g.outDegree[link.From]++

		edge := [2]int64{link.From, link.To}
		if !seen[edge] {
			seen[edge] = true
			g.parents[link.To] = append(g.parents[link.To], link.From)
		}
	}
	for _, parents := range g.parents {
		slices.Sort(parents)
	}
	return g, nil
}

// Compute rebuilds the score table at 1.0 and runs the given number of
// passes, persisting the scores after each one.
func (e *Engine) Compute(ctx context.Context, iterations int) (map[int64]float64, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeIterations, iterations)
	}

	g, err := e.loadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load link graph: %w", err)
	}
	if err := e.store.ResetPageRank(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset pagerank: %w", err)
	}

	scores := make(map[int64]float64, len(g.ids))
	for _, id := range g.ids {
		scores[id] = 1.0
	}

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logger.Debug("pagerank pass", "iteration", i+1, "urls", len(g.ids))

		if e.mode == Synchronous {
			scores = g.pass(scores, make(map[int64]float64, len(scores)))
		} else {
			g.pass(scores, scores)
		}

		if err := e.store.WritePageRanks(ctx, scores); err != nil {
			return nil, fmt.Errorf("failed to write pagerank pass %d: %w", i+1, err)
		}
	}

	e.logger.Info("pagerank computed", "urls", len(g.ids), "iterations", iterations, "mode", e.mode)
	return scores, nil
}

// pass writes one round of scores computed from prev into next. prev and next
// may be the same map.
func (g *graph) pass(prev, next map[int64]float64) map[int64]float64 {
	for _, id := range g.ids {
		var sum float64
		for _, parent := range g.parents[id] {
			sum += prev[parent] / float64(g.outDegree[parent])
		}
		next[id] = MinScore + Damping*sum
	}
	return next
}
