// Package ranking answers queries against the index by fusing several
// independent relevance signals.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/deidaraiorek/deisearch/internal/storage"
	"github.com/deidaraiorek/deisearch/internal/tokenizer"
)

const DefaultLimit = 10

// Weights scales each signal before the signals are summed. A zero weight
// disables the signal.
type Weights struct {
	Frequency float64
	Location  float64
	Distance  float64
	Inbound   float64
	PageRank  float64
	LinkText  float64
	Network   float64
}

func DefaultWeights() Weights {
	return Weights{
		Frequency: 1.0,
		Location:  1.0,
		Distance:  1.0,
		Inbound:   0.5,
		PageRank:  1.0,
		LinkText:  1.0,
	}
}

// NetworkScorer returns one output per url, in urlIDs order.
type NetworkScorer interface {
	FeedForward(ctx context.Context, wordIDs, urlIDs []int64) ([]float64, error)
}

type Result struct {
	Score float64
	URLID int64
	URL   string
}

type Searcher struct {
	store   *storage.Store
	tok     *tokenizer.Tokenizer
	weights Weights
	limit   int
	network NetworkScorer
	logger  *slog.Logger
}

type Option func(*Searcher)

func WithWeights(w Weights) Option {
	return func(s *Searcher) {
		s.weights = w
	}
}

func WithLimit(limit int) Option {
	return func(s *Searcher) {
		s.limit = limit
	}
}

// WithNetwork enables the network signal. It only contributes when
// Weights.Network is non-zero.
func WithNetwork(n NetworkScorer) Option {
	return func(s *Searcher) {
		s.network = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// New returns a Searcher. tok must be configured the way the index was built.
func New(store *storage.Store, tok *tokenizer.Tokenizer, opts ...Option) *Searcher {
	s := &Searcher{
		store:   store,
		tok:     tok,
		weights: DefaultWeights(),
		limit:   DefaultLimit,
		logger:  slog.Default().With("component", "ranking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WordIDs resolves the query terms against the vocabulary in query order.
// Stopwords and unknown terms are dropped.
func (s *Searcher) WordIDs(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	for _, term := range s.tok.Split(query) {
		word := s.tok.Normalize(term)
		if word == "" {
			continue
		}
		id, err := s.store.WordID(ctx, word)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("dropping unknown query term", "term", term)
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MatchRows returns every combination of locations at which all known query
// words co-occur, together with the resolved word ids.
func (s *Searcher) MatchRows(ctx context.Context, query string) ([]storage.MatchRow, []int64, error) {
	wordIDs, err := s.WordIDs(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.store.MatchRows(ctx, wordIDs)
	if err != nil {
		return nil, nil, err
	}
	return rows, wordIDs, nil
}

// ScoredList returns the weighted sum of every enabled signal per url.
func (s *Searcher) ScoredList(ctx context.Context, rows []storage.MatchRow, wordIDs []int64) (map[int64]float64, error) {
	totals := make(map[int64]float64)
	var urlIDs []int64
	for _, row := range rows {
		if _, ok := totals[row.URLID]; !ok {
			totals[row.URLID] = 0
			urlIDs = append(urlIDs, row.URLID)
		}
	}
	if len(urlIDs) == 0 {
		return totals, nil
	}

	type signal struct {
		name   string
		weight float64
		scores func() (map[int64]float64, error)
	}
	signals := []signal{
		{"frequency", s.weights.Frequency, func() (map[int64]float64, error) { return FrequencyScores(rows), nil }},
		{"location", s.weights.Location, func() (map[int64]float64, error) { return LocationScores(rows), nil }},
		{"distance", s.weights.Distance, func() (map[int64]float64, error) { return DistanceScores(rows), nil }},
		{"inbound", s.weights.Inbound, func() (map[int64]float64, error) { return s.inboundScores(ctx, urlIDs) }},
		{"pagerank", s.weights.PageRank, func() (map[int64]float64, error) { return s.pageRankScores(ctx, urlIDs) }},
		{"link_text", s.weights.LinkText, func() (map[int64]float64, error) { return s.linkTextScores(ctx, urlIDs, wordIDs) }},
	}
	if s.network != nil {
		signals = append(signals, signal{"network", s.weights.Network, func() (map[int64]float64, error) {
			return s.networkScores(ctx, urlIDs, wordIDs)
		}})
	}

	for _, sig := range signals {
		if sig.weight == 0 {
			continue
		}
		scores, err := sig.scores()
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s signal: %w", sig.name, err)
		}
		for id := range totals {
			totals[id] += sig.weight * scores[id]
		}
	}
	return totals, nil
}

// Rank orders scores by descending score, then by descending url id.
func Rank(scores map[int64]float64) []Result {
	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{Score: score, URLID: id})
	}
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.URLID, a.URLID)
	})
	return results
}

// Search returns the best matching urls for query, at most the configured
// limit.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	rows, wordIDs, err := s.MatchRows(ctx, query)
	if err != nil {
		return nil, err
	}
	addresses, err := s.resolve(ctx, rows)
	if err != nil {
		return nil, err
	}
	scores, err := s.ScoredList(ctx, rows, wordIDs)
	if err != nil {
		return nil, err
	}

	results := Rank(scores)
	if s.limit > 0 && len(results) > s.limit {
		results = results[:s.limit]
	}
	for i := range results {
		results[i].URL = addresses[results[i].URLID]
	}

	s.logger.Debug("search", "query", query, "words", len(wordIDs), "matches", len(scores))
	return results, nil
}

// resolve looks up the address of every matched url. A matched id without a
// urllist row means the index is corrupt.
func (s *Searcher) resolve(ctx context.Context, rows []storage.MatchRow) (map[int64]string, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.URLID)
	}
	addresses, err := s.store.URLAddresses(ctx, ids)
	if err != nil {
		return nil, err
	}

	slices.Sort(ids)
	for _, id := range ids {
		if _, ok := addresses[id]; !ok {
			return nil, &storage.IntegrityError{Table: "wordlocation", Column: "urlid", Ref: id}
		}
	}
	return addresses, nil
}
