// Package network is a small two layer associative network, persisted in the
// index store, that learns which urls users pick for a combination of query
// words.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/deidaraiorek/deisearch/internal/storage"
)

const (
	// DefaultWordStrength is the strength of an unseen word to hidden edge.
	DefaultWordStrength = -0.2

	// DefaultURLStrength is the strength of an unseen hidden to url edge.
	DefaultURLStrength = 0.0

	// MaxHiddenWords caps the size of a word combination that gets its own
	// hidden node.
	MaxHiddenWords = 3

	seedURLStrength     = 0.1
	defaultLearningRate = 0.5
)

var ErrUnknownURL = errors.New("selected url is not among the results")

type Network struct {
	store        *storage.Store
	learningRate float64
	logger       *slog.Logger
}

type Option func(*Network)

func WithLearningRate(rate float64) Option {
	return func(n *Network) {
		n.learningRate = rate
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		n.logger = logger
	}
}

func New(store *storage.Store, opts ...Option) *Network {
	n := &Network{
		store:        store,
		learningRate: defaultLearningRate,
		logger:       slog.Default().With("component", "network"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Strength returns the stored edge strength, or the layer default when the
// edge does not exist.
func (n *Network) Strength(ctx context.Context, layer storage.Layer, from, to int64) (float64, error) {
	v, ok, err := n.store.EdgeStrength(ctx, layer, from, to)
	if err != nil {
		return 0, err
	}
	if ok {
		return v, nil
	}
	if layer == storage.LayerWordHidden {
		return DefaultWordStrength, nil
	}
	return DefaultURLStrength, nil
}

// SetStrength overwrites the edge strength.
func (n *Network) SetStrength(ctx context.Context, layer storage.Layer, from, to int64, value float64) error {
	return n.store.SetEdgeStrengths(ctx, storage.Edge{Layer: layer, From: from, To: to, Strength: value})
}

// HiddenKey is the canonical key of a word combination: the distinct ids in
// ascending order joined by "_".
func HiddenKey(wordIDs []int64) string {
	ids := distinct(wordIDs)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "_")
}

// GenerateHiddenNode creates the hidden node for wordIDs on first sight and
// seeds its edges to the words and urls. Word combinations larger than
// MaxHiddenWords, or empty ones, are ignored.
func (n *Network) GenerateHiddenNode(ctx context.Context, wordIDs, urlIDs []int64) (int64, bool, error) {
	words := distinct(wordIDs)
	if len(words) == 0 || len(words) > MaxHiddenWords {
		return 0, false, nil
	}

	seeds := make([]storage.Edge, 0, len(words)+len(urlIDs))
	for _, word := range words {
		seeds = append(seeds, storage.Edge{Layer: storage.LayerWordHidden, From: word, Strength: 1.0 / float64(len(words))})
	}
	for _, url := range distinct(urlIDs) {
		seeds = append(seeds, storage.Edge{Layer: storage.LayerHiddenURL, To: url, Strength: seedURLStrength})
	}

	key := HiddenKey(words)
	id, created, err := n.store.CreateHiddenNode(ctx, key, seeds)
	if err != nil {
		return 0, false, fmt.Errorf("failed to generate hidden node %s: %w", key, err)
	}
	if created {
		n.logger.Debug("created hidden node", "id", id, "key", key, "urls", len(urlIDs))
	}
	return id, created, nil
}

// subnet is the slice of the network relevant to one query.
type subnet struct {
	wordIDs   []int64
	hiddenIDs []int64
	urlIDs    []int64

	wordHidden [][]float64
	hiddenURL  [][]float64

	hidden []float64
	output []float64
}

func (n *Network) setup(ctx context.Context, wordIDs, urlIDs []int64) (*subnet, error) {
	hiddenIDs, err := n.store.HiddenNodesFor(ctx, wordIDs, urlIDs)
	if err != nil {
		return nil, err
	}

	m := &subnet{
		wordIDs:    wordIDs,
		hiddenIDs:  hiddenIDs,
		urlIDs:     urlIDs,
		wordHidden: make([][]float64, len(wordIDs)),
		hiddenURL:  make([][]float64, len(hiddenIDs)),
		hidden:     make([]float64, len(hiddenIDs)),
		output:     make([]float64, len(urlIDs)),
	}
	if len(hiddenIDs) == 0 {
		return m, nil
	}

	inputs, err := n.store.EdgeStrengths(ctx, storage.LayerWordHidden, wordIDs, hiddenIDs)
	if err != nil {
		return nil, err
	}
	outputs, err := n.store.EdgeStrengths(ctx, storage.LayerHiddenURL, hiddenIDs, urlIDs)
	if err != nil {
		return nil, err
	}

	for i, word := range wordIDs {
		m.wordHidden[i] = make([]float64, len(hiddenIDs))
		for j, hidden := range hiddenIDs {
			m.wordHidden[i][j] = DefaultWordStrength
			if v, ok := inputs[[2]int64{word, hidden}]; ok {
				m.wordHidden[i][j] = v
			}
		}
	}
	for j, hidden := range hiddenIDs {
		m.hiddenURL[j] = make([]float64, len(urlIDs))
		for k, url := range urlIDs {
			m.hiddenURL[j][k] = DefaultURLStrength
			if v, ok := outputs[[2]int64{hidden, url}]; ok {
				m.hiddenURL[j][k] = v
			}
		}
	}
	return m, nil
}

// forward activates every word input at 1.0.
func (m *subnet) forward() {
	for j := range m.hiddenIDs {
		var sum float64
		for i := range m.wordIDs {
			sum += m.wordHidden[i][j]
		}
		m.hidden[j] = math.Tanh(sum)
	}
	for k := range m.urlIDs {
		var sum float64
		for j := range m.hiddenIDs {
			sum += m.hidden[j] * m.hiddenURL[j][k]
		}
		m.output[k] = math.Tanh(sum)
	}
}

func (m *subnet) backPropagate(targets []float64, rate float64) {
	outputDeltas := make([]float64, len(m.urlIDs))
	for k := range m.urlIDs {
		outputDeltas[k] = dtanh(m.output[k]) * (targets[k] - m.output[k])
	}

	hiddenDeltas := make([]float64, len(m.hiddenIDs))
	for j := range m.hiddenIDs {
		var errSum float64
		for k := range m.urlIDs {
			errSum += outputDeltas[k] * m.hiddenURL[j][k]
		}
		hiddenDeltas[j] = dtanh(m.hidden[j]) * errSum
	}

	for j := range m.hiddenIDs {
		for k := range m.urlIDs {
			m.hiddenURL[j][k] += rate * outputDeltas[k] * m.hidden[j]
		}
	}
	for i := range m.wordIDs {
		for j := range m.hiddenIDs {
			m.wordHidden[i][j] += rate * hiddenDeltas[j]
		}
	}
}

func (m *subnet) edges() []storage.Edge {
	edges := make([]storage.Edge, 0, len(m.wordIDs)*len(m.hiddenIDs)+len(m.hiddenIDs)*len(m.urlIDs))
	for i, word := range m.wordIDs {
		for j, hidden := range m.hiddenIDs {
			edges = append(edges, storage.Edge{Layer: storage.LayerWordHidden, From: word, To: hidden, Strength: m.wordHidden[i][j]})
		}
	}
	for j, hidden := range m.hiddenIDs {
		for k, url := range m.urlIDs {
			edges = append(edges, storage.Edge{Layer: storage.LayerHiddenURL, From: hidden, To: url, Strength: m.hiddenURL[j][k]})
		}
	}
	return edges
}

// FeedForward returns the network's output for each of urlIDs, in order.
// Outputs are in (-1, 1); urls the network knows nothing about get 0.
func (n *Network) FeedForward(ctx context.Context, wordIDs, urlIDs []int64) ([]float64, error) {
	wordIDs, urlIDs = distinct(wordIDs), slices.Clone(urlIDs)
	m, err := n.setup(ctx, wordIDs, urlIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to set up network: %w", err)
	}
	m.forward()
	return m.output, nil
}

// Train records that selected was picked from urlIDs for the query words and
// moves the network's outputs towards that choice.
func (n *Network) Train(ctx context.Context, wordIDs, urlIDs []int64, selected int64) error {
	urlIDs = distinct(urlIDs)
	selectedAt := slices.Index(urlIDs, selected)
	if selectedAt < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownURL, selected)
	}
	wordIDs = distinct(wordIDs)

	if _, _, err := n.GenerateHiddenNode(ctx, wordIDs, urlIDs); err != nil {
		return err
	}

	m, err := n.setup(ctx, wordIDs, urlIDs)
	if err != nil {
		return fmt.Errorf("failed to set up network: %w", err)
	}
	if len(m.hiddenIDs) == 0 {
		return nil
	}

	m.forward()
	targets := make([]float64, len(urlIDs))
	targets[selectedAt] = 1.0
	m.backPropagate(targets, n.learningRate)

	if err := n.store.SetEdgeStrengths(ctx, m.edges()...); err != nil {
		return fmt.Errorf("failed to store trained strengths: %w", err)
	}
	n.logger.Debug("trained network", "words", len(wordIDs), "hidden", len(m.hiddenIDs), "urls", len(urlIDs))
	return nil
}

func dtanh(y float64) float64 {
	return 1.0 - y*y
}

// distinct returns the unique ids in ascending order.
func distinct(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
