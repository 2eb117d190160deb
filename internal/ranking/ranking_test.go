package ranking_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/deisearch/internal/network"
	"github.com/deidaraiorek/deisearch/internal/pagerank"
	"github.com/deidaraiorek/deisearch/internal/ranking"
	"github.com/deidaraiorek/deisearch/internal/storage"
	"github.com/deidaraiorek/deisearch/internal/tokenizer"
)

const (
	urlA = "http://a.test/"
	urlB = "http://b.test/"
	urlC = "http://c.test/"
)

type page struct {
	url   string
	text  string
	links []storage.Anchor
}

// fixture indexes three pages: a is about python and linked from both b and
// c, b mentions python once, c not at all.
func fixture(t *testing.T, path string) (*storage.Store, *tokenizer.Tokenizer) {
	t.Helper()
	ctx := context.Background()
	tok := tokenizer.New(tokenizer.DefaultStopWords)

	store, err := storage.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pages := []page{
		{url: urlA, text: "python tutorial python"},
		{url: urlB, text: "learn python quickly", links: []storage.Anchor{{Target: urlA, Words: tok.Words("python docs")}}},
		{url: urlC, text: "nothing here", links: []storage.Anchor{{Target: urlA, Words: tok.Words("elsewhere")}}},
	}
	for _, p := range pages {
		batch := storage.PageBatch{URL: p.url, Links: p.links}
		for _, token := range tok.Tokenize(p.text) {
			batch.Words = append(batch.Words, storage.Occurrence{Word: token.Word, Position: token.Position})
		}
		_, err := store.IndexPage(ctx, batch)
		require.NoError(t, err)
	}

	_, err = pagerank.New(store).Compute(ctx, 20)
	require.NoError(t, err)
	return store, tok
}

func urlID(t *testing.T, store *storage.Store, address string) int64 {
	t.Helper()
	id, err := store.URLID(context.Background(), address)
	require.NoError(t, err)
	return id
}

func TestNormalize(t *testing.T) {
	scores := map[int64]float64{1: 4, 2: 2, 3: 0}

	larger := ranking.Normalize(scores, false)
	assert.Equal(t, 1.0, larger[1])
	assert.Equal(t, 0.5, larger[2])
	assert.Equal(t, 0.0, larger[3])

	smaller := ranking.Normalize(map[int64]float64{1: 4, 2: 2}, true)
	assert.Equal(t, 1.0, smaller[2])
	assert.Equal(t, 0.5, smaller[1])

	withZero := ranking.Normalize(scores, true)
	assert.Equal(t, 1.0, withZero[3], "a zero minimum still maps to 1")
	for id, v := range withZero {
		assert.GreaterOrEqual(t, v, 0.0, "url %d", id)
		assert.LessOrEqual(t, v, 1.0, "url %d", id)
	}

	allZero := ranking.Normalize(map[int64]float64{1: 0, 2: 0}, false)
	assert.Equal(t, map[int64]float64{1: 0, 2: 0}, allZero)

	assert.Empty(t, ranking.Normalize(nil, false))
}

func TestRowSignals(t *testing.T) {
	rows := []storage.MatchRow{
		{URLID: 1, Locations: []int{0, 5}},
		{URLID: 1, Locations: []int{10, 11}},
		{URLID: 2, Locations: []int{3, 9}},
	}

	freq := ranking.FrequencyScores(rows)
	assert.Equal(t, 1.0, freq[1])
	assert.Equal(t, 0.5, freq[2])

	loc := ranking.LocationScores(rows)
	assert.Equal(t, 1.0, loc[1])
	assert.InDelta(t, 5.0/12.0, loc[2], 1e-9)

	dist := ranking.DistanceScores(rows)
	assert.Equal(t, 1.0, dist[1])
	assert.InDelta(t, 1.0/6.0, dist[2], 1e-9)
}

func TestDistanceSingleTerm(t *testing.T) {
	rows := []storage.MatchRow{
		{URLID: 1, Locations: []int{0}},
		{URLID: 1, Locations: []int{40}},
		{URLID: 2, Locations: []int{7}},
	}
	assert.Equal(t, map[int64]float64{1: 1.0, 2: 1.0}, ranking.DistanceScores(rows))
}

func TestRankTieBreak(t *testing.T) {
	results := ranking.Rank(map[int64]float64{1: 0.5, 2: 0.5, 3: 0.9})
	require.Len(t, results, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{results[0].URLID, results[1].URLID, results[2].URLID})
}

func TestMatchRows(t *testing.T) {
	store, tok := fixture(t, filepath.Join(t.TempDir(), "index.db"))
	s := ranking.New(store, tok)
	ctx := context.Background()

	rows, wordIDs, err := s.MatchRows(ctx, "Python")
	require.NoError(t, err)
	assert.Len(t, wordIDs, 1)
	assert.Len(t, rows, 3)

	rows, wordIDs, err = s.MatchRows(ctx, "python unheardof tutorial")
	require.NoError(t, err)
	assert.Len(t, wordIDs, 2, "unknown terms are dropped")
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, urlID(t, store, urlA), row.URLID)
	}

	rows, wordIDs, err = s.MatchRows(ctx, "the unheardof")
	require.NoError(t, err)
	assert.Empty(t, wordIDs)
	assert.Empty(t, rows)
}

func TestSearch(t *testing.T) {
	store, tok := fixture(t, filepath.Join(t.TempDir(), "index.db"))
	ctx := context.Background()

	results, err := ranking.New(store, tok).Search(ctx, "python")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, urlA, results[0].URL)
	assert.Equal(t, urlB, results[1].URL)
	assert.Greater(t, results[0].Score, results[1].Score)

	limited, err := ranking.New(store, tok, ranking.WithLimit(1)).Search(ctx, "python")
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := ranking.New(store, tok).Search(ctx, "haskell")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLinkTextSignal(t *testing.T) {
	store, tok := fixture(t, filepath.Join(t.TempDir(), "index.db"))
	ctx := context.Background()
	s := ranking.New(store, tok, ranking.WithWeights(ranking.Weights{LinkText: 1}))

	rows, wordIDs, err := s.MatchRows(ctx, "python")
	require.NoError(t, err)
	scores, err := s.ScoredList(ctx, rows, wordIDs)
	require.NoError(t, err)

	assert.Equal(t, 1.0, scores[urlID(t, store, urlA)], "only b's anchor to a carries the word")
	assert.Equal(t, 0.0, scores[urlID(t, store, urlB)])
}

type fakeNetwork struct {
	favourite int64
}

func (f fakeNetwork) FeedForward(_ context.Context, _, urlIDs []int64) ([]float64, error) {
	out := make([]float64, len(urlIDs))
	for i, id := range urlIDs {
		out[i] = -0.5
		if id == f.favourite {
			out[i] = 0.9
		}
	}
	return out, nil
}

func TestNetworkSignal(t *testing.T) {
	store, tok := fixture(t, filepath.Join(t.TempDir(), "index.db"))
	ctx := context.Background()
	b := urlID(t, store, urlB)

	weights := ranking.DefaultWeights()
	weights.Network = 10
	s := ranking.New(store, tok, ranking.WithWeights(weights), ranking.WithNetwork(fakeNetwork{favourite: b}))

	results, err := s.Search(ctx, "python")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, urlB, results[0].URL)

	// default weights leave the network out of the score
	results, err = ranking.New(store, tok, ranking.WithNetwork(fakeNetwork{favourite: b})).Search(ctx, "python")
	require.NoError(t, err)
	assert.Equal(t, urlA, results[0].URL)
}

func TestSearchMissingURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	store, tok := fixture(t, path)
	wordID, err := store.WordID(context.Background(), "python")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open(storage.DriverSQLite3, path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO wordlocation (urlid, wordid, location) VALUES (99, ?, 0)`, wordID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err = storage.Open(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	_, err = ranking.New(store, tok).Search(context.Background(), "python")
	assert.ErrorIs(t, err, storage.ErrCorrupt)

	// the orphan ranks below a, so a limit of one never displays it
	_, err = ranking.New(store, tok, ranking.WithLimit(1)).Search(context.Background(), "python")
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestSearchWithNetworkOverManyPages(t *testing.T) {
	ctx := context.Background()
	tok := tokenizer.New(tokenizer.DefaultStopWords)
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer store.Close()

	urlIDs := make([]int64, 0, 600)
	for i := range 600 {
		batch := storage.PageBatch{URL: fmt.Sprintf("http://pages.test/%d", i)}
		for _, token := range tok.Tokenize("python guide") {
			batch.Words = append(batch.Words, storage.Occurrence{Word: token.Word, Position: token.Position})
		}
		_, err := store.IndexPage(ctx, batch)
		require.NoError(t, err)
		urlIDs = append(urlIDs, urlID(t, store, batch.URL))
	}

	relevance := network.New(store)
	weights := ranking.DefaultWeights()
	weights.Network = 1
	s := ranking.New(store, tok, ranking.WithWeights(weights), ranking.WithNetwork(relevance))

	wordIDs, err := s.WordIDs(ctx, "python")
	require.NoError(t, err)
	selected := urlIDs[0]
	require.NoError(t, relevance.Train(ctx, wordIDs, urlIDs[:3], selected))

	results, err := s.Search(ctx, "python")
	require.NoError(t, err)
	require.Len(t, results, ranking.DefaultLimit)
	assert.Equal(t, selected, results[0].URLID)
	assert.Equal(t, "http://pages.test/0", results[0].URL)
}
