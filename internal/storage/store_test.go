package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/deisearch/internal/storage"
)

var drivers = []string{storage.DriverSQLite3, storage.DriverSQLite}

// forEachDriver runs fn against a fresh store for every supported driver.
func forEachDriver(t *testing.T, fn func(t *testing.T, s *storage.Store)) {
	t.Helper()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "index.db")
			s, err := storage.Open(context.Background(), dbPath, storage.WithDriver(driver))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), storage.WithDriver("postgres"))
	require.ErrorIs(t, err, storage.ErrUnsupportedDriver)
}

func TestCloseTwice(t *testing.T) {
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), storage.ErrClosed)
}

func TestGetOrCreateID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		id1, err := s.GetOrCreateID(ctx, storage.WordList, "machine")
		require.NoError(t, err)
		id2, err := s.GetOrCreateID(ctx, storage.WordList, "machine")
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		id3, err := s.GetOrCreateID(ctx, storage.WordList, "learning")
		require.NoError(t, err)
		assert.NotEqual(t, id1, id3)

		urlID, err := s.GetOrCreateID(ctx, storage.URLList, "https://example.com/it's")
		require.NoError(t, err)
		got, err := s.URLAddresses(ctx, []int64{urlID, urlID, 999})
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{urlID: "https://example.com/it's"}, got)

		_, err = s.GetOrCreateID(ctx, storage.Table(42), "x")
		assert.ErrorIs(t, err, storage.ErrUnknownTable)
	})
}

func TestLookupsNotFound(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		_, err := s.WordID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.URLID(ctx, "https://missing.example")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		got, err := s.URLAddresses(ctx, []int64{999})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestIndexPage(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()
		page := "https://example.com/a"

		indexed, err := s.IsIndexed(ctx, page)
		require.NoError(t, err)
		assert.False(t, indexed)

		batch := storage.PageBatch{
			URL: page,
			Words: []storage.Occurrence{
				{Word: "serbian", Position: 0},
				{Word: "city", Position: 2},
				{Word: "serbian", Position: 5},
			},
			Links: []storage.Anchor{
				{Target: "https://example.com/b", Words: []string{"belgrade"}},
				{Target: page, Words: []string{"self"}},
			},
		}
		res, err := s.IndexPage(ctx, batch)
		require.NoError(t, err)
		assert.True(t, res.Indexed)
		assert.Equal(t, 3, res.Locations)
		assert.Equal(t, 1, res.Links)
		assert.Equal(t, 1, res.SelfLinks)

		indexed, err = s.IsIndexed(ctx, page)
		require.NoError(t, err)
		assert.True(t, indexed)

		again, err := s.IndexPage(ctx, batch)
		require.NoError(t, err)
		assert.True(t, again.AlreadyIndexed)
		assert.False(t, again.Indexed)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, st.URLs)
		assert.Equal(t, 3, st.WordLocations)
		assert.Equal(t, 1, st.Links)
		assert.Equal(t, 1, st.LinkWords)

		links, err := s.Links(ctx)
		require.NoError(t, err)
		for _, l := range links {
			assert.NotEqual(t, l.From, l.To)
		}
	})
}

func TestMatchRows(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		_, err := s.IndexPage(ctx, storage.PageBatch{
			URL: "https://example.com/1",
			Words: []storage.Occurrence{
				{Word: "go", Position: 0},
				{Word: "search", Position: 1},
				{Word: "go", Position: 4},
			},
		})
		require.NoError(t, err)
		_, err = s.IndexPage(ctx, storage.PageBatch{
			URL:   "https://example.com/2",
			Words: []storage.Occurrence{{Word: "go", Position: 3}},
		})
		require.NoError(t, err)

		goID, err := s.WordID(ctx, "go")
		require.NoError(t, err)
		searchID, err := s.WordID(ctx, "search")
		require.NoError(t, err)

		rows, err := s.MatchRows(ctx, []int64{goID, searchID})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		page1, err := s.URLID(ctx, "https://example.com/1")
		require.NoError(t, err)
		got := map[int]bool{}
		for _, row := range rows {
			assert.Equal(t, page1, row.URLID)
			require.Len(t, row.Locations, 2)
			assert.Equal(t, 1, row.Locations[1])
			got[row.Locations[0]] = true
		}
		assert.Equal(t, map[int]bool{0: true, 4: true}, got)

		single, err := s.MatchRows(ctx, []int64{goID})
		require.NoError(t, err)
		assert.Len(t, single, 3)

		none, err := s.MatchRows(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestLinkSignals(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		for _, from := range []string{"https://a.example", "https://b.example"} {
			_, err := s.IndexPage(ctx, storage.PageBatch{
				URL:   from,
				Words: []storage.Occurrence{{Word: "page", Position: 0}},
				Links: []storage.Anchor{
					{Target: "https://c.example", Words: []string{"golang"}},
					{Target: "https://c.example", Words: []string{"golang", "tutorial"}},
				},
			})
			require.NoError(t, err)
		}

		c, err := s.URLID(ctx, "https://c.example")
		require.NoError(t, err)
		a, err := s.URLID(ctx, "https://a.example")
		require.NoError(t, err)

		counts, err := s.InboundCounts(ctx, []int64{a, c, c})
		require.NoError(t, err)
		assert.Equal(t, 4, counts[c])
		assert.Zero(t, counts[a])

		golang, err := s.WordID(ctx, "golang")
		require.NoError(t, err)
		sources, err := s.LinkTextSources(ctx, golang)
		require.NoError(t, err)
		assert.Len(t, sources, 4)
		for _, l := range sources {
			assert.Equal(t, c, l.To)
		}
	})
}

func TestPageRankTable(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		a, err := s.GetOrCreateID(ctx, storage.URLList, "https://a.example")
		require.NoError(t, err)
		b, err := s.GetOrCreateID(ctx, storage.URLList, "https://b.example")
		require.NoError(t, err)

		require.NoError(t, s.ResetPageRank(ctx))
		scores, err := s.PageRanks(ctx, []int64{a, b})
		require.NoError(t, err)
		assert.Equal(t, map[int64]float64{a: 1.0, b: 1.0}, scores)

		require.NoError(t, s.WritePageRanks(ctx, map[int64]float64{a: 0.15, b: 2.5}))
		scores, err = s.PageRanks(ctx, []int64{a, b, 999})
		require.NoError(t, err)
		assert.Equal(t, map[int64]float64{a: 0.15, b: 2.5}, scores)

		require.NoError(t, s.ResetPageRank(ctx))
		scores, err = s.PageRanks(ctx, []int64{b})
		require.NoError(t, err)
		assert.Equal(t, 1.0, scores[b])
	})
}

func TestEdges(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		_, ok, err := s.EdgeStrength(ctx, storage.LayerWordHidden, 1, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetEdgeStrengths(ctx, storage.Edge{Layer: storage.LayerWordHidden, From: 1, To: 2, Strength: 0.5}))
		require.NoError(t, s.SetEdgeStrengths(ctx, storage.Edge{Layer: storage.LayerWordHidden, From: 1, To: 2, Strength: 0.25}))

		strength, ok, err := s.EdgeStrength(ctx, storage.LayerWordHidden, 1, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0.25, strength)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.WordHidden)

		_, _, err = s.EdgeStrength(ctx, storage.Layer(7), 1, 2)
		assert.ErrorIs(t, err, storage.ErrUnknownTable)
	})
}

func TestCreateHiddenNode(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()
		seeds := []storage.Edge{
			{Layer: storage.LayerWordHidden, From: 101, Strength: 0.5},
			{Layer: storage.LayerWordHidden, From: 103, Strength: 0.5},
			{Layer: storage.LayerHiddenURL, To: 201, Strength: 0.1},
		}

		id, created, err := s.CreateHiddenNode(ctx, "101_103", seeds)
		require.NoError(t, err)
		assert.True(t, created)

		again, created, err := s.CreateHiddenNode(ctx, "101_103", seeds)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, id, again)

		found, err := s.HiddenNodeID(ctx, "101_103")
		require.NoError(t, err)
		assert.Equal(t, id, found)

		strength, ok, err := s.EdgeStrength(ctx, storage.LayerHiddenURL, id, 201)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0.1, strength)

		hidden, err := s.HiddenNodesFor(ctx, []int64{103}, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{id}, hidden)
		hidden, err = s.HiddenNodesFor(ctx, nil, []int64{201})
		require.NoError(t, err)
		assert.Equal(t, []int64{id}, hidden)
		hidden, err = s.HiddenNodesFor(ctx, []int64{999}, []int64{999})
		require.NoError(t, err)
		assert.Empty(t, hidden)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.HiddenNodes)
		assert.Equal(t, 2, st.WordHidden)
		assert.Equal(t, 1, st.HiddenURL)
	})
}

func TestHiddenNodesForManyIDs(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()
		id, _, err := s.CreateHiddenNode(ctx, "7", []storage.Edge{
			{Layer: storage.LayerWordHidden, From: 7, Strength: 1},
			{Layer: storage.LayerHiddenURL, To: 900, Strength: 0.1},
		})
		require.NoError(t, err)

		urlIDs := make([]int64, 0, 601)
		for i := int64(1); i <= 600; i++ {
			urlIDs = append(urlIDs, i)
		}
		urlIDs = append(urlIDs, 900)

		hidden, err := s.HiddenNodesFor(ctx, []int64{1, 2, 3}, urlIDs)
		require.NoError(t, err)
		assert.Equal(t, []int64{id}, hidden)

		hidden, err = s.HiddenNodesFor(ctx, append(urlIDs, 7), nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{id}, hidden)
	})
}

func TestEdgeStrengths(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()
		require.NoError(t, s.SetEdgeStrengths(ctx,
			storage.Edge{Layer: storage.LayerHiddenURL, From: 1, To: 10, Strength: 0.3},
			storage.Edge{Layer: storage.LayerHiddenURL, From: 2, To: 700, Strength: -0.4},
			storage.Edge{Layer: storage.LayerHiddenURL, From: 3, To: 10, Strength: 0.9},
			storage.Edge{Layer: storage.LayerWordHidden, From: 1, To: 10, Strength: 0.7},
		))

		toIDs := make([]int64, 0, 700)
		for i := int64(1); i <= 700; i++ {
			toIDs = append(toIDs, i)
		}

		got, err := s.EdgeStrengths(ctx, storage.LayerHiddenURL, []int64{1, 2}, toIDs)
		require.NoError(t, err)
		assert.Equal(t, map[[2]int64]float64{{1, 10}: 0.3, {2, 700}: -0.4}, got)

		got, err = s.EdgeStrengths(ctx, storage.LayerWordHidden, []int64{1}, []int64{10})
		require.NoError(t, err)
		assert.Equal(t, map[[2]int64]float64{{1, 10}: 0.7}, got)

		_, err = s.EdgeStrengths(ctx, storage.Layer(7), []int64{1}, []int64{10})
		assert.ErrorIs(t, err, storage.ErrUnknownTable)
	})
}

func TestReset(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *storage.Store) {
		ctx := context.Background()

		_, err := s.IndexPage(ctx, storage.PageBatch{
			URL:   "https://example.com",
			Words: []storage.Occurrence{{Word: "hello", Position: 0}},
		})
		require.NoError(t, err)
		require.NoError(t, s.Reset(ctx))

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, storage.Stats{}, st)
	})
}

func TestIntegrityError(t *testing.T) {
	err := &storage.IntegrityError{Table: "link", Column: "toid", Ref: 7}
	assert.ErrorIs(t, err, storage.ErrCorrupt)
	assert.Contains(t, err.Error(), "link.toid")
}
