package ranking

import (
	"context"
	"math"

	"github.com/deidaraiorek/deisearch/internal/storage"
)

// Epsilon floors every divisor in Normalize.
const Epsilon = 0.00001

// Normalize rescales scores into [0, 1]. When smallIsBetter is false the
// largest value maps to 1; otherwise the smallest does.
func Normalize(scores map[int64]float64, smallIsBetter bool) map[int64]float64 {
	out := make(map[int64]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	if smallIsBetter {
		minScore := math.Inf(1)
		for _, v := range scores {
			minScore = math.Min(minScore, v)
		}
		minScore = math.Max(minScore, Epsilon)
		for id, v := range scores {
			out[id] = minScore / math.Max(v, Epsilon)
		}
		return out
	}

	maxScore := math.Inf(-1)
	for _, v := range scores {
		maxScore = math.Max(maxScore, v)
	}
	maxScore = math.Max(maxScore, Epsilon)
	for id, v := range scores {
		out[id] = v / maxScore
	}
	return out
}

// FrequencyScores counts the matching rows of each url.
func FrequencyScores(rows []storage.MatchRow) map[int64]float64 {
	counts := make(map[int64]float64)
	for _, row := range rows {
		counts[row.URLID]++
	}
	return Normalize(counts, false)
}

// LocationScores favours urls where the query words appear early.
func LocationScores(rows []storage.MatchRow) map[int64]float64 {
	locations := make(map[int64]float64)
	for _, row := range rows {
		sum := 0
		for _, loc := range row.Locations {
			sum += loc
		}
		if best, ok := locations[row.URLID]; !ok || float64(sum) < best {
			locations[row.URLID] = float64(sum)
		}
	}
	return Normalize(locations, true)
}

// DistanceScores favours urls where the query words appear close together.
// Every url scores 1 for a single word query.
func DistanceScores(rows []storage.MatchRow) map[int64]float64 {
	distances := make(map[int64]float64)
	if len(rows) == 0 {
		return distances
	}
	if len(rows[0].Locations) <= 1 {
		for _, row := range rows {
			distances[row.URLID] = 1.0
		}
		return distances
	}

	for _, row := range rows {
		dist := 0
		for i := 1; i < len(row.Locations); i++ {
			d := row.Locations[i] - row.Locations[i-1]
			if d < 0 {
				d = -d
			}
			dist += d
		}
		if best, ok := distances[row.URLID]; !ok || float64(dist) < best {
			distances[row.URLID] = float64(dist)
		}
	}
	return Normalize(distances, true)
}

func (s *Searcher) inboundScores(ctx context.Context, urlIDs []int64) (map[int64]float64, error) {
	counts, err := s.store.InboundCounts(ctx, urlIDs)
	if err != nil {
		return nil, err
	}
	scores := make(map[int64]float64, len(urlIDs))
	for _, id := range urlIDs {
		scores[id] = float64(counts[id])
	}
	return Normalize(scores, false), nil
}

// pageRankScores treats urls without a stored score as 0.
func (s *Searcher) pageRankScores(ctx context.Context, urlIDs []int64) (map[int64]float64, error) {
	ranks, err := s.store.PageRanks(ctx, urlIDs)
	if err != nil {
		return nil, err
	}
	scores := make(map[int64]float64, len(urlIDs))
	for _, id := range urlIDs {
		scores[id] = ranks[id]
	}
	return Normalize(scores, false), nil
}

// linkTextScores credits each url with the pagerank of every page linking to
// it with a query word in the anchor text.
func (s *Searcher) linkTextScores(ctx context.Context, urlIDs, wordIDs []int64) (map[int64]float64, error) {
	scores := make(map[int64]float64, len(urlIDs))
	for _, id := range urlIDs {
		scores[id] = 0
	}

	var links []storage.Link
	for _, wordID := range wordIDs {
		sources, err := s.store.LinkTextSources(ctx, wordID)
		if err != nil {
			return nil, err
		}
		links = append(links, sources...)
	}

	var parents []int64
	for _, link := range links {
		if _, ok := scores[link.To]; ok {
			parents = append(parents, link.From)
		}
	}
	ranks, err := s.store.PageRanks(ctx, parents)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if _, ok := scores[link.To]; ok {
			scores[link.To] += ranks[link.From]
		}
	}
	return Normalize(scores, false), nil
}

// networkScores clamps negative outputs to 0 so the signal stays in [0, 1].
func (s *Searcher) networkScores(ctx context.Context, urlIDs, wordIDs []int64) (map[int64]float64, error) {
	outputs, err := s.network.FeedForward(ctx, wordIDs, urlIDs)
	if err != nil {
		return nil, err
	}
	scores := make(map[int64]float64, len(urlIDs))
	for i, id := range urlIDs {
		scores[id] = math.Max(outputs[i], 0)
	}
	return Normalize(scores, false), nil
}
