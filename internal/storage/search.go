package storage

import (
	"context"
	"fmt"
	"strings"
)

// MatchRow is one combination of locations, one per query word, on a url.
type MatchRow struct {
	URLID     int64
	Locations []int
}

// MatchRows returns every combination of locations of wordIDs that co-occur
// on the same url. The query is built from aliases only; every id is bound
// as a parameter.
func (s *Store) MatchRows(ctx context.Context, wordIDs []int64) ([]MatchRow, error) {
	if len(wordIDs) == 0 {
		return nil, nil
	}

	fields := []string{"w0.urlid"}
	tables := make([]string, 0, len(wordIDs))
	clauses := make([]string, 0, 2*len(wordIDs))
	for i := range wordIDs {
		if i > 0 {
			clauses = append(clauses, fmt.Sprintf("w%d.urlid = w%d.urlid", i-1, i))
		}
		fields = append(fields, fmt.Sprintf("w%d.location", i))
		tables = append(tables, fmt.Sprintf("wordlocation w%d", i))
		clauses = append(clauses, fmt.Sprintf("w%d.wordid = ?", i))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(fields, ", "),
		strings.Join(tables, ", "),
		strings.Join(clauses, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, query, idArgs(wordIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []MatchRow
	for rows.Next() {
		row := MatchRow{Locations: make([]int, len(wordIDs))}
		dest := make([]any, 0, len(wordIDs)+1)
		dest = append(dest, &row.URLID)
		for i := range row.Locations {
			dest = append(dest, &row.Locations[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		matches = append(matches, row)
	}
	return matches, rows.Err()
}

// InboundCounts returns the number of link rows pointing at each of ids.
func (s *Store) InboundCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(ids))
	for _, chunk := range chunkIDs(uniqueIDs(ids), maxVariables) {
		rows, err := s.db.QueryContext(ctx,
			"SELECT toid, COUNT(*) FROM link WHERE toid IN ("+placeholders(len(chunk))+") GROUP BY toid",
			idArgs(chunk)...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to count inbound links: %w", err)
		}
		for rows.Next() {
			var id int64
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close()
				return nil, err
			}
			counts[id] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// LinkTextSources returns one link per linkwords row carrying wordID.
func (s *Store) LinkTextSources(ctx context.Context, wordID int64) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT link.id, link.fromid, link.toid
		FROM linkwords
		JOIN link ON linkwords.linkid = link.id
		WHERE linkwords.wordid = ?
	`, wordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query link words: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.From, &l.To); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
