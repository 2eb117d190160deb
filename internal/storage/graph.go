package storage

import (
	"context"
	"fmt"
	"sort"
)

type Link struct {
	ID   int64
	From int64
	To   int64
}

// URLIDs returns every url id in ascending order.
func (s *Store) URLIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM urllist ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query urls: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Links(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, fromid, toid FROM link ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
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

// ResetPageRank drops and rebuilds the pagerank table with a score of 1.0 for
// every url.
func (s *Store) ResetPageRank(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS pagerank"); err != nil {
		return fmt.Errorf("failed to drop pagerank: %w", err)
	}
	if _, err := tx.ExecContext(ctx, pageRankSchema); err != nil {
		return fmt.Errorf("failed to create pagerank: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO pagerank (urlid, score) SELECT id, 1.0 FROM urllist"); err != nil {
		return fmt.Errorf("failed to seed pagerank: %w", err)
	}
	return tx.Commit()
}

// WritePageRanks overwrites the stored score of every url in scores.
func (s *Store) WritePageRanks(ctx context.Context, scores map[int64]float64) error {
	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pagerank (urlid, score) VALUES (?, ?)
		ON CONFLICT(urlid) DO UPDATE SET score = excluded.score
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, scores[id]); err != nil {
			return fmt.Errorf("failed to write pagerank of %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// PageRanks returns the stored scores of ids. Urls without a row are absent
// from the result.
func (s *Store) PageRanks(ctx context.Context, ids []int64) (map[int64]float64, error) {
	scores := make(map[int64]float64, len(ids))
	for _, chunk := range chunkIDs(uniqueIDs(ids), maxVariables) {
		rows, err := s.db.QueryContext(ctx,
			"SELECT urlid, score FROM pagerank WHERE urlid IN ("+placeholders(len(chunk))+")",
			idArgs(chunk)...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query pagerank: %w", err)
		}
		for rows.Next() {
			var id int64
			var score float64
			if err := rows.Scan(&id, &score); err != nil {
				rows.Close()
				return nil, err
			}
			scores[id] = score
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return scores, nil
}
