package storage

import (
	"context"
	"fmt"
)

// Occurrence is one indexed token of a page's extracted text.
type Occurrence struct {
	Word     string
	Position int
}

// Anchor is an outgoing link with the indexable words of its anchor text.
type Anchor struct {
	Target string
	Words  []string
}

// PageBatch is everything written for one page. It is applied atomically.
type PageBatch struct {
	URL   string
	Words []Occurrence
	Links []Anchor
}

// IndexResult reports what IndexPage wrote.
type IndexResult struct {
	// AlreadyIndexed is set when the page had word locations before the call.
	AlreadyIndexed bool
	Indexed        bool
	Locations      int
	Links          int
	SelfLinks      int
}

// IndexPage writes the word locations, links and link words of a page in a
// single transaction. If the page is already indexed nothing is written and
// AlreadyIndexed is set. A page without indexable words still records its
// links but does not count as indexed.
func (s *Store) IndexPage(ctx context.Context, batch PageBatch) (IndexResult, error) {
	var res IndexResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	urlID, err := getOrCreateID(ctx, tx, URLList, batch.URL)
	if err != nil {
		return res, err
	}

	indexed, err := isIndexedID(ctx, tx, urlID)
	if err != nil {
		return res, fmt.Errorf("failed to check indexed state of %s: %w", batch.URL, err)
	}
	if indexed {
		res.AlreadyIndexed = true
		return res, nil
	}

	wordIDs := make(map[string]int64)
	wordID := func(word string) (int64, error) {
		if id, ok := wordIDs[word]; ok {
			return id, nil
		}
		id, err := getOrCreateID(ctx, tx, WordList, word)
		if err != nil {
			return 0, err
		}
		wordIDs[word] = id
		return id, nil
	}

	locationStmt, err := tx.PrepareContext(ctx, "INSERT INTO wordlocation (urlid, wordid, location) VALUES (?, ?, ?)")
	if err != nil {
		return res, err
	}
	defer locationStmt.Close()

	for _, occ := range batch.Words {
		id, err := wordID(occ.Word)
		if err != nil {
			return res, err
		}
		if _, err := locationStmt.ExecContext(ctx, urlID, id, occ.Position); err != nil {
			return res, fmt.Errorf("failed to insert location of %q: %w", occ.Word, err)
		}
		res.Locations++
	}

	linkStmt, err := tx.PrepareContext(ctx, "INSERT INTO link (fromid, toid) VALUES (?, ?)")
	if err != nil {
		return res, err
	}
	defer linkStmt.Close()

	linkWordStmt, err := tx.PrepareContext(ctx, "INSERT INTO linkwords (linkid, wordid) VALUES (?, ?)")
	if err != nil {
		return res, err
	}
	defer linkWordStmt.Close()

	for _, anchor := range batch.Links {
		toID, err := getOrCreateID(ctx, tx, URLList, anchor.Target)
		if err != nil {
			return res, err
		}
		if toID == urlID {
			res.SelfLinks++
			continue
		}

		result, err := linkStmt.ExecContext(ctx, urlID, toID)
		if err != nil {
			return res, fmt.Errorf("failed to insert link to %s: %w", anchor.Target, err)
		}
		linkID, err := result.LastInsertId()
		if err != nil {
			return res, err
		}
		res.Links++

		for _, word := range anchor.Words {
			id, err := wordID(word)
			if err != nil {
				return res, err
			}
			if _, err := linkWordStmt.ExecContext(ctx, linkID, id); err != nil {
				return res, fmt.Errorf("failed to insert link word %q: %w", word, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return IndexResult{}, fmt.Errorf("failed to commit page %s: %w", batch.URL, err)
	}
	res.Indexed = res.Locations > 0
	return res, nil
}
