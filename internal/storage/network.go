package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
)

// Layer selects the edge table of the relevance network.
type Layer int

const (
	// LayerWordHidden holds word -> hidden edges.
	LayerWordHidden Layer = 0
	// LayerHiddenURL holds hidden -> url edges.
	LayerHiddenURL Layer = 1
)

var edgeTables = map[Layer]string{
	LayerWordHidden: "wordhidden",
	LayerHiddenURL:  "hiddenurl",
}

func (l Layer) table() (string, error) {
	table, ok := edgeTables[l]
	if !ok {
		return "", fmt.Errorf("%w: layer %d", ErrUnknownTable, int(l))
	}
	return table, nil
}

type Edge struct {
	Layer    Layer
	From     int64
	To       int64
	Strength float64
}

// EdgeStrength returns the stored strength and whether a row exists.
func (s *Store) EdgeStrength(ctx context.Context, layer Layer, from, to int64) (float64, bool, error) {
	table, err := layer.table()
	if err != nil {
		return 0, false, err
	}
	var strength float64
	err = s.db.QueryRowContext(ctx,
		"SELECT strength FROM "+table+" WHERE fromid = ? AND toid = ?",
		from, to,
	).Scan(&strength)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s edge %d->%d: %w", table, from, to, err)
	}
	return strength, true, nil
}

// SetEdgeStrengths upserts edges in one transaction. Existing strengths are
// overwritten.
func (s *Store) SetEdgeStrengths(ctx context.Context, edges ...Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range edges {
		if err := setEdgeStrength(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func setEdgeStrength(ctx context.Context, q querier, e Edge) error {
	table, err := e.Layer.table()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO `+table+` (fromid, toid, strength) VALUES (?, ?, ?)
		ON CONFLICT(fromid, toid) DO UPDATE SET strength = excluded.strength
	`, e.From, e.To, e.Strength)
	if err != nil {
		return fmt.Errorf("failed to write %s edge %d->%d: %w", table, e.From, e.To, err)
	}
	return nil
}

func (s *Store) HiddenNodeID(ctx context.Context, key string) (int64, error) {
	return s.lookupID(ctx, "SELECT id FROM hiddennode WHERE create_key = ?", key)
}

// CreateHiddenNode inserts a hidden node for key and seeds its edges in the
// same transaction. It writes nothing and returns created=false when the key
// already exists. Seed edges use the new node's id in place of the zero From
// (layer 1) or To (layer 0) field.
func (s *Store) CreateHiddenNode(ctx context.Context, key string, seeds []Edge) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM hiddennode WHERE create_key = ?", key).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to query hidden node %q: %w", key, err)
	}

	result, err := tx.ExecContext(ctx, "INSERT INTO hiddennode (create_key) VALUES (?)", key)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert hidden node %q: %w", key, err)
	}
	if id, err = result.LastInsertId(); err != nil {
		return 0, false, err
	}

	for _, e := range seeds {
		switch e.Layer {
		case LayerWordHidden:
			e.To = id
		case LayerHiddenURL:
			e.From = id
		}
		if err := setEdgeStrength(ctx, tx, e); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit hidden node %q: %w", key, err)
	}
	return id, true, nil
}

// HiddenNodesFor returns the ids of hidden nodes reachable from any of
// wordIDs or leading to any of urlIDs, in ascending order.
func (s *Store) HiddenNodesFor(ctx context.Context, wordIDs, urlIDs []int64) ([]int64, error) {
	found := make(map[int64]bool)
	collect := func(query string, ids []int64) error {
		for _, chunk := range chunkIDs(uniqueIDs(ids), maxVariables) {
			rows, err := s.db.QueryContext(ctx, query+" IN ("+placeholders(len(chunk))+")", idArgs(chunk)...)
			if err != nil {
				return fmt.Errorf("failed to query hidden nodes: %w", err)
			}
			for rows.Next() {
				var id int64
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return err
				}
				found[id] = true
			}
			err = rows.Err()
			rows.Close()
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := collect("SELECT DISTINCT toid FROM wordhidden WHERE fromid", wordIDs); err != nil {
		return nil, err
	}
	if err := collect("SELECT DISTINCT fromid FROM hiddenurl WHERE toid", urlIDs); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// EdgeStrengths returns the stored strengths of every edge in layer running
// from one of fromIDs to one of toIDs. Missing edges are absent from the map.
func (s *Store) EdgeStrengths(ctx context.Context, layer Layer, fromIDs, toIDs []int64) (map[[2]int64]float64, error) {
	table, err := layer.table()
	if err != nil {
		return nil, err
	}

	strengths := make(map[[2]int64]float64)
	half := maxVariables / 2
	for _, fromChunk := range chunkIDs(uniqueIDs(fromIDs), half) {
		for _, toChunk := range chunkIDs(uniqueIDs(toIDs), half) {
			query := "SELECT fromid, toid, strength FROM " + table +
				" WHERE fromid IN (" + placeholders(len(fromChunk)) + ")" +
				" AND toid IN (" + placeholders(len(toChunk)) + ")"
			args := append(idArgs(fromChunk), idArgs(toChunk)...)

			rows, err := s.db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s edges: %w", table, err)
			}
			for rows.Next() {
				var from, to int64
				var strength float64
				if err := rows.Scan(&from, &to, &strength); err != nil {
					rows.Close()
					return nil, err
				}
				strengths[[2]int64{from, to}] = strength
			}
			err = rows.Err()
			rows.Close()
			if err != nil {
				return nil, err
			}
		}
	}
	return strengths, nil
}
