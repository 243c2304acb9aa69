package storage

import (
	"errors"
	"fmt"
)

// RecordHandoff appends one ownership transfer to the event log.
func (s *Store) RecordHandoff(peer, direction string, x, y uint32) error {
	if peer == "" {
		return errors.New("peer is required")
	}
	if direction != HandoffEnter && direction != HandoffLeave {
		return fmt.Errorf("invalid handoff direction %q", direction)
	}

	_, err := s.db.Exec(
		`INSERT INTO handoff_events (peer, direction, x, y, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		peer, direction, x, y, nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record handoff: %w", err)
	}

	return nil
}

// RecentHandoffs returns the newest handoff events, newest first.
func (s *Store) RecentHandoffs(limit int) ([]HandoffEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, peer, direction, x, y, timestamp
		FROM handoff_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list handoffs: %w", err)
	}
	defer rows.Close()

	events := make([]HandoffEvent, 0, limit)
	for rows.Next() {
		var ev HandoffEvent
		err := rows.Scan(&ev.ID, &ev.Peer, &ev.Direction, &ev.X, &ev.Y, &ev.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan handoff row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handoffs: %w", err)
	}

	return events, nil
}

// PruneHandoffs deletes handoff events older than the retention window and
// returns how many rows were removed.
func (s *Store) PruneHandoffs() (int64, error) {
	cutoff := nowUnixMilli() - s.handoffRetention.Milliseconds()
	result, err := s.db.Exec(`DELETE FROM handoff_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune handoffs: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune handoffs: %w", err)
	}
	return pruned, nil
}
