package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertPeer inserts or refreshes a peer row. The first_seen timestamp is
// preserved across updates; geometry and endpoint reflect the latest session.
func (s *Store) UpsertPeer(host string, width, height uint32, address string) error {
	if host == "" {
		return errors.New("host is required")
	}

	now := nowUnixMilli()
	_, err := s.db.Exec(
		`INSERT INTO peers (host, width, height, last_known_address, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			width = excluded.width,
			height = excluded.height,
			last_known_address = excluded.last_known_address,
			last_seen = excluded.last_seen`,
		host, width, height, nullString(address), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert peer %q: %w", host, err)
	}

	return nil
}

// GetPeer fetches a peer by host name.
func (s *Store) GetPeer(host string) (*Peer, error) {
	row := s.db.QueryRow(
		`SELECT host, width, height, last_known_address, first_seen, last_seen
		FROM peers
		WHERE host = ?`,
		host,
	)

	peer, err := scanPeer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get peer %q: %w", host, err)
	}

	return peer, nil
}

// PeerAddress returns the last endpoint a session with this host used.
func (s *Store) PeerAddress(host string) (string, error) {
	peer, err := s.GetPeer(host)
	if err != nil {
		return "", err
	}
	return peer.LastKnownAddress, nil
}

// ListPeers returns all known peers sorted by host name.
func (s *Store) ListPeers() ([]Peer, error) {
	rows, err := s.db.Query(
		`SELECT host, width, height, last_known_address, first_seen, last_seen
		FROM peers
		ORDER BY host`,
	)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	defer rows.Close()

	peers := make([]Peer, 0)
	for rows.Next() {
		peer, err := scanPeer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan peer row: %w", err)
		}
		peers = append(peers, *peer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}

	return peers, nil
}

// RemovePeer deletes a peer row.
func (s *Store) RemovePeer(host string) error {
	result, err := s.db.Exec(`DELETE FROM peers WHERE host = ?`, host)
	if err != nil {
		return fmt.Errorf("remove peer %q: %w", host, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove peer %q: %w", host, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeer(row rowScanner) (*Peer, error) {
	var (
		peer    Peer
		address sql.NullString
	)
	err := row.Scan(
		&peer.Host,
		&peer.Width,
		&peer.Height,
		&address,
		&peer.FirstSeen,
		&peer.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	if address.Valid {
		peer.LastKnownAddress = address.String
	}
	return &peer, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
