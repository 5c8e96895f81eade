package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// SQLiteStore keeps one row per transfer. The full record is stored as JSON next
// to the indexed status column.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing sqlite store %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		source_chain TEXT NOT NULL,
		destination_chain TEXT NOT NULL,
		tx_hash TEXT,
		created INTEGER NOT NULL,
		record TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers (status);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, rec *types.TransferRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT status FROM transfers WHERE id = ?`, rec.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if err := checkStale(&types.TransferRecord{Status: types.Status(stored)}, rec); err != nil {
			return err
		}
	}

	query := `
	INSERT INTO transfers (id, status, source_chain, destination_chain, tx_hash, created, record)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET status = excluded.status, tx_hash = excluded.tx_hash, record = excluded.record;
	`
	if _, err := tx.ExecContext(ctx, query, rec.ID, string(rec.Status), rec.SourceChain, rec.DestinationChain,
		rec.TransactionHash, rec.Created.UnixNano(), string(raw)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*types.TransferRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM transfers WHERE id = ?;`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord([]byte(raw))
}

// ListByStatus returns matching records oldest first. No statuses matches all.
func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses ...types.Status) ([]*types.TransferRecord, error) {
	query := `SELECT record FROM transfers`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created ASC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.TransferRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRecord(raw []byte) (*types.TransferRecord, error) {
	var rec types.TransferRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding transfer record: %w", err)
	}
	if _, err := types.ParseStatus(string(rec.Status)); err != nil {
		return nil, err
	}
	return &rec, nil
}
