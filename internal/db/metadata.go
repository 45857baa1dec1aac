//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// MetadataTable survives schema rebuilds; the star DDL never drops it.
const MetadataTable = "starload_metadata"

// Metadata keys written on every successful load.
const (
	KeyRunID    = "run_id"
	KeyLoadedAt = "loaded_at"
	KeyVersion  = "version"
)

// RowsKey returns the metadata key holding the loaded row count of a table.
func RowsKey(table string) string {
	return "rows." + table
}

// createMetadataTableSQL creates the metadata table if it doesn't exist.
const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS starload_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SaveMetadata upserts the given values. Run it inside the load
// transaction so metadata commits or rolls back with the data.
func SaveMetadata(ctx context.Context, e Execer, values map[string]string) error {
	if _, err := e.Exec(ctx, createMetadataTableSQL); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		_, err := e.Exec(ctx, `
            INSERT INTO starload_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, values[key])
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	logging.Debug().Int("keys", len(keys)).Msg("Saved metadata")
	return nil
}

// GetMetadataValue retrieves a single metadata value by key.
func GetMetadataValue(ctx context.Context, q Querier, key string) (string, error) {
	var value string
	err := q.QueryRow(ctx, `
        SELECT value FROM starload_metadata WHERE key = $1
    `, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetAllMetadata retrieves all metadata as a map.
func GetAllMetadata(ctx context.Context, q Querier) (map[string]string, error) {
	rows, err := q.Query(ctx, `SELECT key, value FROM starload_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}

	return metadata, rows.Err()
}

// MetadataExists checks if the metadata table exists.
func MetadataExists(ctx context.Context, q Querier) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, MetadataTable).Scan(&exists)
	return exists, err
}

// LastLoadedAt returns the time of the last committed load. The boolean is
// false when no load has ever been recorded.
func LastLoadedAt(ctx context.Context, q Querier) (time.Time, bool, error) {
	exists, err := MetadataExists(ctx, q)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to check metadata table: %w", err)
	}
	if !exists {
		return time.Time{}, false, nil
	}

	value, err := GetMetadataValue(ctx, q, KeyLoadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read %s: %w", KeyLoadedAt, err)
	}

	loadedAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid %s %q: %w", KeyLoadedAt, value, err)
	}
	return loadedAt, true, nil
}

// DropMetadata drops the metadata table. Without it no load is on record.
func DropMetadata(ctx context.Context, e Execer) error {
	_, err := e.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", MetadataTable))
	return err
}
