// Package tables is the client side of the remote table service: the Store
// contract, an HTTP client for it, an in-memory implementation and the
// credential providers that sign requests.
package tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoCredential is returned when a write has no user credential.
	ErrNoCredential = errors.New("no credential for write")
	// ErrEmptyResult is returned when a write succeeded at the transport level
	// but the backend returned no affected rows.
	ErrEmptyResult = errors.New("backend returned no rows")
)

// Row is a single record as the backend sees it.
type Row = map[string]any

// --- Functional Interfaces ---

// Fetcher reads rows.
type Fetcher interface {
	Fetch(ctx context.Context, table string, q Query, cred string) ([]Row, error)
}

// Inserter inserts or upserts rows. An empty onConflict means plain insert.
type Inserter interface {
	Insert(ctx context.Context, table, onConflict string, rows []Row, cred string) ([]Row, error)
}

// Updater patches every row matching q.
type Updater interface {
	Update(ctx context.Context, table string, q Query, patch Row, cred string) ([]Row, error)
}

// Deleter removes every row matching q.
type Deleter interface {
	Delete(ctx context.Context, table string, q Query, cred string) error
}

// Store is the full remote table contract. Every verb may fail with a
// transport error; callers decide how to degrade.
type Store interface {
	Fetcher
	Inserter
	Updater
	Deleter
}

// RemoteError describes a failed call to the table service.
type RemoteError struct {
	Op     string
	Table  string
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.Table, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the call could succeed.
func (e *RemoteError) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// --- Generics Support ---

// Decode converts backend rows into typed records via a JSON round trip.
func Decode[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return out, nil
}

// Encode converts a typed record into a backend row.
func Encode(v any) (Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// FetchAs fetches and decodes in one step.
func FetchAs[T any](ctx context.Context, s Fetcher, table string, q Query, cred string) ([]T, error) {
	rows, err := s.Fetch(ctx, table, q, cred)
	if err != nil {
		return nil, err
	}
	return Decode[T](rows)
}

// InsertAs encodes records, inserts them and decodes the returned rows.
func InsertAs[T any](ctx context.Context, s Inserter, table, onConflict string, cred string, records ...T) ([]T, error) {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row, err := Encode(r)
		if err != nil {
			return nil, fmt.Errorf("encode %s row: %w", table, err)
		}
		rows = append(rows, row)
	}
	out, err := s.Insert(ctx, table, onConflict, rows, cred)
	if err != nil {
		return nil, err
	}
	return Decode[T](out)
}
