// Package engine is the cache reconciliation core: it mediates every read and
// write between the in-process snapshots, the encrypted wallet files on disk
// and the remote table service.
package engine

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

var (
	// ErrRemoteWrite reports that a mutation was not confirmed by the remote
	// store. The cache was left as it was before the call, except for the
	// documented optimistic operations.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrInvalidEntry is returned when a record fails validation.
	ErrInvalidEntry = errors.New("invalid record")
	// ErrUnknownUser is returned when an operation needs an identity and got none.
	ErrUnknownUser = errors.New("unknown user")
)

// LedgerStore is the offline safety net for one user's wallet.
type LedgerStore interface {
	// Load never fails: missing, corrupt or undecodable data reads as empty.
	Load(email string) []schema.LedgerEntry
	// Save fails only when the filesystem write itself fails.
	Save(email string, entries []schema.LedgerEntry) error
}

// StorageError is the fatal local write failure. It means the offline
// safety net is broken and the user must be told.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
