package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/streamio/streamio-go/pkg/wire"
)

// Store errors.
var (
	ErrNotFound         = errors.New("cache entry not found")
	ErrRevisionConflict = errors.New("cache revision conflict")
	ErrInvalidID        = errors.New("cache entry id must not be empty")
)

// Entry is one cached resource snapshot.
type Entry struct {
	ID       string
	Data     any
	Hash     string
	Revision string
	UserID   string
	Expire   time.Time
}

// Expired reports whether the entry is past its expiry at now. Entries
// without an expiry never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.Expire.IsZero() && now.After(e.Expire)
}

// Meta carries the write-side metadata of a Put.
type Meta struct {
	// Revision is the last revision the writer saw. Empty when the writer
	// believes the entry does not exist yet.
	Revision string
	Hash     string
	UserID   string
	Expire   time.Time
}

// Store is the cache store contract.
type Store interface {
	// Initialize prepares the store and deletes expired entries.
	Initialize(ctx context.Context) error

	// Get returns the entry for id or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// Put writes data under id and returns the new revision. It fails with
	// ErrRevisionConflict when meta.Revision is not the current revision.
	Put(ctx context.Context, id string, data any, meta Meta) (string, error)

	// Delete removes the entry for id. Deleting a missing entry is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Sweep deletes all entries expired at now and returns how many were
	// removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ConflictError describes a rejected write.
type ConflictError struct {
	ID       string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cache revision conflict for %q: have %q, current %q", e.ID, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrRevisionConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrRevisionConflict
}

// checkRevision enforces optimistic concurrency. current is empty when the
// entry does not exist.
func checkRevision(id, expected, current string) error {
	if expected != current {
		return &ConflictError{ID: id, Expected: expected, Actual: current}
	}
	return nil
}

// nextRevision derives the revision following prev for data. Revisions have
// the form "<generation>-<digest>".
func nextRevision(prev string, data any) (string, error) {
	encoded, err := wire.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode cache data: %w", err)
	}
	sum := blake2b.Sum256(encoded)
	return strconv.Itoa(generation(prev)+1) + "-" + hex.EncodeToString(sum[:8]), nil
}

// generation returns the numeric prefix of a revision, 0 if absent.
func generation(rev string) int {
	prefix, _, _ := strings.Cut(rev, "-")
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func checkID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	return nil
}
