package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/streamio/streamio-go/pkg/wire"
)

// File layout constants.
const (
	entryExt  = ".entry.zst"
	tmpExt    = ".tmp"
	fileMode  = 0o600
	dirMode   = 0o700
	recordVer = 1
)

// fileRecord is the on-disk form of an Entry. Data is kept in its CBOR
// encoding so integer and map types survive a round trip unchanged.
type fileRecord struct {
	Version  int       `json:"version"`
	ID       string    `json:"id"`
	Data     []byte    `json:"data"`
	Hash     string    `json:"hash,omitempty"`
	Revision string    `json:"revision"`
	UserID   string    `json:"user_id,omitempty"`
	Expire   time.Time `json:"expire"`
}

// FileStore is a directory-backed implementation of the Store interface.
// Each entry lives in its own zstd-compressed JSON file named after the
// digest of its id.
type FileStore struct {
	mu  sync.Mutex
	dir string

	enc    *zstd.Encoder
	dec    *zstd.Decoder
	closed bool
}

// NewFileStore creates a file store rooted at dir. The directory is created
// by Initialize.
func NewFileStore(dir string) (*FileStore, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &FileStore{dir: dir, enc: enc, dec: dec}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Initialize creates the store directory, removes leftovers of interrupted
// writes and deletes expired entries.
func (s *FileStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := s.compact(); err != nil {
		return err
	}
	_, err := s.Sweep(ctx, time.Now())
	return err
}

// Get reads the entry for id.
func (s *FileStore) Get(ctx context.Context, id string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(s.path(id))
	if err != nil {
		return nil, err
	}
	return rec.entry()
}

// Put writes data under id.
func (s *FileStore) Put(ctx context.Context, id string, data any, meta Meta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkID(id); err != nil {
		return "", err
	}

	encoded, err := wire.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode cache data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	var current string
	existing, err := s.read(path)
	switch {
	case err == nil:
		current = existing.Revision
	case !errors.Is(err, ErrNotFound):
		return "", err
	}
	if err := checkRevision(id, meta.Revision, current); err != nil {
		return "", err
	}

	rev, err := nextRevision(current, data)
	if err != nil {
		return "", err
	}
	rec := &fileRecord{
		Version:  recordVer,
		ID:       id,
		Data:     encoded,
		Hash:     meta.Hash,
		Revision: rev,
		UserID:   meta.UserID,
		Expire:   meta.Expire,
	}
	if err := s.write(path, rec); err != nil {
		return "", err
	}
	return rev, nil
}

// Delete removes the entry file for id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Sweep deletes entries expired at now. Unreadable entry files are removed
// as well since they can never be served.
func (s *FileStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.list(entryExt)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		path := filepath.Join(s.dir, name)
		rec, err := s.read(path)
		if err == nil && (rec.Expire.IsZero() || !now.After(rec.Expire)) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove expired entry: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Close releases the compression resources. Safe to call more than once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.dec.Close()
	return s.enc.Close()
}

// compact removes temp files left behind by interrupted writes.
func (s *FileStore) compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.list(tmpExt)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove temp file: %w", err)
		}
	}
	return nil
}

func (s *FileStore) path(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+entryExt)
}

func (s *FileStore) list(suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *FileStore) read(path string) (*fileRecord, error) {
	compressed, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress cache entry: %w", err)
	}
	rec := &fileRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return rec, nil
}

func (s *FileStore) write(path string, rec *fileRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp := path + tmpExt
	if err := os.WriteFile(tmp, s.enc.EncodeAll(raw, nil), fileMode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (r *fileRecord) entry() (*Entry, error) {
	var data any
	if len(r.Data) > 0 {
		if err := wire.Unmarshal(r.Data, &data); err != nil {
			return nil, fmt.Errorf("decode cache data: %w", err)
		}
	}
	return &Entry{
		ID:       r.ID,
		Data:     data,
		Hash:     r.Hash,
		Revision: r.Revision,
		UserID:   r.UserID,
		Expire:   r.Expire,
	}, nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
