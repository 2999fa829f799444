// Package storage provides primitives for persisting the item collection and
// holding user credentials. It defines the Storage interface along with a
// JSON file implementation that reads and rewrites the whole collection on
// every operation, plus the in-memory credential store.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"itemstore/internal/models"
	"itemstore/internal/pkg/logger"
	"itemstore/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ErrParse indicates that the data file does not hold a JSON array of items.
var ErrParse = errors.New("storage: malformed item file")

const filePerm = 0o644

// Storage defines the operations of the item collection backing store.
type Storage interface {
	// EnsureExists creates the backing file holding an empty array if it is missing.
	EnsureExists() error
	// Load reads and parses the full collection.
	Load() ([]models.Item, error)
	// Save replaces the persisted collection with items.
	Save(items []models.Item) error
	// Lock acquires the exclusive write lock of the backing file and returns its release func.
	Lock() (unlock func())
}

// FileStorage implements Storage on a single pretty-printed JSON file.
type FileStorage struct {
	path      string
	serialize bool
	writeMu   *sync.Mutex

	mu          sync.Mutex
	lastWritten []byte

	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewFileStorage returns a FileStorage for path. When serialize is set, Lock
// returns a mutex shared by every FileStorage of the same file in the process.
func NewFileStorage(path string, serialize bool, l *logger.Logger, m *metrics.Metrics) *FileStorage {
	return &FileStorage{
		path:      path,
		serialize: serialize,
		writeMu:   pathLock(path),
		log:       l,
		metrics:   m,
	}
}

// Path returns the location of the backing file.
func (s *FileStorage) Path() string {
	return s.path
}

// Lock implements Storage.
func (s *FileStorage) Lock() func() {
	if !s.serialize {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

// EnsureExists implements Storage.
func (s *FileStorage) EnsureExists() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		s.log.Sugar().Errorf("Failed to stat item file %s: %s", s.path, err)
		return fmt.Errorf("storage: stat %s: %w", s.path, err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		s.log.Sugar().Errorf("Failed to create item file %s: %s", s.path, err)
		return fmt.Errorf("storage: create %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("[]")); err != nil {
		s.log.Sugar().Errorf("Failed to initialize item file %s: %s", s.path, err)
		return fmt.Errorf("storage: initialize %s: %w", s.path, err)
	}
	s.remember([]byte("[]"))
	s.log.Info("created empty item file", zap.String("path", s.path))
	return nil
}

// Load implements Storage.
func (s *FileStorage) Load() ([]models.Item, error) {
	items, err := s.load()
	s.metrics.ObserveStore("load", err)
	if err == nil {
		s.metrics.SetItems(len(items))
	}
	return items, err
}

func (s *FileStorage) load() ([]models.Item, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Sugar().Errorf("Failed to read item file %s: %s", s.path, err)
		return nil, fmt.Errorf("storage: read %s: %w", s.path, err)
	}

	var entries []storedItem
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Sugar().Errorf("Failed to parse item file %s: %s", s.path, err)
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	items := make([]models.Item, 0, len(entries))
	for i, entry := range entries {
		item, err := entry.item()
		if err != nil {
			s.log.Sugar().Errorf("Invalid entry %d in item file %s: %s", i, s.path, err)
			return nil, fmt.Errorf("%w: entry %d: %w", ErrParse, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// storedItem is an item as read from the data file, with absent fields left nil.
type storedItem struct {
	ID   *uint64 `json:"id"`
	Name *string `json:"name"`
}

func (e storedItem) item() (models.Item, error) {
	switch {
	case e.ID == nil:
		return models.Item{}, errors.New("missing id")
	case *e.ID == 0:
		return models.Item{}, errors.New("id must be at least 1")
	case e.Name == nil:
		return models.Item{}, errors.New("missing name")
	}
	return models.Item{ID: *e.ID, Name: *e.Name}, nil
}

// Save implements Storage. The collection is written to a temporary file in
// the same directory and renamed over the data file.
func (s *FileStorage) Save(items []models.Item) error {
	err := s.save(items)
	s.metrics.ObserveStore("save", err)
	if err == nil {
		s.metrics.SetItems(len(items))
	}
	return err
}

func (s *FileStorage) save(items []models.Item) error {
	if items == nil {
		items = []models.Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		s.log.Sugar().Errorf("Failed to serialize items: %s", err)
		return fmt.Errorf("storage: serialize: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		s.log.Sugar().Errorf("Failed to create temporary item file: %s", err)
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.log.Sugar().Errorf("Failed to write temporary item file %s: %s", tmpName, err)
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("storage: chmod temp file: %w", err)
	}

	s.remember(data)
	if err := os.Rename(tmpName, s.path); err != nil {
		s.log.Sugar().Errorf("Failed to replace item file %s: %s", s.path, err)
		return fmt.Errorf("storage: replace %s: %w", s.path, err)
	}
	return nil
}

// remember records the bytes this process last wrote, so the watcher can
// tell its own writes from external edits.
func (s *FileStorage) remember(data []byte) {
	s.mu.Lock()
	s.lastWritten = append(s.lastWritten[:0], data...)
	s.mu.Unlock()
}

// wroteLast reports whether data equals the bytes this process last wrote.
func (s *FileStorage) wroteLast(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWritten != nil && bytes.Equal(s.lastWritten, data)
}

var pathLocks = struct {
	sync.Mutex
	m map[string]*sync.Mutex
}{m: make(map[string]*sync.Mutex)}

// pathLock returns the process-wide write mutex of the file at path.
func pathLock(path string) *sync.Mutex {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	pathLocks.Lock()
	defer pathLocks.Unlock()
	mu, ok := pathLocks.m[key]
	if !ok {
		mu = &sync.Mutex{}
		pathLocks.m[key] = mu
	}
	return mu
}
