package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File permission constants.
const (
	// statePermissions is the mode used when writing the state document.
	statePermissions = 0644
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StoreConfig locates the documents on disk.
type StoreConfig struct {
	// StatePath is the state document (rooms, devices, scenes).
	StatePath string
	// AliasesPath is the optional alias document. A missing file is an
	// empty table.
	AliasesPath string
}

// Store is the file-backed owner of the state and alias documents.
//
// Documents are read from disk on every call; nothing is cached between
// requests, so edits made by other writers are picked up immediately.
// View and Update hold one process-wide mutex for their whole duration,
// which serialises every load→resolve→mutate→save cycle in this process.
type Store struct {
	cfg    StoreConfig
	mu     sync.Mutex
	logger Logger
}

// NewStore creates a store for the given paths.
func NewStore(cfg StoreConfig) *Store {
	return &Store{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// LoadDocument reads and decodes the state document.
// Returns ErrStateNotFound if the file does not exist.
func (s *Store) LoadDocument(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.cfg.StatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, s.cfg.StatePath)
		}
		return nil, fmt.Errorf("reading state document: %w", err)
	}
	doc, err := DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.cfg.StatePath, err)
	}
	return doc, nil
}

// LoadAliases reads and decodes the alias document.
// A missing path or file yields an empty table.
func (s *Store) LoadAliases(ctx context.Context) (AliasTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.AliasesPath == "" {
		return AliasTable{}, nil
	}
	raw, err := os.ReadFile(s.cfg.AliasesPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return AliasTable{}, nil
		}
		return nil, fmt.Errorf("reading alias document: %w", err)
	}
	table, err := DecodeAliases(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.cfg.AliasesPath, err)
	}
	return table, nil
}

// View loads both documents under the store lock and passes them to fn.
// Nothing is saved.
func (s *Store) View(ctx context.Context, fn func(doc *Document, aliases AliasTable) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, aliases, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(doc, aliases)
}

// Update runs one load→mutate→save cycle under the store lock.
//
// If fn returns ErrNoChange the cycle ends without saving and Update
// returns nil. Any other error from fn is returned unchanged and nothing
// is saved.
func (s *Store) Update(ctx context.Context, fn func(doc *Document, aliases AliasTable) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, aliases, err := s.load(ctx)
	if err != nil {
		return err
	}

	if err := fn(doc, aliases); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}

	if err := s.save(doc); err != nil {
		return err
	}
	s.logger.Debug("state document saved", "path", s.cfg.StatePath)
	return nil
}

// Save writes doc to the state path under the store lock.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

func (s *Store) load(ctx context.Context) (*Document, AliasTable, error) {
	doc, err := s.LoadDocument(ctx)
	if err != nil {
		return nil, nil, err
	}
	aliases, err := s.LoadAliases(ctx)
	if err != nil {
		// A broken alias file must not take device control down with it.
		s.logger.Warn("ignoring unreadable alias document", "path", s.cfg.AliasesPath, "error", err)
		aliases = AliasTable{}
	}
	return doc, aliases, nil
}

// save writes the document atomically: temp file in the same directory,
// then rename over the original.
func (s *Store) save(doc *Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encoding state document: %w", err)
	}

	dir := filepath.Dir(s.cfg.StatePath)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, statePermissions); err != nil {
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.cfg.StatePath); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
