package idf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("idf: not found")

// Gateway loads and persists IDF documents. It is the only component that
// touches the document grammar; the orchestration core consumes a Model
// and hands it back for persistence.
type Gateway struct {
	logger *slog.Logger
}

// NewGateway creates a document gateway.
func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{logger: logger}
}

// Load parses the document at path into a fresh Model.
func (g *Gateway) Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("idf: open %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("idf: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("idf: parse %s: %w", path, err)
	}
	g.logger.Debug("idf loaded", "path", path, "classes", len(m.Classes()))
	return m, nil
}

// Save serializes the model to path. The write goes through a temp file
// and rename so a failed write never truncates the existing document, and
// it respects ctx so a slow disk surfaces as a bounded persist failure
// instead of hanging the batch.
func (g *Gateway) Save(ctx context.Context, m *Model, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("idf: save %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".epmod-*.idf")
	if err != nil {
		return fmt.Errorf("idf: save %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	done := make(chan error, 1)
	go func() {
		err := m.Write(tmp)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("idf: save %s: %w", path, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("idf: save %s: %w", path, err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("idf: save %s: %w", path, err)
	}
	g.logger.Debug("idf saved", "path", path)
	return nil
}
