package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// Persist writes the index to dir under an exclusive directory lock.
// Both files are written to .tmp siblings first. The graph is renamed into
// place before chunks.db, and chunks.db records the graph checksum, so the
// chunks.db rename is the commit point: Load ignores a graph that does not
// match the committed chunks.db and rebuilds it from the stored vectors.
func (idx *Index) Persist(ctx context.Context, dir string) error {
	if idx == nil || len(idx.entries) == 0 {
		return errors.NotBuiltError("cannot persist an index that was never built")
	}
	start := time.Now()

	lock := NewDirLock(dir)
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release index lock", slog.String("error", err.Error()))
		}
	}()

	graphPath := filepath.Join(dir, GraphFile)
	graphTmp := graphPath + ".tmp"
	dbPath := filepath.Join(dir, ChunksFile)
	dbTmp := dbPath + ".tmp"
	cleanup := func() {
		_ = os.Remove(graphTmp)
		_ = os.Remove(dbTmp)
	}

	graphSum := ""
	if idx.graph != nil {
		sum, err := idx.graph.exportFile(graphTmp)
		if err != nil {
			cleanup()
			return persistError(ctx, dir, err)
		}
		graphSum = sum
	}
	if err := writeChunksDB(ctx, dbTmp, idx, graphSum); err != nil {
		cleanup()
		return persistError(ctx, dir, err)
	}

	if idx.graph != nil {
		if err := os.Rename(graphTmp, graphPath); err != nil {
			cleanup()
			return persistError(ctx, dir, fmt.Errorf("rename graph file: %w", err))
		}
	} else if err := os.Remove(graphPath); err != nil && !os.IsNotExist(err) {
		cleanup()
		return persistError(ctx, dir, fmt.Errorf("remove stale graph: %w", err))
	}
	if err := os.Rename(dbTmp, dbPath); err != nil {
		cleanup()
		return persistError(ctx, dir, fmt.Errorf("rename chunks database: %w", err))
	}

	slog.Info("index persisted",
		slog.String("dir", dir),
		slog.Int("chunks", len(idx.entries)),
		slog.Bool("graph", idx.graph != nil),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func persistError(ctx context.Context, dir string, err error) error {
	if ctx.Err() != nil {
		return errors.FromContext(ctx, err)
	}
	return errors.PersistenceError(fmt.Sprintf("failed to persist index to %s", dir), err).
		WithDetail("dir", dir)
}

func loadError(dir, msg string, err error) error {
	return errors.PersistenceError(fmt.Sprintf("cannot load index from %s: %s", dir, msg), err).
		WithDetail("dir", dir)
}

// Load reads an index persisted by Persist. Only the query parameters of
// opts (ExactThreshold, M, EfSearch) are used.
func Load(ctx context.Context, dir string, opts BuildOptions) (*Index, error) {
	opts = opts.withDefaults()
	start := time.Now()

	info, meta, entries, err := readDir(ctx, dir, true)
	if err != nil {
		return nil, err
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, meta[metaCreatedAt])
	idx := newIndex(entries, info.Dimensions, info.Model, info.DocumentID, createdAt, opts)

	if len(entries) > idx.exactThreshold {
		graphPath := filepath.Join(dir, GraphFile)
		g, err := readGraph(graphPath, meta[metaGraphSHA256], len(entries), idx.m, idx.efSearch)
		if err != nil {
			slog.Warn("graph export unusable, rebuilding from stored vectors",
				slog.String("path", graphPath),
				slog.String("error", err.Error()))
			g = buildGraph(entries, idx.m, idx.efSearch)
		}
		idx.graph = g
	}

	slog.Debug("index loaded",
		slog.String("dir", dir),
		slog.Int("chunks", len(entries)),
		slog.Bool("graph", idx.graph != nil),
		slog.Duration("duration", time.Since(start)))
	return idx, nil
}

// Inspect describes the index persisted in dir without loading vectors.
func Inspect(ctx context.Context, dir string) (*Info, error) {
	info, _, _, err := readDir(ctx, dir, false)
	return info, err
}

// Exists reports whether dir holds a persisted index.
func Exists(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, ChunksFile))
	return err == nil && st.Mode().IsRegular()
}

func readDir(ctx context.Context, dir string, withEntries bool) (*Info, map[string]string, []Entry, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, nil, nil, loadError(dir, "directory not found", err)
	}
	if !st.IsDir() {
		return nil, nil, nil, loadError(dir, "not a directory", nil)
	}
	dbPath := filepath.Join(dir, ChunksFile)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, nil, loadError(dir, ChunksFile+" is missing", err)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, nil, nil, loadError(dir, "cannot open "+ChunksFile, err)
	}
	defer func() { _ = db.Close() }()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, nil, nil, loadError(dir, ChunksFile+" is corrupt", err)
	}

	info, err := parseInfo(dir, meta)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, GraphFile)); err == nil {
		info.HasGraph = true
	}
	if !withEntries {
		return info, meta, nil, nil
	}

	entries, err := readEntries(ctx, db, info.Dimensions)
	if err != nil {
		return nil, nil, nil, loadError(dir, ChunksFile+" is corrupt", err)
	}
	if len(entries) != info.Chunks {
		return nil, nil, nil, loadError(dir,
			fmt.Sprintf("expected %d chunks, found %d", info.Chunks, len(entries)), nil)
	}
	if len(entries) == 0 {
		return nil, nil, nil, loadError(dir, "index is empty", nil)
	}
	return info, meta, entries, nil
}

func parseInfo(dir string, meta map[string]string) (*Info, error) {
	version, err := strconv.Atoi(meta[metaFormatVersion])
	if err != nil {
		return nil, loadError(dir, "missing format version", err)
	}
	if version != FormatVersion {
		return nil, loadError(dir, fmt.Sprintf("unsupported format version %d (want %d)", version, FormatVersion), nil)
	}
	dims, err := strconv.Atoi(meta[metaDimensions])
	if err != nil || dims <= 0 {
		return nil, loadError(dir, "invalid dimensions", err)
	}
	count, err := strconv.Atoi(meta[metaChunkCount])
	if err != nil || count < 0 {
		return nil, loadError(dir, "invalid chunk count", err)
	}
	return &Info{
		Dir:           dir,
		FormatVersion: version,
		Dimensions:    dims,
		Model:         meta[metaModel],
		DocumentID:    meta[metaDocumentID],
		CreatedAt:     meta[metaCreatedAt],
		Chunks:        count,
	}, nil
}
