package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE chunks (
	idx         INTEGER PRIMARY KEY,
	document_id TEXT NOT NULL,
	content     TEXT NOT NULL,
	start       INTEGER NOT NULL,
	"end"       INTEGER NOT NULL,
	vector      BLOB NOT NULL
);`

// Keys of the meta table.
const (
	metaFormatVersion = "format_version"
	metaDimensions    = "dimensions"
	metaModel         = "embedder_model"
	metaDocumentID    = "document_id"
	metaCreatedAt     = "created_at"
	metaChunkCount    = "chunk_count"
	metaGraphSHA256   = "graph_sha256"
)

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// writeChunksDB writes idx to a fresh SQLite file at path. graphSum is the
// checksum of the graph export committed alongside it, empty for none.
func writeChunksDB(ctx context.Context, path string, idx *Index, graphSum string) (err error) {
	_ = os.Remove(path)
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		metaFormatVersion: strconv.Itoa(FormatVersion),
		metaDimensions:    strconv.Itoa(idx.dims),
		metaModel:         idx.model,
		metaDocumentID:    idx.documentID,
		metaCreatedAt:     idx.createdAt.Format(time.RFC3339Nano),
		metaChunkCount:    strconv.Itoa(len(idx.entries)),
	}
	if graphSum != "" {
		meta[metaGraphSHA256] = graphSum
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (idx, document_id, content, start, "end", vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range idx.entries {
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, c.Index, c.DocumentID, c.Content, c.Start, c.End, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// readMeta returns the meta table of an open database.
func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// readEntries returns all chunk rows ordered by index.
func readEntries(ctx context.Context, db *sql.DB, dims int) ([]Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT idx, document_id, content, start, "end", vector FROM chunks ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			blob []byte
		)
		c := &e.Chunk
		if err := rows.Scan(&c.Index, &c.DocumentID, &c.Content, &c.Start, &c.End, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		if len(vec) != dims {
			return nil, fmt.Errorf("chunk %d: %w", c.Index, ErrDimensionMismatch{Expected: dims, Got: len(vec)})
		}
		e.Vector = vec
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
