package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// graphIndex wraps a coder/hnsw graph keyed by entry position.
// coder/hnsw graphs are not safe for concurrent search, so every access
// goes through mu.
type graphIndex struct {
	mu    sync.Mutex
	graph *hnsw.Graph[uint64]
}

func newGraph(m, efSearch int) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = m
	g.EfSearch = efSearch
	g.Ml = 0.25
	// Fixed seed: the same entries always produce the same graph.
	g.Rng = rand.New(rand.NewSource(1))
	return g
}

// buildGraph inserts every entry vector under its position.
func buildGraph(entries []Entry, m, efSearch int) *graphIndex {
	g := newGraph(m, efSearch)
	nodes := make([]hnsw.Node[uint64], len(entries))
	for i, e := range entries {
		nodes[i] = hnsw.MakeNode(uint64(i), e.Vector)
	}
	g.Add(nodes...)
	return &graphIndex{graph: g}
}

// search returns entry positions of up to k approximate neighbours.
func (g *graphIndex) search(query []float32, k int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	nodes := g.graph.Search(query, k)
	keys := make([]int, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, int(n.Key))
	}
	return keys
}

func (g *graphIndex) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.graph.Len()
}

// exportFile writes the graph to path and returns the hex sha256 of the
// bytes written. The caller renames path into place.
func (g *graphIndex) exportFile(path string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create graph file: %w", err)
	}

	h := sha256.New()
	w := bufio.NewWriter(io.MultiWriter(file, h))
	if err := g.graph.Export(w); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("flush graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close graph file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readGraph imports a graph exported by exportFile. The file must hash to
// wantSum when it is set and hold exactly n nodes.
func readGraph(path, wantSum string, n, m, efSearch int) (*graphIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if wantSum != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != wantSum {
			return nil, fmt.Errorf("graph checksum %s does not match %s", got[:12], wantSum[:min(12, len(wantSum))])
		}
	}

	g := newGraph(m, efSearch)
	if err := importGraph(g, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if g.Len() != n {
		return nil, fmt.Errorf("graph has %d nodes, want %d", g.Len(), n)
	}
	return &graphIndex{graph: g}, nil
}

// importGraph recovers from panics inside the decoder on corrupt input.
func importGraph(g *hnsw.Graph[uint64], r io.Reader) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("import graph: %v", p)
		}
	}()
	if err := g.Import(r); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

// normalizeVectorInPlace scales v to unit length. Zero vectors are left as is.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// dot is the cosine similarity of two unit vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
