package chunk

import (
	"fmt"
	"unicode"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// Options configures a Splitter.
type Options struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the most characters carried from the end of one chunk to
	// the start of the next.
	Overlap int

	// Separators overrides DefaultSeparators.
	Separators []string
}

// Splitter splits text recursively on a ranked list of separators and
// merges the pieces into chunks of at most Size characters.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// New creates a Splitter. Size must be positive and Overlap in [0, Size).
func New(opts Options) (*Splitter, error) {
	if opts.Size <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunk size must be positive, got %d", opts.Size), nil)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		return nil, errors.New(errors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunk overlap must be in [0, %d), got %d", opts.Size, opts.Overlap), nil)
	}

	seps := opts.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	s := &Splitter{size: opts.Size, overlap: opts.Overlap}
	for _, sep := range seps {
		s.separators = append(s.separators, []rune(sep))
	}
	return s, nil
}

// Split chunks text with the given size and overlap and default separators.
func Split(text string, size, overlap int) ([]Chunk, error) {
	s, err := New(Options{Size: size, Overlap: overlap})
	if err != nil {
		return nil, err
	}
	return s.Split("", text), nil
}

// span is a half-open rune range [start, end).
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// Split chunks text for document docID. Whitespace-only text yields no
// chunks; any other text yields at least one.
func (s *Splitter) Split(docID, text string) []Chunk {
	runes := []rune(text)
	spans := s.split(runes, span{0, len(runes)}, s.separators)

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			DocumentID: docID,
			Content:    string(runes[sp.start:sp.end]),
			Start:      sp.start,
			End:        sp.end,
		})
	}
	return chunks
}

// split breaks sp on the first separator present in it, recursing with the
// remaining separators into pieces still longer than size.
func (s *Splitter) split(text []rune, sp span, seps [][]rune) []span {
	sep := []rune{}
	var rest [][]rune
	for i, cand := range seps {
		if len(cand) == 0 {
			sep = cand
			rest = nil
			break
		}
		if indexRunes(text, sp.start, sp.end, cand) >= 0 {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	var out, good []span
	for _, piece := range splitOn(text, sp, sep) {
		if piece.len() <= s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(text, good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, s.split(text, piece, [][]rune{{}})...)
			continue
		}
		out = append(out, s.split(text, piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(text, good)...)
	}
	return out
}

// merge packs contiguous pieces into windows of at most size runes. When a
// window is emitted, leading pieces are dropped until at most overlap runes
// remain, and those carry into the next window.
func (s *Splitter) merge(text []rune, pieces []span) []span {
	var out []span
	var window []span
	total := 0

	for _, p := range pieces {
		l := p.len()
		if total+l > s.size && len(window) > 0 {
			if t, ok := trim(text, span{window[0].start, window[len(window)-1].end}); ok {
				out = append(out, t)
			}
			for total > s.overlap || (total+l > s.size && total > 0) {
				total -= window[0].len()
				window = window[1:]
			}
		}
		window = append(window, p)
		total += l
	}
	if len(window) > 0 {
		if t, ok := trim(text, span{window[0].start, window[len(window)-1].end}); ok {
			out = append(out, t)
		}
	}
	return out
}

// splitOn cuts sp at each occurrence of sep, keeping the separator at the
// start of the following piece. An empty sep cuts between every rune.
// Empty pieces are omitted.
func splitOn(text []rune, sp span, sep []rune) []span {
	if len(sep) == 0 {
		out := make([]span, 0, sp.len())
		for i := sp.start; i < sp.end; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}

	var out []span
	start := sp.start
	from := sp.start
	for {
		i := indexRunes(text, from, sp.end, sep)
		if i < 0 {
			break
		}
		if i > start {
			out = append(out, span{start, i})
		}
		start = i
		from = i + len(sep)
	}
	if sp.end > start {
		out = append(out, span{start, sp.end})
	}
	return out
}

// indexRunes returns the first index of sep in text[from:to], or -1.
func indexRunes(text []rune, from, to int, sep []rune) int {
	n := len(sep)
outer:
	for i := from; i+n <= to; i++ {
		for j := 0; j < n; j++ {
			if text[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// trim narrows sp to exclude surrounding whitespace. ok is false when
// nothing remains.
func trim(text []rune, sp span) (span, bool) {
	for sp.start < sp.end && unicode.IsSpace(text[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && unicode.IsSpace(text[sp.end-1]) {
		sp.end--
	}
	return sp, sp.len() > 0
}
