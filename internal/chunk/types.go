// Package chunk splits extracted document text into overlapping chunks.
package chunk

// Chunk size defaults, in characters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences,
// words, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is a retrievable unit of document text. Chunks are immutable once
// created.
type Chunk struct {
	// Index is the 0-based position of the chunk in its document.
	Index int

	// DocumentID identifies the document the chunk came from.
	DocumentID string

	// Content is the chunk text, trimmed of surrounding whitespace.
	Content string

	// Start and End are rune offsets of Content within the extracted text.
	Start int
	End   int
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.End - c.Start
}
