package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Document is a PDF supplied by the caller, either as a path or as bytes.
type Document struct {
	// Path is the file to read when Data is empty. Also used in log output.
	Path string

	// Data holds the raw PDF bytes.
	Data []byte

	// Password unlocks encrypted documents. Empty means none.
	Password string
}

// NewDocument returns a Document that reads path lazily.
func NewDocument(path, password string) *Document {
	return &Document{Path: path, Password: password}
}

// Bytes returns the document content, reading Path on first use.
func (d *Document) Bytes() ([]byte, error) {
	if len(d.Data) > 0 {
		return d.Data, nil
	}
	if d.Path == "" {
		return nil, fmt.Errorf("document has neither data nor path")
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, err
	}
	d.Data = data
	return data, nil
}

// Name returns a label for logs and reports.
func (d *Document) Name() string {
	if d.Path != "" {
		return d.Path
	}
	return "<memory>"
}

// DocumentID derives a stable identifier from document bytes: the first 16
// hex characters of their SHA-256.
func DocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
