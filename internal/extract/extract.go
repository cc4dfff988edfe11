// Package extract turns PDF documents into plain text.
package extract

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// TextExtractor extracts the text of a document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *Document) (*Result, error)
}

// Result is the outcome of a successful extraction.
type Result struct {
	// DocumentID identifies the source bytes.
	DocumentID string

	// Text is every page's text in page order, each followed by a newline.
	Text string

	// Pages is the page count of the document.
	Pages int

	// Encrypted reports whether the document needed decryption.
	Encrypted bool

	// Warnings lists pages whose text could not be read. Those pages
	// contribute empty text.
	Warnings []PageWarning
}

// PageWarning records a page that failed to extract.
type PageWarning struct {
	Page int
	Err  error
}

func (w PageWarning) String() string {
	return fmt.Sprintf("page %d: %v", w.Page, w.Err)
}

// Extractor reads PDFs with github.com/ledongthuc/pdf.
type Extractor struct {
	logger *slog.Logger

	// pageText reads one page; replaced in tests.
	pageText func(p pdf.Page) (string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for page warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:   slog.Default(),
		pageText: readPage,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads doc and returns its text.
//
// A missing or wrong password yields a DecryptionError; unreadable input
// yields an ExtractionError. A page that fails on its own is recorded in
// Result.Warnings and does not fail the document.
func (e *Extractor) Extract(ctx context.Context, doc *Document) (*Result, error) {
	if doc == nil {
		return nil, errors.ExtractionError("no document given", nil)
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, errors.ExtractionError(fmt.Sprintf("failed to read %s", doc.Name()), err).
			WithDetail("path", doc.Path)
	}
	if len(data) == 0 {
		return nil, errors.ExtractionError(fmt.Sprintf("%s is empty", doc.Name()), nil)
	}

	r, err := open(data, doc.Password)
	if err != nil {
		return nil, classifyOpenError(doc, err)
	}

	res := &Result{
		DocumentID: DocumentID(data),
		Pages:      r.NumPage(),
		Encrypted:  !r.Trailer().Key("Encrypt").IsNull(),
	}

	var text strings.Builder
	for i := 1; i <= res.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.CancelledError("extraction cancelled", err)
		}

		pageText, err := e.safePageText(r, i)
		if err != nil {
			res.Warnings = append(res.Warnings, PageWarning{Page: i, Err: err})
			e.logger.Warn("page extraction failed",
				slog.String("document", doc.Name()),
				slog.Int("page", i),
				slog.String("error", err.Error()))
			pageText = ""
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	res.Text = text.String()

	e.logger.Debug("document extracted",
		slog.String("document", doc.Name()),
		slog.Int("pages", res.Pages),
		slog.Int("warnings", len(res.Warnings)),
		slog.Int("chars", text.Len()))
	return res, nil
}

// open parses data, trying password once if the document is encrypted.
// The parser can panic on malformed input, so panics become errors.
func open(data []byte, password string) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	tried := false
	pw := func() string {
		if tried {
			return ""
		}
		tried = true
		return password
	}
	return pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), pw)
}

func classifyOpenError(doc *Document, err error) error {
	if stderrors.Is(err, pdf.ErrInvalidPassword) {
		msg := fmt.Sprintf("%s is encrypted and the password is wrong", doc.Name())
		if doc.Password == "" {
			msg = fmt.Sprintf("%s is encrypted and no password was given", doc.Name())
		}
		return errors.DecryptionError(msg, err)
	}
	if strings.Contains(err.Error(), "encrypt") {
		return errors.DecryptionError(fmt.Sprintf("%s uses an unsupported encryption scheme", doc.Name()), err)
	}
	return errors.ExtractionError(fmt.Sprintf("%s is not a readable PDF", doc.Name()), err).
		WithDetail("path", doc.Path)
}

func (e *Extractor) safePageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("panic reading page: %v", rec)
		}
	}()

	p := r.Page(n)
	if p.V.IsNull() {
		return "", fmt.Errorf("page object missing")
	}
	return e.pageText(p)
}

func readPage(p pdf.Page) (string, error) {
	return p.GetPlainText(nil)
}
