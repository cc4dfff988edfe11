// Package pipeline orchestrates extraction, chunking, indexing, retrieval,
// prompt assembly and answer generation for one document session.
//
// A Controller moves through Unprocessed, Processing, Ready and Failed.
// Process and Load hold the write lock for their whole duration; Answer
// holds the read lock, so questions run in parallel against a Ready index
// and never observe a half-built one. A failed Process keeps the previous
// index (swap on success).
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/extract"
	"github.com/Aman-CERP/pdfrag/internal/llm"
	"github.com/Aman-CERP/pdfrag/internal/prompt"
	"github.com/Aman-CERP/pdfrag/internal/retrieve"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

// Dependencies are the collaborators of a Controller. Embedder and
// Generator are required; Extractor and Logger have defaults.
type Dependencies struct {
	Extractor extract.TextExtractor
	Embedder  embed.Embedder
	Generator llm.Generator
	Logger    *slog.Logger
}

// Controller owns the chunk list and index of one document session.
type Controller struct {
	cfg       Config
	extractor extract.TextExtractor
	embedder  embed.Embedder
	generator llm.Generator
	splitter  *chunk.Splitter
	retriever *retrieve.Retriever
	assembler *prompt.Assembler
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes Process and Load against each other and against Answer.
	mu    sync.RWMutex
	index *store.Index

	// statusMu guards the fields below so Status never waits on a Process.
	statusMu  sync.Mutex
	state     State
	source    string
	current   indexInfo
	lastErr   error
	updatedAt time.Time
	closed    bool
}

type indexInfo struct {
	documentID string
	chunks     int
	dims       int
}

// New validates cfg and creates a Controller in the Unprocessed state.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Embedder == nil {
		return nil, errors.ConfigError("pipeline requires an embedder", nil)
	}
	if deps.Generator == nil {
		return nil, errors.ConfigError("pipeline requires a generator", nil)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = extract.New(extract.WithLogger(logger))
	}

	splitter, err := chunk.New(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	retriever, err := retrieve.New(cfg.K, cfg.MinScore)
	if err != nil {
		return nil, err
	}
	assembler, err := prompt.New(cfg.Template, cfg.MaxContextChars, prompt.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		extractor: extractor,
		embedder:  deps.Embedder,
		generator: deps.Generator,
		splitter:  splitter,
		retriever: retriever,
		assembler: assembler,
		logger:    logger,
		now:       time.Now,
		state:     Unprocessed,
	}
	c.updatedAt = c.now()
	return c, nil
}

// Process extracts, chunks and indexes doc, optionally persisting the new
// index, and makes it the current index. On failure the previous index, if
// any, stays current and the controller returns to Ready; otherwise it
// moves to Failed. The originating error is returned.
func (c *Controller) Process(ctx context.Context, doc *extract.Document, opts ProcessOptions) (*ProcessReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(); err != nil {
		return nil, err
	}

	report, idx, err := c.process(ctx, doc, opts)
	if err != nil {
		c.fail(err, "process failed")
		return nil, err
	}

	c.index = idx
	c.succeed(report.Source, idx)
	c.logger.Info("document processed",
		slog.String("source", report.Source),
		slog.String("document_id", report.DocumentID),
		slog.Int("pages", report.Pages),
		slog.Int("page_warnings", report.PageWarnings),
		slog.Int("chunks", report.Chunks),
		slog.Bool("persisted", report.Persisted),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (c *Controller) process(ctx context.Context, doc *extract.Document, opts ProcessOptions) (*ProcessReport, *store.Index, error) {
	start := c.now()
	emit := func(e Event) {
		if opts.Progress != nil {
			opts.Progress(e)
		}
	}

	if doc == nil {
		return nil, nil, errors.ValidationError("no document to process", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.CancelledError("process cancelled", err)
	}

	emit(Event{Stage: StageExtract, Message: "Extracting text from " + doc.Name()})
	res, err := c.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, nil, errors.FromContext(ctx, err)
	}

	emit(Event{Stage: StageChunk, Message: fmt.Sprintf("Chunking %d pages", res.Pages)})
	chunks := c.splitter.Split(res.DocumentID, res.Text)
	if len(chunks) == 0 {
		return nil, nil, errors.ExtractionError(fmt.Sprintf("no extractable text in %s", doc.Name()), nil).
			WithSuggestion("The PDF may be scanned or image-only; run it through OCR first")
	}

	build := c.cfg.Build
	build.Progress = func(done, total int) {
		emit(Event{Stage: StageEmbed, Message: "Embedding chunks", Done: done, Total: total})
	}
	emit(Event{Stage: StageEmbed, Message: "Embedding chunks", Total: len(chunks)})
	idx, err := store.Build(ctx, chunks, c.embedder, build)
	if err != nil {
		return nil, nil, err
	}

	report := &ProcessReport{
		DocumentID:   res.DocumentID,
		Source:       doc.Name(),
		Pages:        res.Pages,
		PageWarnings: len(res.Warnings),
		Encrypted:    res.Encrypted,
		Chunks:       idx.Len(),
		Dimensions:   idx.Dimensions(),
	}
	for _, w := range res.Warnings {
		report.Warnings = append(report.Warnings, w.String())
	}

	if opts.PersistDir != "" {
		emit(Event{Stage: StagePersist, Message: "Persisting index to " + opts.PersistDir})
		if err := idx.Persist(ctx, opts.PersistDir); err != nil {
			return nil, nil, err
		}
		report.Persisted = true
		report.PersistDir = opts.PersistDir
	}

	report.Duration = c.now().Sub(start)
	emit(Event{Stage: StageDone, Message: fmt.Sprintf("Indexed %d chunks", report.Chunks)})
	return report, idx, nil
}

// Load makes the index persisted in dir the current index. On failure the
// controller state is left as it was.
func (c *Controller) Load(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusMu.Lock()
	closed := c.closed
	c.statusMu.Unlock()
	if closed {
		return errors.InternalError("pipeline is closed", nil)
	}

	idx, err := store.Load(ctx, dir, c.cfg.Build)
	if err == nil {
		err = c.checkEmbedder(idx)
	}
	if err != nil {
		c.statusMu.Lock()
		c.lastErr = err
		c.updatedAt = c.now()
		c.statusMu.Unlock()
		c.logger.Warn("load failed", append([]any{slog.String("dir", dir)}, errors.FormatForLog(err)...)...)
		return err
	}

	c.index = idx
	c.succeed(dir, idx)
	c.logger.Info("index loaded",
		slog.String("dir", dir),
		slog.String("document_id", idx.DocumentID()),
		slog.Int("chunks", idx.Len()))
	return nil
}

// checkEmbedder rejects an index built by a different embedding model.
func (c *Controller) checkEmbedder(idx *store.Index) error {
	model, dims := c.embedder.ModelName(), c.embedder.Dimensions()
	if idx.Model() == model && (dims == 0 || dims == idx.Dimensions()) {
		return nil
	}
	return errors.New(errors.ErrCodeEmbedderMismatch,
		fmt.Sprintf("index was built with %s (%d dimensions) but the configured embedder is %s (%d dimensions)",
			idx.Model(), idx.Dimensions(), model, dims), nil).
		WithSuggestion("Configure the same embeddings provider and model, or re-process the PDF")
}

// Answer retrieves the chunks most similar to question and asks the
// generator to answer from them. It never changes controller state.
func (c *Controller) Answer(ctx context.Context, question string) (*QueryResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := c.now()
	c.statusMu.Lock()
	state, closed := c.state, c.closed
	c.statusMu.Unlock()
	if closed {
		return nil, errors.InternalError("pipeline is closed", nil)
	}
	if state != Ready || c.index == nil {
		return nil, errors.NotReadyError(fmt.Sprintf("cannot answer questions in state %s", state))
	}

	results, err := c.retriever.Retrieve(ctx, c.index, c.embedder, question)
	if err != nil {
		return nil, errors.FromContext(ctx, err)
	}

	p, err := c.assembler.Assemble(question, retrieve.Contents(results))
	if err != nil {
		return nil, err
	}

	answer, err := c.generator.Generate(ctx, p.Text, c.cfg.Generation)
	if err != nil {
		if errors.IsCancelled(err) {
			return nil, errors.FromContext(ctx, err)
		}
		if errors.KindOf(err) == "" {
			err = errors.GenerationError("answer generation failed", err)
		}
		return nil, err
	}

	result := &QueryResult{
		Question:      question,
		Answer:        answer,
		Sources:       results[:p.Used],
		DroppedChunks: p.Dropped,
		Model:         c.generator.ModelName(),
		Duration:      c.now().Sub(start),
	}
	c.logger.Debug("question answered",
		slog.Int("sources", len(result.Sources)),
		slog.Int("dropped", result.DroppedChunks),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// State returns the current state without waiting for a running Process.
func (c *Controller) State() State {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.state
}

// Status returns a snapshot. While Process runs, index details describe
// the index that is still current.
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return Status{
		State:         c.state,
		DocumentID:    c.current.documentID,
		Source:        c.source,
		Chunks:        c.current.chunks,
		Dimensions:    c.current.dims,
		EmbedderModel: c.embedder.ModelName(),
		LastError:     c.lastErr,
		UpdatedAt:     c.updatedAt,
	}
}

// Close releases the embedder and generator. Later calls fail.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusMu.Lock()
	if c.closed {
		c.statusMu.Unlock()
		return nil
	}
	c.closed = true
	c.statusMu.Unlock()

	var errs []error
	if err := c.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close embedder: %w", err))
	}
	if err := c.generator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close generator: %w", err))
	}
	c.index = nil
	c.statusMu.Lock()
	c.current = indexInfo{}
	c.statusMu.Unlock()
	if len(errs) > 0 {
		return errors.InternalError("close pipeline", stderrors.Join(errs...))
	}
	return nil
}

// begin moves to Processing. mu must be held.
func (c *Controller) begin() error {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.closed {
		return errors.InternalError("pipeline is closed", nil)
	}
	c.state = Processing
	c.updatedAt = c.now()
	return nil
}

// fail records err and leaves Processing. mu must be held.
func (c *Controller) fail(err error, msg string) {
	c.statusMu.Lock()
	c.lastErr = err
	if c.index != nil {
		c.state = Ready
	} else {
		c.state = Failed
	}
	state := c.state
	c.updatedAt = c.now()
	c.statusMu.Unlock()

	attrs := append([]any{slog.String("state", state.String())}, errors.FormatForLog(err)...)
	c.logger.Warn(msg, attrs...)
}

// succeed moves to Ready with idx as the current index. mu must be held.
func (c *Controller) succeed(source string, idx *store.Index) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.state = Ready
	c.source = source
	c.current = indexInfo{documentID: idx.DocumentID(), chunks: idx.Len(), dims: idx.Dimensions()}
	c.lastErr = nil
	c.updatedAt = c.now()
}
