package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/extract"
	"github.com/Aman-CERP/pdfrag/internal/extract/pdftest"
	"github.com/Aman-CERP/pdfrag/internal/llm"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

// switchEmbedder fails every call while fail is set.
type switchEmbedder struct {
	*embed.StaticEmbedder
	fail  atomic.Bool
	model string
}

func newSwitchEmbedder() *switchEmbedder {
	return &switchEmbedder{StaticEmbedder: embed.NewStaticEmbedder()}
}

func (e *switchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail.Load() {
		return nil, errors.EmbeddingError("provider down", nil)
	}
	return e.StaticEmbedder.Embed(ctx, text)
}

func (e *switchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail.Load() {
		return nil, errors.EmbeddingError("provider down", nil)
	}
	return e.StaticEmbedder.EmbedBatch(ctx, texts)
}

func (e *switchEmbedder) ModelName() string {
	if e.model != "" {
		return e.model
	}
	return e.StaticEmbedder.ModelName()
}

// recordingGenerator remembers the prompts it was given.
type recordingGenerator struct {
	*llm.StaticGenerator
	mu      sync.Mutex
	prompts []string
}

func newRecordingGenerator() *recordingGenerator {
	return &recordingGenerator{StaticGenerator: llm.NewStaticGenerator()}
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.StaticGenerator.Generate(ctx, prompt, opts)
}

func (g *recordingGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Chunking = chunk.Options{Size: 1000, Overlap: 0}
	return cfg
}

func newTestController(t *testing.T, cfg Config) (*Controller, *switchEmbedder, *recordingGenerator) {
	t.Helper()
	emb := newSwitchEmbedder()
	gen := newRecordingGenerator()
	c, err := New(cfg, Dependencies{Embedder: emb, Generator: gen})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, emb, gen
}

func memDoc(pages ...string) *extract.Document {
	return &extract.Document{Data: pdftest.Build(pages...)}
}

func sourceText(res *QueryResult) string {
	var parts []string
	for _, s := range res.Sources {
		parts = append(parts, s.Chunk.Content)
	}
	return strings.Join(parts, "\n")
}

func TestController_AnswersFromProcessedDocument(t *testing.T) {
	// Given: a one page invoice processed with 1000/0 chunking
	c, _, gen := newTestController(t, testConfig())
	ctx := context.Background()

	report, err := c.Process(ctx, memDoc("Invoice #123 dated 2024-01-15 issued by Acme Bank."), ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 1, report.Pages)
	assert.False(t, report.Persisted)
	assert.Equal(t, Ready, c.State())

	// When
	res, err := c.Answer(ctx, "Who issued this document?")

	// Then
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, 1, res.Sources[0].Rank)
	assert.Contains(t, res.Sources[0].Chunk.Content, "Acme Bank")
	assert.Contains(t, res.Answer, "Acme Bank")
	assert.Equal(t, llm.StaticModelName, res.Model)
	assert.Zero(t, res.DroppedChunks)

	p := gen.lastPrompt()
	assert.Contains(t, p, "Acme Bank")
	assert.Contains(t, p, "Question: Who issued this document?")
	assert.Equal(t, Ready, c.State(), "answering does not change state")
}

func TestController_AnswerBeforeProcess(t *testing.T) {
	c, _, _ := newTestController(t, testConfig())

	_, err := c.Answer(context.Background(), "Who issued this document?")

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotReady))
	assert.Equal(t, Unprocessed, c.State())
}

func TestController_EmptyQuestion(t *testing.T) {
	c, _, _ := newTestController(t, testConfig())
	_, err := c.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{})
	require.NoError(t, err)

	_, err = c.Answer(context.Background(), "   ")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmptyQuestion, errors.GetCode(err))
	assert.Equal(t, Ready, c.State())
}

func TestController_EncryptedDocument(t *testing.T) {
	data := pdftest.BuildEncrypted("s3cret", "Confidential merger terms with Globex")

	tests := []struct {
		name      string
		password  string
		wantKind  errors.Kind
		wantState State
	}{
		{name: "no password", password: "", wantKind: errors.KindDecryption, wantState: Failed},
		{name: "wrong password", password: "guess", wantKind: errors.KindDecryption, wantState: Failed},
		{name: "correct password", password: "s3cret", wantState: Ready},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestController(t, testConfig())

			report, err := c.Process(context.Background(),
				&extract.Document{Data: data, Password: tt.password}, ProcessOptions{})

			assert.Equal(t, tt.wantState, c.State())
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, tt.wantKind), "got %v", err)
				assert.Equal(t, err, c.Status().LastError)
				return
			}
			require.NoError(t, err)
			assert.True(t, report.Encrypted)
			assert.Equal(t, 1, report.Chunks)
		})
	}
}

func TestController_ReprocessReplacesIndex(t *testing.T) {
	// Given: a controller that already answered from a first document
	c, _, _ := newTestController(t, testConfig())
	ctx := context.Background()
	_, err := c.Process(ctx, memDoc("The vault is located in Zurich."), ProcessOptions{})
	require.NoError(t, err)

	// When: a second document is processed
	_, err = c.Process(ctx, memDoc("The vault is located in Geneva."), ProcessOptions{})
	require.NoError(t, err)

	// Then: answers come only from the second document
	res, err := c.Answer(ctx, "Where is the vault located?")
	require.NoError(t, err)
	sources := sourceText(res)
	assert.Contains(t, sources, "Geneva")
	assert.NotContains(t, sources, "Zurich")
	assert.Equal(t, 1, c.Status().Chunks)
}

func TestController_FailedReprocessKeepsPreviousIndex(t *testing.T) {
	// Given: a Ready controller
	c, emb, _ := newTestController(t, testConfig())
	ctx := context.Background()
	_, err := c.Process(ctx, memDoc("The vault is located in Zurich."), ProcessOptions{})
	require.NoError(t, err)
	before := c.Status()

	// When: embedding fails while processing another document
	emb.fail.Store(true)
	_, err = c.Process(ctx, memDoc("The vault is located in Geneva."), ProcessOptions{})
	emb.fail.Store(false)

	// Then: the error surfaces, the old index stays current
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindEmbedding), "got %v", err)
	assert.Equal(t, Ready, c.State())

	after := c.Status()
	assert.Equal(t, before.DocumentID, after.DocumentID)
	assert.Error(t, after.LastError)

	res, err := c.Answer(ctx, "Where is the vault located?")
	require.NoError(t, err)
	assert.Contains(t, sourceText(res), "Zurich")
}

func TestController_FirstProcessFailure(t *testing.T) {
	c, emb, _ := newTestController(t, testConfig())
	emb.fail.Store(true)

	_, err := c.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{})

	require.Error(t, err)
	assert.Equal(t, Failed, c.State())

	_, err = c.Answer(context.Background(), "Where is the vault?")
	assert.True(t, errors.IsKind(err, errors.KindNotReady))
}

func TestController_ProcessInputErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  *extract.Document
		want errors.Kind
	}{
		{name: "nil document", doc: nil, want: errors.KindValidation},
		{name: "not a pdf", doc: &extract.Document{Data: []byte("plain text, not a PDF")}, want: errors.KindExtraction},
		{name: "missing file", doc: extract.NewDocument(filepath.Join(t.TempDir(), "missing.pdf"), ""), want: errors.KindExtraction},
		{name: "no text", doc: memDoc(""), want: errors.KindExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestController(t, testConfig())

			_, err := c.Process(context.Background(), tt.doc, ProcessOptions{})

			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tt.want), "got %v", err)
			assert.Equal(t, Failed, c.State())
		})
	}
}

func TestController_ProcessCancelled(t *testing.T) {
	c, _, _ := newTestController(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Process(ctx, memDoc("The vault is located in Zurich."), ProcessOptions{})

	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.Equal(t, Failed, c.State())
}

func TestController_ProgressEvents(t *testing.T) {
	c, _, _ := newTestController(t, testConfig())
	dir := filepath.Join(t.TempDir(), "index")

	var stages []Stage
	var lastEmbed Event
	_, err := c.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{
		PersistDir: dir,
		Progress: func(e Event) {
			if len(stages) == 0 || stages[len(stages)-1] != e.Stage {
				stages = append(stages, e.Stage)
			}
			if e.Stage == StageEmbed {
				lastEmbed = e
			}
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []Stage{StageExtract, StageChunk, StageEmbed, StagePersist, StageDone}, stages)
	assert.Equal(t, 1, lastEmbed.Done)
	assert.Equal(t, 1, lastEmbed.Total)
}

func TestController_PersistAndLoad(t *testing.T) {
	// Given: a document processed into a persistence directory
	dir := filepath.Join(t.TempDir(), "index")
	first, _, _ := newTestController(t, testConfig())
	report, err := first.Process(context.Background(),
		memDoc("Invoice #123 dated 2024-01-15 issued by Acme Bank."), ProcessOptions{PersistDir: dir})
	require.NoError(t, err)
	assert.True(t, report.Persisted)
	assert.Equal(t, dir, report.PersistDir)
	assert.True(t, store.Exists(dir))

	// When: a fresh controller loads it
	second, _, _ := newTestController(t, testConfig())
	require.NoError(t, second.Load(context.Background(), dir))

	// Then
	assert.Equal(t, Ready, second.State())
	st := second.Status()
	assert.Equal(t, report.DocumentID, st.DocumentID)
	assert.Equal(t, report.Chunks, st.Chunks)
	assert.Equal(t, dir, st.Source)

	res, err := second.Answer(context.Background(), "Who issued this document?")
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "Acme Bank")
}

func TestController_LoadFailureKeepsState(t *testing.T) {
	t.Run("unprocessed", func(t *testing.T) {
		c, _, _ := newTestController(t, testConfig())

		err := c.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))

		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindPersistence), "got %v", err)
		assert.Equal(t, Unprocessed, c.State())
		assert.Error(t, c.Status().LastError)
	})

	t.Run("ready", func(t *testing.T) {
		c, _, _ := newTestController(t, testConfig())
		_, err := c.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{})
		require.NoError(t, err)

		err = c.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))

		require.Error(t, err)
		assert.Equal(t, Ready, c.State())
		res, err := c.Answer(context.Background(), "Where is the vault located?")
		require.NoError(t, err)
		assert.Contains(t, sourceText(res), "Zurich")
	})
}

func TestController_LoadRejectsOtherEmbedder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	first, _, _ := newTestController(t, testConfig())
	_, err := first.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{PersistDir: dir})
	require.NoError(t, err)

	emb := newSwitchEmbedder()
	emb.model = "another-model"
	second, err := New(testConfig(), Dependencies{Embedder: emb, Generator: llm.NewStaticGenerator()})
	require.NoError(t, err)
	defer second.Close()

	err = second.Load(context.Background(), dir)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmbedderMismatch, errors.GetCode(err))
	assert.Equal(t, Unprocessed, second.State())
}

func TestController_TruncatesContext(t *testing.T) {
	// Given: four one-page chunks and a budget that fits two of them
	cfg := testConfig()
	cfg.Chunking = chunk.Options{Size: 60, Overlap: 0}
	cfg.MaxContextChars = 100
	c, _, gen := newTestController(t, cfg)

	report, err := c.Process(context.Background(), memDoc(
		"The vault in Zurich holds gold bars.",
		"The vault in Geneva holds old coins.",
		"The vault in Basel holds paintings.",
		"The vault in Bern holds contracts.",
	), ProcessOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, report.Chunks)

	// When
	res, err := c.Answer(context.Background(), "What does the vault hold?")

	// Then: the lowest-ranked chunks were dropped and sources list only what was sent
	require.NoError(t, err)
	assert.Len(t, res.Sources, 2)
	assert.Equal(t, 2, res.DroppedChunks)
	for _, s := range res.Sources {
		assert.Contains(t, gen.lastPrompt(), s.Chunk.Content)
	}
	assert.Equal(t, []int{1, 2}, []int{res.Sources[0].Rank, res.Sources[1].Rank})
}

func TestController_ConcurrentAnswers(t *testing.T) {
	c, _, _ := newTestController(t, testConfig())
	_, err := c.Process(context.Background(), memDoc("Invoice #123 dated 2024-01-15 issued by Acme Bank."), ProcessOptions{})
	require.NoError(t, err)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Answer(context.Background(), "Who issued this document?")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestNew_Validation(t *testing.T) {
	badK := testConfig()
	badK.K = 0
	badChunking := testConfig()
	badChunking.Chunking.Overlap = 2000

	tests := []struct {
		name string
		cfg  Config
		deps Dependencies
		code string
	}{
		{name: "nil embedder", cfg: testConfig(), deps: Dependencies{Generator: llm.NewStaticGenerator()}, code: errors.ErrCodeConfigInvalid},
		{name: "nil generator", cfg: testConfig(), deps: Dependencies{Embedder: embed.NewStaticEmbedder()}, code: errors.ErrCodeConfigInvalid},
		{name: "zero k", cfg: badK, deps: Dependencies{Embedder: embed.NewStaticEmbedder(), Generator: llm.NewStaticGenerator()}, code: errors.ErrCodeConfigInvalid},
		{name: "overlap too large", cfg: badChunking, deps: Dependencies{Embedder: embed.NewStaticEmbedder(), Generator: llm.NewStaticGenerator()}, code: errors.ErrCodeInvalidChunking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.deps)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.True(t, errors.IsKind(err, errors.KindConfig))
		})
	}
}

func TestController_Close(t *testing.T) {
	c, _, _ := newTestController(t, testConfig())
	_, err := c.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Answer(context.Background(), "Where is the vault?")
	assert.Error(t, err)
	_, err = c.Process(context.Background(), memDoc("x"), ProcessOptions{})
	assert.Error(t, err)
}

func TestStatus_JSON(t *testing.T) {
	c, emb, _ := newTestController(t, testConfig())
	emb.fail.Store(true)
	_, _ = c.Process(context.Background(), memDoc("The vault is located in Zurich."), ProcessOptions{})

	data, err := json.Marshal(c.Status())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "failed", got["state"])
	assert.Contains(t, got["last_error"], "provider down")
	assert.Equal(t, embed.StaticModelName, got["embedder_model"])
}
