package memorybank_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stackchat/internal/memorybank"
	"github.com/gosuda/stackchat/internal/stack"
)

// ---------------------------------------------------------------------------
// Mock Backend
// ---------------------------------------------------------------------------

type mockBackend struct {
	providers map[string][]stack.ProviderInfo
	banks     []stack.MemoryBank
	listErr   error
	insertErr error

	providerCalls int

	registered []stack.RegisterMemoryBankRequest
	inserted   map[string][]stack.Document
}

func (m *mockBackend) ListProviders(context.Context) (map[string][]stack.ProviderInfo, error) {
	m.providerCalls++
	return m.providers, nil
}

func (m *mockBackend) ListMemoryBanks(context.Context) ([]stack.MemoryBank, error) {
	return m.banks, m.listErr
}

func (m *mockBackend) RegisterMemoryBank(_ context.Context, req stack.RegisterMemoryBankRequest) (*stack.MemoryBank, error) {
	m.registered = append(m.registered, req)
	b := stack.MemoryBank{Identifier: req.MemoryBankID, ProviderID: req.ProviderID, Type: "vector"}
	m.banks = append(m.banks, b)
	return &b, nil
}

func (m *mockBackend) InsertDocuments(_ context.Context, bankID string, docs []stack.Document) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.inserted == nil {
		m.inserted = map[string][]stack.Document{}
	}
	m.inserted[bankID] = append(m.inserted[bankID], docs...)
	return nil
}

func newMockBackend() *mockBackend {
	return &mockBackend{providers: map[string][]stack.ProviderInfo{
		"memory": {{ProviderID: "faiss-0", ProviderType: "inline::faiss"}},
	}}
}

var testSpec = memorybank.Spec{ID: "docs", EmbeddingModel: "all-MiniLM-L6-v2", ChunkSize: 100, Overlap: 10} //nolint:gochecknoglobals // test fixture

// ---------------------------------------------------------------------------
// Register / Ensure
// ---------------------------------------------------------------------------

func TestRegister_UsesFirstMemoryProvider(t *testing.T) {
	t.Parallel()

	b := newMockBackend()
	bank, err := memorybank.Register(context.Background(), b, testSpec)
	require.NoError(t, err)

	assert.Equal(t, "docs", bank.Identifier)
	require.Len(t, b.registered, 1)
	assert.Equal(t, stack.RegisterMemoryBankRequest{
		MemoryBankID: "docs",
		Params:       stack.VectorBankParams{EmbeddingModel: "all-MiniLM-L6-v2", ChunkSizeInTokens: 100, OverlapSizeInTokens: 10},
		ProviderID:   "faiss-0",
	}, b.registered[0])
}

func TestRegister_PinnedProviderSkipsLookup(t *testing.T) {
	t.Parallel()

	b := newMockBackend()
	spec := testSpec
	spec.ProviderID = "faiss-1"

	bank, err := memorybank.Register(context.Background(), b, spec)
	require.NoError(t, err)
	assert.Equal(t, "faiss-1", bank.ProviderID)
	assert.Zero(t, b.providerCalls)
	require.Len(t, b.registered, 1)
	assert.Equal(t, "faiss-1", b.registered[0].ProviderID)
}

func TestRegister_NoProvider(t *testing.T) {
	t.Parallel()

	b := &mockBackend{providers: map[string][]stack.ProviderInfo{"inference": {{ProviderID: "x"}}}}
	_, err := memorybank.Register(context.Background(), b, testSpec)
	require.ErrorIs(t, err, stack.ErrNoProvider)
	assert.Empty(t, b.registered)
}

func TestRegister_RequiresID(t *testing.T) {
	t.Parallel()

	_, err := memorybank.Register(context.Background(), newMockBackend(), memorybank.Spec{})
	require.ErrorIs(t, err, memorybank.ErrNoBankID)
}

func TestEnsure_CreatesAndLoadsWhenMissing(t *testing.T) {
	t.Parallel()

	b := newMockBackend()
	docs := []stack.Document{{DocumentID: "a.txt", Content: "alpha"}}

	created, err := memorybank.Ensure(context.Background(), b, testSpec, func() ([]stack.Document, error) { return docs, nil })
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, b.registered, 1)
	assert.Equal(t, docs, b.inserted["docs"])

	// Second call sees the bank and does nothing.
	loaded := false
	created, err = memorybank.Ensure(context.Background(), b, testSpec, func() ([]stack.Document, error) {
		loaded = true
		return docs, nil
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, loaded)
	assert.Len(t, b.registered, 1)
}

func TestEnsure_NoDocumentsSkipsInsert(t *testing.T) {
	t.Parallel()

	b := newMockBackend()
	created, err := memorybank.Ensure(context.Background(), b, testSpec, func() ([]stack.Document, error) { return nil, nil })
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, b.inserted)
}

func TestEnsure_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	b := newMockBackend()
	b.listErr = boom
	_, err := memorybank.Ensure(context.Background(), b, testSpec, nil)
	require.ErrorIs(t, err, boom)

	b = newMockBackend()
	created, err := memorybank.Ensure(context.Background(), b, testSpec, func() ([]stack.Document, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, created)
}

func TestEnsure_LoadFailureLeavesNoBank(t *testing.T) {
	t.Parallel()

	b := newMockBackend()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "docs")
	load := func() ([]stack.Document, error) { return memorybank.LoadDir(dir) }

	created, err := memorybank.Ensure(ctx, b, testSpec, load)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, created)
	assert.Empty(t, b.registered)
	assert.Empty(t, b.banks)

	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o600))

	created, err = memorybank.Ensure(ctx, b, testSpec, load)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, b.inserted["docs"], 1)
	assert.Equal(t, "a.txt", b.inserted["docs"][0].DocumentID)
}

func TestEnsure_InsertFailureThenInsert(t *testing.T) {
	t.Parallel()

	boom := errors.New("insert failed")
	b := newMockBackend()
	b.insertErr = boom
	ctx := context.Background()
	docs := []stack.Document{{DocumentID: "a.txt", Content: "alpha"}}
	load := func() ([]stack.Document, error) { return docs, nil }

	created, err := memorybank.Ensure(ctx, b, testSpec, load)
	require.ErrorIs(t, err, boom)
	assert.True(t, created, "bank exists even though the insert failed")
	assert.Len(t, b.registered, 1)

	b.insertErr = nil
	require.NoError(t, memorybank.Insert(ctx, b, testSpec.ID, load))
	assert.Equal(t, docs, b.inserted["docs"])
	assert.Len(t, b.registered, 1)
}

func TestInsert_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	b := newMockBackend()

	err := memorybank.Insert(context.Background(), b, "docs", func() ([]stack.Document, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "memorybank.Insert")

	require.NoError(t, memorybank.Insert(context.Background(), b, "docs", func() ([]stack.Document, error) { return nil, nil }))
	assert.Nil(t, b.inserted)
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	write("b.md", "# Bravo")
	write("a.txt", "alpha")
	write("c.pdf", "ignored")
	write("D.TXT", "delta")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o700))

	docs, err := memorybank.LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, stack.Document{
		DocumentID: "D.TXT",
		Content:    "delta",
		MimeType:   "text/plain",
		Metadata:   map[string]any{"filename": "D.TXT"},
	}, docs[0])
	assert.Equal(t, "a.txt", docs[1].DocumentID)
	assert.Equal(t, "# Bravo", docs[2].Content)
}

func TestLoadDir_Missing(t *testing.T) {
	t.Parallel()

	_, err := memorybank.LoadDir(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestURLDocuments(t *testing.T) {
	t.Parallel()

	docs := memorybank.URLDocuments(memorybank.TutorialBaseURL, []string{"chat.rst", "llama3.rst"})
	require.Len(t, docs, 2)
	assert.Equal(t, "num-0", docs[0].DocumentID)
	assert.Equal(t, memorybank.TutorialBaseURL+"chat.rst", docs[0].Content)
	assert.Equal(t, "num-1", docs[1].DocumentID)
	assert.Equal(t, "text/plain", docs[1].MimeType)
	assert.NotNil(t, docs[1].Metadata)
}
