// Package memorybank prepares vector memory banks on the stack: registering
// them with the first memory provider and loading documents into them.
package memorybank

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/stackchat/internal/stack"
)

// TutorialBaseURL hosts the documents inserted by the rag demo.
const TutorialBaseURL = "https://raw.githubusercontent.com/pytorch/torchtune/main/docs/source/tutorials/"

// ErrNoBankID is returned when a Spec names no bank.
var ErrNoBankID = errors.New("memorybank: bank id is required") //nolint:gochecknoglobals // sentinel error

// Backend is the part of the stack API needed to manage memory banks.
type Backend interface {
	ListProviders(ctx context.Context) (map[string][]stack.ProviderInfo, error)
	ListMemoryBanks(ctx context.Context) ([]stack.MemoryBank, error)
	RegisterMemoryBank(ctx context.Context, req stack.RegisterMemoryBankRequest) (*stack.MemoryBank, error)
	InsertDocuments(ctx context.Context, bankID string, docs []stack.Document) error
}

// Spec describes a vector bank to register.
type Spec struct {
	ID             string
	EmbeddingModel string
	ChunkSize      int
	Overlap        int

	// ProviderID pins the memory provider. Empty means the first provider
	// of the "memory" API.
	ProviderID string
}

// Register registers spec with spec.ProviderID, or with the first provider
// of the "memory" API when that is empty.
func Register(ctx context.Context, b Backend, spec Spec) (*stack.MemoryBank, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return nil, ErrNoBankID
	}

	providerID := spec.ProviderID
	if providerID == "" {
		providers, err := b.ListProviders(ctx)
		if err != nil {
			return nil, fmt.Errorf("memorybank.Register: %w", err)
		}
		providerID, err = stack.FirstProvider(providers, "memory")
		if err != nil {
			return nil, fmt.Errorf("memorybank.Register: %w", err)
		}
	}

	bank, err := b.RegisterMemoryBank(ctx, stack.RegisterMemoryBankRequest{
		MemoryBankID: spec.ID,
		Params: stack.VectorBankParams{
			EmbeddingModel:      spec.EmbeddingModel,
			ChunkSizeInTokens:   spec.ChunkSize,
			OverlapSizeInTokens: spec.Overlap,
		},
		ProviderID: providerID,
	})
	if err != nil {
		return nil, fmt.Errorf("memorybank.Register: %w", err)
	}

	log.Info().Str("bank_id", bank.Identifier).Str("provider_id", providerID).Msg("memory bank registered")
	return bank, nil
}

// Ensure registers spec and inserts the documents returned by load, unless a
// bank with the same identifier already exists. It reports whether the bank
// was created. load is not called for an existing bank, and is called before
// registering so a load failure leaves no bank behind. When the bank was
// created but the insert failed, Ensure returns true with the error; finish
// it with Insert.
func Ensure(ctx context.Context, b Backend, spec Spec, load func() ([]stack.Document, error)) (bool, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return false, ErrNoBankID
	}

	banks, err := b.ListMemoryBanks(ctx)
	if err != nil {
		return false, fmt.Errorf("memorybank.Ensure: %w", err)
	}
	if slices.ContainsFunc(banks, func(m stack.MemoryBank) bool { return m.Identifier == spec.ID }) {
		log.Info().Str("bank_id", spec.ID).Msg("memory bank exists")
		return false, nil
	}

	docs, err := load()
	if err != nil {
		return false, fmt.Errorf("memorybank.Ensure: %w", err)
	}

	if _, err := Register(ctx, b, spec); err != nil {
		return false, fmt.Errorf("memorybank.Ensure: %w", err)
	}

	if err := insert(ctx, b, spec.ID, docs); err != nil {
		return true, fmt.Errorf("memorybank.Ensure: %w", err)
	}
	return true, nil
}

// Insert loads documents and inserts them into an already registered bank.
func Insert(ctx context.Context, b Backend, bankID string, load func() ([]stack.Document, error)) error {
	docs, err := load()
	if err != nil {
		return fmt.Errorf("memorybank.Insert: %w", err)
	}
	if err := insert(ctx, b, bankID, docs); err != nil {
		return fmt.Errorf("memorybank.Insert: %w", err)
	}
	return nil
}

func insert(ctx context.Context, b Backend, bankID string, docs []stack.Document) error {
	if len(docs) == 0 {
		log.Warn().Str("bank_id", bankID).Msg("no documents to insert")
		return nil
	}
	if err := b.InsertDocuments(ctx, bankID, docs); err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}

	log.Info().Str("bank_id", bankID).Int("documents", len(docs)).Msg("documents inserted")
	return nil
}

// LoadDir reads every .txt and .md file directly inside dir, in name order.
// Each becomes a plain-text document identified by its file name.
func LoadDir(dir string) ([]stack.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("memorybank.LoadDir: %w", err)
	}

	docs := make([]stack.Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md":
		default:
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("memorybank.LoadDir: %w", err)
		}
		docs = append(docs, stack.Document{
			DocumentID: name,
			Content:    string(content),
			MimeType:   "text/plain",
			Metadata:   map[string]any{"filename": name},
		})
	}
	return docs, nil
}

// URLDocuments returns one document per name whose content is base+name.
// Documents are numbered "num-0", "num-1", ... in order.
func URLDocuments(base string, names []string) []stack.Document {
	docs := make([]stack.Document, 0, len(names))
	for i, name := range names {
		docs = append(docs, stack.Document{
			DocumentID: fmt.Sprintf("num-%d", i),
			Content:    base + name,
			MimeType:   "text/plain",
			Metadata:   map[string]any{},
		})
	}
	return docs
}
