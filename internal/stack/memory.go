package stack

import (
	"context"
	"fmt"
	"net/http"
	"slices"
)

// ProviderInfo describes one provider registered for an API.
type ProviderInfo struct {
	ProviderID   string `json:"provider_id"`
	ProviderType string `json:"provider_type"`
}

// ListProviders returns the providers of each API, keyed by API name
// ("inference", "memory", "safety", ...).
func (c *Client) ListProviders(ctx context.Context) (map[string][]ProviderInfo, error) {
	var out map[string][]ProviderInfo
	if err := c.doJSON(ctx, "providers.list", http.MethodGet, "/providers/list", nil, &out); err != nil {
		return nil, fmt.Errorf("stack.Client.ListProviders: %w", err)
	}
	return out, nil
}

// FirstProvider returns the id of the first provider for api.
func FirstProvider(providers map[string][]ProviderInfo, api string) (string, error) {
	list := providers[api]
	if len(list) == 0 || list[0].ProviderID == "" {
		return "", fmt.Errorf("stack.FirstProvider(%q): %w", api, ErrNoProvider)
	}
	return list[0].ProviderID, nil
}

// RegisterModelRequest registers a model identifier with a provider.
type RegisterModelRequest struct {
	ModelID         string         `json:"model_id"`
	ProviderModelID *string        `json:"provider_model_id"`
	ProviderID      string         `json:"provider_id,omitempty"`
	Metadata        map[string]any `json:"metadata"`
}

func (c *Client) RegisterModel(ctx context.Context, req RegisterModelRequest) error {
	if err := c.doJSON(ctx, "models.register", http.MethodPost, "/models/register", req, nil); err != nil {
		return fmt.Errorf("stack.Client.RegisterModel: %w", err)
	}
	return nil
}

// VectorBankParams are the chunking parameters of a vector memory bank.
type VectorBankParams struct {
	EmbeddingModel      string `json:"embedding_model"`
	ChunkSizeInTokens   int    `json:"chunk_size_in_tokens"`
	OverlapSizeInTokens int    `json:"overlap_size_in_tokens"`
}

// RegisterMemoryBankRequest registers a vector memory bank.
type RegisterMemoryBankRequest struct {
	MemoryBankID string           `json:"memory_bank_id"`
	Params       VectorBankParams `json:"params"`
	ProviderID   string           `json:"provider_id,omitempty"`
}

// MemoryBank is a registered bank as listed by the stack.
type MemoryBank struct {
	Identifier     string `json:"identifier"`
	ProviderID     string `json:"provider_id"`
	Type           string `json:"type"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

func (c *Client) RegisterMemoryBank(ctx context.Context, req RegisterMemoryBankRequest) (*MemoryBank, error) {
	var out MemoryBank
	if err := c.doJSON(ctx, "memory_banks.register", http.MethodPost, "/memory_banks/register", req, &out); err != nil {
		return nil, fmt.Errorf("stack.Client.RegisterMemoryBank: %w", err)
	}
	if out.Identifier == "" {
		out.Identifier = req.MemoryBankID
	}
	return &out, nil
}

func (c *Client) ListMemoryBanks(ctx context.Context) ([]MemoryBank, error) {
	var out []MemoryBank
	if err := c.doJSON(ctx, "memory_banks.list", http.MethodGet, "/memory_banks/list", nil, &out); err != nil {
		return nil, fmt.Errorf("stack.Client.ListMemoryBanks: %w", err)
	}
	return out, nil
}

// Document is one document inserted into a memory bank. Content may be the
// document text or a URL the stack fetches.
type Document struct {
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	MimeType   string         `json:"mime_type"`
	Metadata   map[string]any `json:"metadata"`
}

type insertDocumentsRequest struct {
	BankID    string     `json:"bank_id"`
	Documents []Document `json:"documents"`
}

func (c *Client) InsertDocuments(ctx context.Context, bankID string, docs []Document) error {
	req := insertDocumentsRequest{BankID: bankID, Documents: slices.Clone(docs)}
	for i := range req.Documents {
		if req.Documents[i].Metadata == nil {
			req.Documents[i].Metadata = map[string]any{}
		}
	}
	if err := c.doJSON(ctx, "memory.insert", http.MethodPost, "/memory/insert", req, nil); err != nil {
		return fmt.Errorf("stack.Client.InsertDocuments: %w", err)
	}
	return nil
}
