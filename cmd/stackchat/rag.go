package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gosuda/stackchat/internal/agent"
	"github.com/gosuda/stackchat/internal/memorybank"
	"github.com/gosuda/stackchat/internal/stack"
)

//nolint:gochecknoglobals // fixed demo inputs
var (
	ragTutorials = []string{
		"memory_optimizations.rst",
		"chat.rst",
		"llama3.rst",
		"datasets.rst",
		"qat_finetune.rst",
		"lora_finetune.rst",
	}

	ragPrompts = []string{
		"What are the top 5 topics that were explained in the documentation? Only list succinct bullet points.",
		"Was anything related to 'Llama3' discussed, if so what?",
		"Tell me how to use LoRA",
		"What about Quantization?",
	}
)

func newRagCmd(a *app) *cobra.Command {
	var (
		model  string
		bankID string
	)

	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Answer questions from torchtune tutorials stored in a memory bank",
		Long: `rag registers a vector memory bank, inserts the torchtune tutorials
by URL, and asks a memory-tool agent four questions about them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			backend, err := a.newBackend(a.cfg.Stack)
			if err != nil {
				return err
			}

			providers, err := backend.ListProviders(ctx)
			if err != nil {
				return err
			}
			providerID, err := stack.FirstProvider(providers, "memory")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, providerID)

			bank, err := memorybank.Register(ctx, backend, memorybank.Spec{
				ID:             bankID,
				ProviderID:     providerID,
				EmbeddingModel: a.cfg.Chat.EmbeddingModel,
				ChunkSize:      512,
				Overlap:        64,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Is memory bank registered? %s\n", bank.Identifier)

			if err := backend.InsertDocuments(ctx, bankID, memorybank.URLDocuments(memorybank.TutorialBaseURL, ragTutorials)); err != nil {
				return err
			}

			shields := agent.Shields(a.cfg.Stack.DisableSafety)
			cfg, err := agent.NewConfig(agent.ResolveModel(model),
				agent.WithTools(agent.MemoryTool{
					BankIDs:            []string{bankID},
					QueryGenerator:     &agent.QueryGenerator{Type: "default", Sep: " "},
					MaxTokensInContext: 4096,
					MaxChunks:          10,
				}),
				agent.WithShields(shields, shields),
			)
			if err != nil {
				return err
			}

			return runPrompts(ctx, backend, cfg, a.out, ragPrompts)
		},
	}

	cmd.Flags().StringVar(&model, "model", "Llama3.2-3B-Instruct", "model to run the agent on")
	cmd.Flags().StringVar(&bankID, "bank-id", "test_bank", "memory bank to register")
	return cmd
}
