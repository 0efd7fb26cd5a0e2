package main

import (
	"github.com/spf13/cobra"

	"github.com/gosuda/stackchat/internal/agent"
)

const searchPrompt = `Query: What methods are best for finetuning llama?

Specialist answers: Based on the provided context, it appears that finetuning LLaMA is not directly mentioned in the code snippets. However, I can infer that finetuning LLaMA is likely to be performed using the ` + "`llama_recipes.finetuning`" + ` module.

In the ` + "`finetuning.py`" + ` file, the ` + "`main`" + ` function is imported from ` + "`llama_recipes.finetuning`" + `, which suggests that this file contains the code for finetuning LLaMA.

As for finetuning Llama in general, the provided context only covers finetuning Llama Guard, which is a specific application of the Llama model. For general finetuning of Llama, you may need to refer to the official documentation or other external resources.

However, the ` + "`finetune_vision_model.md`" + ` file in the ` + "`quickstart`" + ` folder may provide some information on finetuning Llama for vision tasks.`

func newSearchCmd(a *app) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Ask a search-enabled agent to review a specialist answer",
		Long: `search creates an agent with the Brave web search tool
(BRAVE_SEARCH_API_KEY) and sends it one long prompt, printing every event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := a.newBackend(a.cfg.Stack)
			if err != nil {
				return err
			}

			shields := agent.Shields(a.cfg.Stack.DisableSafety)
			cfg, err := agent.NewConfig(agent.ResolveModel(model),
				agent.WithTools(agent.SearchTool{Engine: "brave", APIKey: a.cfg.Chat.SearchAPIKey}),
				agent.WithToolPromptFormat("function_tag"),
				agent.WithShields(shields, shields),
			)
			if err != nil {
				return err
			}

			return runPrompts(cmd.Context(), backend, cfg, a.out, []string{searchPrompt})
		},
	}

	cmd.Flags().StringVar(&model, "model", "Llama3.1-8B-Instruct", "model to run the agent on")
	return cmd
}
