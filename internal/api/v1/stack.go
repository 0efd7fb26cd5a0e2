package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/stackchat/internal/stack"
)

type ListProvidersInput struct{}

type ListProvidersOutput struct {
	Body map[string][]stack.ProviderInfo
}

type ListMemoryBanksInput struct{}

type ListMemoryBanksOutput struct {
	Body []stack.MemoryBank
}

type GetWidgetSettingsInput struct{}

type GetWidgetSettingsOutput struct {
	Body WidgetSettings
}

func RegisterStackRoutes(api huma.API, info StackInfo, settings WidgetSettings) {
	huma.Register(api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/providers",
		Summary:     "List stack providers by API",
		Tags:        []string{"Stack"},
	}, func(ctx context.Context, _ *ListProvidersInput) (*ListProvidersOutput, error) {
		providers, err := info.ListProviders(ctx)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to list providers", err)
		}
		return &ListProvidersOutput{Body: providers}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-memory-banks",
		Method:      http.MethodGet,
		Path:        "/memory-banks",
		Summary:     "List registered memory banks",
		Tags:        []string{"Stack"},
	}, func(ctx context.Context, _ *ListMemoryBanksInput) (*ListMemoryBanksOutput, error) {
		banks, err := info.ListMemoryBanks(ctx)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to list memory banks", err)
		}
		if banks == nil {
			banks = []stack.MemoryBank{}
		}
		return &ListMemoryBanksOutput{Body: banks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-widget-settings",
		Method:      http.MethodGet,
		Path:        "/widget",
		Summary:     "Get chat widget settings",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, _ *GetWidgetSettingsInput) (*GetWidgetSettingsOutput, error) {
		return &GetWidgetSettingsOutput{Body: settings}, nil
	})
}
