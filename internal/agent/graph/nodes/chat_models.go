package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/eurocup-agent/server/internal/agent/model"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey        string
	BaseURL       string
	RouterConfig  *model.RouterModelConfig
	UtilityConfig *model.UtilityModelConfig
}

// ChatModels holds the router model (tool calling, final synthesis) and the
// utility model (detection, validation, translation, grading, rewriting).
// Both are interfaces so tests can substitute scripted fakes.
type ChatModels struct {
	Router           einomodel.ToolCallingChatModel
	Utility          einomodel.BaseChatModel
	RouterModelName  string
	UtilityModelName string
}

// NewChatModels creates both Gemini chat models over one shared client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	router, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterConfig.Model,
		Temperature: &config.RouterConfig.Temperature,
		MaxTokens:   &config.RouterConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	utility, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.UtilityConfig.Model,
		Temperature: &config.UtilityConfig.Temperature,
		MaxTokens:   &config.UtilityConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating utility model")
		return nil, fmt.Errorf("error creating utility model: %w", err)
	}

	return &ChatModels{
		Router:           router,
		Utility:          utility,
		RouterModelName:  config.RouterConfig.Model,
		UtilityModelName: config.UtilityConfig.Model,
	}, nil
}

// BindToolsToRouter rebinds the router model with the strategy tool set.
func (cm *ChatModels) BindToolsToRouter(ctx context.Context, tools []*schema.ToolInfo) error {
	bound, err := cm.Router.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind strategy tools")
		return fmt.Errorf("failed to bind strategy tools: %w", err)
	}
	cm.Router = bound

	logx.Debug().Int("tool_count", len(tools)).Msg("Successfully bound strategy tools to router model")
	return nil
}

// NewRouterChatModelNode exposes the bound router model as a graph node.
func NewRouterChatModelNode(cm *ChatModels) einomodel.BaseChatModel {
	return cm.Router
}
