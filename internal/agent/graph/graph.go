package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/eurocup-agent/server/internal/agent/graph/conversations"
	"github.com/eurocup-agent/server/internal/agent/graph/nodes"
	"github.com/eurocup-agent/server/internal/agent/graph/observers"
	"github.com/eurocup-agent/server/internal/agent/graph/tools"
	"github.com/eurocup-agent/server/internal/agent/model"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// Config holds everything needed to compose the full answer graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// MessagesManager. ChatModels are injected so the strategies can share them.
type Config struct {
	ChatModels *nodes.ChatModels

	Prompt       model.PromptConfig
	Conversation model.ConversationConfig

	ConversationRepo model.ConversationRepository
	Strategies       *tools.Registry
	Journal          model.QAJournal
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Strategies      *tools.Registry
	Journal         model.QAJournal
	PromptConfig    *model.PromptConfig
	ToolMaxCalls    int
}

// GraphBuilder handles the construction of the conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (string, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	if total, ok := out.Extra["usage_cost_total_usd"]; ok {
		logx.Debug().Str("session_id", in.SessionID).Any("total_cost_usd", total).Msg("Question answered")
	}
	return out.Content, nil
}

// BuildEngine composes the MessagesManager, builds the graph, and returns a
// Runner ready to answer questions.
func BuildEngine(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ChatModels == nil {
		return nil, fmt.Errorf("chat models are nil")
	}
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Strategies == nil {
		return nil, fmt.Errorf("strategy registry is nil")
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cfg.ChatModels,
		MessagesManager: mm,
		Strategies:      cfg.Strategies,
		Journal:         cfg.Journal,
		PromptConfig:    &cfg.Prompt,
		ToolMaxCalls:    cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Answer graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled conversation graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Router == nil || config.ChatModels.Utility == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Strategies == nil || config.PromptConfig == nil {
		return nil, fmt.Errorf("strategies/prompt config is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupStrategies(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupStrategies binds the strategy tool declarations to the router model.
func (b *GraphBuilder) setupStrategies(ctx context.Context) error {
	infos := b.config.Strategies.ToolInfos()
	if len(infos) == 0 {
		return fmt.Errorf("strategy registry is empty")
	}
	if err := b.config.ChatModels.BindToolsToRouter(ctx, infos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind strategies to router model")
		return fmt.Errorf("failed to bind strategies to router model: %w", err)
	}
	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeDetectLanguage,
		nodes.NewDetectLanguageNode(b.config.ChatModels.Utility),
		compose.WithStatePreHandler(nodes.NewDetectLanguagePreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeValidateTopic,
		nodes.NewValidateTopicNode(b.config.ChatModels.Utility, b.config.PromptConfig.CompetitionName),
	)

	b.graph.AddLambdaNode(nodes.NodeRefusal,
		nodes.NewRefusalNode(b.config.ChatModels.Utility, b.config.MessagesManager),
	)

	b.graph.AddLambdaNode(nodes.NodeDispatchAssembler,
		nodes.NewDispatchAssemblerNode(b.config.ChatModels.Utility, b.config.MessagesManager, b.config.PromptConfig),
	)

	b.graph.AddChatModelNode(nodes.NodeRouterChatModel,
		nodes.NewRouterChatModelNode(b.config.ChatModels),
		compose.WithStatePreHandler(nodes.NewRouterChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewRouterChatModelPostHandler(b.config.MessagesManager, b.config.ChatModels.RouterModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeStrategyExecutor,
		nodes.NewStrategyExecutorNode(b.config.Strategies, b.config.Journal),
		compose.WithStatePreHandler(nodes.NewStrategyExecutorPreHandler(b.config.ToolMaxCalls)),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeDetectLanguage},
		{nodes.NodeDetectLanguage, nodes.NodeValidateTopic},
		{nodes.NodeRefusal, compose.END},
		{nodes.NodeDispatchAssembler, nodes.NodeRouterChatModel},
		{nodes.NodeStrategyExecutor, nodes.NodeRouterChatModel},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	topicBranch := compose.NewGraphBranch(
		nodes.NewTopicCondition(),
		map[string]bool{
			nodes.NodeRefusal:           true,
			nodes.NodeDispatchAssembler: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeValidateTopic, topicBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding topic branch")
		return fmt.Errorf("error adding topic branch: %w", err)
	}

	strategyBranch := compose.NewGraphBranch(
		nodes.NewStrategyExecutorCondition(),
		map[string]bool{
			nodes.NodeStrategyExecutor: true,
			compose.END:                true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRouterChatModel, strategyBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding strategy branch")
		return fmt.Errorf("error adding strategy branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// Limit total run steps to avoid infinite loops in branching or strategy retries
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
