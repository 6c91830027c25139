package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/eurocup-agent/server/internal/agent/graph/conversations"
	"github.com/eurocup-agent/server/internal/agent/graph/prompts"
	"github.com/eurocup-agent/server/internal/agent/graph/tools"
	"github.com/eurocup-agent/server/internal/agent/model"
	"github.com/eurocup-agent/server/internal/llm"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// WrapUpFallbackMessage ends a turn whose strategy budget ran out before the
// model produced any presentable text.
const WrapUpFallbackMessage = "I wasn't able to put together a complete answer. Please try rephrasing your question."

// Graph node names.
const (
	NodeDetectLanguage    = "DetectLanguage"
	NodeValidateTopic     = "ValidateTopic"
	NodeRefusal           = "Refusal"
	NodeDispatchAssembler = "DispatchAssembler"
	NodeRouterChatModel   = "RouterChatModel"
	NodeStrategyExecutor  = "StrategyExecutor"
)

// NewDetectLanguagePreHandler seeds the per-question state.
func NewDetectLanguagePreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		s.Country = in.Country
		s.Question = in.Question
		// Reset round counter and limit flag for each new question
		s.ToolRoundCount = 0
		s.ToolRoundLimitReached = false
		s.ToolCallIDSeq = 0
		// Reset accumulated total cost for each new question
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewDetectLanguageNode creates the language detection node. Detection is
// best-effort: a failed call degrades to English so the question still flows.
func NewDetectLanguageNode(cm einomodel.BaseChatModel) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (model.QueryInput, error) {
		language, err := llm.Complete(ctx, cm, prompts.DetectLanguage(input.Question))
		if err != nil || strings.TrimSpace(language) == "" {
			logx.Warn().Err(err).Msg("language detection failed, assuming English")
			language = prompts.CanonicalLanguage
		}
		if i := strings.IndexByte(language, '\n'); i >= 0 {
			language = language[:i]
		}
		language = strings.TrimSpace(language)

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.DetectedLanguage = language
			return nil
		})
		if err != nil {
			return model.QueryInput{}, fmt.Errorf("failed to store detected language: %w", err)
		}

		logx.Debug().Str("language", language).Msg("Language detected")
		return input, nil
	})
}

// NewValidateTopicNode creates the topic validation node. The verdict is a
// strict yes/no; anything that does not start with yes is off-topic. A failed
// classifier call degrades to valid so the question still gets answered.
func NewValidateTopicNode(cm einomodel.BaseChatModel, competition string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (model.QueryInput, error) {
		validity := model.ValidityValid
		verdict, err := llm.Complete(ctx, cm, prompts.ValidateTopic(competition, input.Question))
		if err != nil {
			logx.Warn().Err(err).Msg("topic validation failed, assuming on-topic")
		} else if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(verdict)), "yes") {
			validity = model.ValidityInvalid
		}

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Validity = validity
			return nil
		})
		if err != nil {
			return model.QueryInput{}, fmt.Errorf("failed to store validity: %w", err)
		}

		logx.Debug().Bool("on_topic", validity == model.ValidityValid).Msg("Topic validated")
		return input, nil
	})
}

// NewTopicCondition routes off-topic questions to the refusal node.
func NewTopicCondition() func(context.Context, model.QueryInput) (string, error) {
	return func(ctx context.Context, _ model.QueryInput) (string, error) {
		var validity model.Validity
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			validity = state.Validity
			return nil
		})

		if validity == model.ValidityInvalid {
			logx.Debug().Msg("Routing to refusal - question is off-topic")
			return NodeRefusal, nil
		}
		return NodeDispatchAssembler, nil
	}
}

// NewRefusalNode creates the fixed refusal reply for off-topic questions. The
// English text is constant; translation into the detected language is
// best-effort and both sides of the turn are persisted.
func NewRefusalNode(cm einomodel.BaseChatModel, mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (*schema.Message, error) {
		var language string
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			language = state.DetectedLanguage
			return nil
		})

		content := prompts.RefusalMessage
		if language != "" && !strings.EqualFold(language, prompts.CanonicalLanguage) {
			translated, err := llm.Complete(ctx, cm, prompts.TranslateText(language, content))
			if err != nil || strings.TrimSpace(translated) == "" {
				logx.Warn().Err(err).Str("language", language).Msg("refusal translation failed, replying in English")
			} else {
				content = translated
			}
		}

		if err := mm.AppendUserMessage(ctx, input.SessionID, input.Question); err != nil {
			logx.Error().Err(err).Str("session_id", input.SessionID).Msg("Error saving refused question")
		}
		if err := mm.SaveResponse(ctx, input.SessionID, content); err != nil {
			logx.Error().Err(err).Str("session_id", input.SessionID).Msg("Error saving refusal reply")
		}

		return schema.AssistantMessage(content, nil), nil
	})
}

// NewDispatchAssemblerNode translates the question to English, persists the
// raw question, and assembles the router context.
func NewDispatchAssemblerNode(
	cm einomodel.BaseChatModel,
	mm *conversations.MessagesManager,
	promptCfg *model.PromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		if err := mm.AppendUserMessage(ctx, input.SessionID, input.Question); err != nil {
			return nil, fmt.Errorf("error saving user message: %w", err)
		}

		var language string
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			language = state.DetectedLanguage
			return nil
		})

		english := input.Question
		if language != "" && !strings.EqualFold(language, prompts.CanonicalLanguage) {
			translated, err := llm.Complete(ctx, cm, prompts.TranslateQuestion(input.Question))
			if err != nil || strings.TrimSpace(translated) == "" {
				logx.Warn().Err(err).Msg("question translation failed, dispatching original text")
			} else {
				english = strings.TrimSpace(translated)
			}
		}

		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.TranslatedQuestion = english
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store translated question: %w", err)
		}

		systemPrompt, err := prompts.RenderRouterSystem(ctx, prompts.RouterVars{
			CompetitionName:   promptCfg.CompetitionName,
			Language:          language,
			StructuredTool:    tools.ToolStructuredQuery,
			KnowledgeTool:     tools.ToolKnowledgeSearch,
			QualificationTool: tools.ToolQualification,
		})
		if err != nil {
			return nil, fmt.Errorf("render router system prompt: %w", err)
		}

		return mm.BuildDispatchContext(ctx, input.SessionID, systemPrompt, english)
	})
}

// NewRouterChatModelPreHandler creates the pre-handler for RouterChatModel node
func NewRouterChatModelPreHandler(maxRounds int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Heuristic fix for providers that omit tool_call_id on tool results
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := msg.ToolCalls[0].ID; strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkRoundLimit(state, maxRounds) {
			maxRounds = normalizeMaxToolRounds(maxRounds)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum strategy call limit (%d). "+
						"Please synthesize a helpful answer from the information already gathered. "+
						"Acknowledge any limitations if the gathered data does not fully answer the question.",
					maxRounds,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		return state.History, nil
	}
}

// NewRouterChatModelPostHandler creates the post-handler for RouterChatModel node
func NewRouterChatModelPostHandler(
	mm *conversations.MessagesManager,
	modelName string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if model.CostEnabled() && out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = map[string]any{
				"currency":          "USD",
				"model":             modelName,
				"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
				"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
				"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
				"input_cost":        inC,
				"output_cost":       outC,
				"total_cost":        totalC,
			}
			logx.Debug().
				Str("session_id", state.SessionID).
				Str("node", NodeRouterChatModel).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")

			state.TotalCostUSD += totalC
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
		}

		// Some providers omit tool_call IDs; synthesize stable local ones.
		if out != nil && len(out.ToolCalls) > 0 {
			for i := range out.ToolCalls {
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					state.ToolCallIDSeq++
					out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
				}
			}
		}

		// The wrap-up round terminates the turn no matter what the model
		// emits, so a reply that still requests strategies without any text
		// would surface as an empty answer. Substitute a fixed sentence.
		if state.ToolRoundLimitReached && len(out.ToolCalls) > 0 && strings.TrimSpace(out.Content) == "" {
			logx.Warn().
				Str("session_id", state.SessionID).
				Msg("Model requested strategies past the limit without text, replying with fallback")
			out.Content = WrapUpFallbackMessage
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Dispatching strategies")
		} else {
			logx.Debug().Msg("Final answer ready")
		}

		// Persist only the final assistant answer: either no further strategy
		// calls, or the round limit forced a wrap-up with content.
		if out.Role == schema.Assistant && (len(out.ToolCalls) == 0 || state.ToolRoundLimitReached) && strings.TrimSpace(out.Content) != "" {
			if err := mm.SaveResponse(ctx, state.SessionID, out.Content); err != nil {
				logx.Error().
					Str("session_id", state.SessionID).
					Err(err).
					Msg("Error saving assistant answer")
			}
		}

		return out, nil
	}
}

// NewStrategyExecutorCondition routes strategy calls back through the executor
// and final answers to the end of the graph.
func NewStrategyExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolRoundLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("Strategy round limit reached previously - routing to end")
			return compose.END, nil
		}

		if len(input.ToolCalls) > 0 {
			return NodeStrategyExecutor, nil
		}
		return compose.END, nil
	}
}

// NewStrategyExecutorPreHandler counts strategy rounds against the limit.
func NewStrategyExecutorPreHandler(maxRounds int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementRoundAndCheck(state, maxRounds)

		logx.Debug().
			Int("round", state.ToolRoundCount).
			Str("session_id", state.SessionID).
			Msg("Strategy execution round")

		if exceeded {
			logx.Warn().
				Int("round", state.ToolRoundCount).
				Int("max_rounds", normalizeMaxToolRounds(maxRounds)).
				Str("session_id", state.SessionID).
				Msg("Strategy round limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

type strategyArgs struct {
	Question string `json:"question"`
}

// NewStrategyExecutorNode executes the strategy calls the router selected.
// Execution faults become structured error observations for the router, never
// graph failures; successful tool-backed answers are journaled.
func NewStrategyExecutorNode(registry *tools.Registry, journal model.QAJournal) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input *schema.Message) ([]*schema.Message, error) {
		var (
			language  string
			sessionID string
			country   string
			original  string
			fallbackQ string
		)
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			language = state.DetectedLanguage
			sessionID = state.SessionID
			country = state.Country
			original = state.Question
			fallbackQ = state.TranslatedQuestion
			return nil
		})

		results := make([]*schema.Message, 0, len(input.ToolCalls))
		for _, tc := range input.ToolCalls {
			name := tc.Function.Name

			strategy, ok := registry.Lookup(name)
			if !ok {
				logx.Warn().
					Str("tool_name", name).
					Str("arguments", tc.Function.Arguments).
					Msg("Unknown or invalid strategy call; returning fallback result")
				results = append(results, schema.ToolMessage(
					fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), tc.ID))
				continue
			}

			var args strategyArgs
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Question) == "" {
				args.Question = fallbackQ
			}

			answer, err := strategy.Execute(ctx, args.Question, language)
			if err != nil {
				logx.Error().Err(err).
					Str("strategy", name).
					Str("session_id", sessionID).
					Msg("Strategy execution failed")
				results = append(results, schema.ToolMessage(
					`{"error":"strategy_failed","note":"apologize and suggest rephrasing"}`, tc.ID))
				continue
			}

			compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
				state.SelectedStrategy = name
				return nil
			})

			if journal != nil {
				journal.Record(ctx, model.JournalRecord{
					UserID:           sessionID,
					Country:          country,
					Question:         args.Question,
					OriginalQuestion: original,
					Answer:           answer,
					QuestionLanguage: language,
					Strategy:         name,
				})
			}

			results = append(results, schema.ToolMessage(answer, tc.ID))
		}

		return results, nil
	})
}
