package sqlagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/eurocup-agent/server/internal/llm"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

const queryToolName = "execute_query"

const defaultMaxIterations = 12

// Fixed user-facing fallbacks. Raw diagnostics never cross this boundary.
const (
	ExhaustedMessage = "I can't answer that, please try rephrasing your question."
	ErrorMessage     = "An error occurred, please try a different request."
)

// Config bounds one structured-query answer.
type Config struct {
	CompetitionName string
	MaxIterations   int
}

// Agent translates a natural-language question into SQL against the
// tournament schema through a bounded tool-using loop: each round the model
// may execute a query and observe the rows before composing the next step or
// the final answer.
type Agent struct {
	cm     einomodel.ToolCallingChatModel
	runner QueryRunner
	schema *SchemaCache
	cfg    Config
}

func NewAgent(cm einomodel.ToolCallingChatModel, runner QueryRunner, schemaCache *SchemaCache, cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return &Agent{cm: cm, runner: runner, schema: schemaCache, cfg: cfg}
}

func queryToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: queryToolName,
		Desc: "Execute one read-only PostgreSQL SELECT statement against the tournament database and return the rows.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "A single syntactically correct PostgreSQL SELECT statement.",
				Required: true,
			},
		}),
	}
}

func systemPrompt(schemaDoc, language string) string {
	return fmt.Sprintf(`You are an expert PostgreSQL assistant for the tournament database described below. Generate comprehensive, syntactically correct SELECT statements and execute them with the %s tool, then answer from the observed rows.

Mandatory rules:
- ALWAYS fetch human-readable names instead of ids: join teams for country names and stadiums for stadium names. Returning raw ids like home_team_id in the final answer is forbidden.
- Use ILIKE with partial patterns for every proper-noun filter (player, team, stadium names).
- Prefer LEFT JOINs when a related row might be missing, so matches still appear even without complete data.
- If a query returns no rows, first retry with LEFT JOINs and looser filters; if there is still nothing, answer exactly "%s" and do not invent any data.
- Never include ids in the answer.

Answer in %s language.

%s`, queryToolName, Sentinel, language, schemaDoc)
}

// Run answers one question. The returned text is always user-presentable:
// iteration exhaustion, connection faults and empty results all map to fixed
// or localized fallbacks, never to raw diagnostics.
func (a *Agent) Run(ctx context.Context, question, language string) (string, error) {
	doc, err := a.schema.Doc(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("schema documentation unavailable")
		return ErrorMessage, nil
	}

	toolCM, err := a.cm.WithTools([]*schema.ToolInfo{queryToolInfo()})
	if err != nil {
		logx.Error().Err(err).Msg("failed to bind query tool")
		return ErrorMessage, nil
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt(doc, language)),
		schema.UserMessage(question),
	}

	final := ""
	for i := 0; i < a.cfg.MaxIterations; i++ {
		out, err := toolCM.Generate(ctx, msgs)
		if err != nil {
			logx.Error().Err(err).Int("iteration", i).Msg("structured query model call failed")
			return ErrorMessage, nil
		}
		msgs = append(msgs, out)

		if len(out.ToolCalls) == 0 {
			final = strings.TrimSpace(out.Content)
			break
		}

		for _, tc := range out.ToolCalls {
			result := a.executeCall(ctx, tc)
			msgs = append(msgs, schema.ToolMessage(result, tc.ID))
		}
	}

	if final == "" {
		logx.Warn().Int("max_iterations", a.cfg.MaxIterations).Str("question", question).
			Msg("structured query loop exhausted its iteration budget")
		return ExhaustedMessage, nil
	}

	if strings.Contains(strings.ToLower(final), strings.ToLower(Sentinel)) {
		return llm.NotFoundReply(ctx, a.cm, question, language, a.cfg.CompetitionName), nil
	}
	return final, nil
}

// executeCall runs one query tool call. Execution errors are fed back to the
// model as observations so it can correct itself within the budget.
func (a *Agent) executeCall(ctx context.Context, tc schema.ToolCall) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return "query error: missing query argument"
	}

	result, err := a.runner.Query(ctx, args.Query)
	if err != nil {
		logx.Warn().Err(err).Str("query", args.Query).Msg("query execution failed")
		return "query error: " + err.Error()
	}
	return result
}
