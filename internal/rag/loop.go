package rag

import (
	"context"
	"encoding/json"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/eurocup-agent/server/internal/agent/graph/prompts"
	"github.com/eurocup-agent/server/internal/agent/model"
	"github.com/eurocup-agent/server/internal/llm"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

const retrieverToolName = "search_passages"

const (
	defaultTopK               = 5
	defaultRelevanceThreshold = 0.7
	defaultMaxRewrites        = 2
)

// Config bounds one retrieval-augmented answer.
type Config struct {
	CompetitionName    string
	TopK               int
	RelevanceThreshold float64
	MaxRewrites        int
}

// Loop answers open-ended questions from the indexed knowledge base with a
// grade/rewrite cycle: retrieve, grade the passages, and either generate from
// them or reformulate the question and try again, a bounded number of times.
type Loop struct {
	cm        einomodel.ToolCallingChatModel
	retriever model.KnowledgeRetriever
	cfg       Config
}

func NewLoop(cm einomodel.ToolCallingChatModel, retriever model.KnowledgeRetriever, cfg Config) *Loop {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = defaultRelevanceThreshold
	}
	if cfg.MaxRewrites < 0 {
		cfg.MaxRewrites = defaultMaxRewrites
	}
	return &Loop{cm: cm, retriever: retriever, cfg: cfg}
}

func retrieverToolInfo(competition string) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: retrieverToolName,
		Desc: "Retrieve passages from the " + competition + " knowledge base relevant to a query.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "Search query describing the information needed.",
				Required: true,
			},
		}),
	}
}

// Answer runs the loop for one question. language is the user's detected
// language; the generated answer and the not-found apology are localized to
// it. The loop performs at most MaxRewrites+1 retrieval attempts.
func (l *Loop) Answer(ctx context.Context, question, language string) (string, error) {
	meta := extractMetadata(ctx, l.cm, question)
	filter := meta.Filter()

	toolCM, err := l.cm.WithTools([]*schema.ToolInfo{retrieverToolInfo(l.cfg.CompetitionName)})
	if err != nil {
		return "", err
	}

	current := question
	rewrites := 0
	for {
		out, err := toolCM.Generate(ctx, []*schema.Message{schema.UserMessage(current)})
		if err != nil {
			return "", err
		}

		// The model may answer directly when it needs no evidence.
		if len(out.ToolCalls) == 0 {
			if answer := strings.TrimSpace(out.Content); answer != "" {
				return answer, nil
			}
		}

		query := toolQuery(out.ToolCalls, current)
		passages, err := l.retriever.Search(ctx, query, filter, l.cfg.TopK)
		if err != nil {
			logx.Warn().Err(err).Str("query", query).Msg("knowledge retrieval failed")
			passages = nil
		}
		docs := strings.Join(passages, "\n\n")

		score := l.grade(ctx, question, docs)
		logx.Debug().
			Int("passages", len(passages)).
			Float64("score", score).
			Int("rewrites", rewrites).
			Msg("graded retrieved passages")

		if len(passages) > 0 && score >= l.cfg.RelevanceThreshold {
			return llm.Complete(ctx, l.cm,
				prompts.GenerateFromContext(l.cfg.CompetitionName, question, docs, language))
		}

		rewrites++
		if rewrites > l.cfg.MaxRewrites {
			return llm.NotFoundReply(ctx, l.cm, question, language, l.cfg.CompetitionName), nil
		}

		improved, err := llm.Complete(ctx, l.cm, prompts.RewriteQuestion(l.cfg.CompetitionName, question))
		if err != nil || improved == "" {
			logx.Warn().Err(err).Msg("question rewrite failed, retrying with original wording")
			continue
		}
		current = improved
	}
}

// grade scores passage relevance on a continuous 0-1 scale. Failures score
// zero so they route to the rewrite path.
func (l *Loop) grade(ctx context.Context, question, docs string) float64 {
	if docs == "" {
		return 0
	}
	var graded struct {
		Score float64 `json:"score"`
	}
	if err := llm.CompleteStructured(ctx, l.cm, prompts.GradePassages(question, docs), &graded); err != nil {
		logx.Warn().Err(err).Msg("passage grading failed")
		return 0
	}
	if graded.Score < 0 {
		return 0
	}
	if graded.Score > 1 {
		return 1
	}
	return graded.Score
}

// toolQuery extracts the retrieval query argument, falling back to the
// current question when the arguments are malformed.
func toolQuery(calls []schema.ToolCall, fallback string) string {
	for _, tc := range calls {
		if tc.Function.Name != retrieverToolName {
			continue
		}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil && strings.TrimSpace(args.Query) != "" {
			return strings.TrimSpace(args.Query)
		}
	}
	return fallback
}
