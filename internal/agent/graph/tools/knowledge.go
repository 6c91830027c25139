package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// knowledgeAnswerer is satisfied by the retrieval loop.
type knowledgeAnswerer interface {
	Answer(ctx context.Context, question, language string) (string, error)
}

// KnowledgeStrategy answers open-ended and historical questions from the
// curated knowledge base through the graded retrieval loop.
type KnowledgeStrategy struct {
	loop knowledgeAnswerer
}

func NewKnowledgeStrategy(loop knowledgeAnswerer) *KnowledgeStrategy {
	return &KnowledgeStrategy{loop: loop}
}

func (s *KnowledgeStrategy) Name() string { return ToolKnowledgeSearch }

func (s *KnowledgeStrategy) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolKnowledgeSearch,
		Desc: "Answer general, historical or open-ended questions about the tournament: team background, records, rules of the competition, venues, past editions, anything without a single precise data point.",
		ParamsOneOf: questionParam(
			"The user's question in English."),
	}
}

func (s *KnowledgeStrategy) Execute(ctx context.Context, question, language string) (string, error) {
	return s.loop.Answer(ctx, question, language)
}
