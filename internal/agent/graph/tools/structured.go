package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// structuredRunner is satisfied by the SQL agent.
type structuredRunner interface {
	Run(ctx context.Context, question, language string) (string, error)
}

// StructuredStrategy answers precise data questions (coaches, squads, scores,
// standings, fixtures) through the bounded SQL loop.
type StructuredStrategy struct {
	agent structuredRunner
}

func NewStructuredStrategy(agent structuredRunner) *StructuredStrategy {
	return &StructuredStrategy{agent: agent}
}

func (s *StructuredStrategy) Name() string { return ToolStructuredQuery }

func (s *StructuredStrategy) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolStructuredQuery,
		Desc: "Answer questions that need precise tournament data: coach and player names, team details, player stats, squad lists, match results, schedules, group standings and stadiums. Use for anything with exact names, numbers or dates.",
		ParamsOneOf: questionParam(
			"The user's question in English, with team and player names kept as written."),
	}
}

func (s *StructuredStrategy) Execute(ctx context.Context, question, language string) (string, error) {
	return s.agent.Run(ctx, question, language)
}
