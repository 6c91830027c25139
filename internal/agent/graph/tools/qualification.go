package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// scenarioAnswerer is satisfied by the qualification reasoner.
type scenarioAnswerer interface {
	Answer(ctx context.Context, question, language string) (string, error)
}

// QualificationStrategy answers "what does team X need to qualify" questions
// by combining live standings with the competition rules.
type QualificationStrategy struct {
	reasoner scenarioAnswerer
}

func NewQualificationStrategy(reasoner scenarioAnswerer) *QualificationStrategy {
	return &QualificationStrategy{reasoner: reasoner}
}

func (s *QualificationStrategy) Name() string { return ToolQualification }

func (s *QualificationStrategy) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolQualification,
		Desc: "Answer what a team needs in order to qualify or advance to the next stage, based on current standings, remaining matches and the official tie-breaking rules.",
		ParamsOneOf: questionParam(
			"The user's question in English, mentioning the team of interest."),
	}
}

func (s *QualificationStrategy) Execute(ctx context.Context, question, language string) (string, error) {
	return s.reasoner.Answer(ctx, question, language)
}
