package qualification

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/eurocup-agent/server/internal/llm"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// StandingsQuerier answers a natural-language data question with
// user-presentable text. Satisfied by the structured query agent.
type StandingsQuerier interface {
	Run(ctx context.Context, question, language string) (string, error)
}

// Config bounds one qualification answer.
type Config struct {
	CompetitionName string
}

// Reasoner answers "what does team X need to qualify" style questions by
// combining live group standings with the static competition rules in a
// single synthesis call. It never speculates past the group stage and never
// treats already played matches as open scenarios.
type Reasoner struct {
	cm   einomodel.BaseChatModel
	data StandingsQuerier
	cfg  Config
}

func NewReasoner(cm einomodel.BaseChatModel, data StandingsQuerier, cfg Config) *Reasoner {
	return &Reasoner{cm: cm, data: data, cfg: cfg}
}

// Answer runs the two-step scenario analysis: fetch the group context for the
// teams the question mentions, then reason over rules plus data. The fetch is
// always phrased in English so the structured agent works against canonical
// team names.
func (r *Reasoner) Answer(ctx context.Context, question, language string) (string, error) {
	fetch := fmt.Sprintf(
		"Get current group standings and upcoming matches for the group of the team mentioned in: '%s'. Include points, goal difference, goals scored, matches played, and for each upcoming match whether it has been played yet.",
		question,
	)
	standings, err := r.data.Run(ctx, fetch, "English")
	if err != nil {
		logx.Error().Err(err).Msg("standings fetch failed for qualification analysis")
		return "", err
	}

	return llm.Complete(ctx, r.cm, r.synthesisPrompt(question, standings, language))
}

func (r *Reasoner) synthesisPrompt(question, standings, language string) string {
	return fmt.Sprintf(`You are a qualification analyst for the %s. Using ONLY the official rules and the live data below, explain what the team in question needs in order to qualify.

OFFICIAL RULES:
%s

LIVE GROUP DATA:
%s

USER QUESTION: %s

Instructions:
- Base every scenario exclusively on matches that have NOT been played yet. Never present an already played match as something a team can still win or lose.
- Apply the tie-breaking criteria in the exact order the rules list them.
- If the live data does not contain the standings needed to reason about this team, say you do not have enough data right now. Never invent standings, scores or fixtures.
- Be concrete: state the points a team can still reach and which results it depends on.

Answer in %s language.`, r.cfg.CompetitionName, RulesText, standings, question, language)
}
