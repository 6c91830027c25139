package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/eurocup-agent/server/internal/agent/graph/prompts"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// NotFoundReply builds the localized "I don't have information about <topic>"
// apology. The topic is a model-generated short description of the question's
// subject, never a verbatim echo of the question itself. Every model call in
// here is best-effort: the English fixed message is the floor.
func NotFoundReply(ctx context.Context, cm model.BaseChatModel, question, language, competition string) string {
	topic, err := Complete(ctx, cm, prompts.TopicPhrase(question))
	if err != nil || topic == "" {
		logx.Warn().Err(err).Msg("topic rephrase failed, using generic topic")
		topic = "that"
	}

	english := prompts.NotFoundMessage(topic, competition)
	if language == "" || strings.EqualFold(language, prompts.CanonicalLanguage) {
		return english
	}

	translated, err := Complete(ctx, cm, prompts.TranslateText(language, english))
	if err != nil || translated == "" {
		logx.Warn().Err(err).Str("language", language).Msg("apology translation failed, falling back to English")
		return english
	}
	return translated
}
