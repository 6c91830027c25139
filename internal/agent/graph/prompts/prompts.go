package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/router_prompt.txt
var routerSystemPrompt string

// CanonicalLanguage is the working language all tool-facing text is
// normalized into before strategy execution.
const CanonicalLanguage = "English"

// RefusalMessage is the fixed reply for questions outside the tournament
// domain. It is translated best-effort into the detected language.
const RefusalMessage = "I can only help with questions about the UEFA Women's EURO 2025. Please ask me something about the tournament."

// RouterVars carries the values rendered into the router system template.
type RouterVars struct {
	CompetitionName   string
	Language          string
	StructuredTool    string
	KnowledgeTool     string
	QualificationTool string
}

// RenderRouterSystem renders the router system prompt via the Eino prompt
// component. This triggers Prompt callbacks and returns the final string.
func RenderRouterSystem(ctx context.Context, vars RouterVars) (string, error) {
	if strings.TrimSpace(vars.Language) == "" {
		vars.Language = CanonicalLanguage
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(routerSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"CompetitionName":   vars.CompetitionName,
		"Language":          vars.Language,
		"StructuredTool":    vars.StructuredTool,
		"KnowledgeTool":     vars.KnowledgeTool,
		"QualificationTool": vars.QualificationTool,
	})
	if err != nil {
		return "", fmt.Errorf("router prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("router prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// DetectLanguage asks for the bare language name of a question.
func DetectLanguage(question string) string {
	return fmt.Sprintf("What is the language of the following question? Return the language name only.\n\nQuestion: %s", question)
}

// ValidateTopic asks for a strict binary relevance verdict.
func ValidateTopic(competition, question string) string {
	return fmt.Sprintf(
		"You are a relevance classifier for an assistant dedicated to the %s football tournament. "+
			"Questions about teams, players, coaches, matches, stadiums, groups, standings, rules, "+
			"qualification or the tournament itself are relevant. Everything else is not.\n"+
			"Answer with exactly one word, yes or no.\n\nQuestion: %s",
		competition, question)
}

// TranslateQuestion asks for an English rendition that keeps proper nouns
// intact while normalizing country and team names to canonical English.
func TranslateQuestion(question string) string {
	return fmt.Sprintf(
		"Translate the following question to English. Keep the names of people, clubs, stadiums "+
			"and cities exactly as written. Use the canonical English name for countries and national "+
			"teams (for example España becomes Spain). Return only the translated question.\n\n%s",
		question)
}

// TranslateText asks for a plain translation of text into language.
func TranslateText(language, text string) string {
	return fmt.Sprintf("Translate this to %s language:\n\n%s", language, text)
}

// TopicPhrase asks for a short noun phrase describing a question's subject.
func TopicPhrase(question string) string {
	return fmt.Sprintf(
		"Rewrite the following question as a noun phrase that describes its topic, like a short description:\n"+
			"Question: %s\nDescription:", question)
}

// NotFoundMessage is the English apology used when no strategy found an answer.
func NotFoundMessage(topic, competition string) string {
	return fmt.Sprintf("I don't have information about %s, but I can assist you with questions about the %s.", topic, competition)
}

// ExtractCountries asks for the country names mentioned in a question.
func ExtractCountries(question string) string {
	return fmt.Sprintf(
		"List the country names mentioned in the question below. Reply with a JSON object of the form "+
			`{"countries": ["..."]} and nothing else. Use an empty list if no country is mentioned.`+
			"\n\nQuestion: %s", question)
}

// GradePassages asks for a continuous relevance score of retrieved passages.
func GradePassages(question, context string) string {
	return fmt.Sprintf(
		"You are a grader assessing relevance of retrieved documents to a user question.\n"+
			"Here are the retrieved documents:\n\n%s\n\nHere is the user question: %s\n"+
			"Score how relevant the documents are to the question on a continuous scale from 0 to 1, "+
			"where 1 means the documents clearly contain the answer. Reply with a JSON object of the "+
			`form {"score": 0.0} and nothing else.`,
		context, question)
}

// RewriteQuestion asks for an improved reformulation of the question.
func RewriteQuestion(competition, question string) string {
	return fmt.Sprintf(
		"Look at the input and try to reason about the underlying semantic intent / meaning.\n"+
			"Here is the initial question:\n-------\n%s\n-------\n"+
			"Formulate an improved question in the context of the %s. Return only the question.",
		question, competition)
}

// GenerateFromContext asks for an answer grounded strictly in the passages.
func GenerateFromContext(competition, question, context, language string) string {
	return fmt.Sprintf(
		"You are an assistant for question-answering tasks about the %s. Use the following pieces of "+
			"retrieved context to answer the question. If you don't know the answer, reply accordingly "+
			"without inventing or hallucinating data, suggesting a different request or rephrasing. "+
			"Make sure your answer is relevant to the question, answered from the context only, and "+
			"written in %s language.\nQuestion: %s\nContext: %s\nAnswer:",
		competition, language, question, context)
}
