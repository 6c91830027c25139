package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurocup-agent/server/internal/agent/graph/nodes"
	"github.com/eurocup-agent/server/internal/agent/graph/prompts"
	"github.com/eurocup-agent/server/internal/agent/graph/tools"
	"github.com/eurocup-agent/server/internal/agent/model"
)

// utilityModel answers the cheap single-shot prompts by inspecting their text.
type utilityModel struct {
	language    string
	onTopic     bool
	english     string
	translated  string
	validateErr error
}

func (m *utilityModel) Generate(_ context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	prompt := msgs[len(msgs)-1].Content
	switch {
	case strings.Contains(prompt, "What is the language"):
		return schema.AssistantMessage(m.language, nil), nil
	case strings.Contains(prompt, "relevance classifier"):
		if m.validateErr != nil {
			return nil, m.validateErr
		}
		if m.onTopic {
			return schema.AssistantMessage("yes", nil), nil
		}
		return schema.AssistantMessage("no", nil), nil
	case strings.Contains(prompt, "Translate the following question to English"):
		return schema.AssistantMessage(m.english, nil), nil
	case strings.Contains(prompt, "Translate this to"):
		return schema.AssistantMessage(m.translated, nil), nil
	}
	return nil, fmt.Errorf("unexpected utility prompt: %s", prompt)
}

func (m *utilityModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

// routerModel pops scripted replies and records the context of every call.
type routerModel struct {
	replies    []*schema.Message
	calls      [][]*schema.Message
	boundTools []*schema.ToolInfo
}

func (m *routerModel) Generate(_ context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.calls = append(m.calls, msgs)
	if len(m.calls) > len(m.replies) {
		return nil, fmt.Errorf("no scripted reply for call %d", len(m.calls))
	}
	return m.replies[len(m.calls)-1], nil
}

func (m *routerModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *routerModel) WithTools(infos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	m.boundTools = infos
	return m, nil
}

type memoryRepo struct {
	messages map[string][]*schema.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{messages: map[string][]*schema.Message{}}
}

func (r *memoryRepo) AddMessage(_ context.Context, sessionID string, msg *schema.Message) error {
	r.messages[sessionID] = append(r.messages[sessionID], msg)
	return nil
}

func (r *memoryRepo) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	return &model.ConversationHistory{SessionID: sessionID, Messages: r.messages[sessionID]}, nil
}

func (r *memoryRepo) ClearHistory(_ context.Context, sessionID string) error {
	delete(r.messages, sessionID)
	return nil
}

func (r *memoryRepo) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	return len(r.messages[sessionID]), nil
}

type memoryJournal struct {
	records []model.JournalRecord
}

func (j *memoryJournal) Record(_ context.Context, rec model.JournalRecord) error {
	j.records = append(j.records, rec)
	return nil
}

type fakeStrategy struct {
	answer    string
	err       error
	questions []string
	languages []string
}

func (s *fakeStrategy) Run(_ context.Context, question, language string) (string, error) {
	s.questions = append(s.questions, question)
	s.languages = append(s.languages, language)
	return s.answer, s.err
}

func (s *fakeStrategy) Answer(ctx context.Context, question, language string) (string, error) {
	return s.Run(ctx, question, language)
}

type engineFixture struct {
	runner     Runner
	router     *routerModel
	repo       *memoryRepo
	journal    *memoryJournal
	structured *fakeStrategy
	knowledge  *fakeStrategy
}

func newEngine(t *testing.T, utility *utilityModel, router *routerModel) *engineFixture {
	t.Helper()

	f := &engineFixture{
		router:     router,
		repo:       newMemoryRepo(),
		journal:    &memoryJournal{},
		structured: &fakeStrategy{answer: "structured answer"},
		knowledge:  &fakeStrategy{answer: "knowledge answer"},
	}

	cfg := Config{
		ChatModels: &nodes.ChatModels{
			Router:           router,
			Utility:          utility,
			RouterModelName:  "gemini-2.5-flash",
			UtilityModelName: "gemini-2.5-flash-lite",
		},
		Prompt:           model.PromptConfig{CompetitionName: "UEFA Women's EURO 2025"},
		ConversationRepo: f.repo,
		Strategies: tools.NewRegistry(
			tools.NewStructuredStrategy(f.structured),
			tools.NewKnowledgeStrategy(f.knowledge),
			tools.NewQualificationStrategy(&fakeStrategy{answer: "scenario answer"}),
		),
		Journal: f.journal,
	}
	cfg.Conversation.History.MaxTurns = 6
	cfg.Conversation.Tools.MaxCalls = 10

	runner, err := BuildEngine(context.Background(), cfg)
	require.NoError(t, err)
	f.runner = runner
	return f
}

func strategyCall(name, question string) *schema.Message {
	msg := schema.AssistantMessage("", nil)
	msg.ToolCalls = []schema.ToolCall{{
		ID: "call_a",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: fmt.Sprintf(`{"question": %q}`, question),
		},
	}}
	return msg
}

func TestEngineOffTopic(t *testing.T) {
	t.Run("english refusal is the fixed message", func(t *testing.T) {
		f := newEngine(t,
			&utilityModel{language: "English", onTopic: false},
			&routerModel{},
		)

		out, err := f.runner.Invoke(context.Background(), model.QueryInput{
			Question:  "What's a good pizza recipe?",
			SessionID: "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, prompts.RefusalMessage, out)
		assert.Empty(t, f.router.calls)
		assert.Empty(t, f.journal.records)

		// both sides of the turn were persisted
		saved := f.repo.messages["s1"]
		require.Len(t, saved, 2)
		assert.Equal(t, "What's a good pizza recipe?", saved[0].Content)
		assert.Equal(t, prompts.RefusalMessage, saved[1].Content)
	})

	t.Run("refusal is translated for non-english questions", func(t *testing.T) {
		f := newEngine(t,
			&utilityModel{language: "Spanish", onTopic: false, translated: "Solo puedo ayudar con la EURO 2025."},
			&routerModel{},
		)

		out, err := f.runner.Invoke(context.Background(), model.QueryInput{
			Question:  "¿Receta de pizza?",
			SessionID: "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, "Solo puedo ayudar con la EURO 2025.", out)
	})
}

func TestEngineStrategyDispatch(t *testing.T) {
	t.Run("structured call feeds the final synthesis and the journal", func(t *testing.T) {
		router := &routerModel{replies: []*schema.Message{
			strategyCall(tools.ToolStructuredQuery, "Who is the coach of Spain?"),
			schema.AssistantMessage("The coach of Spain is Montse Tomé.", nil),
		}}
		f := newEngine(t, &utilityModel{language: "English", onTopic: true}, router)

		out, err := f.runner.Invoke(context.Background(), model.QueryInput{
			Question:  "Who is the coach of Spain?",
			SessionID: "s1",
			Country:   "ES",
		})
		require.NoError(t, err)
		assert.Equal(t, "The coach of Spain is Montse Tomé.", out)

		// the strategy got the routed question and the detected language
		assert.Equal(t, []string{"Who is the coach of Spain?"}, f.structured.questions)
		assert.Equal(t, []string{"English"}, f.structured.languages)

		// second router call observed the strategy result
		require.Len(t, router.calls, 2)
		second := router.calls[1]
		last := second[len(second)-1]
		assert.Equal(t, schema.Tool, last.Role)
		assert.Equal(t, "structured answer", last.Content)
		assert.Equal(t, "call_a", last.ToolCallID)

		require.Len(t, f.journal.records, 1)
		rec := f.journal.records[0]
		assert.Equal(t, "s1", rec.UserID)
		assert.Equal(t, "ES", rec.Country)
		assert.Equal(t, tools.ToolStructuredQuery, rec.Strategy)
		assert.Equal(t, "structured answer", rec.Answer)

		// the final answer ended up in the conversation
		saved := f.repo.messages["s1"]
		require.NotEmpty(t, saved)
		assert.Equal(t, "The coach of Spain is Montse Tomé.", saved[len(saved)-1].Content)
	})

	t.Run("non-english question is dispatched in english", func(t *testing.T) {
		router := &routerModel{replies: []*schema.Message{
			strategyCall(tools.ToolKnowledgeSearch, "Who won the 2022 final?"),
			schema.AssistantMessage("Inglaterra ganó la final de 2022.", nil),
		}}
		f := newEngine(t, &utilityModel{
			language: "Spanish",
			onTopic:  true,
			english:  "Who won the 2022 final?",
		}, router)

		out, err := f.runner.Invoke(context.Background(), model.QueryInput{
			Question:  "¿Quién ganó la final de 2022?",
			SessionID: "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, "Inglaterra ganó la final de 2022.", out)

		// router context carries the English rendition, store keeps the raw text
		first := router.calls[0]
		assert.Equal(t, "Who won the 2022 final?", first[len(first)-1].Content)
		assert.Equal(t, "¿Quién ganó la final de 2022?", f.repo.messages["s1"][0].Content)

		assert.Equal(t, []string{"Spanish"}, f.knowledge.languages)

		require.Len(t, f.journal.records, 1)
		assert.Equal(t, "¿Quién ganó la final de 2022?", f.journal.records[0].OriginalQuestion)
		assert.Equal(t, "Spanish", f.journal.records[0].QuestionLanguage)
	})

	t.Run("hallucinated tool names become error observations", func(t *testing.T) {
		router := &routerModel{replies: []*schema.Message{
			strategyCall("book_tickets", "two tickets please"),
			schema.AssistantMessage("I can't help with ticket booking.", nil),
		}}
		f := newEngine(t, &utilityModel{language: "English", onTopic: true}, router)

		out, err := f.runner.Invoke(context.Background(), model.QueryInput{
			Question:  "Book me tickets for the final",
			SessionID: "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, "I can't help with ticket booking.", out)

		second := router.calls[1]
		last := second[len(second)-1]
		assert.Equal(t, schema.Tool, last.Role)
		assert.Contains(t, last.Content, "unknown_tool")
		assert.Empty(t, f.journal.records)
	})

	t.Run("strategy failures become error observations, not graph failures", func(t *testing.T) {
		router := &routerModel{replies: []*schema.Message{
			strategyCall(tools.ToolStructuredQuery, "question"),
			schema.AssistantMessage("I'm having trouble with that, please rephrase.", nil),
		}}
		f := newEngine(t, &utilityModel{language: "English", onTopic: true}, router)
		f.structured.err = errors.New("backend down")

		out, err := f.runner.Invoke(context.Background(), model.QueryInput{
			Question:  "Who coaches Spain?",
			SessionID: "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, "I'm having trouble with that, please rephrase.", out)

		second := router.calls[1]
		assert.Contains(t, second[len(second)-1].Content, "strategy_failed")
		assert.Empty(t, f.journal.records)
	})

	t.Run("round limit with no text still yields a presentable answer", func(t *testing.T) {
		// the model keeps requesting strategies with blank content, so the
		// wrap-up round must substitute the fixed fallback
		router := &routerModel{replies: []*schema.Message{
			strategyCall(tools.ToolStructuredQuery, "Who coaches Spain?"),
			strategyCall(tools.ToolStructuredQuery, "Who coaches Spain?"),
		}}

		f := &engineFixture{
			router:     router,
			repo:       newMemoryRepo(),
			journal:    &memoryJournal{},
			structured: &fakeStrategy{answer: "structured answer"},
			knowledge:  &fakeStrategy{answer: "knowledge answer"},
		}
		cfg := Config{
			ChatModels: &nodes.ChatModels{
				Router:           router,
				Utility:          &utilityModel{language: "English", onTopic: true},
				RouterModelName:  "gemini-2.5-flash",
				UtilityModelName: "gemini-2.5-flash-lite",
			},
			Prompt:           model.PromptConfig{CompetitionName: "UEFA Women's EURO 2025"},
			ConversationRepo: f.repo,
			Strategies: tools.NewRegistry(
				tools.NewStructuredStrategy(f.structured),
				tools.NewKnowledgeStrategy(f.knowledge),
				tools.NewQualificationStrategy(&fakeStrategy{answer: "scenario answer"}),
			),
			Journal: f.journal,
		}
		cfg.Conversation.History.MaxTurns = 6
		cfg.Conversation.Tools.MaxCalls = 1

		runner, err := BuildEngine(context.Background(), cfg)
		require.NoError(t, err)

		out, err := runner.Invoke(context.Background(), model.QueryInput{
			Question:  "Who coaches Spain?",
			SessionID: "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, nodes.WrapUpFallbackMessage, out)

		// the fallback was persisted as the final assistant turn
		saved := f.repo.messages["s1"]
		require.NotEmpty(t, saved)
		assert.Equal(t, nodes.WrapUpFallbackMessage, saved[len(saved)-1].Content)

		// exactly one strategy round ran before the wrap-up
		assert.Len(t, f.structured.questions, 1)
	})

	t.Run("all three strategies are bound to the router", func(t *testing.T) {
		f := newEngine(t, &utilityModel{language: "English", onTopic: true}, &routerModel{})
		require.Len(t, f.router.boundTools, 3)
		assert.Equal(t, tools.ToolStructuredQuery, f.router.boundTools[0].Name)
		assert.Equal(t, tools.ToolKnowledgeSearch, f.router.boundTools[1].Name)
		assert.Equal(t, tools.ToolQualification, f.router.boundTools[2].Name)
	})
}

func TestEngineValidationFailure(t *testing.T) {
	// a broken classifier must not block answers: the question is treated as
	// on-topic and flows through dispatch
	router := &routerModel{replies: []*schema.Message{
		schema.AssistantMessage("Sarina Wiegman coaches England.", nil),
	}}
	f := newEngine(t,
		&utilityModel{language: "English", validateErr: errors.New("provider down")},
		router,
	)

	out, err := f.runner.Invoke(context.Background(), model.QueryInput{
		Question:  "Who coaches England?",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sarina Wiegman coaches England.", out)
	require.Len(t, router.calls, 1)
}
