package qualification

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeChatModel) Generate(ctx context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.lastPrompt = msgs[len(msgs)-1].Content
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

type fakeQuerier struct {
	standings    string
	err          error
	lastQuestion string
	lastLanguage string
}

func (f *fakeQuerier) Run(_ context.Context, question, language string) (string, error) {
	f.lastQuestion = question
	f.lastLanguage = language
	return f.standings, f.err
}

func TestReasonerAnswer(t *testing.T) {
	ctx := context.Background()
	cfg := Config{CompetitionName: "UEFA Women's EURO 2025"}

	t.Run("combines rules, live data and question", func(t *testing.T) {
		cm := &fakeChatModel{reply: "Italy qualifies with a draw against Spain."}
		querier := &fakeQuerier{standings: "Group B: Spain 6 pts, Italy 4 pts"}

		out, err := NewReasoner(cm, querier, cfg).Answer(ctx, "What does Italy need to qualify?", "English")
		require.NoError(t, err)
		assert.Equal(t, "Italy qualifies with a draw against Spain.", out)

		assert.Contains(t, cm.lastPrompt, "head-to-head points")
		assert.Contains(t, cm.lastPrompt, "Group B: Spain 6 pts, Italy 4 pts")
		assert.Contains(t, cm.lastPrompt, "What does Italy need to qualify?")
		assert.Contains(t, cm.lastPrompt, "Answer in English language.")
	})

	t.Run("standings are fetched in English regardless of user language", func(t *testing.T) {
		cm := &fakeChatModel{reply: "ok"}
		querier := &fakeQuerier{standings: "data"}

		_, err := NewReasoner(cm, querier, cfg).Answer(ctx, "¿Qué necesita Italia?", "Spanish")
		require.NoError(t, err)

		assert.Equal(t, "English", querier.lastLanguage)
		assert.True(t, strings.Contains(querier.lastQuestion, "¿Qué necesita Italia?"))
		assert.Contains(t, cm.lastPrompt, "Answer in Spanish language.")
	})

	t.Run("propagates standings fetch failure", func(t *testing.T) {
		cm := &fakeChatModel{reply: "unreachable"}
		querier := &fakeQuerier{err: errors.New("db offline")}

		_, err := NewReasoner(cm, querier, cfg).Answer(ctx, "question", "English")
		require.Error(t, err)
		assert.Empty(t, cm.lastPrompt)
	})
}
