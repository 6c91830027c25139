package sqlagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel pops scripted replies in order for loop rounds and answers
// utility prompts (topic phrase, translation) by inspecting their text.
type fakeChatModel struct {
	replies []*schema.Message
	err     error
	calls   int
}

func toolCallMsg(query string) *schema.Message {
	msg := schema.AssistantMessage("", nil)
	msg.ToolCalls = []schema.ToolCall{{
		ID: fmt.Sprintf("call_%d", len(query)),
		Function: schema.FunctionCall{
			Name:      queryToolName,
			Arguments: fmt.Sprintf(`{"query": %q}`, query),
		},
	}}
	return msg
}

func (f *fakeChatModel) Generate(ctx context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	prompt := msgs[len(msgs)-1].Content
	switch {
	case strings.Contains(prompt, "noun phrase"):
		return schema.AssistantMessage("that match", nil), nil
	case strings.Contains(prompt, "Translate this to"):
		return schema.AssistantMessage("disculpa traducida", nil), nil
	}

	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.replies) {
		// keep the loop spinning for exhaustion tests
		return toolCallMsg("SELECT 1"), nil
	}
	out := f.replies[f.calls]
	f.calls++
	return out, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (f *fakeChatModel) WithTools(_ []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

type fakeRunner struct {
	results map[string]string
	err     error
	queries []string
}

func (f *fakeRunner) Query(_ context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return "", f.err
	}
	if r, ok := f.results[query]; ok {
		return r, nil
	}
	return Sentinel, nil
}

func newTestAgent(cm *fakeChatModel, runner *fakeRunner, maxIterations int) *Agent {
	cache := NewSchemaCache(nil, time.Minute)
	return NewAgent(cm, runner, cache, Config{
		CompetitionName: "UEFA Women's EURO 2025",
		MaxIterations:   maxIterations,
	})
}

func TestAgentRun(t *testing.T) {
	ctx := context.Background()

	t.Run("answers from observed rows", func(t *testing.T) {
		q := "SELECT coach FROM teams WHERE country ILIKE '%Spain%'"
		cm := &fakeChatModel{replies: []*schema.Message{
			toolCallMsg(q),
			schema.AssistantMessage("The coach of Spain is Montse Tomé.", nil),
		}}
		runner := &fakeRunner{results: map[string]string{q: "coach\nMontse Tomé"}}

		out, err := newTestAgent(cm, runner, 12).Run(ctx, "Who is the coach of Spain?", "English")
		require.NoError(t, err)
		assert.Equal(t, "The coach of Spain is Montse Tomé.", out)
		assert.Equal(t, []string{q}, runner.queries)
	})

	t.Run("empty result routes to not-found apology", func(t *testing.T) {
		cm := &fakeChatModel{replies: []*schema.Message{
			toolCallMsg("SELECT * FROM teams WHERE country ILIKE '%Narnia%'"),
			schema.AssistantMessage("No results found for that team.", nil),
		}}
		runner := &fakeRunner{}

		out, err := newTestAgent(cm, runner, 12).Run(ctx, "Who coaches Narnia?", "English")
		require.NoError(t, err)
		assert.Contains(t, out, "I don't have information about that match")
	})

	t.Run("sentinel detection is case-insensitive", func(t *testing.T) {
		cm := &fakeChatModel{replies: []*schema.Message{
			schema.AssistantMessage("NO RESULTS FOUND.", nil),
		}}
		out, err := newTestAgent(cm, &fakeRunner{}, 12).Run(ctx, "anything", "English")
		require.NoError(t, err)
		assert.Contains(t, out, "I don't have information about")
	})

	t.Run("apology is localized", func(t *testing.T) {
		cm := &fakeChatModel{replies: []*schema.Message{
			schema.AssistantMessage("No results found.", nil),
		}}
		out, err := newTestAgent(cm, &fakeRunner{}, 12).Run(ctx, "¿algo?", "Spanish")
		require.NoError(t, err)
		assert.Equal(t, "disculpa traducida", out)
	})

	t.Run("iteration exhaustion yields fixed fallback", func(t *testing.T) {
		cm := &fakeChatModel{} // always requests another query
		runner := &fakeRunner{}
		out, err := newTestAgent(cm, runner, 3).Run(ctx, "hard question", "English")
		require.NoError(t, err)
		assert.Equal(t, ExhaustedMessage, out)
		assert.Len(t, runner.queries, 3)
	})

	t.Run("model failure yields fixed fallback with nil error", func(t *testing.T) {
		cm := &fakeChatModel{err: errors.New("provider down")}
		out, err := newTestAgent(cm, &fakeRunner{}, 12).Run(ctx, "question", "English")
		require.NoError(t, err)
		assert.Equal(t, ErrorMessage, out)
	})

	t.Run("query errors are fed back as observations", func(t *testing.T) {
		bad := "SELECT nope FROM nowhere"
		cm := &fakeChatModel{replies: []*schema.Message{
			toolCallMsg(bad),
			schema.AssistantMessage("I could not find that.", nil),
		}}
		runner := &fakeRunner{err: errors.New("relation does not exist")}

		out, err := newTestAgent(cm, runner, 12).Run(ctx, "question", "English")
		require.NoError(t, err)
		assert.Equal(t, "I could not find that.", out)
		assert.Equal(t, []string{bad}, runner.queries)
	})
}

func TestDBRunnerGuard(t *testing.T) {
	r := NewDBRunner(nil, 10)

	for _, stmt := range []string{
		"DELETE FROM teams",
		"UPDATE teams SET coach = 'x'",
		"DROP TABLE teams",
		"INSERT INTO teams VALUES (1)",
	} {
		_, err := r.Query(context.Background(), stmt)
		assert.Error(t, err, stmt)
	}
}

func TestSchemaCache(t *testing.T) {
	ctx := context.Background()

	t.Run("static docs without a database", func(t *testing.T) {
		c := NewSchemaCache(nil, time.Minute)
		doc, err := c.Doc(ctx)
		require.NoError(t, err)
		assert.Contains(t, doc, "Table teams")
		assert.Contains(t, doc, "group_standings")
	})

	t.Run("caches within TTL", func(t *testing.T) {
		c := NewSchemaCache(nil, time.Minute)
		builds := 0
		c.build = func(ctx context.Context) (string, error) {
			builds++
			return fmt.Sprintf("doc v%d", builds), nil
		}

		first, err := c.Doc(ctx)
		require.NoError(t, err)
		second, err := c.Doc(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, builds)
	})

	t.Run("rebuilds after TTL and serves stale on failure", func(t *testing.T) {
		c := NewSchemaCache(nil, time.Nanosecond)
		healthy := true
		c.build = func(ctx context.Context) (string, error) {
			if !healthy {
				return "", errors.New("db offline")
			}
			return "fresh doc", nil
		}

		doc, err := c.Doc(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fresh doc", doc)

		time.Sleep(time.Millisecond)
		healthy = false
		doc, err = c.Doc(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fresh doc", doc)
	})
}
