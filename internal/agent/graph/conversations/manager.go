package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/eurocup-agent/server/internal/agent/model"
)

// MessagesManager mediates between the graph and the conversation store. The
// store always keeps what the user actually typed; the model context built
// here carries the English rendition the strategies work with.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.History.MaxTurns,
	}
}

// AppendUserMessage persists the raw inbound question.
func (m *MessagesManager) AppendUserMessage(ctx context.Context, sessionID, question string) error {
	return m.conversationRepo.AddMessage(ctx, sessionID, schema.UserMessage(question))
}

// BuildDispatchContext assembles the router context: system prompt, the
// recent history window, then the current question in English. The raw
// question saved by AppendUserMessage is dropped from the window so the
// current turn appears exactly once.
func (m *MessagesManager) BuildDispatchContext(ctx context.Context, sessionID, systemPrompt, englishQuestion string) ([]*schema.Message, error) {
	history, err := m.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	past := history.Messages
	if n := len(past); n > 0 && past[n-1] != nil && past[n-1].Role == schema.User {
		past = past[:n-1]
	}

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	for _, msg := range trimTail(past, m.maxTurns) {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role == schema.User || msg.Role == schema.Assistant {
			messages = append(messages, msg)
		}
	}
	return append(messages, schema.UserMessage(englishQuestion)), nil
}

// SaveResponse persists the final assistant answer.
func (m *MessagesManager) SaveResponse(ctx context.Context, sessionID, content string) error {
	return m.conversationRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(content, nil))
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
