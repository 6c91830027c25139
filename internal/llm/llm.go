package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/eurocup-agent/server/internal/core/error"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// maxContentLen guards against pathological model outputs before parsing.
const maxContentLen = 128 * 1024

// Complete sends a single-prompt request and returns the trimmed text reply.
func Complete(ctx context.Context, cm model.BaseChatModel, prompt string) (string, error) {
	out, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", errx.New(err, http.StatusBadGateway, errx.ModelErrorMessage)
	}
	if out == nil {
		return "", errx.New(fmt.Errorf("nil completion"), http.StatusBadGateway, errx.ModelErrorMessage)
	}
	return strings.TrimSpace(out.Content), nil
}

// CompleteStructured sends a single-prompt request and decodes the first JSON
// value found in the reply into out. Models wrap JSON in prose or fences more
// often than not, so the decoder scans for the outermost object or array.
func CompleteStructured(ctx context.Context, cm model.BaseChatModel, prompt string, out any) (err error) {
	// panic safety: a malformed reply must never take the turn down
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "llm").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("structured completion panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
		}
	}()

	text, err := Complete(ctx, cm, prompt)
	if err != nil {
		return err
	}
	if len(text) > maxContentLen {
		logx.Warn().Str("component", "llm").Int("orig_len", len(text)).Msg("completion truncated due to size limit")
		text = text[:maxContentLen]
	}

	payload, ok := extractJSON(text)
	if !ok {
		return errx.New(fmt.Errorf("no JSON value in completion"), http.StatusBadGateway, errx.ModelErrorMessage)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return errx.New(err, http.StatusBadGateway, errx.ModelErrorMessage)
	}
	return nil
}

// extractJSON returns the first balanced JSON object or array in s.
func extractJSON(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
