package rag

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/eurocup-agent/server/internal/agent/graph/prompts"
	"github.com/eurocup-agent/server/internal/llm"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// QuestionMetadata is the structured filter extracted from a raw question
// before retrieval starts.
type QuestionMetadata struct {
	Countries []string `json:"countries"`
}

// Filter converts the metadata into a retriever filter. Nil when nothing was
// extracted.
func (m QuestionMetadata) Filter() map[string][]string {
	if len(m.Countries) == 0 {
		return nil
	}
	return map[string][]string{countryMetadataKey: m.Countries}
}

// extractMetadata runs the structured-output call once per loop entry.
// Extraction is best-effort: any failure means an unfiltered search, never a
// failed turn.
func extractMetadata(ctx context.Context, cm einomodel.BaseChatModel, question string) QuestionMetadata {
	var meta QuestionMetadata
	if err := llm.CompleteStructured(ctx, cm, prompts.ExtractCountries(question), &meta); err != nil {
		logx.Warn().Err(err).Msg("question metadata extraction failed, searching unfiltered")
		return QuestionMetadata{}
	}
	return meta
}
