package model

import "context"

// KnowledgeRetriever is the engine-facing contract of the vector store.
// Search returns up to k passages ordered by similarity. The filter maps a
// metadata key to the set of accepted values; an empty filter matches all.
type KnowledgeRetriever interface {
	Search(ctx context.Context, query string, filter map[string][]string, k int) ([]string, error)
}

// JournalRecord is one completed tool-backed turn, immutable once written.
type JournalRecord struct {
	UserID           string
	Country          string
	Question         string // translated question handed to the strategy
	OriginalQuestion string // raw text the router forwarded
	Answer           string
	QuestionLanguage string
	Strategy         string
}

// QAJournal records question/answer pairs. Implementations retry transient
// faults internally; a journal failure must never fail a user-facing answer.
type QAJournal interface {
	Record(ctx context.Context, rec JournalRecord) error
}
