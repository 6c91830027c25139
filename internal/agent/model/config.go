package model

// ================ Config ================

type ConversationConfig struct {
	TTL     string `envconfig:"CONVERSATION_TTL" default:"30m"`
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"6"`
	}
	Tools struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

// RouterModelConfig configures the tool-calling model that picks a strategy
// and synthesizes the final answer.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.4"`
}

// UtilityModelConfig configures the cheap model used for language detection,
// topic validation, translation, grading and rewriting.
type UtilityModelConfig struct {
	Model       string  `envconfig:"UTILITY_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"UTILITY_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"UTILITY_TEMPERATURE" default:"0.0"`
}

// PromptConfig carries the tournament identity injected into system prompts.
type PromptConfig struct {
	CompetitionName string `envconfig:"PROMPT_COMPETITION_NAME" default:"UEFA Women's EURO 2025"`
}

// KnowledgeConfig bounds the retrieval-augmented loop and locates its store.
type KnowledgeConfig struct {
	DataDir            string  `envconfig:"KNOWLEDGE_DATA_DIR" default:"data"`
	EmbeddingBaseURL   string  `envconfig:"KNOWLEDGE_EMBEDDING_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	EmbeddingModel     string  `envconfig:"KNOWLEDGE_EMBEDDING_MODEL" default:"text-embedding-004"`
	Collection         string  `envconfig:"KNOWLEDGE_COLLECTION" default:"euro2025"`
	TopK               int     `envconfig:"KNOWLEDGE_TOP_K" default:"5"`
	RelevanceThreshold float64 `envconfig:"KNOWLEDGE_RELEVANCE_THRESHOLD" default:"0.7"`
	MaxRewrites        int     `envconfig:"KNOWLEDGE_MAX_REWRITES" default:"2"`
}

// SQLAgentConfig bounds the structured query loop.
type SQLAgentConfig struct {
	MaxIterations int    `envconfig:"SQL_AGENT_MAX_ITERATIONS" default:"12"`
	MaxRows       int    `envconfig:"SQL_AGENT_MAX_ROWS" default:"50"`
	SchemaTTL     string `envconfig:"SQL_AGENT_SCHEMA_TTL" default:"15m"`
}

// JournalConfig bounds the question/answer journal retries.
type JournalConfig struct {
	Attempts       int `envconfig:"JOURNAL_ATTEMPTS" default:"3"`
	BackoffSeconds int `envconfig:"JOURNAL_BACKOFF_SECONDS" default:"2"`
}
