package model

import (
	"github.com/cloudwego/eino/schema"
)

// Validity is the tri-state outcome of the topic validation step.
type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - State is created fresh per inbound question; cross-session isolation
//     comes from keying persistence to SessionID, never from shared state.
type AppState struct {
	SessionID string
	Country   string
	Question  string // raw inbound question, preserved for journaling

	TranslatedQuestion string // English rendition handed to the router and strategies

	DetectedLanguage string   // set once by the detection node
	Validity         Validity // set once by the validation node
	SelectedStrategy string   // last strategy executed, for auditing

	History               []*schema.Message // mutated only inside Eino state handlers
	ToolRoundCount        int
	ToolRoundLimitReached bool
	ToolCallIDSeq         int // local sequence to synthesize tool_call_id when provider omits

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents one inbound user question.
type QueryInput struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	Country   string `json:"country,omitempty"`
}
