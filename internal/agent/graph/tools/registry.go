package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Tool names exposed to the router model.
const (
	ToolStructuredQuery = "query_tournament_data"
	ToolKnowledgeSearch = "search_tournament_knowledge"
	ToolQualification   = "qualification_scenarios"
)

// Strategy is one answering capability the router can select. Execute always
// receives the question in English together with the language the final
// answer must be written in, and returns user-presentable text.
type Strategy interface {
	Name() string
	Info() *schema.ToolInfo
	Execute(ctx context.Context, question, language string) (string, error)
}

// Registry holds the fixed strategy set in router-facing order.
type Registry struct {
	order  []Strategy
	byName map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{byName: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		if s == nil {
			continue
		}
		r.order = append(r.order, s)
		r.byName[s.Name()] = s
	}
	return r
}

// ToolInfos returns the tool declarations to bind to the router model.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, s := range r.order {
		infos = append(infos, s.Info())
	}
	return infos
}

// Lookup resolves a tool call name. The router sometimes hallucinates names,
// so absence is an expected outcome, not an error.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

func questionParam(desc string) *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"question": {
			Type:     "string",
			Desc:     desc,
			Required: true,
		},
	})
}
