package model

import (
	"os"

	"github.com/cloudwego/eino/schema"
)

// Pricing is the USD rate per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// pricingTable holds standard-tier text rates for the models this service
// runs. Unknown models cost zero rather than guessing.
var pricingTable = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// CostEnabled reports whether per-call cost accounting is on. It is on by
// default and switched off with COST_TRACKING=off.
func CostEnabled() bool {
	return os.Getenv("COST_TRACKING") != "off"
}

// ResolvePricing returns the rate for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return pricingTable[model]
}

// ComputeCost converts token usage into USD amounts.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
