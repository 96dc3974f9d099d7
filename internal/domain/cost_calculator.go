package domain

const tokensToPerK = 1000.0

// StandardCostCalculator implements per-call plus per-token cost calculation.
type StandardCostCalculator struct{}

// NewStandardCostCalculator creates a new cost calculator.
func NewStandardCostCalculator() *StandardCostCalculator {
	return &StandardCostCalculator{}
}

// Calculate computes the total cost based on token usage and the service cost model.
func (c *StandardCostCalculator) Calculate(model CostModel, usage Usage) float64 {
	inputCost := float64(usage.PromptTokens) / tokensToPerK * model.InputPer1K
	outputCost := float64(usage.CompletionTokens) / tokensToPerK * model.OutputPer1K

	return model.PerCall + inputCost + outputCost
}
