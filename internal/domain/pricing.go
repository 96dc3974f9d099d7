package domain

// CostModel contains the billing terms of an upstream service.
type CostModel struct {
	PerCall     float64 `json:"per_call"      yaml:"per_call"      toml:"per_call"      validate:"gte=0"` // USD per request
	InputPer1K  float64 `json:"input_per_1k"  yaml:"input_per_1k"  toml:"input_per_1k"  validate:"gte=0"` // USD per 1K input tokens
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k" toml:"output_per_1k" validate:"gte=0"` // USD per 1K output tokens
}

// IsFree reports whether calls to the service cost nothing.
func (c CostModel) IsFree() bool {
	return c.PerCall == 0 && c.InputPer1K == 0 && c.OutputPer1K == 0
}

// CostCalculator calculates cost based on token usage.
type CostCalculator interface {
	// Calculate returns the total cost of a call with the given usage.
	Calculate(model CostModel, usage Usage) float64
}

// ServiceCatalog maintains the descriptors of the configured upstream services.
type ServiceCatalog interface {
	// Get returns the descriptor for a service.
	Get(name string) (ServiceDescriptor, error)

	// Register adds or replaces a service descriptor.
	Register(desc ServiceDescriptor) error

	// All returns every descriptor in registration order.
	All() []ServiceDescriptor
}
