package reasoning

// Config contains Anthropic reasoning service configuration.
type Config struct {
	APIKey  string `env:"ANTHROPIC_API_KEY"`
	BaseURL string `env:"ANTHROPIC_BASE_URL"`
	Model   string `env:"REASONING_MODEL"    envDefault:"claude-sonnet-4-5"`
}
