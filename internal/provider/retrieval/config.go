package retrieval

// Config contains retrieval service configuration. The service speaks the
// OpenAI chat completions protocol; all fields map to SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Model: the search-grounded model to query
type Config struct {
	APIKey  string `env:"PERPLEXITY_API_KEY"`
	BaseURL string `env:"PERPLEXITY_BASE_URL" envDefault:"https://api.perplexity.ai/"`
	Model   string `env:"RETRIEVAL_MODEL"     envDefault:"sonar"`
}
