package local

// Config contains local fallback service configuration. The default
// backend is an Ollama server speaking the OpenAI protocol; "echo" swaps in
// the deterministic development backend.
type Config struct {
	Backend string `env:"LOCAL_BACKEND"  envDefault:"ollama"                    validate:"oneof=ollama echo"`
	BaseURL string `env:"LOCAL_BASE_URL" envDefault:"http://localhost:11434/v1"`
	APIKey  string `env:"LOCAL_API_KEY"  envDefault:"ollama"`
	Model   string `env:"LOCAL_MODEL"    envDefault:"llama3.1:8b"`
}
