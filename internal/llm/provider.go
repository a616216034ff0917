package llm

import "context"

// Role names used in chat transcripts sent to providers
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of conversation history
type ChatMessage struct {
	Role    string
	Content string
}

// Request contains everything needed to answer one question
type Request struct {
	SystemPrompt string
	History      []ChatMessage
	Question     string
	Context      string
}

// Response contains LLM generation result
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate answers req.Question given the retrieved context and history
	Generate(ctx context.Context, req Request, model string) (*Response, error)
}

// Embedder turns text into vectors
type Embedder interface {
	// Name returns the provider identifier
	Name() string

	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size, or 0 if unknown
	Dimensions() int
}
