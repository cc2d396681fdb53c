package llm

import (
	"context"
)

// Client generates a completion for a prompt. Every generative collaborator
// in the pipeline (extraction, critique, synthesis) speaks through this.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
