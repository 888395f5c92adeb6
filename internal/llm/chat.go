// Package llm holds the chat capabilities used to answer questions.
package llm

import (
	"context"

	"github.com/report-qa/cli/internal/domain"
)

// ChatModel is the single chat capability: a stateless prompt or a full
// message history, both returning the model's raw text.
type ChatModel interface {
	Chat(ctx context.Context, prompt string) (string, error)
	ChatWithHistory(ctx context.Context, messages []domain.Message) (string, error)
}
