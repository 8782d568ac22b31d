// Package modelclient provides model client implementations. The loopback
// client is the development default; real provider clients plug in through
// the same interface.
package modelclient

import (
	"context"
	"strings"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

// Loopback is a provider-free model client for development and demos. It
// echoes the latest user message and reports synthetic usage derived from the
// transcript size, so the full pipeline, aggregation and billing included,
// can be exercised without credentials.
type Loopback struct{}

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Invoke(_ context.Context, req protocol.ModelRequest) (*protocol.ModelResponse, error) {
	reply := l.reply(req)

	return &protocol.ModelResponse{
		Message: models.Message{
			Role:    models.MessageRoleAssistant,
			Content: reply,
		},
		Usage: l.usage(req, reply),
	}, nil
}

func (l *Loopback) InvokeStream(ctx context.Context, req protocol.ModelRequest, onToken func(string)) (*protocol.ModelResponse, error) {
	reply := l.reply(req)

	for _, word := range strings.Fields(reply) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		onToken(word + " ")
	}

	return &protocol.ModelResponse{
		Message: models.Message{
			Role:    models.MessageRoleAssistant,
			Content: reply,
		},
		Usage: l.usage(req, reply),
	}, nil
}

func (l *Loopback) reply(req protocol.ModelRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == models.MessageRoleUser {
			return "You said: " + req.Messages[i].Content
		}
	}

	return "Hello from the loopback model."
}

func (l *Loopback) usage(req protocol.ModelRequest, reply string) map[string]any {
	prompt := 0
	for _, message := range req.Messages {
		prompt += len(strings.Fields(message.Content))
	}

	completion := len(strings.Fields(reply))

	return map[string]any{
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"total_tokens":      prompt + completion,
	}
}
