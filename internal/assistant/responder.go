package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Responder answers one transcribed utterance at a time.
type Responder struct {
	client  Client
	prompt  string
	backoff []time.Duration
	wait    func(ctx context.Context, d time.Duration) error
}

func NewResponder(client Client, systemPrompt string) *Responder {
	return &Responder{
		client:  client,
		prompt:  systemPrompt,
		backoff: []time.Duration{500 * time.Millisecond, 2 * time.Second, 8 * time.Second},
		wait:    sleepContext,
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reply returns the assistant's answer to transcript. Blank transcripts get
// an empty reply without a provider call.
func (r *Responder) Reply(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", nil
	}

	messages := make([]Message, 0, 2)
	if r.prompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: r.prompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: transcript})

	var lastErr error
	for attempt := range r.backoff {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		reply, err := r.client.Complete(ctx, messages)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if attempt < len(r.backoff)-1 {
			if err := r.wait(ctx, r.backoff[attempt]); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("reply failed after retries: %w", lastErr)
}
