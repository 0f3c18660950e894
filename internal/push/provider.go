package push

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the wire-level push backend. SendEach must return exactly one
// response per input token, in input order.
type Provider interface {
	Name() string
	SendEach(ctx context.Context, tokens []string, msg Message) ([]ProviderResponse, error)
	SendTopic(ctx context.Context, topic string, msg Message) (string, error)
	Subscribe(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
	Unsubscribe(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
}

type ProviderResponse struct {
	MessageID string
	Code      string
	Err       error
}

// ProviderError is a failure of a whole provider call.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the provider code from err, falling back to timeout for
// context expiry and unknown for everything else.
func ErrorCode(err error) string {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}
