package push

import (
	"context"

	"github.com/google/uuid"
)

var mockNamespace = uuid.MustParse("6f1c2b1e-6a0e-4c39-9d5e-3b7f2f0d8a41")

// MockProvider accepts every send and returns message ids derived from the
// target, so repeated runs produce the same ids.
type MockProvider struct{}

func (MockProvider) Name() string {
	return "mock"
}

func (MockProvider) SendEach(_ context.Context, tokens []string, _ Message) ([]ProviderResponse, error) {
	out := make([]ProviderResponse, len(tokens))
	for i, t := range tokens {
		out[i] = ProviderResponse{MessageID: mockMessageID("token:" + t)}
	}
	return out, nil
}

func (MockProvider) SendTopic(_ context.Context, topic string, _ Message) (string, error) {
	return mockMessageID("topic:" + topic), nil
}

func (MockProvider) Subscribe(_ context.Context, tokens []string, _ string) (*TopicResult, error) {
	return &TopicResult{SuccessCount: len(tokens)}, nil
}

func (MockProvider) Unsubscribe(_ context.Context, tokens []string, _ string) (*TopicResult, error) {
	return &TopicResult{SuccessCount: len(tokens)}, nil
}

func mockMessageID(key string) string {
	return "mock-" + uuid.NewSHA1(mockNamespace, []byte(key)).String()
}
