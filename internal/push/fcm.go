package push

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type FCMConfig struct {
	CredentialsFile string
	CredentialsJSON string
	ProjectID       string
}

func (c FCMConfig) HasCredentials() bool {
	return c.CredentialsFile != "" || c.CredentialsJSON != ""
}

// FCMProvider sends through Firebase Cloud Messaging.
type FCMProvider struct {
	client *messaging.Client
}

func NewFCMProvider(ctx context.Context, cfg FCMConfig) (*FCMProvider, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("fcm credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, errors.New("fcm: no credentials configured")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fcm client: %w", err)
	}
	return &FCMProvider{client: client}, nil
}

func (p *FCMProvider) Name() string {
	return "fcm"
}

func (p *FCMProvider) SendEach(ctx context.Context, tokens []string, msg Message) ([]ProviderResponse, error) {
	android, apns := platformConfig(msg)
	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: notification(msg),
		Data:         msg.Data,
		Android:      android,
		APNS:         apns,
	})
	if err != nil {
		return nil, &ProviderError{Code: fcmErrorCode(err), Err: err}
	}

	out := make([]ProviderResponse, len(tokens))
	for i, r := range resp.Responses {
		if i >= len(out) {
			break
		}
		if r.Success {
			out[i] = ProviderResponse{MessageID: r.MessageID}
			continue
		}
		sendErr := r.Error
		if sendErr == nil {
			sendErr = errors.New("send failed without error detail")
		}
		out[i] = ProviderResponse{Code: fcmErrorCode(sendErr), Err: sendErr}
	}
	if len(resp.Responses) < len(tokens) {
		return nil, &ProviderError{
			Code: CodeInternal,
			Err:  fmt.Errorf("fcm returned %d responses for %d tokens", len(resp.Responses), len(tokens)),
		}
	}
	return out, nil
}

func (p *FCMProvider) SendTopic(ctx context.Context, topic string, msg Message) (string, error) {
	android, apns := platformConfig(msg)
	id, err := p.client.Send(ctx, &messaging.Message{
		Topic:        topic,
		Notification: notification(msg),
		Data:         msg.Data,
		Android:      android,
		APNS:         apns,
	})
	if err != nil {
		return "", &ProviderError{Code: fcmErrorCode(err), Err: err}
	}
	return id, nil
}

func (p *FCMProvider) Subscribe(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	resp, err := p.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return nil, &ProviderError{Code: fcmErrorCode(err), Err: err}
	}
	return topicResult(resp), nil
}

func (p *FCMProvider) Unsubscribe(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	resp, err := p.client.UnsubscribeFromTopic(ctx, tokens, topic)
	if err != nil {
		return nil, &ProviderError{Code: fcmErrorCode(err), Err: err}
	}
	return topicResult(resp), nil
}

func notification(msg Message) *messaging.Notification {
	return &messaging.Notification{
		Title:    msg.Notification.Title,
		Body:     msg.Notification.Body,
		ImageURL: msg.ImageURL,
	}
}

// platformConfig carries the image to platforms that ignore the generic field.
func platformConfig(msg Message) (*messaging.AndroidConfig, *messaging.APNSConfig) {
	if msg.ImageURL == "" {
		return nil, nil
	}
	android := &messaging.AndroidConfig{
		Notification: &messaging.AndroidNotification{ImageURL: msg.ImageURL},
	}
	apns := &messaging.APNSConfig{
		Payload:    &messaging.APNSPayload{Aps: &messaging.Aps{MutableContent: true}},
		FCMOptions: &messaging.APNSFCMOptions{ImageURL: msg.ImageURL},
	}
	return android, apns
}

func topicResult(resp *messaging.TopicManagementResponse) *TopicResult {
	res := &TopicResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
	for _, e := range resp.Errors {
		res.Errors = append(res.Errors, TopicError{Index: e.Index, Reason: e.Reason})
	}
	return res
}

func fcmErrorCode(err error) string {
	switch {
	case messaging.IsUnregistered(err):
		return CodeUnregistered
	case messaging.IsInvalidArgument(err):
		// FCM reports malformed tokens and malformed payloads with the same code.
		if strings.Contains(strings.ToLower(err.Error()), "registration token") {
			return CodeInvalidToken
		}
		return CodeInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return CodeSenderIDMismatch
	case messaging.IsQuotaExceeded(err):
		return CodeQuotaExceeded
	case messaging.IsUnavailable(err):
		return CodeUnavailable
	case messaging.IsInternal(err):
		return CodeInternal
	case messaging.IsThirdPartyAuthError(err):
		return CodeThirdPartyAuth
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}
