package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/push-campaigns/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// topic management calls accept at most 1000 tokens.
const topicBatchSize = 1000

type Options struct {
	BatchSize     int
	RatePerSecond float64 // provider calls per second, 0 disables throttling
	RetryAttempts int     // total attempts for a failed provider call
	RetryInitial  time.Duration
	RetryMax      time.Duration
	CallTimeout   time.Duration
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 || o.BatchSize > MaxBatchSize {
		o.BatchSize = MaxBatchSize
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = 500 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 10 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
}

// Gateway is the process-wide delivery capability. It is immutable after
// construction and safe for concurrent use.
type Gateway struct {
	provider Provider
	mock     bool
	opts     Options
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewGateway builds an FCM-backed gateway. Missing or broken credentials
// degrade to mock mode with a single warning.
func NewGateway(ctx context.Context, fcm FCMConfig, opts Options, log *zap.Logger) *Gateway {
	if !fcm.HasCredentials() {
		log.Warn("push credentials not configured, gateway running in mock mode")
		return newGateway(MockProvider{}, true, opts, log)
	}

	p, err := NewFCMProvider(ctx, fcm)
	if err != nil {
		log.Warn("push provider init failed, gateway running in mock mode", zap.Error(err))
		return newGateway(MockProvider{}, true, opts, log)
	}

	log.Info("push gateway ready", zap.String("provider", p.Name()), zap.String("project_id", fcm.ProjectID))
	return newGateway(p, false, opts, log)
}

func NewGatewayWithProvider(p Provider, opts Options, log *zap.Logger) *Gateway {
	_, isMock := p.(MockProvider)
	return newGateway(p, isMock, opts, log)
}

func newGateway(p Provider, mock bool, opts Options, log *zap.Logger) *Gateway {
	opts.setDefaults()
	g := &Gateway{provider: p, mock: mock, opts: opts, log: log.With(zap.String("provider", p.Name()))}
	if opts.RatePerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return g
}

func (g *Gateway) IsMock() bool {
	return g.mock
}

func (g *Gateway) ProviderName() string {
	return g.provider.Name()
}

func (g *Gateway) SendToToken(ctx context.Context, token string, msg Message) Outcome {
	res := g.SendToMultipleTokens(ctx, []string{token}, msg)
	return res.Outcomes[0]
}

// SendToMultipleTokens fans out in sequential chunks of at most BatchSize
// tokens. Outcomes stay index-aligned with tokens across chunk boundaries.
func (g *Gateway) SendToMultipleTokens(ctx context.Context, tokens []string, msg Message) *BatchResult {
	res := &BatchResult{Outcomes: make([]Outcome, len(tokens))}

	for start := 0; start < len(tokens); start += g.opts.BatchSize {
		end := min(start+g.opts.BatchSize, len(tokens))
		chunk := tokens[start:end]

		responses, err := g.sendChunk(ctx, chunk, msg)
		if err != nil {
			g.log.Warn("push chunk failed",
				zap.Int("offset", start),
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)
		}

		for i, token := range chunk {
			var o Outcome
			if err != nil {
				o = callFailedOutcome(token, err)
			} else {
				o = tokenOutcome(token, responses[i])
			}
			res.Outcomes[start+i] = o
			if o.Success {
				res.SuccessCount++
			} else {
				res.FailureCount++
			}
		}
	}

	g.record(res)
	if g.mock {
		g.log.Info("mock push send",
			zap.Int("tokens", len(tokens)),
			zap.String("title", msg.Notification.Title),
		)
	}
	return res
}

func (g *Gateway) SendToTopic(ctx context.Context, topic string, msg Message) Outcome {
	if err := g.wait(ctx); err != nil {
		return callFailedOutcome("", err)
	}

	var id string
	err := g.withRetry(ctx, "send_topic", func(callCtx context.Context) error {
		var err error
		id, err = g.provider.SendTopic(callCtx, topic, msg)
		return err
	})
	if err != nil {
		g.log.Warn("push topic send failed", zap.String("topic", topic), zap.Error(err))
		return callFailedOutcome("", err)
	}
	if g.mock {
		g.log.Info("mock push topic send", zap.String("topic", topic), zap.String("title", msg.Notification.Title))
	}
	return Outcome{Success: true, MessageID: id}
}

func (g *Gateway) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	return g.manageTopic(ctx, "subscribe", tokens, topic, g.provider.Subscribe)
}

func (g *Gateway) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	return g.manageTopic(ctx, "unsubscribe", tokens, topic, g.provider.Unsubscribe)
}

type topicFunc func(ctx context.Context, tokens []string, topic string) (*TopicResult, error)

func (g *Gateway) manageTopic(ctx context.Context, op string, tokens []string, topic string, fn topicFunc) (*TopicResult, error) {
	total := &TopicResult{}
	for start := 0; start < len(tokens); start += topicBatchSize {
		end := min(start+topicBatchSize, len(tokens))
		chunk := tokens[start:end]

		if err := g.wait(ctx); err != nil {
			return total, err
		}

		var res *TopicResult
		err := g.withRetry(ctx, op, func(callCtx context.Context) error {
			var err error
			res, err = fn(callCtx, chunk, topic)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("%s topic %q: %w", op, topic, err)
		}

		total.SuccessCount += res.SuccessCount
		total.FailureCount += res.FailureCount
		for _, e := range res.Errors {
			total.Errors = append(total.Errors, TopicError{Index: start + e.Index, Reason: e.Reason})
		}
	}
	return total, nil
}

func (g *Gateway) sendChunk(ctx context.Context, chunk []string, msg Message) ([]ProviderResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	var responses []ProviderResponse
	err := g.withRetry(ctx, "send_each", func(callCtx context.Context) error {
		r, err := g.provider.SendEach(callCtx, chunk, msg)
		if err != nil {
			return err
		}
		if len(r) != len(chunk) {
			return backoff.Permanent(&ProviderError{
				Code: CodeInternal,
				Err:  fmt.Errorf("provider returned %d responses for %d tokens", len(r), len(chunk)),
			})
		}
		responses = r
		return nil
	})
	return responses, err
}

// withRetry retries whole-call failures whose code is classified retryable.
func (g *Gateway) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.RetryInitial
	b.MaxInterval = g.opts.RetryMax
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()

		start := time.Now()
		err := fn(callCtx)
		metrics.ProviderCallDuration.WithLabelValues(g.provider.Name(), op).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		code := ErrorCode(err)
		if !Classify(code).Retryable {
			return backoff.Permanent(err)
		}
		if attempt < g.opts.RetryAttempts {
			metrics.ProviderRetriesTotal.WithLabelValues(g.provider.Name(), code).Inc()
			g.log.Warn("retrying push provider call",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.String("code", code),
				zap.Error(err),
			)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.opts.RetryAttempts-1)), ctx)
	return backoff.Retry(operation, policy)
}

func (g *Gateway) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

func (g *Gateway) record(res *BatchResult) {
	name := g.provider.Name()
	invalid := 0
	for _, o := range res.Outcomes {
		if o.IsInvalidToken {
			invalid++
		}
	}
	metrics.NotificationsAttemptedTotal.WithLabelValues(name, "sent").Add(float64(res.SuccessCount))
	metrics.NotificationsAttemptedTotal.WithLabelValues(name, "failed").Add(float64(res.FailureCount - invalid))
	metrics.NotificationsAttemptedTotal.WithLabelValues(name, "invalid_token").Add(float64(invalid))
}

func tokenOutcome(token string, r ProviderResponse) Outcome {
	if r.Err == nil {
		return Outcome{Token: token, Success: true, MessageID: r.MessageID}
	}
	code := r.Code
	if code == "" {
		code = CodeUnknown
	}
	cls := Classify(code)
	return Outcome{
		Token:          token,
		Error:          r.Err.Error(),
		ErrorCode:      code,
		IsInvalidToken: cls.InvalidToken,
		Retryable:      cls.Retryable,
	}
}

// callFailedOutcome never marks a token invalid: a whole-call failure says
// nothing about any individual token.
func callFailedOutcome(token string, err error) Outcome {
	code := ErrorCode(err)
	return Outcome{
		Token:     token,
		Error:     err.Error(),
		ErrorCode: code,
		Retryable: Classify(code).Retryable,
	}
}
