package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/memstore"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/push"
	"go.uber.org/zap"
)

var testTenant = models.Tenant{
	ID:     uuid.MustParse("0d3c8f86-1111-4a5e-9c1c-6a1f0e3d2b10"),
	Slug:   "acme",
	Status: models.TenantStatusActive,
}

func memStores(st *memstore.Store) Stores {
	return Stores{Campaigns: st, Tokens: st, Users: st, Audit: st}
}

func memOpener(st *memstore.Store) StoreOpener {
	return StoreOpenerFunc(func(context.Context, models.Tenant) (Stores, func(), error) {
		return memStores(st), func() {}, nil
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// codeProvider fails the tokens listed in codes with the mapped provider code.
type codeProvider struct {
	mu    sync.Mutex
	codes map[string]string
	calls int
}

func (p *codeProvider) Name() string { return "test" }

func (p *codeProvider) SendEach(_ context.Context, tokens []string, _ push.Message) ([]push.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	out := make([]push.ProviderResponse, len(tokens))
	for i, t := range tokens {
		if code, ok := p.codes[t]; ok {
			out[i] = push.ProviderResponse{Code: code, Err: fmt.Errorf("%s rejected", t)}
			continue
		}
		out[i] = push.ProviderResponse{MessageID: "id-" + t}
	}
	return out, nil
}

func (p *codeProvider) SendTopic(context.Context, string, push.Message) (string, error) {
	return "topic", nil
}

func (p *codeProvider) Subscribe(_ context.Context, tokens []string, _ string) (*push.TopicResult, error) {
	return &push.TopicResult{SuccessCount: len(tokens)}, nil
}

func (p *codeProvider) Unsubscribe(_ context.Context, tokens []string, _ string) (*push.TopicResult, error) {
	return &push.TopicResult{SuccessCount: len(tokens)}, nil
}

func newGateway(p push.Provider) *push.Gateway {
	return push.NewGatewayWithProvider(p, push.Options{
		RetryAttempts: 2,
		RetryInitial:  time.Millisecond,
		CallTimeout:   time.Second,
	}, zap.NewNop())
}

type fixture struct {
	store     *memstore.Store
	publisher *recordingPublisher
	gateway   *push.Gateway
	campaigns *CampaignService
	tokens    *TokenService
}

func newFixture(p push.Provider) *fixture {
	log := zap.NewNop()
	st := memstore.New()
	pub := &recordingPublisher{}
	gw := newGateway(p)
	deliverer := NewDeliverer(NewAudienceResolver(log), gw, pub, "https://cdn.example.com/media", log)
	return &fixture{
		store:     st,
		publisher: pub,
		gateway:   gw,
		campaigns: NewCampaignService(memOpener(st), deliverer, gw, pub, log),
		tokens:    NewTokenService(memOpener(st), log),
	}
}

func (f *fixture) addUser(postal, document string, active bool, standing string) uuid.UUID {
	u := models.User{ID: uuid.New(), IsActive: active, Standing: standing}
	if postal != "" {
		u.PostalCode = &postal
	}
	if document != "" {
		u.DocumentNumber = &document
	}
	f.store.AddUser(u)
	return u.ID
}

func (f *fixture) addToken(userID uuid.UUID, token string) {
	if _, err := f.tokens.Register(context.Background(), testTenant, userID, token, models.PlatformAndroid); err != nil {
		panic(err)
	}
}

func strPtr(s string) *string {
	return &s
}
