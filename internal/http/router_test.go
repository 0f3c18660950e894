package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/auth"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/http/handlers"
	"github.com/push-campaigns/backend/internal/memstore"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/push"
	"github.com/push-campaigns/backend/internal/repositories"
	"github.com/push-campaigns/backend/internal/services"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type staticDirectory map[string]models.Tenant

func (d staticDirectory) ListActive(context.Context) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, t := range d {
		out = append(out, t)
	}
	return out, nil
}

func (d staticDirectory) GetBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	t, ok := d[slug]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

type recordingTopics struct {
	subscribed   map[string][]string
	unsubscribed map[string][]string
}

func (r *recordingTopics) SubscribeToTopic(_ context.Context, tokens []string, topic string) (*push.TopicResult, error) {
	r.subscribed[topic] = append(r.subscribed[topic], tokens...)
	return &push.TopicResult{SuccessCount: len(tokens)}, nil
}

func (r *recordingTopics) UnsubscribeFromTopic(_ context.Context, tokens []string, topic string) (*push.TopicResult, error) {
	r.unsubscribed[topic] = append(r.unsubscribed[topic], tokens...)
	return &push.TopicResult{SuccessCount: len(tokens)}, nil
}

type testServer struct {
	app    *fiber.App
	store  *memstore.Store
	topics *recordingTopics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{JWTSecret: testSecret}

	st := memstore.New()
	opener := services.StoreOpenerFunc(func(context.Context, models.Tenant) (services.Stores, func(), error) {
		return services.Stores{Campaigns: st, Tokens: st, Users: st, Audit: st}, func() {}, nil
	})
	dir := staticDirectory{
		"acme":   {ID: uuid.New(), Slug: "acme", Status: models.TenantStatusActive},
		"frozen": {ID: uuid.New(), Slug: "frozen", Status: models.TenantStatusSuspended},
	}

	gw := push.NewGatewayWithProvider(push.MockProvider{}, push.Options{}, log)
	pub := events.NopPublisher{}
	deliverer := services.NewDeliverer(services.NewAudienceResolver(log), gw, pub, "", log)
	campaigns := services.NewCampaignService(opener, deliverer, gw, pub, log)
	tokens := services.NewTokenService(opener, log)

	topics := &recordingTopics{subscribed: map[string][]string{}, unsubscribed: map[string][]string{}}

	app := fiber.New()
	SetupRouter(app, cfg, log, nil, Handlers{
		Campaigns:     handlers.NewCampaignHandler(campaigns, dir, log),
		Devices:       handlers.NewDeviceHandler(tokens, dir, topics, log),
		Notifications: handlers.NewNotificationHandler(campaigns, dir, log),
		Meta:          handlers.NewMetaHandler(gw),
	})
	return &testServer{app: app, store: st, topics: topics}
}

func bearer(t *testing.T, userID uuid.UUID, tenant, role string) string {
	t.Helper()
	token, err := auth.GenerateJWT(testSecret, userID, tenant, role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + token
}

type envelope struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, authz string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, env
}

func (s *testServer) addUser() uuid.UUID {
	id := uuid.New()
	s.store.AddUser(models.User{ID: id, IsActive: true, Standing: models.StandingGood})
	return id
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	if code, _ := s.do(t, "GET", "/health", "", nil); code != fiber.StatusOK {
		t.Errorf("/health = %d", code)
	}
	if code, _ := s.do(t, "GET", "/metrics", "", nil); code != fiber.StatusOK {
		t.Errorf("/metrics = %d", code)
	}

	code, env := s.do(t, "GET", "/api/v1/meta/delivery", "", nil)
	if code != fiber.StatusOK || !bytes.Contains(env.Data, []byte(`"mock":true`)) {
		t.Errorf("/meta/delivery = %d %s", code, env.Data)
	}
}

func TestAuthAndPermissions(t *testing.T) {
	s := newTestServer(t)
	user := s.addUser()

	tests := []struct {
		name   string
		method string
		path   string
		authz  string
		want   int
	}{
		{"no header", "GET", "/api/v1/me/devices", "", fiber.StatusUnauthorized},
		{"not bearer", "GET", "/api/v1/me/devices", "Token abc", fiber.StatusUnauthorized},
		{"bad token", "GET", "/api/v1/me/devices", "Bearer abc", fiber.StatusUnauthorized},
		{"user lists own devices", "GET", "/api/v1/me/devices", bearer(t, user, "acme", "user"), fiber.StatusOK},
		{"user cannot list campaigns", "GET", "/api/v1/campaigns", bearer(t, user, "acme", "user"), fiber.StatusForbidden},
		{"user cannot send tests", "POST", "/api/v1/notifications/test", bearer(t, user, "acme", "user"), fiber.StatusForbidden},
		{"suspended tenant", "GET", "/api/v1/me/devices", bearer(t, user, "frozen", "user"), fiber.StatusForbidden},
		{"unknown tenant", "GET", "/api/v1/campaigns", bearer(t, user, "nope", "admin"), fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, env := s.do(t, tt.method, tt.path, tt.authz, nil); code != tt.want {
				t.Errorf("status = %d (%s), want %d", code, env.Error, tt.want)
			}
		})
	}
}

func TestDeviceEndpoints(t *testing.T) {
	s := newTestServer(t)
	user := s.addUser()
	authz := bearer(t, user, "acme", "user")

	code, env := s.do(t, "POST", "/api/v1/me/devices", authz, map[string]string{"token": "raw-device-token", "platform": "ios"})
	if code != fiber.StatusCreated {
		t.Fatalf("register = %d %s", code, env.Error)
	}

	code, env = s.do(t, "GET", "/api/v1/me/devices", authz, nil)
	if code != fiber.StatusOK {
		t.Fatalf("list = %d", code)
	}
	var devices []models.DeviceTokenView
	if err := json.Unmarshal(env.Data, &devices); err != nil || len(devices) != 1 {
		t.Fatalf("devices = %s (%v)", env.Data, err)
	}
	if bytes.Contains(env.Data, []byte("raw-device-token")) {
		t.Error("device list exposes the raw token")
	}

	if code, _ := s.do(t, "POST", "/api/v1/me/devices", authz, map[string]string{"token": "x", "platform": "palm"}); code != fiber.StatusBadRequest {
		t.Errorf("bad platform = %d", code)
	}

	other := bearer(t, uuid.New(), "acme", "user")
	if code, _ := s.do(t, "DELETE", "/api/v1/me/devices", other, map[string]string{"token": "raw-device-token"}); code != fiber.StatusNotFound {
		t.Errorf("foreign remove = %d", code)
	}
	if code, _ := s.do(t, "DELETE", "/api/v1/me/devices", authz, map[string]string{"token": "raw-device-token"}); code != fiber.StatusOK {
		t.Errorf("remove = %d", code)
	}
	if len(s.topics.subscribed) != 0 || len(s.topics.unsubscribed) != 0 {
		t.Errorf("regular user touched operator topics: %v %v", s.topics.subscribed, s.topics.unsubscribed)
	}
}

func TestReassignedAdminDeviceLeavesOperatorTopic(t *testing.T) {
	s := newTestServer(t)
	admin := bearer(t, s.addUser(), "acme", "admin")
	buyer := bearer(t, s.addUser(), "acme", "user")

	if code, env := s.do(t, "POST", "/api/v1/me/devices", admin, map[string]string{"token": "resold", "platform": "ios"}); code != fiber.StatusCreated {
		t.Fatalf("admin register = %d %s", code, env.Error)
	}
	if code, env := s.do(t, "POST", "/api/v1/me/devices", buyer, map[string]string{"token": "resold", "platform": "ios"}); code != fiber.StatusCreated {
		t.Fatalf("user register = %d %s", code, env.Error)
	}
	if got := s.topics.unsubscribed["ops-acme"]; len(got) != 1 || got[0] != "resold" {
		t.Errorf("unsubscribed = %v, want [resold] on ops-acme", s.topics.unsubscribed)
	}

	// re-registering the same token by the same user is not a handover
	if code, _ := s.do(t, "POST", "/api/v1/me/devices", buyer, map[string]string{"token": "resold", "platform": "ios"}); code != fiber.StatusCreated {
		t.Fatalf("repeat register = %d", code)
	}
	if got := s.topics.unsubscribed["ops-acme"]; len(got) != 1 {
		t.Errorf("repeat registration unsubscribed again: %v", got)
	}
}

func TestAdminDeviceFollowsOperatorTopic(t *testing.T) {
	s := newTestServer(t)
	admin := bearer(t, s.addUser(), "acme", "admin")

	if code, env := s.do(t, "POST", "/api/v1/me/devices", admin, map[string]string{"token": "ops-device", "platform": "android"}); code != fiber.StatusCreated {
		t.Fatalf("register = %d %s", code, env.Error)
	}
	if got := s.topics.subscribed["ops-acme"]; len(got) != 1 || got[0] != "ops-device" {
		t.Fatalf("subscribed = %v", s.topics.subscribed)
	}

	if code, _ := s.do(t, "DELETE", "/api/v1/me/devices", admin, map[string]string{"token": "ops-device"}); code != fiber.StatusOK {
		t.Fatalf("remove = %d", code)
	}
	if got := s.topics.unsubscribed["ops-acme"]; len(got) != 1 || got[0] != "ops-device" {
		t.Errorf("unsubscribed = %v", s.topics.unsubscribed)
	}
}

func TestCampaignEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := bearer(t, uuid.New(), "acme", "admin")

	user := s.addUser()
	userAuthz := bearer(t, user, "acme", "user")
	if code, _ := s.do(t, "POST", "/api/v1/me/devices", userAuthz, map[string]string{"token": "tok", "platform": "android"}); code != fiber.StatusCreated {
		t.Fatalf("register = %d", code)
	}

	code, env := s.do(t, "POST", "/api/v1/campaigns", admin, map[string]any{
		"title":     "Flash sale",
		"body":      "Today only",
		"targeting": map[string]any{"user_ids": []string{user.String()}},
	})
	if code != fiber.StatusCreated {
		t.Fatalf("create = %d %s", code, env.Error)
	}
	var created services.DispatchResult
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != models.CampaignStatusCompleted || created.SentCount != 1 || created.TargetedCount != 1 {
		t.Errorf("created = %+v", created)
	}

	code, env = s.do(t, "GET", "/api/v1/campaigns/"+created.CampaignID.String(), admin, nil)
	if code != fiber.StatusOK {
		t.Fatalf("detail = %d", code)
	}
	var detail struct {
		Campaign    models.Campaign           `json:"campaign"`
		DeliveryLog []models.DeliveryLogEntry `json:"delivery_log"`
	}
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.DeliveryLog) != 1 || detail.Campaign.ID != created.CampaignID {
		t.Errorf("detail = %+v", detail)
	}

	code, env = s.do(t, "GET", "/api/v1/campaigns?page=1&page_size=10", admin, nil)
	if code != fiber.StatusOK || !bytes.Contains(env.Data, []byte(`"total_count":1`)) {
		t.Errorf("list = %d %s", code, env.Data)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed id", "GET", "/api/v1/campaigns/not-a-uuid", nil, fiber.StatusBadRequest},
		{"unknown id", "GET", "/api/v1/campaigns/" + uuid.NewString(), nil, fiber.StatusNotFound},
		{"bad status filter", "GET", "/api/v1/campaigns?status=archived", nil, fiber.StatusBadRequest},
		{"missing body", "POST", "/api/v1/campaigns", map[string]any{"title": "x", "targeting": map[string]any{"user_ids": []string{user.String()}}}, fiber.StatusBadRequest},
		{"empty audience", "POST", "/api/v1/campaigns", map[string]any{"title": "x", "body": "y", "targeting": map[string]any{"user_ids": []string{uuid.NewString()}}}, fiber.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, env := s.do(t, tt.method, tt.path, admin, tt.body); code != tt.want {
				t.Errorf("status = %d (%s), want %d", code, env.Error, tt.want)
			}
		})
	}
}

func TestTestNotificationEndpoint(t *testing.T) {
	s := newTestServer(t)
	admin := bearer(t, uuid.New(), "acme", "admin")
	user := s.addUser()

	body := map[string]string{"user_id": user.String(), "title": "Ping", "body": "Hello"}
	if code, _ := s.do(t, "POST", "/api/v1/notifications/test", admin, body); code != fiber.StatusNotFound {
		t.Errorf("no devices = %d, want 404", code)
	}

	if code, _ := s.do(t, "POST", "/api/v1/me/devices", bearer(t, user, "acme", "user"), map[string]string{"token": "tok", "platform": "web"}); code != fiber.StatusCreated {
		t.Fatalf("register = %d", code)
	}
	code, env := s.do(t, "POST", "/api/v1/notifications/test", admin, body)
	if code != fiber.StatusOK || !bytes.Contains(env.Data, []byte(`"success_count":1`)) {
		t.Errorf("send = %d %s", code, env.Data)
	}

	body["user_id"] = "42"
	if code, _ := s.do(t, "POST", "/api/v1/notifications/test", admin, body); code != fiber.StatusBadRequest {
		t.Errorf("bad user id = %d", code)
	}
}
