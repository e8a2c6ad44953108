package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/idempotency"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, events services.EventPublisher) *app.App {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("DATABASE_DRIVER", "sqlite")
	v.Set("JWT_SECRET", "test_jwt_secret")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	db, err := database.OpenInMemory()
	require.NoError(t, err)

	return app.New(app.Deps{
		Config:      &cfg,
		Log:         zap.NewNop(),
		DB:          db,
		Idempotency: idempotency.NewMemoryStore(time.Hour),
		Gateway:     gateway.NewHTTPClient(gateway.Config{BaseURL: "http://127.0.0.1:0"}),
		Events:      events,
	})
}

func TestServerHealthCheck(t *testing.T) {
	fiberApp := newTestApp(t, nil)

	resp, err := fiberApp.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"healthy"`)
	assert.Contains(t, string(body), `"rabbitMQ":"disabled"`)
}

// brokerStub is a publisher whose connection state can be set.
type brokerStub struct {
	connected bool
}

func (b *brokerStub) Publish(context.Context, string, any) error { return nil }

func (b *brokerStub) IsConnected() bool { return b.connected }

func TestServerHealthCheckReportsBrokerConnection(t *testing.T) {
	broker := &brokerStub{connected: true}
	fiberApp := newTestApp(t, broker)

	health := func() map[string]any {
		resp, err := fiberApp.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	body := health()
	assert.Equal(t, "connected", body["rabbitMQ"])
	assert.Equal(t, "healthy", body["status"])

	broker.connected = false
	body = health()
	assert.Equal(t, "disconnected", body["rabbitMQ"])
	assert.Equal(t, "degraded", body["status"])
}

func TestServerUnauthenticatedAccess(t *testing.T) {
	fiberApp := newTestApp(t, nil)

	resp, err := fiberApp.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeliveryHandler(t *testing.T) {
	handle := deliveryHandler(context.Background(), newTestApp(t, nil).Events)

	body, err := json.Marshal(models.OrderEvent{
		Type:       models.EventOrderCreated,
		OrderID:    "order-1",
		UserID:     "user-1",
		TotalPrice: decimal.NewFromInt(490),
		Status:     models.StatusProcessing,
	})
	require.NoError(t, err)

	assert.NoError(t, handle(amqp.Delivery{Type: models.EventOrderCreated, Body: body}))
	assert.Error(t, handle(amqp.Delivery{Type: models.EventOrderCreated, Body: []byte("not json")}))
	assert.Error(t, handle(amqp.Delivery{Type: models.EventOrderFulfilment, Body: []byte(`{"order_id":"missing","status":"shipped"}`)}))
}
