package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/idempotency"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const gatewaySecret = "gw_test_secret"

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	event, ok := payload.(models.OrderEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, eventType)
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// stubGateway hands out sequential intent ids.
type stubGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *stubGateway) CreateIntent(_ context.Context, amount int64, currency, receipt string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Intent{
		ID:       fmt.Sprintf("order_%d", g.calls),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

type fixture struct {
	db        *gorm.DB
	products  repositories.ProductRepository
	carts     repositories.CartRepository
	addresses repositories.AddressRepository
	orders    repositories.OrderRepository
	intents   repositories.PaymentIntentRepository
	idem      *idempotency.MemoryStore
	events    *recordingPublisher
	gateway   *stubGateway

	assembler *services.OrderAssembler
	orderSvc  *services.OrderService
	payments  *services.PaymentService
	cartSvc   *services.CartService

	userID    string
	addressID string
	mouse     models.Product // 225
	keyboard  models.Product // 600
	laptop    models.Product // 1000
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		products:  repositories.NewGORMProductRepository(db),
		carts:     repositories.NewGORMCartRepository(db),
		addresses: repositories.NewGORMAddressRepository(db),
		orders:    repositories.NewGORMOrderRepository(db),
		intents:   repositories.NewGORMPaymentIntentRepository(db),
		idem:      idempotency.NewMemoryStore(time.Hour),
		events:    &recordingPublisher{},
		gateway:   &stubGateway{},
		userID:    uuid.New().String(),
	}

	rules := repositories.NewGORMShippingRuleRepository(db)
	require.NoError(t, rules.Create(ctx, &models.ShippingRule{MinOrderValue: decimal.NewFromInt(500), Charge: decimal.Zero, Active: true}))
	require.NoError(t, rules.Create(ctx, &models.ShippingRule{MinOrderValue: decimal.Zero, Charge: decimal.NewFromInt(40), Active: true}))

	f.mouse = f.addProduct(t, "Mouse", 225)
	f.keyboard = f.addProduct(t, "Keyboard", 600)
	f.laptop = f.addProduct(t, "Laptop", 1000)
	f.addressID = f.addAddress(t, f.userID)

	log := zap.NewNop()
	engine := pricing.NewEngine(rules, pricing.StandardDefaults, log)
	f.assembler = services.NewOrderAssembler(f.products, f.addresses, f.carts, engine)
	f.orderSvc = services.NewOrderService(f.assembler, f.orders, f.idem, f.events, log)
	f.payments = services.NewPaymentService(f.assembler, f.orderSvc, f.orders, f.intents, f.gateway, f.idem,
		services.PaymentConfig{KeyID: "rzp_test", KeySecret: gatewaySecret, Currency: "INR"}, log)
	f.cartSvc = services.NewCartService(f.carts, f.products, engine)
	return f
}

func (f *fixture) addProduct(t *testing.T, name string, price int64) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.NewFromInt(price), Stock: 10}
	require.NoError(t, f.products.Create(context.Background(), &p))
	return p
}

func (f *fixture) addAddress(t *testing.T, userID string) string {
	t.Helper()
	addr := models.Address{
		UserID:     userID,
		FullName:   "Asha Rao",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Phone:      "9800000000",
	}
	require.NoError(t, f.addresses.Create(context.Background(), &addr))
	return addr.ID
}

func (f *fixture) addToCart(t *testing.T, p models.Product, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), f.userID, p.ID, qty)
	require.NoError(t, err)
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) cartLen(t *testing.T) int {
	t.Helper()
	items, err := f.carts.ListByUser(context.Background(), f.userID)
	require.NoError(t, err)
	return len(items)
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var errBroker = errors.New("broker unavailable")
