package services_test

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func codCart(f *fixture) models.OrderRequest {
	return models.OrderRequest{AddressID: f.addressID, Payment: models.ChoiceCOD}
}

func TestOrderService_PlaceOrderFromCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.laptop, 1)
	ctx := context.Background()

	order, err := f.orderSvc.PlaceOrder(ctx, f.userID, "", codCart(f))
	require.NoError(t, err)

	assert.Equal(t, models.StatusProcessing, order.Status)
	assert.Equal(t, models.PaymentCOD, order.PaymentMethod)
	assert.True(t, order.Subtotal.Equal(money(1000)))
	assert.True(t, order.ShippingFee.IsZero())
	assert.True(t, order.TotalPrice.Equal(money(1000)))
	assert.Nil(t, order.PaymentRef)

	stored, err := f.orderSvc.GetOrder(ctx, f.userID, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].PriceAtPurchase.Equal(money(1000)))

	assert.Zero(t, f.cartLen(t), "cart is cleared after the order commits")
	assert.Equal(t, []string{models.EventOrderCreated}, f.events.types())
}

// cartEditingOrders runs edit just before the order is written, as if the
// user changed the cart while checkout was in progress.
type cartEditingOrders struct {
	repositories.OrderRepository
	edit func()
}

func (r cartEditingOrders) CreateFromCart(ctx context.Context, order *models.Order) error {
	r.edit()
	return r.OrderRepository.CreateFromCart(ctx, order)
}

func TestOrderService_CartEditsDuringCheckoutSurvive(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)
	orders := cartEditingOrders{OrderRepository: f.orders, edit: func() {
		f.addToCart(t, f.laptop, 1)
		f.addToCart(t, f.mouse, 2)
	}}
	svc := services.NewOrderService(f.assembler, orders, f.idem, f.events, zap.NewNop())
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, f.userID, "", codCart(f))
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, f.mouse.ID, order.Items[0].ProductID)
	assert.Equal(t, 1, order.Items[0].Quantity)

	items, err := f.carts.ListByUser(ctx, f.userID)
	require.NoError(t, err)
	remaining := map[string]int{}
	for _, item := range items {
		remaining[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[string]int{f.laptop.ID: 1, f.mouse.ID: 2}, remaining)
}

func TestOrderService_BuyNowKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)

	order, err := f.orderSvc.PlaceOrder(context.Background(), f.userID, "", models.OrderRequest{
		AddressID: f.addressID,
		Payment:   models.ChoiceCOD,
		Items:     []models.ItemRequest{{ProductID: f.mouse.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(money(490)))
	assert.Equal(t, 1, f.cartLen(t))
}

func TestOrderService_EmptyCartCreatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.orderSvc.PlaceOrder(context.Background(), f.userID, "", codCart(f))
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusCode(err))
	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.events.types())
}

func TestOrderService_MissingProductCreatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.orderSvc.PlaceOrder(context.Background(), f.userID, "", models.OrderRequest{
		AddressID: f.addressID,
		Payment:   models.ChoiceCOD,
		Items:     []models.ItemRequest{{ProductID: "missing", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, 404, apperr.StatusCode(err))
	assert.Zero(t, f.orderCount(t))
}

func TestOrderService_RejectsOnlinePayment(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)

	req := codCart(f)
	req.Payment = models.ChoiceOnline
	_, err := f.orderSvc.PlaceOrder(context.Background(), f.userID, "", req)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.orderCount(t))
}

func TestOrderService_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	first, err := f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	require.NoError(t, err)

	// the cart is empty now, the repeat must still resolve to the first order
	second, err := f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, f.orderCount(t))
}

func TestOrderService_IdempotencyKeyFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	first, err := f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	require.NoError(t, err)

	// simulate an expired key
	require.NoError(t, f.idem.Release(ctx, "order:"+f.userID+":submit-1"))

	second, err := f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, f.orderCount(t))
}

func TestOrderService_IdempotencyKeyInFlight(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	_, err := f.idem.Reserve(ctx, "order:"+f.userID+":submit-1")
	require.NoError(t, err)

	_, err = f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	assert.Equal(t, 409, apperr.StatusCode(err))
	assert.Zero(t, f.orderCount(t))
}

func TestOrderService_FailedAttemptReleasesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	require.Error(t, err)

	f.addToCart(t, f.mouse, 1)
	order, err := f.orderSvc.PlaceOrder(ctx, f.userID, "submit-1", codCart(f))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestOrderService_ConcurrentDuplicatesCreateOneOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	const attempts = 5
	var wg sync.WaitGroup
	ids := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if order, err := f.orderSvc.PlaceOrder(ctx, f.userID, "double-click", codCart(f)); err == nil {
				ids <- order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	assert.EqualValues(t, 1, f.orderCount(t))
}

func TestOrderService_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)
	f.events.err = errBroker

	order, err := f.orderSvc.PlaceOrder(context.Background(), f.userID, "", codCart(f))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestOrderService_OrdersAreScopedToUser(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)
	ctx := context.Background()

	order, err := f.orderSvc.PlaceOrder(ctx, f.userID, "", codCart(f))
	require.NoError(t, err)

	_, err = f.orderSvc.GetOrder(ctx, "intruder", order.ID)
	assert.Equal(t, 404, apperr.StatusCode(err))

	orders, err := f.orderSvc.ListOrders(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, orders)

	orders, err = f.orderSvc.ListOrders(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderService_StatusTransitions(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)
	ctx := context.Background()

	order, err := f.orderSvc.PlaceOrder(ctx, f.userID, "", codCart(f))
	require.NoError(t, err)

	_, err = f.orderSvc.UpdateOrderStatus(ctx, order.ID, models.StatusDelivered)
	assert.Equal(t, 409, apperr.StatusCode(err), "processing cannot jump to delivered")

	_, err = f.orderSvc.UpdateOrderStatus(ctx, order.ID, "lost")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := f.orderSvc.UpdateOrderStatus(ctx, order.ID, models.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)

	_, err = f.orderSvc.CancelOrder(ctx, f.userID, order.ID)
	assert.Equal(t, 409, apperr.StatusCode(err), "customers cannot cancel shipped orders")

	assert.Equal(t, []string{models.EventOrderCreated, models.EventOrderStatusUpdated}, f.events.types())
}

func TestOrderService_CancelOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 1)
	ctx := context.Background()

	order, err := f.orderSvc.PlaceOrder(ctx, f.userID, "", codCart(f))
	require.NoError(t, err)

	cancelled, err := f.orderSvc.CancelOrder(ctx, f.userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = f.orderSvc.CancelOrder(ctx, f.userID, order.ID)
	assert.Equal(t, 409, apperr.StatusCode(err))
}
