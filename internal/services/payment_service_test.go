package services_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlineCart(f *fixture) models.OrderRequest {
	return models.OrderRequest{AddressID: f.addressID, Payment: models.ChoiceOnline}
}

func startPayment(t *testing.T, f *fixture) *services.IntentResult {
	t.Helper()
	intent, err := f.payments.CreateIntent(context.Background(), f.userID, services.IntentRequest{Order: onlineCart(f)})
	require.NoError(t, err)
	return intent
}

func proofFor(intent *services.IntentResult, paymentID string) models.PaymentProof {
	return models.PaymentProof{
		Method:           models.ChoiceOnline,
		GatewayPaymentID: paymentID,
		GatewayOrderID:   intent.GatewayOrderID,
		Signature:        gateway.Sign(gatewaySecret, intent.GatewayOrderID, paymentID),
	}
}

func TestPaymentService_CreateIntent(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 2)
	ctx := context.Background()

	intent := startPayment(t, f)
	assert.Equal(t, "order_1", intent.GatewayOrderID)
	assert.True(t, intent.Amount.Equal(money(490)))
	assert.EqualValues(t, 49000, intent.AmountMinor)
	assert.Equal(t, "INR", intent.Currency)
	assert.NotEmpty(t, intent.Receipt)
	assert.LessOrEqual(t, len(intent.Receipt), 40)

	stored, err := f.intents.GetForUser(ctx, intent.GatewayOrderID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCreated, stored.Status)
	assert.EqualValues(t, 49000, stored.Amount)

	assert.Equal(t, 1, f.cartLen(t), "starting a payment leaves the cart alone")
	assert.Zero(t, f.orderCount(t))
}

func TestPaymentService_CreateIntentRejectsClientAmount(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 2)

	wrong := money(450)
	_, err := f.payments.CreateIntent(context.Background(), f.userID, services.IntentRequest{
		Order:  onlineCart(f),
		Amount: &wrong,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.gateway.calls)
}

func TestPaymentService_CreateIntentGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.mouse, 2)
	f.gateway.err = errors.New("timeout")

	_, err := f.payments.CreateIntent(context.Background(), f.userID, services.IntentRequest{Order: onlineCart(f)})
	assert.Equal(t, 502, apperr.StatusCode(err))
}

func TestPaymentService_FinalizeCreatesPaidOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	intent := startPayment(t, f)
	order, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{
		Order: onlineCart(f),
		Proof: proofFor(intent, "pay_1"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentMethod)
	require.NotNil(t, order.PaymentRef)
	assert.Equal(t, "pay_1", *order.PaymentRef)
	assert.True(t, order.TotalPrice.Equal(money(600)))
	assert.Zero(t, f.cartLen(t))

	stored, err := f.intents.GetForUser(ctx, intent.GatewayOrderID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPaid, stored.Status)
	assert.Equal(t, "pay_1", stored.PaymentID)

	assert.Equal(t, []string{models.EventOrderPaid}, f.events.types())
}

func TestPaymentService_FinalizeTwiceReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	intent := startPayment(t, f)
	req := services.FinalizeRequest{Order: onlineCart(f), Proof: proofFor(intent, "pay_1")}

	first, err := f.payments.Finalize(ctx, f.userID, req)
	require.NoError(t, err)
	second, err := f.payments.Finalize(ctx, f.userID, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, f.orderCount(t))

	// a cold idempotency store still resolves through the unique payment ref
	require.NoError(t, f.idem.Release(ctx, "finalize:pay_1"))
	third, err := f.payments.Finalize(ctx, f.userID, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.EqualValues(t, 1, f.orderCount(t))
}

func TestPaymentService_BadSignatureCreatesNoOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	intent := startPayment(t, f)
	proof := proofFor(intent, "pay_1")
	proof.Signature = gateway.Sign("wrong_secret", intent.GatewayOrderID, "pay_1")

	_, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proof})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSignatureVerification))
	assert.Equal(t, 400, apperr.StatusCode(err))

	assert.Zero(t, f.orderCount(t))
	assert.Equal(t, 1, f.cartLen(t))
	stored, err := f.intents.GetForUser(ctx, intent.GatewayOrderID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentFailed, stored.Status)
}

func TestPaymentService_SignatureForOtherPaymentRejected(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)

	intent := startPayment(t, f)
	proof := proofFor(intent, "pay_1")
	proof.GatewayPaymentID = "pay_2"

	_, err := f.payments.Finalize(context.Background(), f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proof})
	assert.True(t, apperr.Is(err, apperr.KindSignatureVerification))
	assert.Zero(t, f.orderCount(t))
}

func TestPaymentService_MalformedProof(t *testing.T) {
	f := newFixture(t)

	_, err := f.payments.Finalize(context.Background(), f.userID, services.FinalizeRequest{
		Order: onlineCart(f),
		Proof: models.PaymentProof{Method: models.ChoiceCOD, GatewayPaymentID: "pay_1", GatewayOrderID: "order_1", Signature: "zz"},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPaymentService_FinalizeRejectsChangedCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	intent := startPayment(t, f)
	f.addToCart(t, f.mouse, 1)

	_, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proofFor(intent, "pay_1")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.orderCount(t))
}

func TestPaymentService_FinalizeRejectsDifferentCheckoutWithSameTotal(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	// paid for the cart, which totals 600 like a buy-now of the keyboard
	intent := startPayment(t, f)

	_, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{
		Order: models.OrderRequest{
			AddressID: f.addressID,
			Payment:   models.ChoiceOnline,
			Items:     []models.ItemRequest{{ProductID: f.keyboard.ID, Quantity: 1}},
		},
		Proof: proofFor(intent, "pay_1"),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, apperr.PublicMessage(err), "checkout does not match")

	otherAddress := f.addAddress(t, f.userID)
	_, err = f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{
		Order: models.OrderRequest{AddressID: otherAddress, Payment: models.ChoiceOnline},
		Proof: proofFor(intent, "pay_1"),
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Zero(t, f.orderCount(t))
	assert.Equal(t, 1, f.cartLen(t))

	// the matching checkout still goes through
	order, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proofFor(intent, "pay_1")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Zero(t, f.cartLen(t))
}

func TestPaymentService_FinalizeUnknownIntent(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)

	intent := &services.IntentResult{GatewayOrderID: "order_forged"}
	_, err := f.payments.Finalize(context.Background(), f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proofFor(intent, "pay_1")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.orderCount(t))
}

func TestPaymentService_PaymentRefBelongsToOneUser(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	intent := startPayment(t, f)
	proof := proofFor(intent, "pay_1")
	_, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proof})
	require.NoError(t, err)
	require.NoError(t, f.idem.Release(ctx, "finalize:pay_1"))

	_, err = f.payments.Finalize(ctx, "another-user", services.FinalizeRequest{Order: onlineCart(f), Proof: proof})
	assert.Equal(t, 409, apperr.StatusCode(err))
}

func TestPaymentService_RecordFailure(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.keyboard, 1)
	ctx := context.Background()

	intent := startPayment(t, f)
	require.NoError(t, f.payments.RecordFailure(ctx, f.userID, intent.GatewayOrderID, "card declined"))

	stored, err := f.intents.GetForUser(ctx, intent.GatewayOrderID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentFailed, stored.Status)
	assert.Equal(t, "card declined", stored.FailureReason)
	assert.Equal(t, 1, f.cartLen(t))

	err = f.payments.RecordFailure(ctx, "another-user", intent.GatewayOrderID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// a retry after a failure can still complete
	order, err := f.payments.Finalize(ctx, f.userID, services.FinalizeRequest{Order: onlineCart(f), Proof: proofFor(intent, "pay_2")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.Status)

	err = f.payments.RecordFailure(ctx, f.userID, intent.GatewayOrderID, "late failure")
	assert.Equal(t, 409, apperr.StatusCode(err))
}
