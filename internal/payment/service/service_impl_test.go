package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	orderrepository "github.com/smallbiznis/qatech/internal/order/repository"
	paymentdomain "github.com/smallbiznis/qatech/internal/payment/domain"
	"github.com/smallbiznis/qatech/internal/payment/repository"
	"github.com/smallbiznis/qatech/internal/payment/vnpay"
	"github.com/smallbiznis/qatech/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	hashSecret              = "TESTSECRET"
	ownerID    snowflake.ID = 77
	orderID    snowflake.ID = 1001
	orderTotal int64        = 2000
)

type busyLocker struct{}

func (busyLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return "", false, nil
}

func (busyLocker) Release(ctx context.Context, key, token string) error { return nil }

type fixture struct {
	svc   paymentdomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

type option func(*Params)

func withLocker(l paymentdomain.Locker) option {
	return func(p *Params) { p.Locker = l }
}

func withUnsignedConfirm() option {
	return func(p *Params) { p.Cfg.VNPay.AllowUnsignedConfirm = true }
}

func newFixture(t *testing.T, opts ...option) fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC))

	p := Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     testutil.NewNode(t),
		Clock:     clk,
		Repo:      repository.Provide(),
		OrderRepo: orderrepository.Provide(),
		Gateway: vnpay.New(vnpay.Config{
			TmnCode:    "TMN01",
			HashSecret: hashSecret,
			PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "http://localhost:5000/api/payments/vnpay-return",
		}),
	}
	for _, opt := range opts {
		opt(&p)
	}

	now := clk.Now()
	order := orderdomain.Order{
		ID:              orderID,
		UserID:          ownerID,
		OrderCode:       "ORD1704182400000123",
		Items:           datatypes.NewJSONSlice([]orderdomain.LineItem{{ProductID: 1, Name: "Laptop", Price: 1000, Quantity: 2}}),
		TotalAmount:     orderTotal,
		Status:          orderdomain.StatusPending,
		PaymentStatus:   orderdomain.PaymentUnpaid,
		PaymentMethod:   orderdomain.PaymentMethodCOD,
		ShippingAddress: datatypes.NewJSONType(orderdomain.ShippingAddress{FullName: "A", Phone: "090", Address: "HN"}),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, conn.Create(&order).Error)

	return fixture{svc: NewService(p), db: conn, clock: clk}
}

func (f fixture) order(t *testing.T) orderdomain.Order {
	t.Helper()
	var order orderdomain.Order
	require.NoError(t, f.db.First(&order, orderID).Error)
	return order
}

func callback(responseCode string, amountVND int64, txnNo string) url.Values {
	params := url.Values{}
	params.Set("vnp_TmnCode", "TMN01")
	params.Set("vnp_TxnRef", orderID.String()+"_1704182400000")
	params.Set("vnp_Amount", strconv.FormatInt(amountVND*100, 10))
	params.Set("vnp_ResponseCode", responseCode)
	params.Set("vnp_TransactionStatus", responseCode)
	params.Set("vnp_TransactionNo", txnNo)
	params.Set("vnp_OrderInfo", "Thanh toan don hang ORD1704182400000123")
	params.Set("vnp_BankCode", "NCB")
	return params
}

func sign(params url.Values) url.Values {
	params.Set(vnpay.ParamSecureHash, vnpay.Sign(hashSecret, vnpay.Canonical(params)))
	return params
}

func TestHandleIPNSuccessThenReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ack := f.svc.HandleIPN(ctx, sign(callback("00", orderTotal, "14226112")))
	assert.Equal(t, paymentdomain.IPNAck{RspCode: "00", Message: "Confirm Success"}, ack)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusPaid, order.Status)
	assert.Equal(t, orderdomain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, orderdomain.PaymentMethodVNPay, order.PaymentMethod)
	require.NotNil(t, order.TransactionID)
	assert.Equal(t, "14226112", *order.TransactionID)
	require.NotNil(t, order.PaidAt)

	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history WHERE order_id = ? AND status = 'paid' AND updated_by = 'vnpay'", 1, orderID)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events WHERE processed_at IS NOT NULL", 1)

	replay := f.svc.HandleIPN(ctx, sign(callback("00", orderTotal, "14226112")))
	assert.Equal(t, "02", replay.RspCode)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history WHERE order_id = ?", 1, orderID)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 1)
}

func TestHandleIPNForgedSignature(t *testing.T) {
	f := newFixture(t)

	params := sign(callback("00", orderTotal, "1"))
	params.Set(vnpay.ParamSecureHash, strings.Repeat("0", 128))
	ack := f.svc.HandleIPN(context.Background(), params)
	assert.Equal(t, paymentdomain.IPNAck{RspCode: "97", Message: "Invalid signature"}, ack)

	order := f.order(t)
	assert.Equal(t, orderdomain.PaymentUnpaid, order.PaymentStatus)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 0)
}

func TestHandleIPNTamperedAmount(t *testing.T) {
	f := newFixture(t)

	ack := f.svc.HandleIPN(context.Background(), sign(callback("00", 1, "1")))
	assert.Equal(t, "04", ack.RspCode)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusPending, order.Status)
	assert.Equal(t, orderdomain.PaymentUnpaid, order.PaymentStatus)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 0)
}

func TestHandleIPNUnknownOrder(t *testing.T) {
	f := newFixture(t)
	params := callback("00", orderTotal, "1")
	params.Set("vnp_TxnRef", "424242_1704182400000")

	ack := f.svc.HandleIPN(context.Background(), sign(params))
	assert.Equal(t, "01", ack.RspCode)
}

func TestHandleIPNFailureMarksFailed(t *testing.T) {
	f := newFixture(t)

	ack := f.svc.HandleIPN(context.Background(), sign(callback("24", orderTotal, "0")))
	assert.Equal(t, "00", ack.RspCode)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusPending, order.Status)
	assert.Equal(t, orderdomain.PaymentFailed, order.PaymentStatus)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history", 0)
}

func TestHandleIPNLockBusy(t *testing.T) {
	f := newFixture(t, withLocker(busyLocker{}))

	ack := f.svc.HandleIPN(context.Background(), sign(callback("00", orderTotal, "1")))
	assert.Equal(t, "99", ack.RspCode)
	assert.Equal(t, orderdomain.PaymentUnpaid, f.order(t).PaymentStatus)
}

func TestHandleIPNCancelledOrderKeepsStatus(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Exec("UPDATE orders SET status = ? WHERE id = ?", orderdomain.StatusCancelled, orderID).Error)

	ack := f.svc.HandleIPN(context.Background(), sign(callback("00", orderTotal, "9")))
	assert.Equal(t, "00", ack.RspCode)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, orderdomain.PaymentPaid, order.PaymentStatus)
}

func TestHandleReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.HandleReturn(ctx, callback("00", orderTotal, "5"))
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	failed, err := f.svc.HandleReturn(ctx, sign(callback("24", orderTotal, "0")))
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, "24", failed.ErrorCode)
	assert.Equal(t, config.DefaultStorefrontConfig().PaymentMessage("24"), failed.Message)
}

func TestHandleReturnThenIPNIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	params := sign(callback("00", orderTotal, "777"))

	res, err := f.svc.HandleReturn(ctx, params)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, orderTotal, res.Amount)
	assert.Equal(t, "777", res.TransactionNo)

	ack := f.svc.HandleIPN(ctx, params)
	assert.Equal(t, "02", ack.RspCode)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history", 1)
}

func TestFailedReturnThenIPNAcknowledges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	params := sign(callback("24", orderTotal, "0"))

	res, err := f.svc.HandleReturn(ctx, params)
	require.NoError(t, err)
	assert.False(t, res.Success)

	ack := f.svc.HandleIPN(ctx, params)
	assert.Equal(t, paymentdomain.IPNAck{RspCode: "00", Message: "Confirm Success"}, ack)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusPending, order.Status)
	assert.Equal(t, orderdomain.PaymentFailed, order.PaymentStatus)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 1)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history", 0)
}

func TestSuccessAfterFailureOnSameTxnRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ack := f.svc.HandleIPN(ctx, sign(callback("24", orderTotal, "0")))
	assert.Equal(t, "00", ack.RspCode)
	assert.Equal(t, orderdomain.PaymentFailed, f.order(t).PaymentStatus)

	ack = f.svc.HandleIPN(ctx, sign(callback("00", orderTotal, "888")))
	assert.Equal(t, "00", ack.RspCode)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusPaid, order.Status)
	assert.Equal(t, orderdomain.PaymentPaid, order.PaymentStatus)
	require.NotNil(t, order.TransactionID)
	assert.Equal(t, "888", *order.TransactionID)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events WHERE response_code = '00' AND succeeded = ?", 1, true)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 1)

	replay := f.svc.HandleIPN(ctx, sign(callback("00", orderTotal, "888")))
	assert.Equal(t, "02", replay.RspCode)
}

func TestSignedCallbackWithoutAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	params := callback("00", orderTotal, "1")
	params.Del("vnp_Amount")
	params = sign(params)

	ack := f.svc.HandleIPN(ctx, params)
	assert.Equal(t, paymentdomain.IPNAck{RspCode: "04", Message: "Invalid amount"}, ack)

	_, err := f.svc.HandleReturn(ctx, params)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	order := f.order(t)
	assert.Equal(t, orderdomain.StatusPending, order.Status)
	assert.Equal(t, orderdomain.PaymentUnpaid, order.PaymentStatus)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 0)
}

func TestConfirmUnsignedDisabledByDefault(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmUnsigned(context.Background(), paymentdomain.ConfirmRequest{OrderID: orderID, ResponseCode: "00", TransactionNo: "1"})
	require.ErrorIs(t, err, paymentdomain.ErrUnsignedConfirmDisabled)
	assert.Equal(t, orderdomain.PaymentUnpaid, f.order(t).PaymentStatus)
}

func TestConfirmUnsignedWhenEnabled(t *testing.T) {
	f := newFixture(t, withUnsignedConfirm())
	res, err := f.svc.ConfirmUnsigned(context.Background(), paymentdomain.ConfirmRequest{OrderID: orderID, ResponseCode: "00", TransactionNo: "55"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, orderdomain.StatusPaid, res.Status)
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePayment(ctx, paymentdomain.CreatePaymentRequest{OrderID: orderID, UserID: 1, ClientIP: "127.0.0.1"})
	require.ErrorIs(t, err, paymentdomain.ErrOrderNotFound)

	res, err := f.svc.CreatePayment(ctx, paymentdomain.CreatePaymentRequest{OrderID: orderID, UserID: ownerID, ClientIP: "127.0.0.1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.PaymentURL, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?"))
	assert.Equal(t, orderID.String()+"_"+strconv.FormatInt(f.clock.Now().UnixMilli(), 10), res.TxnRef)

	parsed, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "200000", query.Get("vnp_Amount"))
	assert.True(t, vnpay.New(vnpay.Config{HashSecret: hashSecret}).Verify(query))

	order := f.order(t)
	require.NotNil(t, order.VnpTxnRef)
	assert.Equal(t, res.TxnRef, *order.VnpTxnRef)
	assert.Equal(t, orderdomain.PaymentMethodVNPay, order.PaymentMethod)

	status, err := f.svc.Status(ctx, orderID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPending, status.Status)
}

func TestConfirmUnsignedFailureThenSuccess(t *testing.T) {
	f := newFixture(t, withUnsignedConfirm())
	ctx := context.Background()

	failed, err := f.svc.ConfirmUnsigned(ctx, paymentdomain.ConfirmRequest{OrderID: orderID, ResponseCode: "24"})
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, "24", failed.ErrorCode)

	paid, err := f.svc.ConfirmUnsigned(ctx, paymentdomain.ConfirmRequest{OrderID: orderID, ResponseCode: "00"})
	require.NoError(t, err)
	assert.True(t, paid.Success)
	assert.Equal(t, orderdomain.StatusPaid, paid.Status)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM payment_events", 2)
}
