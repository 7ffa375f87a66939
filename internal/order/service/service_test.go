package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/order/domain"
	"github.com/smallbiznis/qatech/internal/order/repository"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	productrepository "github.com/smallbiznis/qatech/internal/product/repository"
	"github.com/smallbiznis/qatech/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	customerID snowflake.ID = 500
	otherID    snowflake.ID = 501
	staffID    snowflake.ID = 900
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       testutil.NewNode(t),
		Clock:       clk,
		Repo:        repository.Provide(),
		ProductRepo: productrepository.Provide(),
	})
	return fixture{svc: svc, db: conn, clock: clk}
}

func (f fixture) product(t *testing.T, id snowflake.ID, stock int) {
	t.Helper()
	now := f.clock.Now()
	p := productdomain.Product{
		ID: id, Name: "Product " + id.String(), Slug: "product-" + id.String(),
		Price: 1000, Category: "laptop", Stock: stock, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := f.db.Create(&p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
}

func (f fixture) stockSold(t *testing.T, id snowflake.ID) (int, int) {
	t.Helper()
	var row struct{ Stock, Sold int }
	if err := f.db.Raw("SELECT stock, sold FROM products WHERE id = ?", id).Scan(&row).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return row.Stock, row.Sold
}

func shipping() domain.ShippingAddress {
	return domain.ShippingAddress{FullName: "Tran Thi B", Phone: "0912345678", Address: "12 Hang Bai"}
}

func (f fixture) createOrder(t *testing.T, items ...domain.CreateItem) domain.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), domain.CreateRequest{
		UserID:          customerID,
		Items:           items,
		ShippingAddress: shipping(),
	})
	require.NoError(t, err)
	return order
}

func TestCreateThenCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)

	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 2, Price: 1000})
	assert.Equal(t, int64(2000), order.TotalAmount)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, domain.PaymentMethodCOD, order.PaymentMethod)
	assert.True(t, strings.HasPrefix(order.OrderCode, "ORD"))
	assert.Equal(t, "Product 1", order.Items[0].Name)

	stock, sold := f.stockSold(t, 1)
	assert.Equal(t, 3, stock)
	assert.Equal(t, 2, sold)

	cancelled, err := f.svc.Cancel(context.Background(), domain.CancelRequest{OrderID: order.ID, UserID: customerID, Reason: "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "changed mind", *cancelled.CancelReason)

	stock, sold = f.stockSold(t, 1)
	assert.Equal(t, 5, stock)
	assert.Equal(t, 0, sold)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history WHERE order_id = ?", 2, order.ID)

	_, err = f.svc.Cancel(context.Background(), domain.CancelRequest{OrderID: order.ID, UserID: customerID})
	if !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
	}
}

func TestCreateOverStockRollsBack(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	f.product(t, 2, 1)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		UserID: customerID,
		Items: []domain.CreateItem{
			{ProductID: 1, Quantity: 2, Price: 1000},
			{ProductID: 2, Quantity: 3, Price: 500},
		},
		ShippingAddress: shipping(),
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	stock, sold := f.stockSold(t, 1)
	assert.Equal(t, 5, stock)
	assert.Equal(t, 0, sold)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM orders", 0)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history", 0)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateRequest{UserID: customerID, ShippingAddress: shipping()})
	assert.ErrorIs(t, err, domain.ErrInvalidItems)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		UserID: customerID, Items: []domain.CreateItem{{ProductID: 1, Quantity: 0, Price: 1}}, ShippingAddress: shipping(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		UserID: customerID, Items: []domain.CreateItem{{ProductID: 1, Quantity: 1, Price: 1}},
		ShippingAddress: domain.ShippingAddress{FullName: "X"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidShipping)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		UserID: customerID, Items: []domain.CreateItem{{ProductID: 404, Quantity: 1, Price: 1}}, ShippingAddress: shipping(),
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})
	ctx := context.Background()

	shipped, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusShipping, UpdatedBy: "staff:900"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipping, shipped.Status)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusPaid, UpdatedBy: "staff:900"})
	if !errors.Is(err, domain.ErrStatusRegression) {
		t.Fatalf("expected ErrStatusRegression, got %v", err)
	}

	// same status only appends a note
	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusShipping, UpdatedBy: "staff:900", Note: "left warehouse"})
	require.NoError(t, err)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM order_status_history WHERE order_id = ?", 3, order.ID)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusCancelled, UpdatedBy: "staff:900"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateStatusToPaidSetsPayment(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})

	paid, err := f.svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusPaid, UpdatedBy: "staff:900"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)
}

func TestUpdateStatusRejectsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})

	_, err := f.svc.Cancel(context.Background(), domain.CancelRequest{OrderID: order.ID, UserID: customerID})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusDelivered, UpdatedBy: "staff:900"})
	if !errors.Is(err, domain.ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}
}

func TestCancelRequiresOwnerAndCancellableStatus(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, domain.CancelRequest{OrderID: order.ID, UserID: otherID})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: domain.StatusProcessing, UpdatedBy: "staff:900"})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, domain.CancelRequest{OrderID: order.ID, UserID: customerID})
	assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
}

func TestGetAccess(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})
	ctx := context.Background()

	got, err := f.svc.Get(ctx, order.ID, actorcontext.Actor{UserID: customerID, Role: actorcontext.RoleCustomer})
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, "system", got.StatusHistory[0].UpdatedBy)

	_, err = f.svc.Get(ctx, order.ID, actorcontext.Actor{UserID: otherID, Role: actorcontext.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(ctx, order.ID, actorcontext.Actor{UserID: staffID, Role: actorcontext.RoleEmployee})
	assert.NoError(t, err)
}

func TestListAllSummaryAndStatistics(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 50)
	ctx := context.Background()

	first := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})
	f.clock.Advance(time.Second)
	second := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 3, Price: 1000})
	f.clock.Advance(time.Second)
	f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 2, Price: 1000})

	_, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: second.ID, Status: domain.StatusDelivered, UpdatedBy: "staff:900"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: first.ID, Status: domain.StatusPaid, UpdatedBy: "staff:900"})
	require.NoError(t, err)

	res, err := f.svc.ListAll(ctx, domain.ListAllRequest{SortBy: "totalAmount", Order: "desc", Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, second.ID, res.Orders[0].ID)
	assert.Equal(t, int64(3), res.Pagination.TotalOrders)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	assert.True(t, res.Pagination.HasMore)
	assert.Equal(t, int64(1), res.Summary.ByStatus[domain.StatusPending])
	assert.Equal(t, int64(0), res.Summary.ByStatus[domain.StatusCancelled])

	byCode, err := f.svc.ListAll(ctx, domain.ListAllRequest{Search: first.OrderCode})
	require.NoError(t, err)
	require.Len(t, byCode.Orders, 1)
	assert.Equal(t, first.ID, byCode.Orders[0].ID)

	_, err = f.svc.ListAll(ctx, domain.ListAllRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, 33.33, stats.CompletionRate)
}

func TestGenerateOrderCode(t *testing.T) {
	assert.Equal(t, "ORD1700000000000007", GenerateOrderCode(1700000000000, 7))
}

func TestInvoiceUnavailableWithoutRenderer(t *testing.T) {
	f := newFixture(t)
	f.product(t, 1, 5)
	order := f.createOrder(t, domain.CreateItem{ProductID: 1, Quantity: 1, Price: 1000})

	_, _, err := f.svc.Invoice(context.Background(), order.ID, actorcontext.Actor{UserID: customerID, Role: actorcontext.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrInvoiceUnavailable)
}
