package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFormatVND(t *testing.T) {
	cases := map[int64]string{
		0:        "0 VND",
		999:      "999 VND",
		1000:     "1.000 VND",
		1250000:  "1.250.000 VND",
		-25000:   "-25.000 VND",
		10000000: "10.000.000 VND",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatVND(in), "amount %d", in)
	}
}

func TestRenderOrderInvoice(t *testing.T) {
	paidAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	order := orderdomain.Order{
		OrderCode:     "ORD1735787045000123",
		Status:        orderdomain.StatusPaid,
		PaymentStatus: orderdomain.PaymentPaid,
		PaymentMethod: orderdomain.PaymentMethodVNPay,
		TotalAmount:   2000,
		Items: datatypes.JSONSlice[orderdomain.LineItem]{
			{ProductID: 1, Name: "Laptop", Price: 1000, Quantity: 2},
		},
		ShippingAddress: datatypes.NewJSONType(orderdomain.ShippingAddress{
			FullName: "Nguyen Van A",
			Phone:    "0900000000",
			Address:  "1 Le Loi",
			City:     "HCM",
		}),
		PaidAt:    &paidAt,
		CreatedAt: paidAt,
	}

	doc, err := New(Store{Name: "QATech"}).RenderOrderInvoice(context.Background(), order)
	require.NoError(t, err)
	raw, err := io.ReadAll(doc)
	require.NoError(t, err)
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("expected a PDF document, got %q", raw[:min(len(raw), 8)])
	}
}

func TestJoinAddressSkipsEmptyParts(t *testing.T) {
	got := joinAddress(orderdomain.ShippingAddress{Address: "1 Le Loi", City: "HCM"})
	assert.Equal(t, "1 Le Loi, HCM", got)
}
