package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return New(Config{
		TmnCode:    "TMN01",
		HashSecret: "SECRET",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:5000/api/payments/vnpay-return",
	})
}

func TestSignKnownVector(t *testing.T) {
	params := url.Values{}
	params.Set("vnp_TxnRef", "123_1700000000000")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_OrderInfo", "Thanh toan don hang ORD1")
	params.Set("vnp_Amount", "1000000")
	params.Set(ParamSecureHashType, "HmacSHA512")

	canonical := Canonical(params)
	assert.Equal(t, "vnp_Amount=1000000&vnp_OrderInfo=Thanh+toan+don+hang+ORD1&vnp_ResponseCode=00&vnp_TxnRef=123_1700000000000", canonical)
	assert.Equal(t,
		"cbf8ad2891000cb58cab2e8b12f69ccd06a7f7b175d20e26b874583ce2b900dbbe7354ade39d9adb803d06e9336106a1f3f7fd991213d8e8192191e6c11d732c",
		Sign("SECRET", canonical),
	)
}

func TestCanonicalMatchesGatewayFormEncoding(t *testing.T) {
	params := url.Values{}
	params.Set("vnp_OrderInfo", "Don *hang* ~ 1&2=3")
	params.Set("vnp_TxnRef", "9_1")

	canonical := Canonical(params)
	assert.Equal(t, "vnp_OrderInfo=Don+*hang*+%7E+1%262%3D3&vnp_TxnRef=9_1", canonical)

	params.Set(ParamSecureHash, Sign("SECRET", canonical))
	assert.True(t, testClient().Verify(params))
}

func TestBuildPaymentURLSignsCanonicalQuery(t *testing.T) {
	client := testClient()
	created := time.Date(2024, 1, 2, 8, 4, 5, 0, time.UTC)

	raw, err := client.BuildPaymentURL(PaymentRequest{
		TxnRef:    "42_1704182645000",
		OrderInfo: "Thanh toan don hang ORD1",
		Amount:    2000,
		IPAddr:    "127.0.0.1",
		CreatedAt: created,
	})
	require.NoError(t, err)

	base, query, ok := strings.Cut(raw, "?")
	require.True(t, ok)
	assert.Equal(t, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html", base)
	assert.True(t, strings.HasSuffix(query,
		"&vnp_SecureHash=d45d79def7ed01186d4bec38f01657df6f0603ed28e5a355ecd8c5550a82cc78b51559858ae7290f5ee882f1340e31b474a05efcf83aa32215012a1c7d1a7286"),
		"unexpected signature in %s", query)

	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, "200000", values.Get("vnp_Amount"))
	assert.Equal(t, "20240102150405", values.Get("vnp_CreateDate"))
	assert.Equal(t, "20240102151905", values.Get("vnp_ExpireDate"))
	assert.Empty(t, values.Get("vnp_BankCode"))
	assert.True(t, client.Verify(values))
}

func TestVerifyRejectsTampering(t *testing.T) {
	client := testClient()
	params := url.Values{}
	params.Set("vnp_TxnRef", "123_1700000000000")
	params.Set("vnp_Amount", "1000000")
	params.Set("vnp_ResponseCode", "00")
	params.Set(ParamSecureHash, strings.ToUpper(Sign("SECRET", Canonical(params))))

	if !client.Verify(params) {
		t.Fatalf("expected uppercase hex signature to verify")
	}

	params.Set("vnp_Amount", "9000000")
	if client.Verify(params) {
		t.Fatalf("expected tampered amount to fail verification")
	}

	params.Del(ParamSecureHash)
	if client.Verify(params) {
		t.Fatalf("expected missing signature to fail verification")
	}
}

func TestBuildPaymentURLRequiresCredentials(t *testing.T) {
	client := New(Config{})
	_, err := client.BuildPaymentURL(PaymentRequest{TxnRef: "1_1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseCallback(t *testing.T) {
	params := url.Values{}
	params.Set("vnp_TxnRef", "1793012345678901248_1700000000000")
	params.Set("vnp_Amount", "250000")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_TransactionNo", "14012345")

	cb, err := ParseCallback(params)
	require.NoError(t, err)
	assert.Equal(t, int64(1793012345678901248), cb.OrderID.Int64())
	assert.Equal(t, int64(2500), cb.Amount)
	assert.True(t, cb.HasAmount)
	assert.True(t, cb.Succeeded())

	params.Set("vnp_TransactionStatus", "02")
	cb, err = ParseCallback(params)
	require.NoError(t, err)
	assert.False(t, cb.Succeeded())

	params.Set("vnp_TxnRef", "abc_1")
	_, err = ParseCallback(params)
	assert.ErrorIs(t, err, ErrInvalidTxnRef)
}
