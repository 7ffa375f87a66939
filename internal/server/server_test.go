package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/qatech/internal/audit/repository"
	auditservice "github.com/smallbiznis/qatech/internal/audit/service"
	authrepository "github.com/smallbiznis/qatech/internal/auth/repository"
	authservice "github.com/smallbiznis/qatech/internal/auth/service"
	"github.com/smallbiznis/qatech/internal/auth/session"
	"github.com/smallbiznis/qatech/internal/auth/token"
	"github.com/smallbiznis/qatech/internal/authorization"
	cartservice "github.com/smallbiznis/qatech/internal/cart/service"
	cartstore "github.com/smallbiznis/qatech/internal/cart/store"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	dashboardservice "github.com/smallbiznis/qatech/internal/dashboard/service"
	"github.com/smallbiznis/qatech/internal/observability"
	orderrepository "github.com/smallbiznis/qatech/internal/order/repository"
	orderservice "github.com/smallbiznis/qatech/internal/order/service"
	paymentrepository "github.com/smallbiznis/qatech/internal/payment/repository"
	paymentservice "github.com/smallbiznis/qatech/internal/payment/service"
	"github.com/smallbiznis/qatech/internal/payment/vnpay"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	productrepository "github.com/smallbiznis/qatech/internal/product/repository"
	productservice "github.com/smallbiznis/qatech/internal/product/service"
	"github.com/smallbiznis/qatech/internal/providers/email"
	"github.com/smallbiznis/qatech/internal/providers/pdf"
	"github.com/smallbiznis/qatech/internal/providers/storage"
	reviewrepository "github.com/smallbiznis/qatech/internal/review/repository"
	reviewservice "github.com/smallbiznis/qatech/internal/review/service"
	"github.com/smallbiznis/qatech/internal/testutil"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	userrepository "github.com/smallbiznis/qatech/internal/user/repository"
	userservice "github.com/smallbiznis/qatech/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testFrontend = "http://localhost:3000"

type testServer struct {
	engine   *gin.Engine
	products productdomain.Service
	users    userdomain.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Now().UTC())
	log := zap.NewNop()
	cfg := config.Config{
		JWTSecret:   "test-secret",
		FrontendURL: testFrontend,
		UploadDir:   t.TempDir(),
	}

	uploads, err := storage.NewLocalStore(cfg.UploadDir, log)
	require.NoError(t, err)

	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepository.Provide()})
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	userRepo := userrepository.Provide()
	productRepo := productrepository.Provide()
	orderRepo := orderrepository.Provide()

	users := userservice.New(userservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: userRepo, AuditSvc: auditSvc})
	authSvc := authservice.New(authservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     authrepository.New(db),
		UserRepo: userRepo,
		Issuer:   token.NewIssuer(cfg, clk),
		Mailer:   email.NewNoOp(log),
		AuditSvc: auditSvc,
	})
	products := productservice.New(productservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: productRepo, Files: uploads})
	carts := cartservice.New(cartservice.Params{DB: db, Log: log, Store: cartstore.NewGormStore(db, clk), ProductRepo: productRepo})
	orders := orderservice.New(orderservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        orderRepo,
		ProductRepo: productRepo,
		AuditSvc:    auditSvc,
		Renderer:    pdf.New(pdf.Store{Name: "QATech"}),
	})
	payments := paymentservice.NewService(paymentservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Cfg:       cfg,
		Repo:      paymentrepository.Provide(),
		OrderRepo: orderRepo,
		Gateway: vnpay.New(vnpay.Config{
			TmnCode:    "QATECH01",
			HashSecret: "vnpay-secret",
			PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "http://localhost:5000/api/payments/vnpay-return",
		}),
		AuditSvc: auditSvc,
	})
	reviews := reviewservice.New(reviewservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        reviewrepository.Provide(),
		ProductRepo: productRepo,
		OrderRepo:   orderRepo,
	})
	dashboard := dashboardservice.NewService(dashboardservice.Params{DB: db, Log: log, Clock: clk})

	engine := NewEngine(observability.Config{}, nil, cfg)
	NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		AuthService:  authSvc,
		Sessions:     session.NewManager(cfg),
		AuthzSvc:     authzSvc,
		AuditSvc:     auditSvc,
		UserSvc:      users,
		ProductSvc:   products,
		CartSvc:      carts,
		OrderSvc:     orders,
		PaymentSvc:   payments,
		ReviewSvc:    reviews,
		DashboardSvc: dashboard,
		Uploads:      uploads,
	})

	return &testServer{engine: engine, products: products, users: users}
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
	headers map[string]string
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decode(t, rec)
	value, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data object in %s", rec.Body.String())
	}
	return value
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	payload, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error object in %s", rec.Body.String())
	}
	return payload["type"].(string)
}

func (ts *testServer) createUser(t *testing.T, email, role string) {
	t.Helper()
	_, err := ts.users.Create(context.Background(), userdomain.CreateRequest{
		Name:     strings.Split(email, "@")[0],
		Email:    email,
		Password: "secret123",
		Role:     role,
	})
	require.NoError(t, err)
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email":    email,
		"password": "secret123",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return data(t, rec)["token"].(string)
}

func (ts *testServer) createProduct(t *testing.T, name string, stock int, active bool) productdomain.Product {
	t.Helper()
	product, err := ts.products.Create(context.Background(), productdomain.CreateRequest{
		Name:     name,
		Price:    1000,
		Category: "laptop",
		Stock:    stock,
		IsActive: &active,
	})
	require.NoError(t, err)
	return product
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodOptions, path: "/api/products", headers: map[string]string{
		"Origin":                        testFrontend,
		"Access-Control-Request-Method": http.MethodGet,
	}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testFrontend, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/products", headers: map[string]string{"Origin": "http://evil.example"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	register := map[string]any{"name": "Lan", "email": "Lan@Example.com", "password": "secret123"}
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: register})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := data(t, rec)
	assert.Equal(t, "lan@example.com", user["email"])
	assert.Equal(t, "customer", user["role"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: register})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: map[string]any{"name": "Binh", "email": "binh@example.com", "password": "123"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorType(t, rec))
	assert.Contains(t, rec.Body.String(), "invalid_password")

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"email": "lan@example.com", "password": "wrong"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec))

	tok := ts.login(t, "lan@example.com")

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/auth/me", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lan@example.com", data(t, rec)["email"])

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/auth/me", token: "not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, call{method: http.MethodPut, path: "/api/auth/profile", token: tok, body: map[string]any{"name": " Lan Nguyen ", "phone": "0901"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Lan Nguyen", data(t, rec)["name"])

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/auth/request-otp", body: map[string]any{"email": "nobody@example.com"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/auth/verify-otp", body: map[string]any{"email": "lan@example.com", "otp": "000000"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "business_rule", errorType(t, rec))
}

func TestPermissionGates(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", "admin")
	ts.createUser(t, "staff@example.com", "employee")
	ts.createUser(t, "buyer@example.com", "customer")
	admin := ts.login(t, "admin@example.com")
	staff := ts.login(t, "staff@example.com")
	buyer := ts.login(t, "buyer@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous order create", http.MethodPost, "/api/orders", "", http.StatusUnauthorized},
		{"customer lists users", http.MethodGet, "/api/users", buyer, http.StatusForbidden},
		{"staff lists users", http.MethodGet, "/api/users", staff, http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/api/users", admin, http.StatusOK},
		{"customer dashboard", http.MethodGet, "/api/admin/dashboard", buyer, http.StatusForbidden},
		{"admin dashboard", http.MethodGet, "/api/admin/dashboard", admin, http.StatusOK},
		{"customer all orders", http.MethodGet, "/api/orders", buyer, http.StatusForbidden},
		{"staff all orders", http.MethodGet, "/api/orders", staff, http.StatusOK},
		{"staff statistics", http.MethodGet, "/api/orders/statistics/summary", staff, http.StatusForbidden},
		{"admin statistics", http.MethodGet, "/api/orders/statistics/summary", admin, http.StatusOK},
		{"admin audit logs", http.MethodGet, "/api/admin/audit-logs", admin, http.StatusOK},
		{"customer own orders", http.MethodGet, "/api/orders/my-orders", buyer, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, call{method: tc.method, path: tc.path, token: tc.token, body: map[string]any{}})
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestProductVisibility(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "staff@example.com", "employee")
	staff := ts.login(t, "staff@example.com")

	ts.createProduct(t, "Laptop A", 5, true)
	hidden := ts.createProduct(t, "Laptop B", 5, false)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/products?active=false"})
	require.Equal(t, http.StatusOK, rec.Code)
	items := data(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop A", items[0].(map[string]any)["name"])

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/products?active=false", token: staff})
	require.Equal(t, http.StatusOK, rec.Code)
	items = data(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop B", items[0].(map[string]any)["name"])

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/products/" + hidden.Slug})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/products/" + hidden.Slug, token: staff})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/products/" + hidden.ID.String(), token: staff})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCartSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	product := ts.createProduct(t, "Mouse", 3, true)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/cart"})
	require.Equal(t, http.StatusOK, rec.Code)
	var sid *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			sid = cookie
		}
	}
	require.NotNil(t, sid)
	assert.True(t, sid.HttpOnly)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/cart/add", cookies: []*http.Cookie{sid}, body: map[string]any{
		"productId": product.ID.String(),
		"quantity":  2,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := data(t, rec)
	assert.EqualValues(t, 1, view["itemCount"])
	assert.EqualValues(t, 2000, view["total"])

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/cart/add", cookies: []*http.Cookie{sid}, body: map[string]any{
		"productId": product.ID.Int64(),
		"quantity":  2,
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "business_rule", errorType(t, rec))

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/cart/add-multiple", cookies: []*http.Cookie{sid}, body: map[string]any{
		"items": []map[string]any{{"productId": "abc", "quantity": 1}, {"productId": product.ID.String(), "quantity": 1}},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body["errors"], 1)
	lines := body["data"].(map[string]any)["items"].([]any)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 3, lines[0].(map[string]any)["quantity"])

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/cart"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, data(t, rec)["itemCount"])

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/cart/" + product.ID.String(), cookies: []*http.Cookie{sid}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, data(t, rec)["itemCount"])
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "buyer@example.com", "customer")
	ts.createUser(t, "other@example.com", "customer")
	buyer := ts.login(t, "buyer@example.com")
	other := ts.login(t, "other@example.com")
	product := ts.createProduct(t, "Laptop", 5, true)

	orderBody := func(qty int) map[string]any {
		return map[string]any{
			"items": []map[string]any{{"productId": product.ID.String(), "quantity": qty, "price": 1000, "name": "Laptop"}},
			"shippingAddress": map[string]any{
				"fullName": "Lan",
				"phone":    "0901234567",
				"address":  "1 Le Loi",
			},
			"paymentMethod": "COD",
		}
	}

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/orders", token: buyer, body: orderBody(9)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "business_rule", errorType(t, rec))

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/orders", token: buyer, body: orderBody(2)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := data(t, rec)
	assert.EqualValues(t, 2000, order["totalAmount"])
	assert.Equal(t, "pending", order["status"])
	orderID := order["id"].(string)

	got, err := ts.products.Get(context.Background(), product.ID.String(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/orders/" + orderID, token: other})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/orders/" + orderID + "/invoice", token: buyer})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "business_rule", errorType(t, rec))

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/payments/" + orderID + "/status", token: buyer})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unpaid", data(t, rec)["paymentStatus"])

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/payments/create", token: buyer, body: map[string]any{"orderId": orderID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(data(t, rec)["paymentUrl"].(string), "https://sandbox.vnpayment.vn/"))

	rec = ts.do(t, call{method: http.MethodPut, path: "/api/orders/" + orderID + "/cancel", token: buyer, body: map[string]any{"reason": "changed mind"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", data(t, rec)["status"])

	rec = ts.do(t, call{method: http.MethodPut, path: "/api/orders/" + orderID + "/cancel", token: buyer, body: map[string]any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "business_rule", errorType(t, rec))

	got, err = ts.products.Get(context.Background(), product.ID.String(), true)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/orders/not-a-number", token: buyer})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVNPayCallbackEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/payments/vnpay-ipn?vnp_TxnRef=1_1&vnp_Amount=100000&vnp_SecureHash=deadbeef"})
	require.Equal(t, http.StatusOK, rec.Code)
	ack := decode(t, rec)
	assert.Equal(t, "97", ack["RspCode"])
	assert.Equal(t, "Invalid signature", ack["Message"])
	assert.NotContains(t, ack, "data")

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/payments/vnpay-return?vnp_TxnRef=1_1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, data(t, rec)["success"])

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/payments/vnpay-return", body: map[string]any{
		"vnp_TxnRef":       "1_1",
		"vnp_ResponseCode": "00",
	}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserAdministrationOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", "admin")
	admin := ts.login(t, "admin@example.com")

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/users", token: admin, body: map[string]any{
		"name": "Minh", "email": "minh@example.com", "password": "secret123", "role": "employee",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := data(t, rec)["id"].(string)

	rec = ts.do(t, call{method: http.MethodPatch, path: "/api/users/" + userID + "/status", token: admin, body: map[string]any{"isActive": false}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, data(t, rec)["isActive"])

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"email": "minh@example.com", "password": "secret123"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodPatch, path: "/api/users/" + userID + "/status", token: admin, body: map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/auth/me", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	adminID := data(t, rec)["id"].(string)

	rec = ts.do(t, call{method: http.MethodPatch, path: "/api/users/" + adminID + "/role", token: admin, body: map[string]any{"role": "customer"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "business_rule", errorType(t, rec))

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/users/" + userID, token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/users/" + userID, token: admin})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/admin/audit-logs?action=user.deleted", token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logs := decode(t, rec)["data"].([]any)
	assert.Len(t, logs, 1)
}

func TestMapErrorFallsBackToInternal(t *testing.T) {
	status, payload := mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", payload.Type)

	kind, code := classifyErrorForLog(productdomain.ErrInvalidPrice)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_price", code)
}
