package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/catalog"
	"github.com/xenking/storefront-api/internal/domain/checkout"
	"github.com/xenking/storefront-api/internal/domain/order"
)

// --- Mock implementations ---

type mockCatalogRepo struct {
	categories []catalog.Category
	listed     []catalog.ListedProduct
	lastFilter catalog.ListingFilter
	byID       map[int64]*catalog.Product
	err        error
}

func (m *mockCatalogRepo) ListCategories(_ context.Context) ([]catalog.Category, error) {
	return m.categories, m.err
}

func (m *mockCatalogRepo) ListProducts(_ context.Context, filter catalog.ListingFilter) ([]catalog.ListedProduct, error) {
	m.lastFilter = filter
	return m.listed, m.err
}

func (m *mockCatalogRepo) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalogRepo) GetComponents(_ context.Context, _ int64) ([]catalog.Component, error) {
	return nil, nil
}

type mockCartRepo struct {
	cart        *cart.Cart
	rates       []cart.ShippingRate
	deactivated bool
}

func (m *mockCartRepo) FindActive(_ context.Context, sessionToken string) (*cart.Cart, error) {
	if m.cart == nil || !m.cart.IsActive || m.cart.SessionToken != sessionToken {
		return nil, cart.ErrNotFound
	}
	c := *m.cart
	c.Items = append([]cart.Item(nil), m.cart.Items...)
	return &c, nil
}

func (m *mockCartRepo) Create(_ context.Context, c *cart.Cart) error {
	stored := *c
	m.cart = &stored
	return nil
}

func (m *mockCartRepo) InsertItem(_ context.Context, _ string, item cart.Item) error {
	m.cart.Items = append(m.cart.Items, item)
	return nil
}

func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, itemID string, quantity int, total decimal.Decimal) error {
	for i := range m.cart.Items {
		if m.cart.Items[i].ID == itemID {
			m.cart.Items[i].Quantity = quantity
			m.cart.Items[i].Total = total
			return nil
		}
	}
	return errors.New("item not found")
}

func (m *mockCartRepo) SaveCustomer(_ context.Context, _, email string, isGuest bool) error {
	m.cart.CustomerEmail = email
	m.cart.IsGuest = isGuest
	return nil
}

func (m *mockCartRepo) SaveAddresses(_ context.Context, _ string, billing, shipping cart.Address) error {
	m.cart.BillingAddress = &billing
	m.cart.ShippingAddress = &shipping
	return nil
}

func (m *mockCartRepo) SaveShippingMethod(_ context.Context, _, method string) error {
	m.cart.ShippingMethod = method
	return nil
}

func (m *mockCartRepo) SavePaymentMethod(_ context.Context, _, method string) error {
	m.cart.PaymentMethod = method
	return nil
}

func (m *mockCartRepo) SaveTotals(_ context.Context, _ string, t cart.Totals) error {
	m.cart.SubTotal = t.SubTotal
	m.cart.TaxTotal = t.TaxTotal
	m.cart.ShippingAmount = t.ShippingAmount
	m.cart.GrandTotal = t.GrandTotal
	return nil
}

func (m *mockCartRepo) Deactivate(_ context.Context, _ string) error {
	m.cart.IsActive = false
	m.deactivated = true
	return nil
}

func (m *mockCartRepo) AvailableRates(_ context.Context) ([]cart.ShippingRate, error) {
	return m.rates, nil
}

type mockOrderRepo struct {
	lastOrder *order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.lastOrder = o
	return nil
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Helpers ---

type testEnv struct {
	handler *Handler
	catalog *mockCatalogRepo
	carts   *mockCartRepo
	orders  *mockOrderRepo
}

func newTestEnv() *testEnv {
	cat := &mockCatalogRepo{byID: map[int64]*catalog.Product{}}
	carts := &mockCartRepo{
		rates: []cart.ShippingRate{
			{Method: "flatrate_flatrate", Name: "Flat Rate", Price: decimal.RequireFromString("10.00")},
			{Method: "free_free", Name: "Free Shipping", Price: decimal.Zero},
		},
	}
	orders := &mockOrderRepo{}

	cartSvc := cart.NewService(carts, cat, decimal.RequireFromString("0.10"))
	checkoutSvc := checkout.NewService(cartSvc, orders, passthroughTx{})

	h := NewHandler(Config{SessionCookie: "shop_session"}, cat, cartSvc, checkoutSvc)
	return &testEnv{handler: h, catalog: cat, carts: carts, orders: orders}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.handler.Routes().ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{Name: "shop_session", Value: token}
}

// --- Tests ---

func TestTestAPI(t *testing.T) {
	env := newTestEnv()
	rec, body := env.do(t, http.MethodGet, "/api/test-api", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "API is working.", body["message"])
}

func TestCategories_Success(t *testing.T) {
	env := newTestEnv()
	env.catalog.categories = []catalog.Category{
		{ID: 1, Name: "Apparel", Position: 1},
		{ID: 2, Name: "Footwear", Position: 2},
	}

	rec, body := env.do(t, http.MethodGet, "/api/categories", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	require.Len(t, body["data"], 2)
}

func TestCategories_Error(t *testing.T) {
	env := newTestEnv()
	env.catalog.err = errors.New("connection refused")

	rec, body := env.do(t, http.MethodGet, "/api/categories", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unable to fetch categories.", body["message"])
	assert.Equal(t, "connection refused", body["error"])
}

func TestProducts_Projection(t *testing.T) {
	env := newTestEnv()
	env.catalog.listed = []catalog.ListedProduct{
		{ID: 1, Name: "Crew Neck T-Shirt", Price: decimal.RequireFromString("17.50"), Category: "Apparel"},
		{ID: 5, Name: "Baseball Cap", Price: decimal.RequireFromString("12.00"), Category: catalog.NoCategory},
	}

	rec, body := env.do(t, http.MethodGet, "/api/products", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)

	first := data[0].(map[string]any)
	assert.Equal(t, "Crew Neck T-Shirt", first["name"])
	assert.Equal(t, 17.5, first["price"])
	assert.Equal(t, "Apparel", first["category"])

	second := data[1].(map[string]any)
	assert.Equal(t, "No category", second["category"])
}

func TestProducts_FilterParsing(t *testing.T) {
	env := newTestEnv()

	_, _ = env.do(t, http.MethodGet, "/api/products?category_id=3&price_min=10&price_max=50&color=Red&size=M", nil)

	f := env.catalog.lastFilter
	require.NotNil(t, f.CategoryID)
	assert.Equal(t, int64(3), *f.CategoryID)
	min, max, ok := f.PriceRange()
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("10").Equal(min))
	assert.True(t, decimal.RequireFromString("50").Equal(max))
	assert.Equal(t, "Red", f.Color)
	assert.Equal(t, "M", f.Size)
}

func TestProducts_PartialPriceRangeIgnored(t *testing.T) {
	env := newTestEnv()

	_, _ = env.do(t, http.MethodGet, "/api/products?price_min=10", nil)

	_, _, ok := env.catalog.lastFilter.PriceRange()
	assert.False(t, ok)
}

func TestProducts_InvalidCategoryIDIgnored(t *testing.T) {
	env := newTestEnv()

	_, _ = env.do(t, http.MethodGet, "/api/products?category_id=apparel", nil)

	assert.Nil(t, env.catalog.lastFilter.CategoryID)
}

func TestAddToCart_MissingFields(t *testing.T) {
	env := newTestEnv()

	rec, body := env.do(t, http.MethodPost, "/api/cart", map[string]any{})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Validation error", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "The product id field is required.", errs["product_id"])
	assert.Equal(t, "The quantity field is required.", errs["quantity"])
}

func TestAddToCart_ZeroQuantity(t *testing.T) {
	env := newTestEnv()

	rec, body := env.do(t, http.MethodPost, "/api/cart", map[string]any{
		"product_id": 1,
		"quantity":   0,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "The quantity must be at least 1.", errs["quantity"])
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	env := newTestEnv()

	rec, body := env.do(t, http.MethodPost, "/api/cart", map[string]any{
		"product_id": 99,
		"quantity":   1,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "The selected product id is invalid.", errs["product_id"])
}

func TestAddToCart_StockRejection(t *testing.T) {
	env := newTestEnv()
	env.catalog.byID[1] = &catalog.Product{
		ID: 1, SKU: "CAP-RED", Name: "Baseball Cap",
		Price: decimal.RequireFromString("14.50"), Stock: 2, Kind: catalog.KindSimple,
	}

	rec, body := env.do(t, http.MethodPost, "/api/cart", map[string]any{
		"product_id": 1,
		"quantity":   5,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, `Not enough stock for "Baseball Cap": 2 available.`, body["message"])
}

func TestAddToCart_SuccessIssuesSession(t *testing.T) {
	env := newTestEnv()
	env.catalog.byID[1] = &catalog.Product{
		ID: 1, SKU: "CAP-RED", Name: "Baseball Cap",
		Price: decimal.RequireFromString("14.50"), Stock: 10, Kind: catalog.KindSimple,
	}

	rec, body := env.do(t, http.MethodPost, "/api/cart", map[string]any{
		"product_id": 1,
		"quantity":   2,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Product added to cart successfully.", body["message"])

	var issued *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "shop_session" {
			issued = c
		}
	}
	require.NotNil(t, issued, "a session cookie must be issued for a fresh session")
	assert.NotEmpty(t, issued.Value)

	cartBody := body["cart"].(map[string]any)
	assert.Equal(t, 29.0, cartBody["sub_total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
}

func TestAddToCart_ReusesSessionCart(t *testing.T) {
	env := newTestEnv()
	env.catalog.byID[1] = &catalog.Product{
		ID: 1, SKU: "CAP-RED", Name: "Baseball Cap",
		Price: decimal.RequireFromString("14.50"), Stock: 10, Kind: catalog.KindSimple,
	}

	rec, _ := env.do(t, http.MethodPost, "/api/cart", map[string]any{"product_id": 1, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	token := env.carts.cart.SessionToken

	rec, body := env.do(t, http.MethodPost, "/api/cart",
		map[string]any{"product_id": 1, "quantity": 2}, sessionCookie(token))
	require.Equal(t, http.StatusOK, rec.Code)

	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, 3.0, items[0].(map[string]any)["quantity"])
}

func TestCheckout_ValidationFailed(t *testing.T) {
	env := newTestEnv()

	rec, body := env.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"customer_email": "not-an-email",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Validation failed.", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "The billing field is required.", errs["billing"])
	assert.Equal(t, "The shipping field is required.", errs["shipping"])
	assert.Equal(t, "The customer email must be a valid email address.", errs["customer_email"])
	assert.Equal(t, "The payment method field is required.", errs["payment_method"])
	assert.Equal(t, "The shipping method field is required.", errs["shipping_method"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv()

	rec, body := env.do(t, http.MethodPost, "/api/checkout", validCheckoutBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Cart is empty.", body["message"])
}

func TestCheckout_InvalidShippingMethod(t *testing.T) {
	env := newTestEnv()
	seedCart(t, env)

	payload := validCheckoutBody()
	payload["shipping_method"] = "teleport"
	rec, body := env.do(t, http.MethodPost, "/api/checkout", payload,
		sessionCookie(env.carts.cart.SessionToken))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid shipping method.", body["message"])
	available := body["available_methods"].([]any)
	assert.ElementsMatch(t, []any{"flatrate_flatrate", "free_free"}, available)
}

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv()
	seedCart(t, env)

	rec, body := env.do(t, http.MethodPost, "/api/checkout", validCheckoutBody(),
		sessionCookie(env.carts.cart.SessionToken))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Order placed successfully.", body["message"])
	assert.NotEmpty(t, body["order_id"])

	require.NotNil(t, env.orders.lastOrder)
	assert.True(t, env.carts.deactivated)

	orderBody := body["order"].(map[string]any)
	assert.Equal(t, "jane@example.com", orderBody["customer_email"])
	assert.Equal(t, true, orderBody["is_guest"])
}

func TestCheckout_FlattensAddressArray(t *testing.T) {
	env := newTestEnv()
	seedCart(t, env)

	payload := validCheckoutBody()
	payload["shipping"].(map[string]any)["address"] = []string{"Unit 4", "Main St"}
	rec, _ := env.do(t, http.MethodPost, "/api/checkout", payload,
		sessionCookie(env.carts.cart.SessionToken))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, env.orders.lastOrder)
	assert.Equal(t, "Unit 4, Main St", env.orders.lastOrder.ShippingAddress.Address)
}

// seedCart adds one product line so the session has a non-empty cart.
func seedCart(t *testing.T, env *testEnv) {
	t.Helper()
	env.catalog.byID[1] = &catalog.Product{
		ID: 1, SKU: "CAP-RED", Name: "Baseball Cap",
		Price: decimal.RequireFromString("14.50"), Stock: 10, Kind: catalog.KindSimple,
	}
	rec, _ := env.do(t, http.MethodPost, "/api/cart", map[string]any{"product_id": 1, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)
}

func validCheckoutBody() map[string]any {
	address := func() map[string]any {
		return map[string]any{
			"first_name": "Jane",
			"last_name":  "Doe",
			"address":    "1 Main St",
			"city":       "Springfield",
			"state":      "IL",
			"country":    "US",
			"postcode":   "12345",
			"phone":      "555-0101",
		}
	}
	return map[string]any{
		"billing":         address(),
		"shipping":        address(),
		"customer_email":  "jane@example.com",
		"payment_method":  "cashondelivery",
		"shipping_method": "flatrate_flatrate",
	}
}
