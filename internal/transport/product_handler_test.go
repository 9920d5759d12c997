package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/middleware"
	"heritage-atlas/internal/repository"
	"heritage-atlas/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret"

type stubVerificationService struct {
	responses map[string]*domain.VerificationResponse
	err       error
	calls     []string
}

func (s *stubVerificationService) Verify(ctx context.Context, code string) (*domain.VerificationResponse, error) {
	s.calls = append(s.calls, code)
	if s.err != nil {
		return nil, s.err
	}
	if resp, ok := s.responses[service.NormalizeCode(code)]; ok {
		return resp, nil
	}
	return nil, domain.ErrProductNotFound
}

func (s *stubVerificationService) Invalidate(ctx context.Context, code string) {}

type stubProductService struct {
	products   map[uuid.UUID]*domain.Product
	lastFilter domain.ProductFilter
	created    []service.CreateProductInput
	createErr  error
}

func (s *stubProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidProductID
	}
	if p, ok := s.products[parsed]; ok {
		return p, nil
	}
	return nil, domain.ErrProductNotFound
}

func (s *stubProductService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	s.lastFilter = filter
	var out []*domain.Product
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *stubProductService) Create(ctx context.Context, input service.CreateProductInput) (*domain.Product, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, input)
	return &domain.Product{ID: uuid.New(), Name: input.Name, Category: domain.DefaultCategory, IsActive: true}, nil
}

func newTestRouter(verify service.VerificationService, products service.ProductService) http.Handler {
	logger := zap.NewNop()
	r := chi.NewRouter()
	RegisterRootRoutes(r)
	NewProductHandler(verify, products, logger).RegisterRoutes(
		r,
		middleware.AuthMiddleware(testJWTSecret, logger),
		middleware.RequireAdmin(logger),
		nil,
	)
	return r
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "curator@heritage.example",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(&stubVerificationService{}, &stubProductService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Heritage Atlas API","version":"1.0.0","status":"running"}`, w.Body.String())
}

func TestVerify_Outcomes(t *testing.T) {
	product := &domain.Product{ID: uuid.New(), Name: "Channapatna Toys", Barcode: "HC-CHAN-002", IsActive: true}
	verify := &stubVerificationService{responses: map[string]*domain.VerificationResponse{
		"HC-CHAN-002": {Verified: true, Product: product},
		"HC-OLD-001":  {Verified: false},
	}}
	router := newTestRouter(verify, &stubProductService{})

	t.Run("verified", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/hc-chan-002", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body domain.VerificationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Verified)
		require.NotNil(t, body.Product)
		assert.Equal(t, product.ID, body.Product.ID)
	})

	t.Run("inactive", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/HC-OLD-001", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"verified":false}`, w.Body.String())
	})

	t.Run("unknown", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/NOPE-1", nil))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, `No product found for code "NOPE-1"`, decodeError(t, w).Detail)
	})

	t.Run("trimmed before lookup", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/%20HC-CHAN-002%20", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "HC-CHAN-002", verify.calls[len(verify.calls)-1])
	})

	t.Run("backend failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(&stubVerificationService{err: errors.New("db down")}, &stubProductService{}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/HC-1", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Verification failed", decodeError(t, w).Detail)
	})
}

// Feature: heritage-atlas, Property 13: Malformed codes never reach the lookup
func TestProperty_MalformedCodesAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("codes with forbidden characters get 400 without a lookup", prop.ForAll(
		func(prefix string, bad string) bool {
			verify := &stubVerificationService{}
			router := newTestRouter(verify, &stubProductService{})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/"+prefix+bad, nil))

			return w.Code == http.StatusBadRequest && len(verify.calls) == 0
		},
		gen.AlphaString(),
		gen.OneConstOf("%21", "%24", "%2A", "~", "%40", "."),
	))

	properties.Property("overlong codes get 400", prop.ForAll(
		func(n int) bool {
			verify := &stubVerificationService{}
			w := httptest.NewRecorder()
			newTestRouter(verify, &stubProductService{}).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/verify/"+strings.Repeat("A", n), nil))

			return w.Code == http.StatusBadRequest && len(verify.calls) == 0
		},
		gen.IntRange(middleware.MaxCodeLength+1, 200),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestGet(t *testing.T) {
	product := &domain.Product{ID: uuid.New(), Name: "Madhubani Painting", IsActive: true}
	router := newTestRouter(&stubVerificationService{}, &stubProductService{
		products: map[uuid.UUID]*domain.Product{product.ID: product},
	})

	tests := []struct {
		name   string
		id     string
		status int
		detail string
	}{
		{"found", product.ID.String(), http.StatusOK, ""},
		{"bad id", "not-a-uuid", http.StatusBadRequest, "Invalid product ID"},
		{"missing", uuid.NewString(), http.StatusNotFound, "Product not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/"+tt.id, nil))

			require.Equal(t, tt.status, w.Code)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, decodeError(t, w).Detail)
				return
			}

			var body ProductResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Equal(t, product.ID, body.Product.ID)
		})
	}
}

func TestList(t *testing.T) {
	products := &stubProductService{products: map[uuid.UUID]*domain.Product{}}
	router := newTestRouter(&stubVerificationService{}, products)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products?region=%20Bihar%20&gi_tag=Madhubani&limit=10&skip=20", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ProductFilter{Region: "Bihar", GITag: "Madhubani", Limit: 10, Skip: 20}, products.lastFilter)
	assert.JSONEq(t, `{"success":true,"products":[],"total":0,"limit":10,"skip":20}`, w.Body.String())

	for _, q := range []string{"limit=0", "limit=101", "limit=x", "skip=-1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestCreate(t *testing.T) {
	valid := `{"name":"Warli Painting","description":"Tribal art","gi_tag":"Warli","region":"Maharashtra","artisan_name":"Jivya","barcode":"HC-WARL-099"}`

	tests := []struct {
		name      string
		role      string
		body      string
		createErr error
		status    int
	}{
		{"admin creates", "admin", valid, nil, http.StatusCreated},
		{"non-admin forbidden", "artisan", valid, nil, http.StatusForbidden},
		{"no token", "", valid, nil, http.StatusUnauthorized},
		{"missing fields", "admin", `{"name":"Warli Painting"}`, nil, http.StatusBadRequest},
		{"bad barcode", "admin", strings.Replace(valid, "HC-WARL-099", "HC WARL", 1), nil, http.StatusBadRequest},
		{"malformed body", "admin", `{"name":`, nil, http.StatusBadRequest},
		{"duplicate barcode", "admin", valid, repository.ErrDuplicateBarcode, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := &stubProductService{createErr: tt.createErr}
			router := newTestRouter(&stubVerificationService{}, products)

			req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.role != "" {
				req.Header.Set("Authorization", "Bearer "+adminToken(t, tt.role))
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusCreated {
				return
			}

			var body ProductResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Equal(t, "Product created successfully", body.Message)
			require.Len(t, products.created, 1)
			assert.Equal(t, "HC-WARL-099", products.created[0].Barcode)
		})
	}
}

func postForm(t *testing.T, router http.Handler, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/products", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreate_URLEncodedForm(t *testing.T) {
	products := &stubProductService{}
	router := newTestRouter(&stubVerificationService{}, products)

	form := url.Values{
		"name":         {"Kondapalli Bommalu (Toys)"},
		"description":  {"Wooden toys"},
		"gi_tag":       {"Kondapalli"},
		"region":       {"Andhra Pradesh"},
		"artisan_name": {"Venkatesh Rao"},
		"price":        {" 1500.50 "},
		"latitude":     {"16.5062"},
		"longitude":    {"80.6480"},
		"barcode":      {"HC-KOND-101"},
	}
	w := postForm(t, router, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, products.created, 1)
	got := products.created[0]
	assert.Equal(t, "Kondapalli Bommalu (Toys)", got.Name)
	assert.Equal(t, "HC-KOND-101", got.Barcode)
	require.NotNil(t, got.Price)
	assert.Equal(t, 1500.5, *got.Price)
	require.NotNil(t, got.Latitude)
	require.NotNil(t, got.Longitude)
	assert.Equal(t, 16.5062, *got.Latitude)
	assert.Equal(t, 80.648, *got.Longitude)
}

func TestCreate_MultipartFormWithBlankNumbers(t *testing.T) {
	products := &stubProductService{}
	router := newTestRouter(&stubVerificationService{}, products)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"name":         "Warli Painting",
		"description":  "Tribal art",
		"gi_tag":       "Warli",
		"region":       "Maharashtra",
		"artisan_name": "Jivya",
		"price":        "",
		"latitude":     "19.7515",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	w := postForm(t, router, mw.FormDataContentType(), &buf)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, products.created, 1)
	assert.Nil(t, products.created[0].Price)
	assert.Nil(t, products.created[0].Longitude)
	require.NotNil(t, products.created[0].Latitude)
}

func TestCreate_FormRejectsBadNumbers(t *testing.T) {
	base := url.Values{
		"name":         {"Warli Painting"},
		"description":  {"Tribal art"},
		"gi_tag":       {"Warli"},
		"region":       {"Maharashtra"},
		"artisan_name": {"Jivya"},
	}

	for _, tt := range []struct{ field, value string }{
		{"price", "abc"},
		{"latitude", "12,5"},
		{"longitude", "NaN"},
	} {
		t.Run(tt.field, func(t *testing.T) {
			products := &stubProductService{}
			router := newTestRouter(&stubVerificationService{}, products)

			form := url.Values{}
			for k, v := range base {
				form[k] = v
			}
			form.Set(tt.field, tt.value)

			w := postForm(t, router, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w).Detail, "Invalid number format")
			assert.Empty(t, products.created)
		})
	}
}

func TestCreate_FormStillValidates(t *testing.T) {
	router := newTestRouter(&stubVerificationService{}, &stubProductService{})

	w := postForm(t, router, "application/x-www-form-urlencoded", strings.NewReader("name=Warli+Painting&price=-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
