package transport

import (
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/middleware"
	"heritage-atlas/internal/repository"
	"heritage-atlas/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateProductRequest represents the product registration payload
type CreateProductRequest struct {
	Name           string   `json:"name" validate:"required,max=255"`
	Description    string   `json:"description" validate:"required"`
	GITag          string   `json:"gi_tag" validate:"required,max=255"`
	Region         string   `json:"region" validate:"required,max=255"`
	ArtisanName    string   `json:"artisan_name" validate:"required,max=255"`
	ArtisanContact string   `json:"artisan_contact" validate:"max=255"`
	Price          *float64 `json:"price" validate:"omitempty,gte=0"`
	Category       string   `json:"category" validate:"max=255"`
	ImageURL       string   `json:"image_url" validate:"omitempty,url"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CulturalStory  string   `json:"cultural_story"`
	Barcode        string   `json:"barcode" validate:"omitempty,max=64,verifycode"`
}

type listQuery struct {
	Limit int `validate:"gte=1,lte=100"`
	Skip  int `validate:"gte=0"`
}

// ProductResponse wraps a single product
type ProductResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Product *domain.Product `json:"product"`
}

// ProductListResponse wraps a page of products
type ProductListResponse struct {
	Success  bool              `json:"success"`
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Skip     int               `json:"skip"`
}

// ProductHandler handles HTTP requests for the product catalogue and
// verification lookups
type ProductHandler struct {
	verificationService service.VerificationService
	productService      service.ProductService
	logger              *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(
	verificationService service.VerificationService,
	productService service.ProductService,
	logger *zap.Logger,
) *ProductHandler {
	return &ProductHandler{
		verificationService: verificationService,
		productService:      productService,
		logger:              logger,
	}
}

// RegisterRoutes registers all product routes. verifyLimiter, when non-nil,
// throttles the verification endpoint only.
func (h *ProductHandler) RegisterRoutes(
	r chi.Router,
	authMiddleware func(http.Handler) http.Handler,
	adminMiddleware func(http.Handler) http.Handler,
	verifyLimiter func(http.Handler) http.Handler,
) {
	r.Route("/api/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if verifyLimiter != nil {
				r.Use(verifyLimiter)
			}
			r.Get("/verify/{code}", h.Verify)
		})

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.Create)
		})
	})
}

// Verify handles GET /api/products/verify/{code}
func (h *ProductHandler) Verify(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))

	if err := middleware.ValidateCode(code); err != nil {
		h.logger.Debug("Rejected verification code", zap.String("code", code), zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}

	result, err := h.verificationService.Verify(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, fmt.Sprintf("No product found for code %q", code))
			return
		}
		if errors.Is(err, domain.ErrInvalidCode) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Invalid verification code")
			return
		}

		h.logger.Error("Verification failed", zap.String("code", code), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Verification failed")
		return
	}

	h.logger.Info("Code verified", zap.String("code", code), zap.Bool("verified", result.Verified))
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Get handles GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidProductID):
			middleware.RespondWithError(w, http.StatusBadRequest, "Invalid product ID")
		case errors.Is(err, domain.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		default:
			h.logger.Error("Failed to get product", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to get product")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductResponse{Success: true, Product: product})
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := listQuery{Limit: service.DefaultListLimit}
	var err error
	if raw := query.Get("limit"); raw != "" {
		if params.Limit, err = strconv.Atoi(raw); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	if raw := query.Get("skip"); raw != "" {
		if params.Skip, err = strconv.Atoi(raw); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "skip must be an integer")
			return
		}
	}
	if err := middleware.ValidateRequest(params); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}
	limit, skip := params.Limit, params.Skip

	filter := domain.ProductFilter{
		Region:      strings.TrimSpace(query.Get("region")),
		GITag:       strings.TrimSpace(query.Get("gi_tag")),
		ArtisanName: strings.TrimSpace(query.Get("artisan_name")),
		Limit:       limit,
		Skip:        skip,
	}

	products, total, err := h.productService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Success:  true,
		Products: products,
		Total:    total,
		Limit:    limit,
		Skip:     skip,
	})
}

// Create handles POST /api/products. The body may be JSON or an urlencoded
// or multipart form.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest

	decode := middleware.DecodeAndValidate
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); isFormMediaType(mediaType) {
		decode = decodeProductForm
	}

	if err := decode(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		var numErr *numberFormatError
		if errors.As(err, &numErr) {
			middleware.RespondWithError(w, http.StatusBadRequest, numErr.Error())
			return
		}

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.productService.Create(r.Context(), service.CreateProductInput{
		Name:           req.Name,
		Description:    req.Description,
		GITag:          req.GITag,
		Region:         req.Region,
		ArtisanName:    req.ArtisanName,
		ArtisanContact: req.ArtisanContact,
		Price:          req.Price,
		Category:       req.Category,
		ImageURL:       req.ImageURL,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		CulturalStory:  req.CulturalStory,
		Barcode:        req.Barcode,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateBarcode) {
			middleware.RespondWithError(w, http.StatusConflict, "A product with this barcode already exists")
			return
		}

		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	sub, _ := middleware.GetSubject(r.Context())
	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("created_by", sub),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, ProductResponse{
		Success: true,
		Message: "Product created successfully",
		Product: product,
	})
}

const maxFormMemory = 10 << 20

type numberFormatError struct {
	field string
	value string
}

func (e *numberFormatError) Error() string {
	return fmt.Sprintf("Invalid number format: %s %q", e.field, e.value)
}

func isFormMediaType(mediaType string) bool {
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// decodeProductForm fills a CreateProductRequest from form fields. Blank
// numeric fields are left unset.
func decodeProductForm(r *http.Request, v interface{}) error {
	req := v.(*CreateProductRequest)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return err
	}

	form := r.PostForm
	req.Name = form.Get("name")
	req.Description = form.Get("description")
	req.GITag = form.Get("gi_tag")
	req.Region = form.Get("region")
	req.ArtisanName = form.Get("artisan_name")
	req.ArtisanContact = form.Get("artisan_contact")
	req.Category = form.Get("category")
	req.ImageURL = form.Get("image_url")
	req.CulturalStory = form.Get("cultural_story")
	req.Barcode = form.Get("barcode")

	for _, f := range []struct {
		field string
		dst   **float64
	}{
		{"price", &req.Price},
		{"latitude", &req.Latitude},
		{"longitude", &req.Longitude},
	} {
		raw := strings.TrimSpace(form.Get(f.field))
		if raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return &numberFormatError{field: f.field, value: raw}
		}
		*f.dst = &n
	}

	return middleware.ValidateRequest(req)
}

// RegisterRootRoutes registers the service banner.
func RegisterRootRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
			"message": "Heritage Atlas API",
			"version": "1.0.0",
			"status":  "running",
		})
	})
}
