package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// CreateProductInput carries the fields accepted when registering a product.
type CreateProductInput struct {
	Name           string
	Description    string
	GITag          string
	Region         string
	ArtisanName    string
	ArtisanContact string
	Price          *float64
	Category       string
	ImageURL       string
	Latitude       *float64
	Longitude      *float64
	CulturalStory  string
	Barcode        string
}

// ProductService defines product catalogue operations
type ProductService interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
}

type codeInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

type productService struct {
	productRepo repository.ProductRepository
	invalidator codeInvalidator
	now         func() time.Time
}

// NewProductService creates a new instance of ProductService. Creating a
// product clears the cached verification of its code through invalidator.
func NewProductService(productRepo repository.ProductRepository, invalidator codeInvalidator) ProductService {
	return &productService{
		productRepo: productRepo,
		invalidator: invalidator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *productService) Get(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidProductID
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	return s.productRepo.List(ctx, filter)
}

func (s *productService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	now := s.now()

	product := &domain.Product{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		GITag:          strings.TrimSpace(input.GITag),
		Region:         strings.TrimSpace(input.Region),
		ArtisanName:    strings.TrimSpace(input.ArtisanName),
		ArtisanContact: input.ArtisanContact,
		Price:          input.Price,
		Category:       strings.TrimSpace(input.Category),
		ImageURL:       strings.TrimSpace(input.ImageURL),
		CulturalStory:  input.CulturalStory,
		Barcode:        NormalizeCode(input.Barcode),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if product.Category == "" {
		product.Category = domain.DefaultCategory
	}

	// A location needs both coordinates; zero is treated as unset.
	if input.Latitude != nil && input.Longitude != nil && *input.Latitude != 0 && *input.Longitude != 0 {
		product.Location = &domain.Location{Latitude: *input.Latitude, Longitude: *input.Longitude}
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	if product.Barcode != "" && s.invalidator != nil {
		s.invalidator.Invalidate(ctx, product.Barcode)
	}

	return product, nil
}
