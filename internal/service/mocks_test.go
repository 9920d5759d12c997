package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/repository"

	"github.com/google/uuid"
)

// Mock repository for testing
type mockProductRepository struct {
	mu            sync.Mutex
	products      map[uuid.UUID]*domain.Product
	barcodeCalls  atomic.Int32
	lastFilter    domain.ProductFilter
	beforeBarcode func(ctx context.Context) error
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if product.Barcode != "" && strings.EqualFold(p.Barcode, product.Barcode) {
			return repository.ErrDuplicateBarcode
		}
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	m.barcodeCalls.Add(1)
	if m.beforeBarcode != nil {
		if err := m.beforeBarcode(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.Barcode != "" && strings.EqualFold(p.Barcode, code) {
			return p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastFilter = filter
	out := []*domain.Product{}
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type recordingInvalidator struct {
	codes []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, code string) {
	r.codes = append(r.codes, code)
}

func sampleProduct(code string, active bool) *domain.Product {
	return &domain.Product{
		ID:          uuid.New(),
		Name:        "Kondapalli Bommalu (Toys)",
		GITag:       "Kondapalli",
		Region:      "Andhra Pradesh",
		ArtisanName: "Venkatesh Rao",
		Barcode:     code,
		IsActive:    active,
	}
}

type mockCatalogueRepository struct {
	products []*domain.Product
	lastTop  int
	err      error
}

func (m *mockCatalogueRepository) Regions(ctx context.Context) ([]*domain.RegionSummary, error) {
	return []*domain.RegionSummary{}, m.err
}

func (m *mockCatalogueRepository) GITags(ctx context.Context) ([]*domain.GITagSummary, error) {
	return []*domain.GITagSummary{}, m.err
}

func (m *mockCatalogueRepository) ActiveProducts(ctx context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m *mockCatalogueRepository) Statistics(ctx context.Context, top int) (*domain.Statistics, error) {
	m.lastTop = top
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Statistics{TotalProducts: len(m.products)}, nil
}
