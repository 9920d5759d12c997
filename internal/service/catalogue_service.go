package service

import (
	"context"
	"sort"

	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/repository"
)

// TopStatistics is how many regions and GI tags the statistics rank.
const TopStatistics = 10

// CatalogueService browses the active catalogue by region and GI tag
type CatalogueService interface {
	Regions(ctx context.Context) ([]*domain.RegionSummary, error)
	GITags(ctx context.Context) ([]*domain.GITagSummary, error)
	ProductsByRegion(ctx context.Context) ([]*domain.RegionGroup, error)
	ProductsByGITag(ctx context.Context) ([]*domain.GITagGroup, error)
	Statistics(ctx context.Context) (*domain.Statistics, error)
}

type catalogueService struct {
	catalogueRepo repository.CatalogueRepository
}

// NewCatalogueService creates a new instance of CatalogueService
func NewCatalogueService(catalogueRepo repository.CatalogueRepository) CatalogueService {
	return &catalogueService{catalogueRepo: catalogueRepo}
}

func (s *catalogueService) Regions(ctx context.Context) ([]*domain.RegionSummary, error) {
	return s.catalogueRepo.Regions(ctx)
}

func (s *catalogueService) GITags(ctx context.Context) ([]*domain.GITagSummary, error) {
	return s.catalogueRepo.GITags(ctx)
}

func (s *catalogueService) Statistics(ctx context.Context) (*domain.Statistics, error) {
	return s.catalogueRepo.Statistics(ctx, TopStatistics)
}

// ProductsByRegion groups one snapshot of the active products so that the
// counts always match the products listed.
func (s *catalogueService) ProductsByRegion(ctx context.Context) ([]*domain.RegionGroup, error) {
	products, err := s.catalogueRepo.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}

	index := map[string]*domain.RegionGroup{}
	tags := map[string]map[string]struct{}{}
	var groups []*domain.RegionGroup
	for _, p := range products {
		g, ok := index[p.Region]
		if !ok {
			g = &domain.RegionGroup{RegionSummary: domain.RegionSummary{Region: p.Region}}
			index[p.Region] = g
			tags[p.Region] = map[string]struct{}{}
			groups = append(groups, g)
		}
		g.Products = append(g.Products, p)
		g.Count++
		tags[p.Region][p.GITag] = struct{}{}
	}

	for _, g := range groups {
		g.GITags = sortedKeys(tags[g.Region])
		g.Location = averageLocation(g.Products)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Region < groups[j].Region
	})

	if groups == nil {
		groups = []*domain.RegionGroup{}
	}
	return groups, nil
}

func (s *catalogueService) ProductsByGITag(ctx context.Context) ([]*domain.GITagGroup, error) {
	products, err := s.catalogueRepo.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}

	index := map[string]*domain.GITagGroup{}
	regions := map[string]map[string]struct{}{}
	var groups []*domain.GITagGroup
	for _, p := range products {
		g, ok := index[p.GITag]
		if !ok {
			g = &domain.GITagGroup{GITagSummary: domain.GITagSummary{GITag: p.GITag}}
			index[p.GITag] = g
			regions[p.GITag] = map[string]struct{}{}
			groups = append(groups, g)
		}
		g.Products = append(g.Products, p)
		g.Count++
		regions[p.GITag][p.Region] = struct{}{}
	}

	for _, g := range groups {
		g.Regions = sortedKeys(regions[g.GITag])
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].GITag < groups[j].GITag
	})

	if groups == nil {
		groups = []*domain.GITagGroup{}
	}
	return groups, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// averageLocation ignores products without a location.
func averageLocation(products []*domain.Product) *domain.Location {
	var lat, lng float64
	n := 0
	for _, p := range products {
		if p.Location == nil {
			continue
		}
		lat += p.Location.Latitude
		lng += p.Location.Longitude
		n++
	}
	if n == 0 {
		return nil
	}
	return &domain.Location{Latitude: lat / float64(n), Longitude: lng / float64(n)}
}
