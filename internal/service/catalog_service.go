package service

import (
	"context"

	"pcprice-service/internal/models"
	"pcprice-service/internal/store"
	"pcprice-service/internal/util"
)

// CatalogService serves read-only catalog queries
type CatalogService struct {
	catalog CatalogReader
}

// NewCatalogService creates a new catalog service
func NewCatalogService(catalog CatalogReader) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
}

// ListProducts returns one page of products matching filter
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, total, err := s.catalog.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}

	limit, skip := store.PageBounds(filter)
	return &ProductPage{
		Products: products,
		Total:    total,
		Skip:     skip,
		Limit:    limit,
	}, nil
}

// GetProduct retrieves a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.catalog.GetProductByID(ctx, id)
}

// PriceHistory returns the newest observations of a product
func (s *CatalogService) PriceHistory(ctx context.Context, id int64, limit int) ([]models.PriceObservation, error) {
	if _, err := s.catalog.GetProductByID(ctx, id); err != nil {
		return nil, err
	}
	return s.catalog.GetPriceHistory(ctx, id, limit)
}

// Stores lists the stores with active products
func (s *CatalogService) Stores(ctx context.Context) ([]models.StoreCount, error) {
	return s.catalog.CountByStore(ctx)
}

// Stats summarizes the active catalog
func (s *CatalogService) Stats(ctx context.Context) (*models.CatalogStats, error) {
	return s.catalog.GetCatalogStats(ctx)
}
