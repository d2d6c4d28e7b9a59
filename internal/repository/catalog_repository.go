package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
)

// CatalogRepository reads products and price lists from the admin service.
type CatalogRepository struct {
	c client
}

func NewCatalog(httpClient *http.Client, baseURL string, timeout time.Duration) *CatalogRepository {
	return &CatalogRepository{
		c: client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout},
	}
}

func (r *CatalogRepository) QueryProducts(ctx context.Context, productIDs []uuid.UUID) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("productIDs is empty")
	}

	var products []domain.Product
	if err := doJSON(ctx, r.c, http.MethodPost, "/product/query", productIDs, &products); err != nil {
		return nil, fmt.Errorf("doJSON: %w", err)
	}

	return products, nil
}

func (r *CatalogRepository) QueryPriceListItems(ctx context.Context, priceListID uuid.UUID, productIDs []uuid.UUID) ([]domain.PriceListItem, error) {
	if priceListID == uuid.Nil {
		return nil, fmt.Errorf("priceListID is empty")
	}
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("productIDs is empty")
	}

	path := fmt.Sprintf("/pricelist/%s/pricelistitems/query", priceListID)

	var items []domain.PriceListItem
	if err := doJSON(ctx, r.c, http.MethodPost, path, idsQuery{IDs: productIDs}, &items); err != nil {
		return nil, fmt.Errorf("doJSON: %w", err)
	}

	return items, nil
}
