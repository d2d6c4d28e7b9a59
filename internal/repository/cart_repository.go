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

const actionUpdatePrice = "UpdatePrice"

// CartRepository talks to the cart service, which owns the cart aggregate.
type CartRepository struct {
	c client
}

func NewCart(httpClient *http.Client, baseURL string, timeout time.Duration) *CartRepository {
	return &CartRepository{
		c: client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout},
	}
}

type updateItemsRequest struct {
	Action    string              `json:"action"`
	CartItems []domain.PricedItem `json:"cartItems"`
}

func (r *CartRepository) GetCart(ctx context.Context, cartID uuid.UUID) (domain.Cart, error) {
	if cartID == uuid.Nil {
		return domain.Cart{}, fmt.Errorf("cartID is empty")
	}

	var cart domain.Cart
	if err := doJSON(ctx, r.c, http.MethodGet, cartPath(cartID), nil, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("doJSON: %w", err)
	}

	return cart, nil
}

func (r *CartRepository) UpdateCart(ctx context.Context, update domain.CartUpdate) error {
	if update.CartID == uuid.Nil {
		return fmt.Errorf("cartID is empty")
	}

	if err := doJSON[struct{}](ctx, r.c, http.MethodPut, cartPath(update.CartID), update, nil); err != nil {
		return fmt.Errorf("doJSON: %w", err)
	}

	return nil
}

func (r *CartRepository) UpdateItemPrices(ctx context.Context, cartID uuid.UUID, items []domain.PricedItem) error {
	if cartID == uuid.Nil {
		return fmt.Errorf("cartID is empty")
	}
	if len(items) == 0 {
		return fmt.Errorf("items is empty")
	}

	req := updateItemsRequest{Action: actionUpdatePrice, CartItems: items}
	if err := doJSON[struct{}](ctx, r.c, http.MethodPatch, cartPath(cartID)+"/items", req, nil); err != nil {
		return fmt.Errorf("doJSON: %w", err)
	}

	return nil
}

func (r *CartRepository) QueryItems(ctx context.Context, cartID uuid.UUID, cartItemIDs []uuid.UUID) ([]domain.CartItemInfo, error) {
	if cartID == uuid.Nil {
		return nil, fmt.Errorf("cartID is empty")
	}
	if len(cartItemIDs) == 0 {
		return nil, fmt.Errorf("cartItemIDs is empty")
	}

	var items []domain.CartItemInfo
	if err := doJSON(ctx, r.c, http.MethodPost, cartPath(cartID)+"/items/query", idsQuery{IDs: cartItemIDs}, &items); err != nil {
		return nil, fmt.Errorf("doJSON: %w", err)
	}

	return items, nil
}

func cartPath(cartID uuid.UUID) string {
	return "/cart/" + cartID.String()
}
