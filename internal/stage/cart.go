package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/fanout"
	"github.com/nikolayk812/cartflow/internal/port"
)

// Cart writes priced lines and the new total to the cart service. It is the
// last stage and publishes nothing.
type Cart struct {
	carts     port.CartRepository
	batchSize int
	log       *slog.Logger
}

func NewCart(carts port.CartRepository, batchSize int, log *slog.Logger) *Cart {
	return &Cart{
		carts:     carts,
		batchSize: batchSize,
		log:       log,
	}
}

func (c *Cart) Handle(ctx context.Context, resp domain.PricingResponse) error {
	log := c.log.With("cart_id", resp.CartID, "price_list_id", resp.PriceListID)

	results := fanout.Run(ctx, log, resp.CartItems, c.batchSize,
		func(ctx context.Context, items []domain.PricedItem) ([]struct{}, error) {
			if err := c.carts.UpdateItemPrices(ctx, resp.CartID, items); err != nil {
				return nil, err
			}
			return nil, nil
		})

	if failed := fanout.Failed(results); failed > 0 {
		log.ErrorContext(ctx, "cart_items_update_failed", "failed", failed, "batches", len(results))
		return fmt.Errorf("%w: %d of %d batches failed", ErrPartialUpdate, failed, len(results))
	}

	cart, err := c.carts.GetCart(ctx, resp.CartID)
	if err != nil {
		return fmt.Errorf("carts.GetCart: %w", err)
	}

	if cart.Status == "" {
		log.WarnContext(ctx, "cart_status_empty")
		return nil
	}

	update := domain.CartUpdate{
		CartID:      resp.CartID,
		PriceListID: resp.PriceListID,
		Status:      domain.CartStatusPriced,
		Price:       cart.Price.Add(resp.TotalPrice),
	}
	if err := c.carts.UpdateCart(ctx, update); err != nil {
		return fmt.Errorf("carts.UpdateCart: %w", err)
	}

	log.InfoContext(ctx, "cart_updated", "price", update.Price.String(), "delta", resp.TotalPrice.String())
	return nil
}
