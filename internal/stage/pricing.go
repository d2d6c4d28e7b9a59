package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/fanout"
	"github.com/nikolayk812/cartflow/internal/port"
	"github.com/nikolayk812/cartflow/internal/pricing"
)

// Pricing prices a cart from its price list and forwards the result to the
// cart stage.
type Pricing struct {
	catalog   port.CatalogRepository
	carts     port.CartRepository
	next      Publisher
	batchSize int
	log       *slog.Logger
}

func NewPricing(catalog port.CatalogRepository, carts port.CartRepository, next Publisher, batchSize int, log *slog.Logger) *Pricing {
	return &Pricing{
		catalog:   catalog,
		carts:     carts,
		next:      next,
		batchSize: batchSize,
		log:       log,
	}
}

func (p *Pricing) Handle(ctx context.Context, msg domain.CartMessage) error {
	log := p.log.With("cart_id", msg.CartID, "price_list_id", msg.PriceListID, "cart_action", msg.CartAction.String())

	lookup := p.lookup(ctx, log, msg)

	result := pricing.CalculateCartPrice(msg, lookup)
	for _, item := range result.Skipped {
		log.WarnContext(ctx, "cart_item_not_priced", "cart_item_id", item.CartItemID, "product_id", item.ProductID)
	}

	resp := result.Response
	resp.AdditionalInfo = msg.AdditionalInfo

	if msg.CartAction == domain.Reprice {
		stored, err := p.storedItems(ctx, log, msg)
		if err != nil {
			return fmt.Errorf("storedItems: %w", err)
		}
		resp.TotalPrice = pricing.RepriceDelta(resp.TotalPrice, stored)
	}

	if len(resp.CartItems) == 0 {
		log.WarnContext(ctx, "cart_not_priced", "items", len(msg.CartItems))
		return nil
	}

	id, err := p.next.Publish(ctx, &resp)
	if err != nil {
		return fmt.Errorf("next.Publish: %w", err)
	}

	log.InfoContext(ctx, "cart_priced",
		"total_price", resp.TotalPrice.String(),
		"items", len(resp.CartItems),
		"skipped", len(result.Skipped),
		"published_id", id,
	)
	return nil
}

func (p *Pricing) lookup(ctx context.Context, log *slog.Logger, msg domain.CartMessage) pricing.Lookup {
	results := fanout.Run(ctx, log, msg.ProductIDs(), p.batchSize,
		func(ctx context.Context, ids []uuid.UUID) ([]domain.PriceListItem, error) {
			return p.catalog.QueryPriceListItems(ctx, msg.PriceListID, ids)
		})

	lookup, warnings := pricing.NewLookup(fanout.Succeeded(results))
	for _, err := range warnings {
		log.WarnContext(ctx, "price_list_item_currency_unknown", "error", err)
	}

	return lookup
}

// storedItems reads the prices currently stored for the cart lines. Every
// batch must succeed, otherwise the delta would be computed from a partial sum.
func (p *Pricing) storedItems(ctx context.Context, log *slog.Logger, msg domain.CartMessage) ([]domain.CartItemInfo, error) {
	results := fanout.Run(ctx, log, msg.CartItemIDs(), p.batchSize,
		func(ctx context.Context, ids []uuid.UUID) ([]domain.CartItemInfo, error) {
			return p.carts.QueryItems(ctx, msg.CartID, ids)
		})

	if failed := fanout.Failed(results); failed > 0 {
		return nil, fmt.Errorf("%d of %d cart item batches failed", failed, len(results))
	}

	return fanout.Succeeded(results), nil
}
