package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/fanout"
	"github.com/nikolayk812/cartflow/internal/port"
	"github.com/nikolayk812/cartflow/internal/rules"
)

// Config resolves the products of a cart, applies configuration rules and
// forwards the cart to pricing.
type Config struct {
	catalog   port.CatalogRepository
	rules     *rules.Engine
	next      Publisher
	batchSize int
	log       *slog.Logger
}

func NewConfig(catalog port.CatalogRepository, engine *rules.Engine, next Publisher, batchSize int, log *slog.Logger) *Config {
	return &Config{
		catalog:   catalog,
		rules:     engine,
		next:      next,
		batchSize: batchSize,
		log:       log,
	}
}

func (c *Config) Handle(ctx context.Context, msg domain.CartMessage) error {
	log := c.log.With("cart_id", msg.CartID, "cart_action", msg.CartAction.String())

	results := fanout.Run(ctx, log, msg.ProductIDs(), c.batchSize,
		func(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
			return c.catalog.QueryProducts(ctx, ids)
		})

	products := fanout.Succeeded(results)
	if failed := fanout.Failed(results); failed > 0 {
		log.WarnContext(ctx, "product_batches_failed", "failed", failed, "batches", len(results))
	}

	if err := c.rules.Apply(ctx, products, &msg); err != nil {
		return fmt.Errorf("rules.Apply: %w", err)
	}

	id, err := c.next.Publish(ctx, &msg)
	if err != nil {
		return fmt.Errorf("next.Publish: %w", err)
	}

	log.InfoContext(ctx, "cart_configured", "products", len(products), "published_id", id)
	return nil
}
